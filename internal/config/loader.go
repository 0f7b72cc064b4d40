package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

// Load reads configuration from the process environment, applies defaults
// for unset values and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom variable lookup.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct populates struct fields from their env tags, recursing into
// nested structs.
func loadStruct(v reflect.Value, getenv func(string) string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, getenv); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := getenv(envName)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = getenv(alt)
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField parses value into field according to its kind.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var result []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks every setting and reports all failures at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case DriverPostgres, DriverMongo:
		if c.Store.URL == "" {
			errs = append(errs, fmt.Sprintf("DATABASE_URL is required for STORE_DRIVER=%s", c.Store.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: postgres, mongo, memory", c.Store.Driver))
	}
	if c.Store.Driver == DriverMongo && c.Store.Database == "" {
		errs = append(errs, "MONGO_DATABASE is required for STORE_DRIVER=mongo")
	}
	if c.Store.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Store.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Store.MaxConns < c.Store.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Store.MaxConns, c.Store.MinConns))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Ingest.MaxRecords == 0 {
		errs = append(errs, "INGEST_MAX_RECORDS must be positive, or negative for no cap")
	}
	if c.Ingest.Workers <= 0 {
		errs = append(errs, "INGEST_WORKERS must be positive")
	}
	if c.Ingest.MaxConcurrent <= 0 {
		errs = append(errs, "INGEST_MAX_CONCURRENT must be positive")
	}
	if c.Ingest.MaxWaitTime <= 0 {
		errs = append(errs, "INGEST_MAX_WAIT_TIME must be positive")
	}
	if c.Ingest.MaxFileSize <= 0 {
		errs = append(errs, "INGEST_MAX_FILE_SIZE must be positive")
	}
	if c.Ingest.Timeout <= 0 {
		errs = append(errs, "INGEST_TIMEOUT must be positive")
	}
	if c.Ingest.FailureSampleSize <= 0 {
		errs = append(errs, "INGEST_FAILURE_SAMPLE_SIZE must be positive")
	}

	if c.Query.MaxPageSize <= 0 {
		errs = append(errs, "QUERY_MAX_PAGE_SIZE must be positive")
	}

	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			errs = append(errs, "REDIS_ADDR is required when CACHE_ENABLED is true")
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, "CACHE_TTL must be positive")
		}
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "API_KEYS is required when REQUIRE_API_KEY is true")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ServiceConfig translates the ingest and query sections for core.NewService.
// The report cache is attached by the caller.
func (c *Config) ServiceConfig() core.ServiceConfig {
	return core.ServiceConfig{
		Pipeline: core.PipelineConfig{
			Workers:           c.Ingest.Workers,
			FailureSampleSize: c.Ingest.FailureSampleSize,
		},
		MaxRecords:        c.Ingest.MaxRecords,
		MaxConcurrentRuns: c.Ingest.MaxConcurrent,
		RunWait:           c.Ingest.MaxWaitTime,
		RunTimeout:        c.Ingest.Timeout,
		RunRetention:      c.Ingest.RunRetention,
		TrimListValues:    c.Query.TrimListValues,
		MaxPageSize:       c.Query.MaxPageSize,
		CacheTTL:          c.Cache.TTL,
	}
}

// String returns a loggable summary with credentials masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Store: {Driver: %q, URL: [MASKED], MaxConns: %d}, ", c.Store.Driver, c.Store.MaxConns)
	fmt.Fprintf(&b, "Ingest: {MaxRecords: %d, Workers: %d, MaxConcurrent: %d}, ",
		c.Ingest.MaxRecords, c.Ingest.Workers, c.Ingest.MaxConcurrent)
	fmt.Fprintf(&b, "Query: {TrimListValues: %v, MaxPageSize: %d}, ", c.Query.TrimListValues, c.Query.MaxPageSize)
	fmt.Fprintf(&b, "Cache: {Enabled: %v, Addr: %q}, ", c.Cache.Enabled, c.Cache.Addr)
	fmt.Fprintf(&b, "Security: {TrustedProxies: %v, RequireAPIKey: %v, APIKeys: [%d MASKED]}, ",
		c.Security.TrustedProxies, c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
