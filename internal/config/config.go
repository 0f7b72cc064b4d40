// Package config loads application configuration from environment
// variables, applies defaults, and validates everything on startup so a
// misconfigured process fails before it serves or ingests anything.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Ingest   IngestConfig
	Query    QueryConfig
	Cache    CacheConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is 0 by default; large uploads stream for a while.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// ingestion runs to finish (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is postgres, mongo or memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// URL is the connection string. Required unless Driver is memory.
	// DATABASE_URL and DB_URL are both accepted.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Database is the MongoDB database name (default: jobalyzer)
	Database string `env:"MONGO_DATABASE" default:"jobalyzer"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	ConnectTimeout time.Duration `env:"STORE_CONNECT_TIMEOUT" default:"10s"`

	// EnsureSchema creates tables, collections and indexes on startup.
	EnsureSchema bool `env:"STORE_ENSURE_SCHEMA" default:"true"`
}

// IngestConfig holds ingestion run settings.
type IngestConfig struct {
	// MaxRecords caps records admitted per run; negative disables (default: 5000)
	MaxRecords int `env:"INGEST_MAX_RECORDS" default:"5000"`

	// Workers is the number of records processed in parallel per run (default: 8)
	Workers int `env:"INGEST_WORKERS" default:"8"`

	// MaxConcurrent is the number of runs allowed at once (default: 2)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a new run waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"INGEST_MAX_WAIT_TIME" default:"30s"`

	// MaxFileSize is the largest accepted upload in bytes (default: 100MB)
	MaxFileSize int64 `env:"INGEST_MAX_FILE_SIZE" default:"104857600"`

	Timeout time.Duration `env:"INGEST_TIMEOUT" default:"30m"`

	// RunRetention is how long a finished run stays queryable (default: 15m)
	RunRetention time.Duration `env:"INGEST_RUN_RETENTION" default:"15m"`

	FailureSampleSize int `env:"INGEST_FAILURE_SAMPLE_SIZE" default:"100"`
}

// QueryConfig holds read path settings.
type QueryConfig struct {
	// TrimListValues trims whitespace around comma-separated filter values.
	// Off by default: "AUTO, ANDROID" searches for " ANDROID".
	TrimListValues bool `env:"QUERY_TRIM_LIST_VALUES" default:"false"`

	MaxPageSize int `env:"QUERY_MAX_PAGE_SIZE" default:"500"`
}

// CacheConfig holds the Redis report cache settings.
type CacheConfig struct {
	Enabled  bool          `env:"CACHE_ENABLED" default:"false"`
	Addr     string        `env:"REDIS_ADDR" default:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" default:"0"`
	TTL      time.Duration `env:"CACHE_TTL" default:"10m"`
	Prefix   string        `env:"CACHE_PREFIX" default:"jobalyzer:report:"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey guards the ingestion endpoints with X-API-Key.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
