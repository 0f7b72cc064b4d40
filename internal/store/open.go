// Package store opens the configured core.Store backend.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/Jobalyzer/internal/config"
	"github.com/JonMunkholm/Jobalyzer/internal/core"
	"github.com/JonMunkholm/Jobalyzer/internal/store/memory"
	"github.com/JonMunkholm/Jobalyzer/internal/store/mongo"
	"github.com/JonMunkholm/Jobalyzer/internal/store/postgres"
)

const defaultConnectTimeout = 10 * time.Second

// Open connects to the backend named by cfg.Driver and, when
// cfg.EnsureSchema is set, creates its tables or indexes.
func Open(ctx context.Context, cfg config.StoreConfig) (core.Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		s   core.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err = postgres.Open(connectCtx, postgres.Config{
			URL:             cfg.URL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	case config.DriverMongo:
		s, err = mongo.Open(connectCtx, mongo.Config{
			URI:            cfg.URL,
			Database:       cfg.Database,
			ConnectTimeout: cfg.ConnectTimeout,
			MaxPoolSize:    uint64(cfg.MaxConns),
		})
	case config.DriverMemory:
		s = memory.New()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.EnsureSchema {
		if err := s.EnsureSchema(connectCtx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return s, nil
}
