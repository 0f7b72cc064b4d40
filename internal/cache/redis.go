// Package cache holds finished reports in Redis between ingestion runs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

// DefaultPrefix namespaces report keys.
const DefaultPrefix = "jobalyzer:report:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Reports implements core.ReportCache.
type Reports struct {
	client *redis.Client
	prefix string
}

var _ core.ReportCache = (*Reports)(nil)

// New connects lazily; the first command dials the server.
func New(opts Options) *Reports {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewWithClient(client, opts.Prefix)
}

// NewWithClient uses an existing client.
func NewWithClient(client *redis.Client, prefix string) *Reports {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Reports{client: client, prefix: prefix}
}

func (c *Reports) key(name string) string {
	return c.prefix + name
}

// Get returns the cached report. A miss is (nil, false, nil).
func (c *Reports) Get(ctx context.Context, name string) (*core.Report, bool, error) {
	val, err := c.client.Get(ctx, c.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get report %s: %w", name, err)
	}

	var report core.Report
	if err := json.Unmarshal(val, &report); err != nil {
		return nil, false, fmt.Errorf("decode report %s: %w", name, err)
	}
	return &report, true, nil
}

func (c *Reports) Set(ctx context.Context, report *core.Report, ttl time.Duration) error {
	val, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.Name, err)
	}
	if err := c.client.Set(ctx, c.key(report.Name), val, ttl).Err(); err != nil {
		return fmt.Errorf("set report %s: %w", report.Name, err)
	}
	return nil
}

// Invalidate deletes every key under the prefix. It scans instead of
// flushing so other data in the same database survives.
func (c *Reports) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan report keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete report keys: %w", err)
	}
	return nil
}

func (c *Reports) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Reports) Close() error {
	return c.client.Close()
}
