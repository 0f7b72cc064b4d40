// Package postgres is the relational core.Store backed by a pgx pool.
//
// Organizations and postings live in two tables keyed by their natural
// keys. Upserts use INSERT ... ON CONFLICT so concurrent writers of the
// same key never create duplicates.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

// Config holds connection pool settings.
type Config struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store implements core.Store on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

var _ core.Store = (*Store)(nil)

// Open parses cfg, connects and pings the database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, core.Unavailable("connect to database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.Unavailable("ping database", err)
	}
	return New(pool), nil
}

// New wraps an existing pool. Close closes the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) UpsertOrganization(ctx context.Context, org core.Organization) (core.OrganizationRef, bool, error) {
	if s.closed.Load() {
		return "", false, errClosed
	}

	var (
		id       string
		inserted bool
	)
	err := s.pool.QueryRow(ctx, upsertOrganizationSQL,
		uuid.NewString(), org.Key, org.Name, toPgText(org.Industry),
	).Scan(&id, &inserted)
	if err != nil {
		return "", false, classify(fmt.Sprintf("upsert organization %q", org.Key), err)
	}
	return core.OrganizationRef(id), inserted, nil
}

func (s *Store) UpsertPosting(ctx context.Context, p core.Posting) error {
	if s.closed.Load() {
		return errClosed
	}
	if _, err := s.pool.Exec(ctx, upsertPostingSQL, postingArgs(p)...); err != nil {
		return classify(fmt.Sprintf("upsert posting %q", p.Key), err)
	}
	return nil
}

func (s *Store) FindPostings(ctx context.Context, pred core.Predicate, page core.Page) ([]core.Posting, error) {
	if s.closed.Load() {
		return nil, errClosed
	}

	query, args, err := findPostingsSQL(pred, page)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("find postings", err)
	}
	defer rows.Close()

	var out []core.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("find postings", err)
	}
	return out, nil
}

func (s *Store) Aggregate(ctx context.Context, spec core.ReportSpec) ([]core.ReportRow, error) {
	if s.closed.Load() {
		return nil, errClosed
	}

	query, err := aggregateSQL(spec)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, classify("aggregate "+spec.Name, err)
	}
	defer rows.Close()

	var out []core.ReportRow
	for rows.Next() {
		var row core.ReportRow
		if err := rows.Scan(&row.Key, &row.Count); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", spec.Name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("aggregate "+spec.Name, err)
	}
	return out, nil
}

// EnsureSchema creates the tables and indexes in one transaction.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.closed.Load() {
		return errClosed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify("begin schema transaction", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return classify("create schema", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("commit schema", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return errClosed
	}
	if err := s.pool.Ping(ctx); err != nil {
		return core.Unavailable("ping database", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}

var errClosed = core.Unavailable("postgres store is closed", nil)

// classify wraps connection-level failures as core.ErrStoreUnavailable.
func classify(op string, err error) error {
	if isUnavailable(err) {
		return core.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P0x is server shutdown.
		return strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "57P0") ||
			pgErr.Code == "53300"
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.Timeout(err) && !errors.Is(err, context.DeadlineExceeded)
}
