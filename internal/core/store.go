package core

import (
	"context"
	"time"
)

// Store is the persistence capability the pipeline and read paths depend on.
//
// Implementations enforce natural-key uniqueness themselves: concurrent
// upserts of the same key must not produce duplicates. Errors that mean the
// store cannot be reached at all should be wrapped with Unavailable so a
// running ingestion can abort.
type Store interface {
	// UpsertOrganization inserts or overwrites the organization with org.Key
	// and reports whether it was created.
	UpsertOrganization(ctx context.Context, org Organization) (OrganizationRef, bool, error)

	// UpsertPosting replaces the posting with p.Key in full, inserting it if absent.
	UpsertPosting(ctx context.Context, p Posting) error

	// FindPostings returns postings matching pred ordered by posting key.
	// An empty predicate matches everything. A zero page returns all matches.
	FindPostings(ctx context.Context, pred Predicate, page Page) ([]Posting, error)

	// Aggregate runs a grouped count. Rows may come back in any order.
	Aggregate(ctx context.Context, spec ReportSpec) ([]ReportRow, error)

	// EnsureSchema creates tables, collections and indexes if missing.
	EnsureSchema(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

// ReportCache stores finished reports between ingestion runs.
// A nil ReportCache disables caching.
type ReportCache interface {
	Get(ctx context.Context, name string) (*Report, bool, error)
	Set(ctx context.Context, report *Report, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}
