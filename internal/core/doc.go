// Package core provides the business logic for job-posting ingestion and queries.
//
// This package contains all domain logic independent of any transport or
// storage engine. It can be used by the HTTP server, the loader CLI, or
// tests without modification. Persistence goes through the [Store]
// interface; implementations live under internal/store.
//
// # Architecture
//
//   - Normalizer: [ParseSentinelString], [ParseListLiteral],
//     [ParseOptionalNumber], [ParseOptionalDate] and [NormalizeRecord] turn
//     raw feed cells into a [Posting]. They never panic.
//   - Resolver: [Resolver] upserts an [Organization] by its natural key.
//   - Pipeline: [Pipeline] streams a [RecordSource] through a bounded
//     worker pool and returns an [IngestionReport].
//   - Query builder: [Builder] turns [Criteria] into a backend-neutral
//     [Predicate].
//   - Aggregation: [Aggregator] runs the named reports listed by [Reports].
//   - Service: [Service] ties these together for frontends and tracks
//     asynchronous ingestion runs.
//
// # Ingestion
//
// The record cap is enforced before a record is handed to a worker, so a
// run never admits more than its cap. Per-record problems are counted and
// sampled in the report; only a failed stream, an unreachable store, or
// cancellation aborts a run.
//
//	src, err := core.NewCSVSource(file, size)
//	report, err := pipeline.Ingest(ctx, src, 5000)
//
// # Error Handling
//
// Errors carry a [Kind] and can be tested with errors.Is:
//
//	if errors.Is(err, core.ErrNoData) { ... }
//
// [MapError] turns any error into a coded [UserMessage] for display.
package core
