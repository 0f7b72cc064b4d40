package core

// ingest.go drives a single ingestion run.
//
// A dispatcher goroutine reads the source and admits records one at a time.
// Admission is an atomic check-and-increment against the record cap, so at
// most maxRecords records are ever handed to workers. Workers run on an
// errgroup with a fixed limit; the dispatcher blocks when all are busy.
//
// Workers finish out of order, so outcomes pass through a reorder buffer
// and are logged in source order.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/Jobalyzer/internal/logging"
)

// Default pipeline settings. The record cap counts admitted records, so
// rows rejected during normalization use up cap slots too.
const (
	DefaultMaxRecords        = 5000
	DefaultWorkers           = 8
	DefaultFailureSampleSize = 100
)

// PipelineConfig tunes a Pipeline. Zero values take the defaults.
type PipelineConfig struct {
	Workers           int
	FailureSampleSize int
}

// Pipeline ingests record streams into a Store.
type Pipeline struct {
	store      Store
	resolver   *Resolver
	workers    int
	sampleSize int
	now        func() time.Time
}

// NewPipeline creates a pipeline writing to store.
func NewPipeline(store Store, cfg PipelineConfig) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.FailureSampleSize <= 0 {
		cfg.FailureSampleSize = DefaultFailureSampleSize
	}
	return &Pipeline{
		store:      store,
		resolver:   NewResolver(store),
		workers:    cfg.Workers,
		sampleSize: cfg.FailureSampleSize,
		now:        time.Now,
	}
}

// RunOptions identifies and bounds a run.
type RunOptions struct {
	RunID      string // generated when empty
	Source     string // file name or other label, for logs only
	MaxRecords int    // <= 0 means no cap
}

// Ingest runs src to completion with a fresh run ID.
func (p *Pipeline) Ingest(ctx context.Context, src RecordSource, maxRecords int) (*IngestionReport, error) {
	return p.Run(ctx, src, RunOptions{MaxRecords: maxRecords})
}

// Run reads src until EOF, the record cap, or a terminal failure.
//
// Per-record problems never fail the run; they are counted and sampled in
// the report. The returned error is non-nil only for terminal failures
// (ErrStream, ErrStoreUnavailable, or ctx cancellation), in which case the
// report is still returned with Error set.
func (p *Pipeline) Run(ctx context.Context, src RecordSource, opts RunOptions) (*IngestionReport, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("run.id", opts.RunID),
		attribute.String("run.source", opts.Source),
		attribute.Int("run.max_records", opts.MaxRecords),
	))
	defer span.End()

	ctx = logging.WithRunID(ctx, opts.RunID)
	logger := logging.FromContext(ctx)
	if opts.Source != "" {
		logger = logger.With("source", opts.Source)
	}

	run := &ingestRun{
		pipeline: p,
		logger:   logger,
		report: &IngestionReport{
			RunID:     opts.RunID,
			Source:    opts.Source,
			StartedAt: p.now(),
		},
	}
	run.log = newOrderedLog(run.emit)

	logger.Info("ingestion started", "max_records", opts.MaxRecords, "workers", p.workers)

	err := run.execute(ctx, src, int64(opts.MaxRecords))

	report := run.finish(err)
	ingestDuration.Observe(report.Duration.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ingestRuns.WithLabelValues("failed").Inc()
		logger.Error("ingestion aborted",
			"error", err,
			"processed", report.Processed,
			"failed", report.Failed,
			"abandoned", report.Abandoned,
			"duration_ms", report.Duration.Milliseconds(),
		)
		return report, err
	}

	span.SetAttributes(
		attribute.Int64("run.processed", report.Processed),
		attribute.Int64("run.failed", report.Failed),
	)
	ingestRuns.WithLabelValues("complete").Inc()
	logger.Info("ingestion completed",
		"admitted", report.Admitted,
		"processed", report.Processed,
		"failed", report.Failed,
		"organizations_created", report.OrganizationsCreated,
		"cap_reached", report.CapReached,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// ingestRun holds the state of one Run call.
type ingestRun struct {
	pipeline *Pipeline
	logger   *slog.Logger
	log      *orderedLog

	admitted   atomic.Int64
	processed  atomic.Int64
	failed     atomic.Int64
	abandoned  atomic.Int64
	orgCreated atomic.Int64

	mu     sync.Mutex
	report *IngestionReport
}

// admit reserves a slot under the cap. It is the only place the admitted
// counter is incremented.
func (r *ingestRun) admit(limit int64) bool {
	for {
		cur := r.admitted.Load()
		if limit > 0 && cur >= limit {
			return false
		}
		if r.admitted.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (r *ingestRun) execute(ctx context.Context, src RecordSource, limit int64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.pipeline.workers)

	var streamErr error
	seq := 0

	for {
		if gctx.Err() != nil {
			break
		}
		if limit > 0 && r.admitted.Load() >= limit {
			r.markCapReached()
			break
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		rejected := err != nil && isRecordError(err)
		if err != nil && !rejected {
			streamErr = err
			if KindOf(err) != ErrStream {
				streamErr = NewError(ErrStream, "read record stream", err)
			}
			break
		}

		if !r.admit(limit) {
			r.markCapReached()
			break
		}

		n := seq
		seq++

		if rejected {
			r.log.submit(n, outcome{record: rec, err: err})
			continue
		}

		g.Go(func() error {
			out := r.process(gctx, rec)
			r.log.submit(n, out)
			if errors.Is(out.err, ErrStoreUnavailable) {
				return out.err
			}
			return nil
		})
	}

	groupErr := g.Wait()

	switch {
	case streamErr != nil:
		return streamErr
	case groupErr != nil:
		return groupErr
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return nil
}

func (r *ingestRun) markCapReached() {
	r.mu.Lock()
	r.report.CapReached = true
	r.mu.Unlock()
}

// isRecordError reports whether a source error rejects only the current record.
func isRecordError(err error) bool {
	return errors.Is(err, ErrRecordRejected)
}

// outcome is the result of one admitted record.
type outcome struct {
	record    Record
	key       string
	fields    []FieldFailure
	orgRef    OrganizationRef
	cancelled bool
	err       error
}

func (r *ingestRun) process(ctx context.Context, rec Record) outcome {
	out := outcome{record: rec}

	if ctx.Err() != nil {
		out.cancelled = true
		return out
	}

	ctx, span := tracer.Start(ctx, "ingest.record", trace.WithAttributes(
		attribute.Int("record.line", rec.Line),
	))
	defer span.End()

	draft, fields, err := NormalizeRecord(rec)
	out.fields = fields
	if err != nil {
		out.err = err
		return out
	}
	out.key = draft.Posting.Key
	span.SetAttributes(attribute.String("posting.key", out.key))

	posting := draft.Posting
	if draft.Organization.Key != "" {
		ref, created, err := r.pipeline.resolver.Resolve(ctx, draft.Organization)
		if err != nil {
			if abandoned(ctx, err) {
				out.cancelled = true
				return out
			}
			out.err = err
			span.RecordError(err)
			return out
		}
		if created {
			r.orgCreated.Add(1)
			organizationsCreated.Inc()
		}
		out.orgRef = ref
		posting.Organization = &ref
	}

	posting.IngestedAt = r.pipeline.now().UTC()

	if err := r.pipeline.store.UpsertPosting(ctx, posting); err != nil {
		if abandoned(ctx, err) {
			out.cancelled = true
			return out
		}
		if !errors.Is(err, ErrStoreUnavailable) {
			err = Persistence(fmt.Sprintf("upsert posting %q", posting.Key), err)
		}
		out.err = err
		span.RecordError(err)
		return out
	}

	return out
}

// abandoned reports whether err only reflects the run being aborted.
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// emit is called by the reorder buffer in source order.
func (r *ingestRun) emit(out outcome) {
	logger := r.logger.With("line", out.record.Line)
	if out.key != "" {
		logger = logger.With("posting_key", out.key)
	}

	for _, f := range out.fields {
		fieldFailures.WithLabelValues(f.Column).Inc()
		logger.Warn("field normalization failed",
			"column", f.Column,
			"raw", f.Raw,
			"reason", f.Reason,
		)
	}

	switch {
	case out.cancelled:
		r.abandoned.Add(1)
		logger.Info("record abandoned by aborted run", "posting_key", out.record.Get(ColPostingKey))

	case out.err != nil:
		kind := KindOf(out.err)
		if kind == "" {
			kind = ErrPersistence
		}
		r.failed.Add(1)
		recordsFailed.WithLabelValues(string(kind)).Inc()
		logger.Warn("record failed",
			"kind", string(kind),
			"error", out.err,
			"raw", out.record.Fields,
		)
		r.sample(RecordFailure{
			Line:       out.record.Line,
			PostingKey: out.key,
			Kind:       string(kind),
			Reason:     out.err.Error(),
			Raw:        out.record.Fields,
		})

	default:
		r.processed.Add(1)
		recordsProcessed.Inc()
		logger.Debug("record ingested", "organization_ref", string(out.orgRef))
	}
}

func (r *ingestRun) sample(f RecordFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.report.Failures) < r.pipeline.sampleSize {
		r.report.Failures = append(r.report.Failures, f)
	}
}

func (r *ingestRun) finish(err error) *IngestionReport {
	r.log.flush()

	r.mu.Lock()
	defer r.mu.Unlock()

	rep := r.report
	rep.Admitted = r.admitted.Load()
	rep.Processed = r.processed.Load()
	rep.Failed = r.failed.Load()
	rep.Abandoned = r.abandoned.Load()
	rep.OrganizationsCreated = r.orgCreated.Load()
	rep.Duration = r.pipeline.now().Sub(rep.StartedAt)
	if err != nil {
		rep.Error = err.Error()
	}
	return rep
}

// orderedLog releases outcomes in sequence order regardless of the order
// in which workers submit them.
type orderedLog struct {
	mu      sync.Mutex
	next    int
	pending map[int]outcome
	emit    func(outcome)
}

func newOrderedLog(emit func(outcome)) *orderedLog {
	return &orderedLog{pending: make(map[int]outcome), emit: emit}
}

func (l *orderedLog) submit(seq int, out outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending[seq] = out
	for {
		o, ok := l.pending[l.next]
		if !ok {
			return
		}
		delete(l.pending, l.next)
		l.next++
		l.emit(o)
	}
}

// flush emits anything still buffered. Every admitted sequence number is
// submitted before flush is called, so this only matters if one was lost.
func (l *orderedLog) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.pending) > 0 {
		o, ok := l.pending[l.next]
		if ok {
			delete(l.pending, l.next)
			l.emit(o)
		}
		l.next++
	}
}
