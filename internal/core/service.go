package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/Jobalyzer/internal/logging"
)

// Service defaults.
var (
	DefaultRunTimeout   = 30 * time.Minute
	DefaultRunRetention = 15 * time.Minute
	DefaultMaxPageSize  = 500
	DefaultReportTTL    = 10 * time.Minute
)

// ServiceConfig wires a Service. Zero values take the defaults.
type ServiceConfig struct {
	Pipeline          PipelineConfig
	MaxRecords        int // default cap for runs that do not set one; < 0 disables
	MaxConcurrentRuns int
	RunWait           time.Duration
	RunTimeout        time.Duration
	RunRetention      time.Duration // how long finished runs stay queryable

	TrimListValues bool
	MaxPageSize    int

	Cache    ReportCache // nil disables report caching
	CacheTTL time.Duration
}

// Service is the entry point for ingestion, queries and reports.
// It is safe for concurrent use.
type Service struct {
	store    Store
	pipeline *Pipeline
	builder  Builder
	reports  *Aggregator
	limiter  *RunLimiter
	cfg      ServiceConfig

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	mu     sync.Mutex
	status RunStatus
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *activeRun) snapshot() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *activeRun) setPhase(phase RunPhase, report *IngestionReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Phase = phase
	if report != nil {
		r.status.Report = report
	}
}

// NewService creates a Service over store. The caller owns store and
// closes it after the service is drained.
func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.MaxRecords == 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.RunRetention <= 0 {
		cfg.RunRetention = DefaultRunRetention
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = DefaultMaxPageSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultReportTTL
	}

	return &Service{
		store:    store,
		pipeline: NewPipeline(store, cfg.Pipeline),
		builder:  Builder{TrimListValues: cfg.TrimListValues},
		reports:  NewAggregator(store, cfg.Cache, cfg.CacheTTL),
		limiter:  NewRunLimiter(cfg.MaxConcurrentRuns, cfg.RunWait),
		cfg:      cfg,
		runs:     make(map[string]*activeRun),
	}
}

func (s *Service) runOptions(opts RunOptions) RunOptions {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.MaxRecords == 0 {
		opts.MaxRecords = s.cfg.MaxRecords
	}
	return opts
}

// Ingest runs src synchronously. It waits for a run slot like StartIngest.
func (s *Service) Ingest(ctx context.Context, src RecordSource, opts RunOptions) (*IngestionReport, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	opts = s.runOptions(opts)
	report, err := s.pipeline.Run(ctx, src, opts)
	s.invalidateReports(logging.WithRunID(ctx, opts.RunID))
	return report, err
}

// StartIngest decodes r as CSV and ingests it in the background. It returns
// the run ID once the header row has been read. r is closed when the run ends.
//
// ErrTooManyRuns is returned if no run slot frees up in time.
func (s *Service) StartIngest(ctx context.Context, r io.ReadCloser, size int64, opts RunOptions) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		r.Close()
		return "", err
	}

	src, err := NewCSVSource(r, size)
	if err != nil {
		r.Close()
		s.limiter.Release()
		return "", err
	}

	opts = s.runOptions(opts)
	runCtx, cancel := context.WithTimeout(logging.WithRunID(context.WithoutCancel(ctx), opts.RunID), s.cfg.RunTimeout)

	run := &activeRun{
		status: RunStatus{RunID: opts.RunID, Source: opts.Source, Phase: PhaseQueued},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[opts.RunID] = run
	s.mu.Unlock()

	logger := logging.FromContext(runCtx)

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer r.Close()
		defer close(run.done)
		defer s.cleanup(opts.RunID, s.cfg.RunRetention)
		defer func() {
			if p := recover(); p != nil {
				logger.Error("panic in ingestion run", "panic", p)
				run.setPhase(PhaseFailed, &IngestionReport{
					RunID: opts.RunID,
					Error: fmt.Sprintf("internal error: %v", p),
				})
			}
		}()

		run.setPhase(PhaseRunning, nil)
		report, err := s.pipeline.Run(runCtx, src, opts)
		s.invalidateReports(runCtx)

		switch {
		case err == nil:
			run.setPhase(PhaseComplete, report)
		case errors.Is(err, context.Canceled):
			run.setPhase(PhaseCancelled, report)
		default:
			run.setPhase(PhaseFailed, report)
		}
	}()

	return opts.RunID, nil
}

func (s *Service) invalidateReports(ctx context.Context) {
	if err := s.reports.Invalidate(context.WithoutCancel(ctx)); err != nil {
		logging.FromContext(ctx).Warn("report cache invalidation failed", "error", err)
	}
}

// cleanup removes a finished run from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

func (s *Service) run(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, NewError(ErrNoData, fmt.Sprintf("ingestion run not found: %s", runID), nil)
	}
	return run, nil
}

// GetIngestRun returns the current status of a run.
func (s *Service) GetIngestRun(runID string) (RunStatus, error) {
	run, err := s.run(runID)
	if err != nil {
		return RunStatus{}, err
	}
	return run.snapshot(), nil
}

// WaitIngestRun blocks until the run finishes or ctx is done.
func (s *Service) WaitIngestRun(ctx context.Context, runID string) (RunStatus, error) {
	run, err := s.run(runID)
	if err != nil {
		return RunStatus{}, err
	}
	select {
	case <-run.done:
		return run.snapshot(), nil
	case <-ctx.Done():
		return run.snapshot(), ctx.Err()
	}
}

// CancelIngestRun stops a running ingestion. Records already in flight finish.
func (s *Service) CancelIngestRun(runID string) error {
	run, err := s.run(runID)
	if err != nil {
		return err
	}
	run.cancel()
	return nil
}

// WaitForRuns blocks until every run has released its slot. Used on shutdown.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// RunLimiterStatus reports run slot usage.
func (s *Service) RunLimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// ListPostings returns postings without filtering. This is the only way to
// request an unrestricted scan. An empty result is not an error.
func (s *Service) ListPostings(ctx context.Context, page Page) ([]Posting, error) {
	page, err := s.page(page)
	if err != nil {
		return nil, err
	}
	postings, err := s.store.FindPostings(ctx, Predicate{}, page)
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	if postings == nil {
		postings = []Posting{}
	}
	return postings, nil
}

// FilterPostings returns postings matching c. It returns ErrEmptyCriteria
// or ErrInvalidCriteria for bad input and ErrNoData when nothing matches.
func (s *Service) FilterPostings(ctx context.Context, c Criteria, page Page) ([]Posting, error) {
	page, err := s.page(page)
	if err != nil {
		return nil, err
	}
	pred, err := s.builder.Build(c)
	if err != nil {
		return nil, err
	}
	postings, err := s.store.FindPostings(ctx, pred, page)
	if err != nil {
		return nil, fmt.Errorf("filter postings: %w", err)
	}
	if len(postings) == 0 {
		return nil, NewError(ErrNoData, "no job postings found for the given criteria", nil)
	}
	return postings, nil
}

// page validates p and caps its limit.
func (s *Service) page(p Page) (Page, error) {
	if err := p.Validate(); err != nil {
		return Page{}, err
	}
	if p.Limit > s.cfg.MaxPageSize {
		p.Limit = s.cfg.MaxPageSize
	}
	return p, nil
}

// GetReport runs the named report.
func (s *Service) GetReport(ctx context.Context, name string) (*Report, error) {
	return s.reports.Report(ctx, name)
}

// ListReports returns every registered report.
func (s *Service) ListReports() []ReportSpec {
	return Reports()
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
