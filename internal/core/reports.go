package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JonMunkholm/Jobalyzer/internal/logging"
)

// ReportSpec describes a grouped count over postings.
type ReportSpec struct {
	Name     string `json:"name"`
	Field    Field  `json:"field"`
	KeyLabel string `json:"keyLabel"`

	// Unwind expands a list field so each element is its own group unit.
	Unwind bool `json:"unwind"`

	// JoinOrganization groups by organization reference and reports the
	// organization name. Postings whose reference does not resolve to an
	// organization are dropped, so totals can be below the posting count.
	JoinOrganization bool `json:"joinOrganization"`
}

// Report names.
const (
	ReportByState         = "countsByState"
	ReportByCity          = "countsByCity"
	ReportByZipCode       = "countsByZipCode"
	ReportBySalaryType    = "countsBySalaryType"
	ReportBySkill         = "countsBySkill"
	ReportBySoftSkill     = "countsBySoftSkill"
	ReportByQualification = "countsByQualification"
	ReportByOrganization  = "countsByOrganization"
)

var reportSpecs = []ReportSpec{
	{Name: ReportByState, Field: FieldState, KeyLabel: "state"},
	{Name: ReportByCity, Field: FieldCity, KeyLabel: "city"},
	{Name: ReportByZipCode, Field: FieldZipCode, KeyLabel: "zipCode"},
	{Name: ReportBySalaryType, Field: FieldSalaryType, KeyLabel: "salaryType"},
	{Name: ReportBySkill, Field: FieldSkills, KeyLabel: "skill", Unwind: true},
	{Name: ReportBySoftSkill, Field: FieldSoftSkills, KeyLabel: "softSkill", Unwind: true},
	{Name: ReportByQualification, Field: FieldQualifications, KeyLabel: "qualification", Unwind: true},
	{Name: ReportByOrganization, Field: FieldOrganization, KeyLabel: "organizationName", JoinOrganization: true},
}

// reportAliases maps the route names of the first API version.
var reportAliases = map[string]string{
	"jobs-per-state":         ReportByState,
	"jobs-per-city":          ReportByCity,
	"jobs-per-zipcode":       ReportByZipCode,
	"jobs-per-salarytype":    ReportBySalaryType,
	"jobs-per-skill":         ReportBySkill,
	"jobs-per-softskill":     ReportBySoftSkill,
	"jobs-per-qualification": ReportByQualification,
	"jobs-per-company":       ReportByOrganization,
}

// Reports returns every registered report.
func Reports() []ReportSpec {
	out := make([]ReportSpec, len(reportSpecs))
	copy(out, reportSpecs)
	return out
}

// LookupReport resolves a report name or legacy alias.
func LookupReport(name string) (ReportSpec, error) {
	if canonical, ok := reportAliases[name]; ok {
		name = canonical
	}
	for _, spec := range reportSpecs {
		if spec.Name == name {
			return spec, nil
		}
	}
	return ReportSpec{}, NewError(ErrUnknownReport, fmt.Sprintf("unknown report %q", name), nil)
}

// SortRows ranks rows by count descending, then key ascending with the
// null key last.
func SortRows(rows []ReportRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		switch {
		case a.Key == nil:
			return false
		case b.Key == nil:
			return true
		}
		return *a.Key < *b.Key
	})
}

// Aggregator executes named reports, consulting an optional cache first.
type Aggregator struct {
	store Store
	cache ReportCache
	ttl   time.Duration
}

// NewAggregator creates an Aggregator. cache may be nil.
func NewAggregator(store Store, cache ReportCache, ttl time.Duration) *Aggregator {
	return &Aggregator{store: store, cache: cache, ttl: ttl}
}

// Report runs the named report. It returns ErrUnknownReport for an unknown
// name and ErrNoData when the report has no rows.
func (a *Aggregator) Report(ctx context.Context, name string) (*Report, error) {
	spec, err := LookupReport(name)
	if err != nil {
		reportRequests.WithLabelValues("unknown", "unknown").Inc()
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "report."+spec.Name, trace.WithAttributes(
		attribute.String("report.name", spec.Name),
	))
	defer span.End()

	logger := logging.WithFields(ctx, "report", spec.Name)

	if report, ok := a.cached(ctx, logger, spec.Name); ok {
		span.SetAttributes(attribute.Bool("report.cached", true))
		reportRequests.WithLabelValues(spec.Name, "cached").Inc()
		return report, nil
	}

	rows, err := a.store.Aggregate(ctx, spec)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) {
			err = fmt.Errorf("aggregate %s: %w", spec.Name, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		reportRequests.WithLabelValues(spec.Name, "error").Inc()
		return nil, err
	}

	if len(rows) == 0 {
		reportRequests.WithLabelValues(spec.Name, "no_data").Inc()
		return nil, NewError(ErrNoData, fmt.Sprintf("no statistics found for %s", spec.Name), nil)
	}

	SortRows(rows)
	report := &Report{Name: spec.Name, KeyLabel: spec.KeyLabel, Rows: rows}

	if a.cache != nil {
		if err := a.cache.Set(ctx, report, a.ttl); err != nil {
			logger.Warn("report cache write failed", "error", err)
		}
	}

	reportRequests.WithLabelValues(spec.Name, "ok").Inc()
	logger.Debug("report computed", "rows", len(rows))
	return report, nil
}

func (a *Aggregator) cached(ctx context.Context, logger *slog.Logger, name string) (*Report, bool) {
	if a.cache == nil {
		return nil, false
	}
	report, ok, err := a.cache.Get(ctx, name)
	if err != nil {
		logger.Warn("report cache read failed", "error", err)
		return nil, false
	}
	return report, ok
}

// Invalidate drops cached reports. Called after every ingestion run.
func (a *Aggregator) Invalidate(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Invalidate(ctx)
}
