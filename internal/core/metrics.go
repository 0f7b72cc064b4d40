package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

const instrumentationName = "github.com/JonMunkholm/Jobalyzer/internal/core"

var tracer = otel.Tracer(instrumentationName)

var (
	recordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jobalyzer",
		Subsystem: "ingest",
		Name:      "records_processed_total",
		Help:      "Records normalized and persisted.",
	})

	recordsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobalyzer",
		Subsystem: "ingest",
		Name:      "records_failed_total",
		Help:      "Records rejected or not persisted, by error kind.",
	}, []string{"kind"})

	fieldFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobalyzer",
		Subsystem: "ingest",
		Name:      "field_failures_total",
		Help:      "Cells that fell back to their default value, by column.",
	}, []string{"column"})

	organizationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jobalyzer",
		Subsystem: "ingest",
		Name:      "organizations_created_total",
		Help:      "Organizations inserted on first sighting.",
	})

	ingestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobalyzer",
		Subsystem: "ingest",
		Name:      "runs_total",
		Help:      "Ingestion runs by outcome.",
	}, []string{"outcome"})

	ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jobalyzer",
		Subsystem: "ingest",
		Name:      "run_duration_seconds",
		Help:      "Wall time of ingestion runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	reportRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobalyzer",
		Subsystem: "reports",
		Name:      "requests_total",
		Help:      "Report executions by report name and outcome.",
	}, []string{"report", "outcome"})
)
