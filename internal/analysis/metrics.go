package analysis

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/ticketsim/pkg/models"
)

const meterScope = "github.com/thebtf/ticketsim/analysis"

// Stats tracks analysis statistics for the stats endpoint.
type Stats struct {
	TotalAnalyses      int64
	EmptyResults       int64
	Fallbacks          int64
	CacheHits          int64
	CoalescedRequests  int64
	AnalysisErrors     int64
	CandidatesExamined int64
	CandidatesPassed   int64
	TotalLatencyNs     int64
	GroupingRuns       int64
	BatchRuns          int64
}

// GetStats returns the current analysis statistics.
func (s *Stats) GetStats() map[string]any {
	total := atomic.LoadInt64(&s.TotalAnalyses)
	latency := atomic.LoadInt64(&s.TotalLatencyNs)

	avgLatencyMs := float64(0)
	if total > 0 {
		avgLatencyMs = float64(latency) / float64(total) / 1e6
	}

	return map[string]any{
		"total_analyses":      total,
		"empty_results":       atomic.LoadInt64(&s.EmptyResults),
		"fallbacks":           atomic.LoadInt64(&s.Fallbacks),
		"cache_hits":          atomic.LoadInt64(&s.CacheHits),
		"coalesced_requests":  atomic.LoadInt64(&s.CoalescedRequests),
		"analysis_errors":     atomic.LoadInt64(&s.AnalysisErrors),
		"candidates_examined": atomic.LoadInt64(&s.CandidatesExamined),
		"candidates_passed":   atomic.LoadInt64(&s.CandidatesPassed),
		"grouping_runs":       atomic.LoadInt64(&s.GroupingRuns),
		"batch_runs":          atomic.LoadInt64(&s.BatchRuns),
		"avg_latency_ms":      avgLatencyMs,
	}
}

// instruments are the OpenTelemetry instruments of the analyzer. They record
// on the global meter provider, which is a no-op unless the process installs one.
type instruments struct {
	analyses  metric.Int64Counter
	examined  metric.Int64Counter
	passed    metric.Int64Counter
	fallbacks metric.Int64Counter
	cacheHits metric.Int64Counter
	errors    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newInstruments() *instruments {
	m := otel.Meter(meterScope)
	analyses, _ := m.Int64Counter("ticketsim.analysis.runs",
		metric.WithDescription("Completed analysis runs by outcome"),
	)
	examined, _ := m.Int64Counter("ticketsim.analysis.candidates.examined",
		metric.WithDescription("Candidates fetched before the subject gate"),
	)
	passed, _ := m.Int64Counter("ticketsim.analysis.candidates.passed",
		metric.WithDescription("Candidates passing the inclusion rule"),
	)
	fallbacks, _ := m.Int64Counter("ticketsim.analysis.fallbacks",
		metric.WithDescription("Runs that retried at the lowered threshold"),
	)
	cacheHits, _ := m.Int64Counter("ticketsim.analysis.cache.hits",
		metric.WithDescription("Runs served from the result cache"),
	)
	errs, _ := m.Int64Counter("ticketsim.analysis.errors",
		metric.WithDescription("Failed analysis runs by error kind"),
	)
	duration, _ := m.Float64Histogram("ticketsim.analysis.duration",
		metric.WithDescription("Analysis run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &instruments{
		analyses:  analyses,
		examined:  examined,
		passed:    passed,
		fallbacks: fallbacks,
		cacheHits: cacheHits,
		errors:    errs,
		duration:  duration,
	}
}

func (i *instruments) recordRun(ctx context.Context, run *models.AnalysisRun) {
	outcome := metric.WithAttributes(attribute.String("outcome", string(run.Outcome)))
	i.analyses.Add(ctx, 1, outcome)
	i.examined.Add(ctx, int64(run.TotalCandidatesExamined))
	i.passed.Add(ctx, int64(run.TotalPassed))
	if run.FallbackApplied {
		i.fallbacks.Add(ctx, 1)
	}
	i.duration.Record(ctx, float64(run.DurationMs), outcome)
}

func (i *instruments) recordError(ctx context.Context, kind models.ErrorKind) {
	i.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}
