package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spmigrate/domain/events"
	"spmigrate/logging"
)

const namespace = "spmigrate"

// ResolutionMetrics exports principal resolution and directory timings to Prometheus and keeps
// a run level tally for the end of run log.
type ResolutionMetrics struct {
	registry *prometheus.Registry

	resolved       *prometheus.CounterVec
	failures       prometheus.Counter
	skippedRows    prometheus.Counter
	latency        prometheus.Histogram
	directoryTime  *prometheus.HistogramVec
	directoryFails *prometheus.CounterVec

	mu    sync.Mutex
	stats RunStats
}

// RunStats is the in-process tally of one run
type RunStats struct {
	Mapped          int
	Directory       int
	Unresolved      int
	Failed          int
	SkippedRows     int
	DirectoryCalls  int
	DirectoryErrors int
	TotalDuration   time.Duration
}

// Total returns the number of remaps that ended with a result or an error
func (s RunStats) Total() int {
	return s.Mapped + s.Directory + s.Unresolved + s.Failed
}

// NewResolutionMetrics registers the collectors on a dedicated registry.
func NewResolutionMetrics() *ResolutionMetrics {
	m := &ResolutionMetrics{
		registry: prometheus.NewRegistry(),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "principals_resolved_total",
			Help:      "Completed principal remaps by resolution source.",
		}, []string{"source"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "principal_resolution_failures_total",
			Help:      "Principal remaps that ended with an error.",
		}),
		skippedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapping_rows_skipped_total",
			Help:      "User mapping rows ignored while loading.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "principal_resolution_seconds",
			Help:      "Time to remap one principal.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		directoryTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "directory_query_seconds",
			Help:      "Round trip time of directory queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		directoryFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_query_errors_total",
			Help:      "Directory queries that failed.",
		}, []string{"operation"}),
	}

	m.registry.MustRegister(
		m.resolved, m.failures, m.skippedRows, m.latency, m.directoryTime, m.directoryFails,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the registry for scraping and tests
func (m *ResolutionMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *ResolutionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// PublishPrincipalResolved implements events.ResolutionEventPublisher
func (m *ResolutionMetrics) PublishPrincipalResolved(event events.PrincipalResolvedEvent) {
	source := event.Result.Source.String()
	m.resolved.WithLabelValues(source).Inc()
	m.latency.Observe(event.Duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case !event.Result.Found:
		m.stats.Unresolved++
	case source == "mapping_override":
		m.stats.Mapped++
	default:
		m.stats.Directory++
	}
	m.stats.TotalDuration += event.Duration
}

// PublishResolutionFailed implements events.ResolutionEventPublisher
func (m *ResolutionMetrics) PublishResolutionFailed(event events.ResolutionFailedEvent) {
	m.failures.Inc()
	m.latency.Observe(event.Duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Failed++
	m.stats.TotalDuration += event.Duration
}

// PublishMappingRowSkipped implements events.ResolutionEventPublisher
func (m *ResolutionMetrics) PublishMappingRowSkipped(events.MappingRowSkippedEvent) {
	m.skippedRows.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.SkippedRows++
}

// ObserveDirectoryQuery implements directory.QueryObserver
func (m *ResolutionMetrics) ObserveDirectoryQuery(operation string, duration time.Duration, err error) {
	m.directoryTime.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.directoryFails.WithLabelValues(operation).Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.DirectoryCalls++
	if err != nil {
		m.stats.DirectoryErrors++
	}
}

// Snapshot returns a copy of the run tally
func (m *ResolutionMetrics) Snapshot() RunStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// LogRunMetrics writes the run tally to the log
func (m *ResolutionMetrics) LogRunMetrics(logger *logging.Logger, runID string) {
	s := m.Snapshot()

	logger.Info("Resolution run metrics",
		"run_id", runID,
		"total", s.Total(),
		"mapped", s.Mapped,
		"directory", s.Directory,
		"unresolved", s.Unresolved,
		"failed", s.Failed,
		"skipped_mapping_rows", s.SkippedRows)

	logger.Info("Directory usage",
		"run_id", runID,
		"queries", s.DirectoryCalls,
		"errors", s.DirectoryErrors,
		"resolution_time_ms", s.TotalDuration.Milliseconds())

	if total := s.Total(); total > 0 {
		logger.Info("Resolution insights",
			"run_id", runID,
			"resolved_percent", float64(s.Mapped+s.Directory)*100/float64(total),
			"avg_resolution_ms", float64(s.TotalDuration.Milliseconds())/float64(total))
	}
}

var _ events.ResolutionEventPublisher = (*ResolutionMetrics)(nil)
