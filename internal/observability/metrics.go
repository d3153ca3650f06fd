// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name when none is given.
const DefaultNamespace = "victory_readmodel"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Refresh metrics
	RefreshesTotal   *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	SnapshotPools    *prometheus.GaugeVec
	HealthIssues     prometheus.Gauge
	HealthLevel      *prometheus.GaugeVec
	LastRefresh      prometheus.Gauge
	FetchFailures    *prometheus.CounterVec
	DiagnosticsTotal *prometheus.CounterVec

	// Replay metrics
	EventsReplayed  *prometheus.CounterVec
	DuplicateEvents prometheus.Counter

	// Ingestion metrics
	EventsArchived *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCErrors      *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Push metrics
	BroadcastClients prometheus.Gauge
	BroadcastErrors  *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewMetricsWith(namespace, reg)
	m.registry = reg
	return m
}

// NewMetricsWith registers all metrics on reg.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Refresh metrics
		RefreshesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "refreshes_total",
			Help:      "Total number of snapshot refreshes by overall health",
		}, []string{"health"}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "refresh_duration_seconds",
			Help:      "Snapshot refresh duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SnapshotPools: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "pools",
			Help:      "Number of pools in the latest snapshot by kind",
		}, []string{"kind"}),
		HealthIssues: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "issues",
			Help:      "Number of health issues in the latest snapshot",
		}),
		HealthLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "level",
			Help:      "1 for the overall health level of the latest snapshot, 0 otherwise",
		}, []string{"level"}),
		LastRefresh: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_refresh_timestamp",
			Help:      "Unix timestamp of the latest snapshot refresh",
		}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed snapshot inputs by section",
		}, []string{"section"}),
		DiagnosticsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "diagnostics_total",
			Help:      "Total number of skipped or repaired records by stage",
		}, []string{"stage"}),

		// Replay metrics
		EventsReplayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "events_total",
			Help:      "Total number of events applied during replay by kind",
		}, []string{"kind"}),
		DuplicateEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "duplicate_events_total",
			Help:      "Total number of duplicate events collapsed during replay",
		}),

		// Ingestion metrics
		EventsArchived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_archived_total",
			Help:      "Total number of events written to the archive by event name",
		}, []string{"event"}),

		// Latency metrics
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sui",
			Name:      "rpc_call_latency_seconds",
			Help:      "Sui RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sui",
			Name:      "rpc_errors_total",
			Help:      "Total number of failed Sui RPC calls",
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Push metrics
		BroadcastClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket clients",
		}),
		BroadcastErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "errors_total",
			Help:      "Total number of failed snapshot pushes by sink",
		}, []string{"sink"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRefresh records a completed snapshot refresh.
func (m *Metrics) RecordRefresh(health string, issues int, lpPools, singlePools int, seconds float64, unixTs int64) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(health).Inc()
	m.RefreshDuration.Observe(seconds)
	m.SnapshotPools.WithLabelValues("LP").Set(float64(lpPools))
	m.SnapshotPools.WithLabelValues("Single").Set(float64(singlePools))
	m.HealthIssues.Set(float64(issues))
	for _, level := range []string{"healthy", "warning", "error"} {
		v := 0.0
		if level == health {
			v = 1
		}
		m.HealthLevel.WithLabelValues(level).Set(v)
	}
	m.LastRefresh.Set(float64(unixTs))
}

// RecordFetchFailure records a snapshot input that could not be fetched.
func (m *Metrics) RecordFetchFailure(section string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(section).Inc()
}

// RecordDiagnostic records a skipped or repaired record.
func (m *Metrics) RecordDiagnostic(stage string) {
	if m == nil {
		return
	}
	m.DiagnosticsTotal.WithLabelValues(stage).Inc()
}

// RecordReplay records replay throughput.
func (m *Metrics) RecordReplay(kind string, applied, duplicates int) {
	if m == nil {
		return
	}
	m.EventsReplayed.WithLabelValues(kind).Add(float64(applied))
	m.DuplicateEvents.Add(float64(duplicates))
}

// RecordArchived records events written to the archive.
func (m *Metrics) RecordArchived(event string, n int) {
	if m == nil {
		return
	}
	m.EventsArchived.WithLabelValues(event).Add(float64(n))
}

// RecordRPC records RPC call latency and failures.
func (m *Metrics) RecordRPC(method string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		m.RPCErrors.WithLabelValues(method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// SetBroadcastClients updates the connected WebSocket client gauge.
func (m *Metrics) SetBroadcastClients(n int) {
	if m == nil {
		return
	}
	m.BroadcastClients.Set(float64(n))
}

// RecordBroadcastError records a failed snapshot push.
func (m *Metrics) RecordBroadcastError(sink string) {
	if m == nil {
		return
	}
	m.BroadcastErrors.WithLabelValues(sink).Inc()
}
