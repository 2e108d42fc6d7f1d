// Package metrics defines Prometheus metrics for labops.
package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labops_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labops_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labops_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labops_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labops_mutations_total",
			Help: "Committed mutations by entity type and action",
		},
		[]string{"entity_type", "action"},
	)

	AuditQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "labops_audit_queue_depth",
			Help: "Audit records waiting to be written",
		},
	)

	AuditFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labops_audit_failures_total",
			Help: "Audit records that were not persisted, by reason",
		},
		[]string{"reason"},
	)

	PushConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "labops_push_connections",
			Help: "Active live-update connections by transport",
		},
		[]string{"transport"},
	)

	PushEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "labops_push_events_total",
			Help: "Change events published to the hub",
		},
	)

	PushDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "labops_push_dropped_total",
			Help: "Clients pruned because their send buffer was full",
		},
	)

	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labops_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal, RateLimitedTotal, MutationsTotal,
		AuditQueueDepth, AuditFailuresTotal,
		PushConnections, PushEventsTotal, PushDroppedTotal,
		LoginAttemptsTotal,
	)
}

// PoolStatsFunc returns the pool statistics on demand.
type PoolStatsFunc func() *pgxpool.Stat

// RegisterPoolStats exports connection pool gauges. Call once at startup.
func RegisterPoolStats(stats PoolStatsFunc) {
	gauge := func(name, help string, fn func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return fn(stats())
		})
	}

	prometheus.MustRegister(
		gauge("labops_db_pool_acquired_conns", "Connections currently in use",
			func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("labops_db_pool_idle_conns", "Idle connections",
			func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("labops_db_pool_max_conns", "Maximum pool size",
			func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
	)
}
