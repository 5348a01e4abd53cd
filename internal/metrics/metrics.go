// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpdatesTotal counts updates accepted by the router, by kind.
	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_updates_total",
			Help: "Total number of updates dispatched by kind",
		},
		[]string{"kind"},
	)

	RouterDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeep_router_dropped_total",
			Help: "Total number of updates dropped because the inbox was full",
		},
	)

	// JoinsTotal counts processed join members by outcome
	// (banned, owner, tier, self, welcomed, soft, challenged, failed).
	JoinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_joins_total",
			Help: "Total number of joining members by outcome",
		},
		[]string{"outcome"},
	)

	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_verifications_total",
			Help: "Total number of verification challenges by result",
		},
		[]string{"result"},
	)

	WaitlistPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatekeep_waitlist_pending",
			Help: "Number of members currently pending verification",
		},
	)

	AdminCacheFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_admin_cache_fetches_total",
			Help: "Total number of administrator list fetches by result",
		},
		[]string{"result"},
	)

	DeliveryFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_delivery_fallbacks_total",
			Help: "Total number of welcome deliveries that fell back to plain text, by reason",
		},
		[]string{"reason"},
	)

	// AuditEvents counts audit events by type, including those that could
	// not be written.
	AuditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_audit_events_total",
			Help: "Total number of audit events by type",
		},
		[]string{"type"},
	)

	AuditWriteErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeep_audit_write_errors_total",
			Help: "Total number of audit events that could not be written to the audit log",
		},
	)

	// CronRuns counts periodic job ticks by outcome: ok, error or skipped.
	CronRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_cron_runs_total",
			Help: "Total number of periodic job ticks by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	CronDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeep_cron_duration_seconds",
			Help:    "Periodic job run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeep_handler_duration_seconds",
			Help:    "Update handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(UpdatesTotal)
	prometheus.MustRegister(RouterDropped)
	prometheus.MustRegister(JoinsTotal)
	prometheus.MustRegister(VerificationsTotal)
	prometheus.MustRegister(WaitlistPending)
	prometheus.MustRegister(AdminCacheFetches)
	prometheus.MustRegister(DeliveryFallbacks)
	prometheus.MustRegister(HandlerDuration)
	prometheus.MustRegister(AuditEvents)
	prometheus.MustRegister(AuditWriteErrors)
	prometheus.MustRegister(CronRuns)
	prometheus.MustRegister(CronDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of one operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time on the labelled histogram.
func (t *Timer) ObserveDuration(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
