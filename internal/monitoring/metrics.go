package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Sandbox metrics
	TrapsTotal        *prometheus.CounterVec
	ActiveSandboxes   prometheus.Gauge
	WhitelistRestores prometheus.Counter

	// Lifecycle metrics
	MountsTotal    *prometheus.CounterVec
	MountDuration  *prometheus.HistogramVec
	AppsRegistered prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandboxd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandboxd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		TrapsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandboxd_traps_total",
				Help: "Total number of membrane trap invocations",
			},
			[]string{"sandbox", "op"},
		),
		ActiveSandboxes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sandboxd_sandboxes_active",
				Help: "Number of currently activated sandboxes",
			},
		),
		WhitelistRestores: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sandboxd_whitelist_restores_total",
				Help: "Total number of whitelisted global restorations",
			},
		),

		MountsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandboxd_mounts_total",
				Help: "Total number of micro-app mounts",
			},
			[]string{"app", "status"},
		),
		MountDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandboxd_mount_duration_seconds",
				Help:    "Micro-app mount duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"app"},
		),
		AppsRegistered: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sandboxd_apps_registered",
				Help: "Number of registered micro-apps",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sandboxd_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}
}

// RecordTrap counts one membrane trap invocation.
func (m *Metrics) RecordTrap(sandbox, op string) {
	m.TrapsTotal.WithLabelValues(sandbox, op).Inc()
}

// SetActiveSandboxes tracks the realm's active-sandbox counter.
func (m *Metrics) SetActiveSandboxes(n int) {
	m.ActiveSandboxes.Set(float64(n))
}

// RecordWhitelistRestore counts one whitelist restoration pass.
func (m *Metrics) RecordWhitelistRestore() {
	m.WhitelistRestores.Inc()
}

// RecordMount records a mount attempt outcome and its duration.
func (m *Metrics) RecordMount(app, status string, d time.Duration) {
	m.MountsTotal.WithLabelValues(app, status).Inc()
	m.MountDuration.WithLabelValues(app).Observe(d.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
