package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Enabled turns metric recording on. Disabled collectors are no-ops.
	Enabled bool

	// Namespace is the metric name prefix. Default: "sentinel".
	Namespace string

	// Subsystem is the metric name subsystem. Default: "policy".
	Subsystem string
}

// Collector registers and records the Prometheus metrics for the policy
// engine. It implements the engine's MetricsRecorder interface.
//
// Metrics:
//   - sentinel_policy_decisions_total: decisions by kind and reason code
//   - sentinel_policy_evaluation_duration_seconds: evaluation latency
//   - sentinel_policy_executions_total: confirmed executions by kind
//   - sentinel_policy_quota_used / quota_max: today's counters by kind
//   - sentinel_policy_emergency_active: interlock state (1=active)
type Collector struct {
	config   Config
	registry *prometheus.Registry

	decisionsTotal     *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	executionsTotal    *prometheus.CounterVec
	quotaUsed          *prometheus.GaugeVec
	quotaMax           *prometheus.GaugeVec
	emergencyActive    prometheus.Gauge
}

// NewCollector creates a collector and registers its metrics with the given
// registry. If registry is nil a fresh one is created.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "sentinel"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "policy"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decisions_total",
				Help:      "Total number of evaluation decisions",
			},
			[]string{"kind", "reason_code"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of action evaluation in seconds",
				// Evaluations are storage-bound and should stay well
				// under 100ms.
				Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
			},
			[]string{"kind"},
		),

		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "executions_total",
				Help:      "Total number of confirmed action executions",
			},
			[]string{"kind"},
		),

		quotaUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "quota_used",
				Help:      "Executions used today by kind",
			},
			[]string{"kind"},
		),

		quotaMax: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "quota_max",
				Help:      "Configured daily maximum by kind",
			},
			[]string{"kind"},
		),

		emergencyActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "emergency_active",
				Help:      "Whether the emergency stop is active (1=active, 0=inactive)",
			},
		),
	}

	registry.MustRegister(
		c.decisionsTotal,
		c.evaluationDuration,
		c.executionsTotal,
		c.quotaUsed,
		c.quotaMax,
		c.emergencyActive,
	)

	return c
}

// RecordDecision records one evaluation outcome.
func (c *Collector) RecordDecision(kind string, reason string, allowed bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	c.decisionsTotal.WithLabelValues(kind, reason).Inc()
	c.evaluationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordExecution records confirmed executions of a kind.
func (c *Collector) RecordExecution(kind string, count int64) {
	if !c.config.Enabled {
		return
	}
	c.executionsTotal.WithLabelValues(kind).Add(float64(count))
}

// SetEmergencyActive reflects the interlock state.
func (c *Collector) SetEmergencyActive(active bool) {
	if !c.config.Enabled {
		return
	}
	if active {
		c.emergencyActive.Set(1)
	} else {
		c.emergencyActive.Set(0)
	}
}

// SetQuotaUsage reflects the current counters for a kind.
func (c *Collector) SetQuotaUsage(kind string, used int64, max int64) {
	if !c.config.Enabled {
		return
	}
	c.quotaUsed.WithLabelValues(kind).Set(float64(used))
	c.quotaMax.WithLabelValues(kind).Set(float64(max))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
