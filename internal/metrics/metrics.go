package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Plan metrics
	PlanExecutionsTotal   *prometheus.CounterVec
	PlanExecutionDuration prometheus.Histogram
	PlanStepsTotal        *prometheus.CounterVec
	ActiveExecutions      prometheus.Gauge

	// Tool metrics
	ToolExecutionsTotal         *prometheus.CounterVec
	ToolExecutionDuration       *prometheus.HistogramVec
	ToolValidationFailuresTotal *prometheus.CounterVec

	// Integrity metrics
	IntegrityChecksTotal *prometheus.CounterVec
	TamperAlertsTotal    prometheus.Counter

	// Scheduler metrics
	ScheduledRunsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Plan metrics
		PlanExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plan_executions_total",
				Help: "Total number of plan executions by final status",
			},
			[]string{"status"},
		),
		PlanExecutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plan_execution_duration_seconds",
				Help:    "Duration of plan executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		PlanStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plan_steps_total",
				Help: "Total number of executed plan steps by status",
			},
			[]string{"status"},
		),
		ActiveExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plan_executions_active",
				Help: "Number of plan executions currently in flight",
			},
		),

		// Tool metrics
		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),
		ToolValidationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_validation_failures_total",
				Help: "Total number of payloads rejected before execution",
			},
			[]string{"tool_name"},
		),

		// Integrity metrics
		IntegrityChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plan_integrity_checks_total",
				Help: "Total number of plan integrity checks by outcome",
			},
			[]string{"outcome"},
		),
		TamperAlertsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plan_tamper_alerts_total",
				Help: "Total number of plans rejected as unverifiable or tampered",
			},
		),

		// Scheduler metrics
		ScheduledRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduled_runs_total",
				Help: "Total number of scheduled plan runs by status",
			},
			[]string{"status"},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	// Plan metrics
	m.registry.MustRegister(m.PlanExecutionsTotal)
	m.registry.MustRegister(m.PlanExecutionDuration)
	m.registry.MustRegister(m.PlanStepsTotal)
	m.registry.MustRegister(m.ActiveExecutions)

	// Tool metrics
	m.registry.MustRegister(m.ToolExecutionsTotal)
	m.registry.MustRegister(m.ToolExecutionDuration)
	m.registry.MustRegister(m.ToolValidationFailuresTotal)

	// Integrity metrics
	m.registry.MustRegister(m.IntegrityChecksTotal)
	m.registry.MustRegister(m.TamperAlertsTotal)

	// Scheduler metrics
	m.registry.MustRegister(m.ScheduledRunsTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
