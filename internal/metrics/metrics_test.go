package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	if m.registry == nil {
		t.Error("Registry is nil")
	}

	// Verify plan metrics
	if m.PlanExecutionsTotal == nil {
		t.Error("PlanExecutionsTotal is nil")
	}
	if m.PlanExecutionDuration == nil {
		t.Error("PlanExecutionDuration is nil")
	}
	if m.PlanStepsTotal == nil {
		t.Error("PlanStepsTotal is nil")
	}
	if m.ActiveExecutions == nil {
		t.Error("ActiveExecutions is nil")
	}

	// Verify tool metrics
	if m.ToolExecutionsTotal == nil {
		t.Error("ToolExecutionsTotal is nil")
	}
	if m.ToolExecutionDuration == nil {
		t.Error("ToolExecutionDuration is nil")
	}
	if m.ToolValidationFailuresTotal == nil {
		t.Error("ToolValidationFailuresTotal is nil")
	}

	// Verify integrity metrics
	if m.IntegrityChecksTotal == nil {
		t.Error("IntegrityChecksTotal is nil")
	}
	if m.TamperAlertsTotal == nil {
		t.Error("TamperAlertsTotal is nil")
	}

	// Verify scheduler metrics
	if m.ScheduledRunsTotal == nil {
		t.Error("ScheduledRunsTotal is nil")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	// Record some sample metrics so they appear in output
	m.PlanExecutionsTotal.WithLabelValues("success").Inc()
	m.PlanExecutionDuration.Observe(1.0)
	m.PlanStepsTotal.WithLabelValues("success").Inc()
	m.ToolExecutionsTotal.WithLabelValues("test", "success").Inc()
	m.ToolExecutionDuration.WithLabelValues("test").Observe(0.5)
	m.ToolValidationFailuresTotal.WithLabelValues("test").Inc()
	m.IntegrityChecksTotal.WithLabelValues("verified").Inc()
	m.ScheduledRunsTotal.WithLabelValues("success").Inc()

	handler := m.Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	// Test HTTP endpoint
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()

	// Verify metrics are exposed
	expectedMetrics := []string{
		"plan_executions_total",
		"plan_execution_duration_seconds",
		"plan_steps_total",
		"plan_executions_active",
		"tool_executions_total",
		"tool_execution_duration_seconds",
		"tool_validation_failures_total",
		"plan_integrity_checks_total",
		"plan_tamper_alerts_total",
		"scheduled_runs_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestMetricsRegistry(t *testing.T) {
	m := NewMetrics()

	registry := m.Registry()
	if registry == nil {
		t.Fatal("Registry returned nil")
	}

	// Record some sample metrics so every vec appears in gather
	m.PlanExecutionsTotal.WithLabelValues("success").Inc()
	m.PlanStepsTotal.WithLabelValues("failed").Inc()
	m.ToolExecutionsTotal.WithLabelValues("test", "success").Inc()
	m.ToolExecutionDuration.WithLabelValues("test").Observe(0.5)
	m.ToolValidationFailuresTotal.WithLabelValues("test").Inc()
	m.IntegrityChecksTotal.WithLabelValues("tampered").Inc()
	m.ScheduledRunsTotal.WithLabelValues("failed").Inc()

	// Verify metrics are registered
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Error("No metrics registered")
	}

	// Count registered metrics
	metricNames := make(map[string]bool)
	for _, mf := range metricFamilies {
		metricNames[*mf.Name] = true
	}

	expectedCount := 10 // Total number of metrics
	if len(metricNames) != expectedCount {
		t.Errorf("Expected %d metrics, got %d", expectedCount, len(metricNames))
	}
}

func TestPlanMetrics(t *testing.T) {
	m := NewMetrics()

	t.Run("increment plan executions", func(t *testing.T) {
		m.PlanExecutionsTotal.WithLabelValues("partial").Inc()

		metricFamilies, _ := m.registry.Gather()
		found := false
		for _, mf := range metricFamilies {
			if *mf.Name == "plan_executions_total" {
				found = true
				if len(mf.Metric) == 0 {
					t.Error("No metrics recorded")
				}
			}
		}
		if !found {
			t.Error("plan_executions_total metric not found")
		}
	})

	t.Run("record plan execution duration", func(t *testing.T) {
		m.PlanExecutionDuration.Observe(1.5)

		metricFamilies, _ := m.registry.Gather()
		found := false
		for _, mf := range metricFamilies {
			if *mf.Name == "plan_execution_duration_seconds" {
				found = true
			}
		}
		if !found {
			t.Error("plan_execution_duration_seconds metric not found")
		}
	})

	t.Run("track active executions", func(t *testing.T) {
		m.ActiveExecutions.Set(3)

		metricFamilies, _ := m.registry.Gather()
		found := false
		for _, mf := range metricFamilies {
			if *mf.Name == "plan_executions_active" {
				found = true
				if len(mf.Metric) > 0 && *mf.Metric[0].Gauge.Value != 3 {
					t.Errorf("Expected value 3, got %f", *mf.Metric[0].Gauge.Value)
				}
			}
		}
		if !found {
			t.Error("plan_executions_active metric not found")
		}
	})
}

func TestIntegrityMetrics(t *testing.T) {
	m := NewMetrics()

	t.Run("increment integrity checks", func(t *testing.T) {
		m.IntegrityChecksTotal.WithLabelValues("hash_mismatch").Inc()

		metricFamilies, _ := m.registry.Gather()
		found := false
		for _, mf := range metricFamilies {
			if *mf.Name == "plan_integrity_checks_total" {
				found = true
			}
		}
		if !found {
			t.Error("plan_integrity_checks_total metric not found")
		}
	})

	t.Run("increment tamper alerts", func(t *testing.T) {
		m.TamperAlertsTotal.Inc()

		metricFamilies, _ := m.registry.Gather()
		found := false
		for _, mf := range metricFamilies {
			if *mf.Name == "plan_tamper_alerts_total" {
				found = true
				if len(mf.Metric) > 0 && *mf.Metric[0].Counter.Value != 1 {
					t.Errorf("Expected value 1, got %f", *mf.Metric[0].Counter.Value)
				}
			}
		}
		if !found {
			t.Error("plan_tamper_alerts_total metric not found")
		}
	})
}

func TestMetricsIsolation(t *testing.T) {
	// Create two separate metrics instances
	m1 := NewMetrics()
	m2 := NewMetrics()

	// Increment metrics in m1
	m1.TamperAlertsTotal.Inc()
	m1.TamperAlertsTotal.Inc()

	// Increment metrics in m2
	m2.TamperAlertsTotal.Inc()

	// Verify m1 has 2
	metricFamilies1, _ := m1.registry.Gather()
	for _, mf := range metricFamilies1 {
		if *mf.Name == "plan_tamper_alerts_total" {
			if len(mf.Metric) > 0 && *mf.Metric[0].Counter.Value != 2 {
				t.Errorf("m1: Expected value 2, got %f", *mf.Metric[0].Counter.Value)
			}
		}
	}

	// Verify m2 has 1
	metricFamilies2, _ := m2.registry.Gather()
	for _, mf := range metricFamilies2 {
		if *mf.Name == "plan_tamper_alerts_total" {
			if len(mf.Metric) > 0 && *mf.Metric[0].Counter.Value != 1 {
				t.Errorf("m2: Expected value 1, got %f", *mf.Metric[0].Counter.Value)
			}
		}
	}
}
