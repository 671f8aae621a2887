package metrics_test

import (
	"testing"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestManager(t *testing.T) {
	m, reg := metrics.NewTestManagerAndRegistry()

	m.CounterSetValidations.WithLabelValues(metrics.ResultOK).Inc()
	m.CounterSetValidations.WithLabelValues(metrics.ResultOK).Inc()
	m.CounterSetValidations.WithLabelValues(metrics.ResultRejected).Inc()
	m.CounterPersonalRecords.Inc()
	m.GaugeActiveSessions.Set(3)
	m.ObserveStorage("create_logged_set", time.Now())

	if got := testutil.ToFloat64(m.CounterSetValidations.WithLabelValues(metrics.ResultOK)); got != 2 {
		t.Errorf("ok validations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CounterSetValidations.WithLabelValues(metrics.ResultRejected)); got != 1 {
		t.Errorf("rejected validations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CounterPersonalRecords); got != 1 {
		t.Errorf("personal records = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GaugeActiveSessions); got != 3 {
		t.Errorf("active sessions = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(m.HistStorageDuration); got != 1 {
		t.Errorf("storage histogram series = %d, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected registered metric families")
	}
}

func TestNewTestManager_isolatedRegistries(t *testing.T) {
	// Each test manager owns a registry so constructing two must not panic on duplicate registration.
	a := metrics.NewTestManager()
	b := metrics.NewTestManager()
	a.CounterPersonalRecords.Inc()
	if got := testutil.ToFloat64(b.CounterPersonalRecords); got != 0 {
		t.Errorf("second manager personal records = %v, want 0", got)
	}
}
