package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_RegisterAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()

	if err := m.Register(reg); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	// Double registration must fail.
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_RateLimitCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	m.IncRateLimitRequests("/auth/login", "ip")
	m.IncRateLimitRequests("/auth/login", "ip")
	m.IncRateLimitBlocked("/auth/login", "ip")
	m.IncRateLimitRedisErrors()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}

	got := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			got[mf.GetName()] += metric.GetCounter().GetValue()
		}
	}

	if got[MetricRateLimitRequests] != 2 {
		t.Errorf("expected 2 rate limit requests, got %f", got[MetricRateLimitRequests])
	}
	if got[MetricRateLimitBlocked] != 1 {
		t.Errorf("expected 1 blocked, got %f", got[MetricRateLimitBlocked])
	}
	if got[MetricRateLimitRedisErrors] != 1 {
		t.Errorf("expected 1 redis error, got %f", got[MetricRateLimitRedisErrors])
	}
}

func TestMetrics_Collectors(t *testing.T) {
	m := NewMetrics()
	if n := len(m.Collectors()); n != 7 {
		t.Errorf("expected 7 collectors, got %d", n)
	}
}
