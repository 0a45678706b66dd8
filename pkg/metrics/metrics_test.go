package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg, "api")
	m.Observe(http.MethodGet, "/api/v1/customers/{id}", http.StatusOK, 20*time.Millisecond)
	m.Observe(http.MethodGet, "/api/v1/customers/{id}", http.StatusNotFound, 5*time.Millisecond)

	ok := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/v1/customers/{id}", "200"))
	if ok != 1 {
		t.Fatalf("expected one 200, got %f", ok)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestCacheMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCacheMetrics(reg)
	m.Hit("customers")
	m.Hit("customers")
	m.Miss("customers")
	m.Error("customers", "get")
	m.Evicted("", "all")

	if got := testutil.ToFloat64(m.hits.WithLabelValues("customers")); got != 2 {
		t.Fatalf("expected 2 hits, got %f", got)
	}
	if got := testutil.ToFloat64(m.misses.WithLabelValues("customers")); got != 1 {
		t.Fatalf("expected 1 miss, got %f", got)
	}
	if got := testutil.ToFloat64(m.evictions.WithLabelValues("unknown", "all")); got != 1 {
		t.Fatalf("expected empty cache label to normalize, got %f", got)
	}
}

func TestGatewayMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGatewayMetrics(reg)
	m.SetBreakerState("customers", BreakerOpen)
	m.RateLimited("customers")
	m.Upstream("customers", http.StatusCreated)
	m.Upstream("customers", 0)

	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("customers")); got != BreakerOpen {
		t.Fatalf("expected open breaker gauge, got %f", got)
	}
	if got := testutil.ToFloat64(m.upstream.WithLabelValues("customers", "2xx")); got != 1 {
		t.Fatalf("expected one 2xx, got %f", got)
	}
	if got := testutil.ToFloat64(m.upstream.WithLabelValues("customers", "error")); got != 1 {
		t.Fatalf("expected one error, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var httpM *HTTPMetrics
	httpM.Observe(http.MethodGet, "/", 200, time.Millisecond)
	var cacheM *CacheMetrics
	cacheM.Hit("x")
	NewOutboxMetrics(nil).Published("inventory_threshold_crossed")
	NewGatewayMetrics(nil).RateLimited("x")
	NewInventoryMetrics(nil).Adjusted("restock")
}
