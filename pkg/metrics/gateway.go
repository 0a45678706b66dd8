package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Breaker states exported by the gateway gauge.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// GatewayMetrics covers the edge: breaker state, throttling and upstream
// outcomes per route.
type GatewayMetrics struct {
	breakerState *prometheus.GaugeVec
	rateLimited  *prometheus.CounterVec
	upstream     *prometheus.CounterVec
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "srms_gateway_breaker_state",
		Help: "Circuit breaker state per route (0 closed, 1 half-open, 2 open).",
	}, []string{"route"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "srms_gateway_rate_limited_total",
		Help: "Requests rejected by the gateway rate limiter.",
	}, []string{"route"})
	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "srms_gateway_upstream_responses_total",
		Help: "Upstream responses by route and status class.",
	}, []string{"route", "status"})
	reg.MustRegister(breakerState, rateLimited, upstream)
	return &GatewayMetrics{breakerState: breakerState, rateLimited: rateLimited, upstream: upstream}
}

func (m *GatewayMetrics) SetBreakerState(route string, state int) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.WithLabelValues(normalizeLabel(route)).Set(float64(state))
}

func (m *GatewayMetrics) RateLimited(route string) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.WithLabelValues(normalizeLabel(route)).Inc()
}

// Upstream records a proxied response. status is bucketed into its class
// (2xx, 4xx, ...); zero means the upstream never answered.
func (m *GatewayMetrics) Upstream(route string, status int) {
	if m == nil || m.upstream == nil {
		return
	}
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	m.upstream.WithLabelValues(normalizeLabel(route), class).Inc()
}
