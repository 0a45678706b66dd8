package gateway

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
)

// BreakerSettings applies to every route's breaker.
type BreakerSettings struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// OpenFor is how long an open breaker rejects before probing.
	OpenFor time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.Failures == 0 {
		s.Failures = 5
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}
	return s
}

func newBreaker(route string, settings BreakerSettings, m *metrics.GatewayMetrics, logg *logger.Logger) *gobreaker.CircuitBreaker {
	settings = settings.withDefaults()
	m.SetBreakerState(route, metrics.BreakerClosed)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        route,
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.SetBreakerState(name, breakerGauge(to))
			ctx := logg.WithFields(context.Background(), map[string]any{
				"route": name,
				"from":  from.String(),
				"to":    to.String(),
			})
			logg.Warn(ctx, "gateway.breaker_state_changed")
		},
	})
}

func breakerGauge(state gobreaker.State) int {
	switch state {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	}
	return metrics.BreakerClosed
}
