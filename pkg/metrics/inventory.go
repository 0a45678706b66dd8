package metrics

import "github.com/prometheus/client_golang/prometheus"

// InventoryMetrics tracks stock adjustments, threshold alerts and lock
// contention on inventory items.
type InventoryMetrics struct {
	adjustments *prometheus.CounterVec
	alerts      prometheus.Counter
	contention  prometheus.Counter
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "srms_inventory_adjustments_total",
		Help: "Applied stock adjustments by reason.",
	}, []string{"reason"})
	alerts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "srms_inventory_threshold_alerts_total",
		Help: "Low-stock alerts enqueued to the outbox.",
	})
	contention := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "srms_inventory_lock_contention_total",
		Help: "Adjustments rejected because the item lock was held.",
	})
	reg.MustRegister(adjustments, alerts, contention)
	return &InventoryMetrics{adjustments: adjustments, alerts: alerts, contention: contention}
}

func (m *InventoryMetrics) Adjusted(reason string) {
	if m == nil || m.adjustments == nil {
		return
	}
	m.adjustments.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *InventoryMetrics) AlertEnqueued() {
	if m == nil || m.alerts == nil {
		return
	}
	m.alerts.Inc()
}

func (m *InventoryMetrics) LockContended() {
	if m == nil || m.contention == nil {
		return
	}
	m.contention.Inc()
}
