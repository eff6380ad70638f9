package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// MarketplaceMetrics counts orders and payout decisions.
type MarketplaceMetrics struct {
	ordersCreated  *prometheus.CounterVec
	orderValue     *prometheus.CounterVec
	payoutRequests *prometheus.CounterVec
	payoutAmount   *prometheus.CounterVec
}

// NewMarketplaceMetrics registers the marketplace counters on reg. A nil reg
// yields a no-op recorder.
func NewMarketplaceMetrics(reg prometheus.Registerer) *MarketplaceMetrics {
	if reg == nil {
		return &MarketplaceMetrics{}
	}
	m := &MarketplaceMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders persisted, by payment method.",
		}, []string{"payment_method"}),
		orderValue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_value_total",
			Help:      "Sum of order totals in site currency.",
		}, []string{"currency"}),
		payoutRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_requests_total",
			Help:      "Payout requests by tenant type and resulting status.",
		}, []string{"tenant_type", "status"}),
		payoutAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_amount_total",
			Help:      "Balance settled by approved payouts.",
		}, []string{"tenant_type"}),
	}
	reg.MustRegister(m.ordersCreated, m.orderValue, m.payoutRequests, m.payoutAmount)
	return m
}

// OrderCreated records one persisted order.
func (m *MarketplaceMetrics) OrderCreated(paymentMethod, currency string, total decimal.Decimal) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
	m.orderValue.WithLabelValues(normalizeLabel(currency)).Add(total.InexactFloat64())
}

// PayoutTransition records a payout request reaching status.
func (m *MarketplaceMetrics) PayoutTransition(tenantType, status string) {
	if m == nil || m.payoutRequests == nil {
		return
	}
	m.payoutRequests.WithLabelValues(normalizeLabel(tenantType), normalizeLabel(status)).Inc()
}

// PayoutSettled adds an approved payout balance.
func (m *MarketplaceMetrics) PayoutSettled(tenantType string, balance decimal.Decimal) {
	if m == nil || m.payoutAmount == nil {
		return
	}
	m.payoutAmount.WithLabelValues(normalizeLabel(tenantType)).Add(balance.InexactFloat64())
}
