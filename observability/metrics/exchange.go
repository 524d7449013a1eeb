package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ExchangeMetrics aggregates the Prometheus collectors for the exchange engine.
type ExchangeMetrics struct {
	exchangesTotal   prometheus.Counter
	exchangeFailures *prometheus.CounterVec
	withdrawalsTotal prometheus.Counter
	adminUpdates     *prometheus.CounterVec
	reserveBalance   prometheus.Gauge
}

var (
	exchangeOnce     sync.Once
	exchangeRegistry *ExchangeMetrics
)

// Exchange returns the process-wide exchange metrics, registering the
// collectors on first use.
func Exchange() *ExchangeMetrics {
	exchangeOnce.Do(func() {
		exchangeRegistry = &ExchangeMetrics{
			exchangesTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "burnswap_exchanges_total",
				Help: "Count of successful burn-and-exchange operations.",
			}),
			exchangeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "burnswap_exchange_failures_total",
				Help: "Count of rejected exchange calls by reason.",
			}, []string{"reason"}),
			withdrawalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "burnswap_withdrawals_total",
				Help: "Count of administrator withdrawals from custody.",
			}),
			adminUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "burnswap_admin_updates_total",
				Help: "Count of administrator configuration changes by kind.",
			}, []string{"kind"}),
			reserveBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "burnswap_target_reserve",
				Help: "Current target-token balance held in engine custody.",
			}),
		}
		prometheus.MustRegister(
			exchangeRegistry.exchangesTotal,
			exchangeRegistry.exchangeFailures,
			exchangeRegistry.withdrawalsTotal,
			exchangeRegistry.adminUpdates,
			exchangeRegistry.reserveBalance,
		)
	})
	return exchangeRegistry
}

// ObserveExchange records a completed exchange.
func (m *ExchangeMetrics) ObserveExchange() {
	if m == nil {
		return
	}
	m.exchangesTotal.Inc()
}

// ObserveExchangeFailure records a rejected exchange call.
func (m *ExchangeMetrics) ObserveExchangeFailure(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.exchangeFailures.WithLabelValues(reason).Inc()
}

// ObserveWithdrawal records an administrator withdrawal.
func (m *ExchangeMetrics) ObserveWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawalsTotal.Inc()
}

// ObserveAdminUpdate records a ratio or deadline change.
func (m *ExchangeMetrics) ObserveAdminUpdate(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.adminUpdates.WithLabelValues(kind).Inc()
}

// SetReserve publishes the current custody balance of the target token.
func (m *ExchangeMetrics) SetReserve(value float64) {
	if m == nil {
		return
	}
	m.reserveBalance.Set(value)
}
