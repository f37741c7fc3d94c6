package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cardshop"

// Metrics 下单与结算链路的业务指标。
type Metrics struct {
	Orders         *prometheus.CounterVec   // path=free|paid, outcome=success|<error code>
	Callbacks      *prometheus.CounterVec   // result=success|sign_error|status_error|error
	Shortfall      prometheus.Counter       // 已支付但库存不足未能发卡
	GatewayLatency *prometheus.HistogramVec // outcome=success|rejected|error
}

// New 创建指标并注册到 reg。
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Trade requests by fulfilment path and outcome.",
		}, []string{"path", "outcome"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Payment callbacks by result.",
		}, []string{"result"}),
		Shortfall: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_shortfall_total",
			Help:      "Settled orders that could not be fulfilled from stock.",
		}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Outbound payment gateway request latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Orders, m.Callbacks, m.Shortfall, m.GatewayLatency)
	return m
}

// Handler 暴露 /metrics。
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
