package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	Requests       *prometheus.CounterVec
	LatencyMS      *prometheus.HistogramVec
	CheckoutTotal  *prometheus.CounterVec
	OrderFetches   *prometheus.CounterVec
	StorageFailure *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New reg 為 nil 時建立獨立的 registry，避免測試之間重複註冊
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		CheckoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_results_total",
			Help:      "Order submissions by result.",
		}, []string{"result"}),
		OrderFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_fetch_total",
			Help:      "Order history fetches by resulting state.",
		}, []string{"state"}),
		StorageFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_write_failures_total",
			Help:      "Failed writes to the key-value store.",
		}, []string{"collection"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.CheckoutTotal, m.OrderFetches, m.StorageFailure)
	return m
}

func (m *Metrics) CheckoutResult(result string) {
	m.CheckoutTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) OrderFetch(state string) {
	m.OrderFetches.WithLabelValues(state).Inc()
}

func (m *Metrics) StorageWriteFailed(collection string) {
	m.StorageFailure.WithLabelValues(collection).Inc()
}

func (m *Metrics) ObserveRequest(route, method, status string, ms float64) {
	m.Requests.WithLabelValues(route, method, status).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(ms)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
