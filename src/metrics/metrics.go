package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the service on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	indexOps           *prometheus.CounterVec
	capacityRejections *prometheus.CounterVec
	dispatchFailures   *prometheus.CounterVec
	markets            prometheus.Gauge
	bookDepth          *prometheus.GaugeVec
	requestLatency     *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		indexOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_operations_total",
			Help:      "Writes applied to market indexes by operation and result",
		}, []string{"op", "result"}),

		capacityRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_rejections_total",
			Help:      "Inserts refused because a map was full",
		}, []string{"map"}),

		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Market handles that could not be attached",
		}, []string{"reason"}),

		markets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "markets",
			Help:      "Market accounts held by the store",
		}),

		bookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_orders",
			Help:      "Resting orders per market and side",
		}, []string{"market", "side"}),

		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		m.indexOps,
		m.capacityRejections,
		m.dispatchFailures,
		m.markets,
		m.bookDepth,
		m.requestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) IndexOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.indexOps.WithLabelValues(op, result).Inc()
}

// CapacityRejected counts a refused insert into the named map
// ("bids", "asks" or "traders").
func (m *Metrics) CapacityRejected(mapName string) {
	m.capacityRejections.WithLabelValues(mapName).Inc()
}

func (m *Metrics) DispatchFailed(reason string) {
	m.dispatchFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetMarkets(n int) {
	m.markets.Set(float64(n))
}

func (m *Metrics) SetBookDepth(market, side string, n int) {
	m.bookDepth.WithLabelValues(market, side).Set(float64(n))
}

func (m *Metrics) ForgetMarket(market string) {
	m.bookDepth.DeletePartialMatch(prometheus.Labels{"market": market})
}

// Middleware observes request latency labelled by the matched route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		// edge case: errors returned to fiber's ErrorHandler have not set a status yet
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}
		m.requestLatency.
			WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
