package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service counters. Each instance owns its registry so tests can build
// as many as they like.
type Metrics struct {
	Registry       *prometheus.Registry
	MessagesSent   prometheus.Counter
	PushDeliveries *prometheus.CounterVec
	RateLimitHits  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimarket",
			Name:      "messages_sent_total",
			Help:      "Chat messages stored.",
		}),
		PushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unimarket",
			Name:      "push_deliveries_total",
			Help:      "Push notification attempts by outcome.",
		}, []string{"outcome"}),
		RateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unimarket",
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"prefix"}),
	}
	m.Registry.MustRegister(
		m.MessagesSent,
		m.PushDeliveries,
		m.RateLimitHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry for Prometheus scraping.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}
