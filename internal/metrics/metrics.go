package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout collects counters for the checkout workflow.
type Checkout struct {
	registry *prometheus.Registry

	Attempts   *prometheus.CounterVec
	DurationMS *prometheus.HistogramVec
	UnitsSold  prometheus.Counter
	Revenue    prometheus.Counter
}

func NewCheckout() *Checkout {
	reg := prometheus.NewRegistry()
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pharmapos",
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pharmapos",
		Subsystem: "checkout",
		Name:      "duration_ms",
		Help:      "Checkout latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"outcome"})
	units := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pharmapos",
		Subsystem: "checkout",
		Name:      "units_sold_total",
		Help:      "Units sold through completed checkouts.",
	})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pharmapos",
		Subsystem: "checkout",
		Name:      "revenue_total",
		Help:      "Revenue (tax inclusive) of completed checkouts.",
	})
	reg.MustRegister(attempts, duration, units, revenue)
	return &Checkout{registry: reg, Attempts: attempts, DurationMS: duration, UnitsSold: units, Revenue: revenue}
}

// Handler exposes the registry in the Prometheus text format.
func (c *Checkout) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
