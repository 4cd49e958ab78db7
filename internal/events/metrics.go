package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dispatcher counters exposed on /metrics.
type Metrics struct {
	Dispatched    prometheus.Counter
	HandlerPanics prometheus.Counter
}

// NewMetrics registers the dispatcher counters with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Dispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "comanda_events_dispatched_total",
			Help: "Total number of events delivered through the dispatcher.",
		}),
		HandlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Name: "comanda_events_handler_panics_total",
			Help: "Total number of handler panics isolated during dispatch.",
		}),
	}
}
