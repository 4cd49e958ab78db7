package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the broker-facing counters.
type Metrics struct {
	NotifySent     prometheus.Counter
	NotifyFailures prometheus.Counter
	FramesReceived prometheus.Counter
	FramesDropped  prometheus.Counter
	Reconnects     prometheus.Counter
}

// NewMetrics registers the broker counters with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		NotifySent: factory.NewCounter(prometheus.CounterOpts{
			Name: "comanda_broker_notify_sent_total",
			Help: "Outbound broker notifications accepted by the broker.",
		}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "comanda_broker_notify_failures_total",
			Help: "Outbound broker notifications swallowed after failure.",
		}),
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "comanda_broker_frames_received_total",
			Help: "Inbound frames parsed and forwarded from the broker.",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "comanda_broker_frames_dropped_total",
			Help: "Inbound frames dropped as malformed.",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "comanda_broker_reconnects_total",
			Help: "Ingress reconnect attempts after a connection loss.",
		}),
	}
}
