package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watchsync"

type Metrics struct {
	RoomsCreated    prometheus.Counter
	RoomsUpdated    prometheus.Counter
	RoomJoins       prometheus.Counter
	VideoEvents     *prometheus.CounterVec
	MessagesSent    prometheus.Counter
	MessagesDropped prometheus.Counter
	ConnectionsOpen prometheus.Gauge
	MessageErrors   *prometheus.CounterVec
	reg             prometheus.Gatherer
}

// New registers all collectors on reg, including the go runtime and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		RoomsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Number of accepted createRoom messages.",
		}),
		RoomsUpdated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_updated_total",
			Help:      "Number of updateRoom messages applied to an existing room.",
		}),
		RoomJoins: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_joins_total",
			Help:      "Number of joinRoom messages.",
		}),
		VideoEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_events_total",
			Help:      "Playback events applied to rooms, by event type.",
		}, []string{"type"}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_enqueued_total",
			Help:      "Outbound messages queued for delivery.",
		}),
		MessagesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Outbound messages dropped because the connection queue was full or closed.",
		}),
		ConnectionsOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Websocket connections currently open.",
		}),
		MessageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_errors_total",
			Help:      "Inbound messages rejected, by message type.",
		}, []string{"message_type"}),
		reg: reg,
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
