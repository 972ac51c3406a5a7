package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes the relay's operational metrics. Metrics are registered
// on the given registerer so tests can use an isolated registry.
type Collector struct {
	connectionsActive *prometheus.GaugeVec
	meetingRooms      prometheus.Gauge
	usersOnline       prometheus.Gauge

	messagesPersisted   *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	signalsRelayed      *prometheus.CounterVec
	relayFailures       prometheus.Counter
	authRejections      *prometheus.CounterVec
	eventsDropped       *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		connectionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "classrelay_connections_active",
			Help: "Number of live WebSocket connections per namespace",
		}, []string{"namespace"}),

		meetingRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classrelay_meeting_rooms_active",
			Help: "Number of meeting rooms with at least one participant",
		}),

		usersOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classrelay_users_online",
			Help: "Number of users with at least one live chat connection",
		}),

		messagesPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classrelay_messages_persisted_total",
			Help: "Messages handed off to the message store, by kind",
		}, []string{"kind"}),

		persistenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classrelay_persistence_failures_total",
			Help: "Message store failures reported back to senders, by kind",
		}, []string{"kind"}),

		signalsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classrelay_signals_relayed_total",
			Help: "WebRTC signaling payloads relayed point-to-point, by kind",
		}, []string{"kind"}),

		relayFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "classrelay_relay_failures_total",
			Help: "Signaling relays whose target connection was gone",
		}),

		authRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classrelay_auth_rejections_total",
			Help: "Handshakes rejected by the connection gate, by namespace",
		}, []string{"namespace"}),

		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classrelay_events_dropped_total",
			Help: "Outbound events dropped because a connection's send buffer was full",
		}, []string{"namespace"}),
	}
}

func (c *Collector) ConnectionOpened(namespace string) {
	c.connectionsActive.WithLabelValues(namespace).Inc()
}

func (c *Collector) ConnectionClosed(namespace string) {
	c.connectionsActive.WithLabelValues(namespace).Dec()
}

func (c *Collector) SetMeetingRooms(n int) {
	c.meetingRooms.Set(float64(n))
}

func (c *Collector) SetUsersOnline(n int) {
	c.usersOnline.Set(float64(n))
}

func (c *Collector) MessagePersisted(kind string) {
	c.messagesPersisted.WithLabelValues(kind).Inc()
}

func (c *Collector) PersistenceFailed(kind string) {
	c.persistenceFailures.WithLabelValues(kind).Inc()
}

func (c *Collector) SignalRelayed(kind string) {
	c.signalsRelayed.WithLabelValues(kind).Inc()
}

func (c *Collector) RelayFailed() {
	c.relayFailures.Inc()
}

func (c *Collector) AuthRejected(namespace string) {
	c.authRejections.WithLabelValues(namespace).Inc()
}

func (c *Collector) EventDropped(namespace string) {
	c.eventsDropped.WithLabelValues(namespace).Inc()
}
