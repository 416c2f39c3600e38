package services

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the relay's prometheus collectors.
type Metrics struct {
	ConnectedSockets  prometheus.Gauge
	PushesTotal       prometheus.Counter
	PersistedMessages *prometheus.CounterVec
	RejectedFrames    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectedSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront_chat",
			Name:      "connected_sockets",
			Help:      "Number of open realtime connections.",
		}),
		PushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront_chat",
			Name:      "pushes_total",
			Help:      "receive-message events pushed to rooms.",
		}),
		PersistedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront_chat",
			Name:      "persisted_messages_total",
			Help:      "Messages persisted, by path and whether the send was a replay.",
		}, []string{"path", "replay"}),
		RejectedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront_chat",
			Name:      "rejected_frames_total",
			Help:      "Realtime frames rejected, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectedSockets, m.PushesTotal, m.PersistedMessages, m.RejectedFrames)
	}
	return m
}
