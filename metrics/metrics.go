// Package metrics provides Prometheus collectors for persistent websocket clients
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "websocket_client"

// Metrics records client lifecycle events.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connected       prometheus.Gauge
	connects        prometheus.Counter
	connectFailures prometheus.Counter
	disconnects     prometheus.Counter
	reconnects      prometheus.Counter
	received        prometheus.Counter
	decodeErrors    prometheus.Counter
	sent            prometheus.Counter
	dropped         prometheus.Counter
}

// New creates the collectors and registers them with the given registerer
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "Whether the client currently holds an open connection",
		}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Total number of established connections",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Total number of failed connection attempts",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of closed connections",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Total number of scheduled reconnection attempts",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of decoded inbound messages",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total number of dropped undecodable inbound frames",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages written to the connection",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of outbound messages dropped while disconnected",
		}),
	}

	reg.MustRegister(
		m.connected,
		m.connects,
		m.connectFailures,
		m.disconnects,
		m.reconnects,
		m.received,
		m.decodeErrors,
		m.sent,
		m.dropped,
	)

	return m
}

// RecordConnected records an established connection
func (m *Metrics) RecordConnected() {
	if m == nil {
		return
	}
	m.connects.Inc()
	m.connected.Set(1)
}

// RecordConnectFailure records a failed resolution or dial
func (m *Metrics) RecordConnectFailure() {
	if m == nil {
		return
	}
	m.connectFailures.Inc()
}

// RecordDisconnected records a closed connection
func (m *Metrics) RecordDisconnected() {
	if m == nil {
		return
	}
	m.disconnects.Inc()
	m.connected.Set(0)
}

// RecordReconnectScheduled records an armed reconnect timer
func (m *Metrics) RecordReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// RecordReceived records a decoded inbound message
func (m *Metrics) RecordReceived() {
	if m == nil {
		return
	}
	m.received.Inc()
}

// RecordDecodeError records a dropped inbound frame
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// RecordSent records a written outbound message
func (m *Metrics) RecordSent() {
	if m == nil {
		return
	}
	m.sent.Inc()
}

// RecordDropped records an outbound message dropped while disconnected
func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
