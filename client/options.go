package client

import (
	"log/slog"
	"time"

	"github.com/mickaelvieira/persistent-websocket/codec"
	"github.com/mickaelvieira/persistent-websocket/metrics"
	"github.com/mickaelvieira/persistent-websocket/transport"
)

// DefaultReconnectDelay is the fixed delay between a disconnection and the next attempt
const DefaultReconnectDelay = 3 * time.Second

type OptionModifier func(*options)

// WithReconnectDelay sets the delay between a disconnection and the next connection attempt.
// The delay is fixed, there is no backoff.
func WithReconnectDelay(d time.Duration) OptionModifier {
	return func(o *options) {
		o.reconnectDelay = d
	}
}

// WithLogger allows passing a custom logger for the websocket client
// @see https://pkg.go.dev/log/slog
func WithLogger(l *slog.Logger) OptionModifier {
	return func(o *options) {
		o.logger = l
	}
}

// WithCodec sets the wire format used to encode outbound and decode inbound messages
func WithCodec(c codec.Codec) OptionModifier {
	return func(o *options) {
		o.codec = c
	}
}

// WithDialer sets the transport used to open connections
func WithDialer(d transport.Dialer) OptionModifier {
	return func(o *options) {
		o.dialer = d
	}
}

// WithBufferCapacity sets the retention policy of the message buffer.
// Zero keeps every message, a positive value keeps the newest n messages
// and a negative value keeps none.
func WithBufferCapacity(n int) OptionModifier {
	return func(o *options) {
		o.bufferCapacity = n
	}
}

// WithMessageHandler registers a callback invoked with every decoded message, in arrival order
func WithMessageHandler(h func(any)) OptionModifier {
	return func(o *options) {
		o.onMessage = h
	}
}

// WithMetrics records the client's lifecycle events
func WithMetrics(m *metrics.Metrics) OptionModifier {
	return func(o *options) {
		o.metrics = m
	}
}

var defaultOptions = options{
	reconnectDelay: DefaultReconnectDelay,
	codec:          codec.JSON,
	logger:         slog.New(slog.DiscardHandler),
}

type options struct {
	// logger for logging client events
	logger *slog.Logger

	// transport used to open connections, defaults to gorilla/websocket
	dialer transport.Dialer

	// wire format of the messages
	codec codec.Codec

	// optional metrics collectors
	metrics *metrics.Metrics

	// optional consumer of decoded messages
	onMessage func(any)

	// reconnectDelay is the delay between a disconnection and the next attempt
	reconnectDelay time.Duration

	// retention policy of the message buffer
	bufferCapacity int
}
