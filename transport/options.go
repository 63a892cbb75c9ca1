package transport

import (
	"log/slog"
	"net/http"
	"time"

	gows "github.com/gorilla/websocket"
)

type DialerModifier func(*gows.Dialer)
type OptionModifier func(*options)

// WithPingInterval sets the interval between pings to the peer
func WithPingInterval(d time.Duration) OptionModifier {
	return func(o *options) {
		o.pingInterval = d
	}
}

// WithPongWait sets the time allowed for the pong to arrive after a ping.
// The connection is considered dead when no valid pong is read within
// the ping interval plus this wait.
func WithPongWait(d time.Duration) OptionModifier {
	return func(o *options) {
		o.pongWait = d
	}
}

// WithWriteWait sets the time allowed to write a frame to the peer
func WithWriteWait(d time.Duration) OptionModifier {
	return func(o *options) {
		o.writeWait = d
	}
}

// WithReadLimit sets the maximum size in bytes of a message read from the peer
func WithReadLimit(limit int64) OptionModifier {
	return func(o *options) {
		o.readLimit = limit
	}
}

// WithHeaders sets custom HTTP headers for the websocket handshake
func WithHeaders(h http.Header) OptionModifier {
	return func(o *options) {
		o.headers = h
	}
}

// WithLogger allows passing a custom logger for the transport
// @see https://pkg.go.dev/log/slog
func WithLogger(l *slog.Logger) OptionModifier {
	return func(o *options) {
		o.logger = l
	}
}

// WithDialerModifier allows customizing the underlying websocket dialer before connecting
// @see https://github.com/gorilla/websocket/blob/main/client.go#L53
func WithDialerModifier(m DialerModifier) OptionModifier {
	return func(o *options) {
		o.dialerModifier = m
	}
}

var defaultOptions = options{
	writeWait:    1 * time.Second,
	pingInterval: 60 * time.Second,
	pongWait:     10 * time.Second,
	logger:       slog.New(slog.DiscardHandler),
}

type options struct {
	// logger for logging transport events
	logger *slog.Logger

	// optional HTTP headers to include in the connection request
	headers http.Header

	// optional modifier to customize the dialer before connecting
	dialerModifier DialerModifier

	// writeWait is the time allowed to write a message to the peer
	writeWait time.Duration

	// pingInterval is the interval between pings to the peer, zero disables pings
	pingInterval time.Duration

	// pongWait is the time allowed for the pong after a ping
	pongWait time.Duration

	// the maximum size in bytes for a message read from the peer
	readLimit int64
}
