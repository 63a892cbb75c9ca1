package server

import (
	"log/slog"
	"time"

	"github.com/mickaelvieira/persistent-websocket/codec"
)

// OptionModifier defines a function type to modify server options
type OptionModifier func(*options)

// WithPingInterval sets the interval between pings to the peer
func WithPingInterval(d time.Duration) OptionModifier {
	return func(o *options) {
		o.pingInterval = d
	}
}

// WithPongWait sets the time allowed to read the next pong message from the peer
func WithPongWait(d time.Duration) OptionModifier {
	return func(o *options) {
		o.pongWait = d
	}
}

// WithReadLimit sets the maximum size in bytes for a message read from the peer
func WithReadLimit(limit int64) OptionModifier {
	return func(o *options) {
		o.readLimit = limit
	}
}

// WithCodec sets the wire format of the messages exchanged with the peer
func WithCodec(c codec.Codec) OptionModifier {
	return func(o *options) {
		o.codec = c
	}
}

// WithLogger allows passing a custom logger for the websocket server socket
// @see https://pkg.go.dev/log/slog
func WithLogger(l *slog.Logger) OptionModifier {
	return func(o *options) {
		o.logger = l
	}
}

// WithOnCloseCallback sets a callback function to be called when the socket is closed
func WithOnCloseCallback(cb func()) OptionModifier {
	return func(o *options) {
		o.onClose = cb
	}
}

var defaultOptions = options{
	writeWait:    1 * time.Second,
	pingInterval: 54 * time.Second,
	pongWait:     60 * time.Second,
	codec:        codec.JSON,
	logger:       slog.New(slog.DiscardHandler),
}

type options struct {
	// logger for logging socket events
	logger *slog.Logger

	// wire format of the messages
	codec codec.Codec

	// writeWait is the time allowed to write a message to the peer
	writeWait time.Duration

	// pingInterval is the interval between pings to the peer
	pingInterval time.Duration

	// pongWait is the time allowed to read the next pong message from the peer
	pongWait time.Duration

	// the maximum size in bytes for a message read from the peer
	readLimit int64

	// optional onClose callback when the client socket is closed
	onClose func()
}
