package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gows "github.com/gorilla/websocket"
	"github.com/mickaelvieira/persistent-websocket"
	"github.com/mickaelvieira/persistent-websocket/internal"
	"github.com/mickaelvieira/persistent-websocket/metrics"
	"github.com/mickaelvieira/persistent-websocket/resolver"
	"github.com/mickaelvieira/persistent-websocket/transport"
)

type Client interface {
	websocket.Socket

	// Start begins the connect sequence, it does nothing when already started
	Start(ctx context.Context)

	// Stop cancels any pending attempt and closes the live connection
	Stop()

	// TrySend is like Send but reports why a message could not be sent
	TrySend(any) error

	// State returns the current connection state
	State() State

	// IsConnected returns true if the websocket connection is established
	IsConnected() bool

	// Messages returns the decoded inbound messages in arrival order
	Messages() []any

	// Channel to receive state changes, slow readers miss intermediate states
	Statuses() <-chan State
}

// NewClientSocket provides a new websocket client resolving its endpoint with
// the given resolver. Nothing happens until Start is called.
// The client will automatically attempt to reconnect on disconnections.
func NewClientSocket(r resolver.Resolver, opts ...OptionModifier) Client {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &client{
		id:       internal.GenId(),
		resolver: r,
		options:  &o,
		logger:   o.logger,
		metrics:  o.metrics,
		dialer:   o.dialer,
		state:    Disconnected,
		statuses: make(chan State, 16),
		buffer:   newBuffer(o.bufferCapacity),
	}

	if c.dialer == nil {
		c.dialer = transport.NewDialer(transport.WithLogger(o.logger))
	}

	return c
}

type client struct {
	// internal unique client
	id string

	// resolves the endpoint before every attempt
	resolver resolver.Resolver

	// dialer is used to create new websocket connections
	dialer transport.Dialer

	// logger for logging client events
	logger *slog.Logger

	// optional metrics collectors
	metrics *metrics.Metrics

	// client's options
	options *options

	// channel used to broadcast state changes
	statuses chan State

	// mutex to protect concurrent access to the client
	lock sync.RWMutex

	// lifecycle context, nil when the client is stopped
	ctx    context.Context
	cancel context.CancelFunc

	// incremented for each attempt and on stop, callbacks
	// carrying an older generation are ignored
	generation uint64

	// the live websocket connection
	conn transport.Conn

	// current client state
	state State

	// pending reconnect attempt
	timer *time.Timer

	// decoded inbound messages
	buffer *buffer
}

// Id returns the unique identifier of the websocket client
func (c *client) Id() string {
	return c.id
}

func (c *client) Start(ctx context.Context) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.ctx != nil {
		c.logger.Debug("client already started")
		return
	}

	lifecycle, cancel := context.WithCancel(ctx)
	c.ctx = lifecycle
	c.cancel = cancel

	// the owning context ending tears the client down
	context.AfterFunc(lifecycle, func() {
		c.teardown(lifecycle)
	})

	c.connect()
}

// connect starts a new attempt, the lock must be held
func (c *client) connect() {
	c.generation++
	c.setState(Connecting)

	go c.dial(c.ctx, c.generation)
}

func (c *client) dial(ctx context.Context, gen uint64) {
	u, err := c.resolver.Resolve(ctx)
	if err != nil {
		c.failed(gen, fmt.Errorf("resolve endpoint: %w", err))
		return
	}

	c.logger.Info("attempting to connect", "url", u)

	conn, err := c.dialer.Dial(ctx, u)
	if err != nil {
		c.failed(gen, fmt.Errorf("dial %s: %w", u, err))
		return
	}

	c.open(gen, conn, u)
}

// failed handles an attempt that never produced a connection
// the same way a closed connection is handled
func (c *client) failed(gen uint64, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if gen != c.generation {
		c.logger.Debug("abandoned connection attempt", "error", err)
		return
	}

	c.logger.Error("connection failure", "error", err)
	c.metrics.RecordConnectFailure()

	c.setState(Disconnected)
	c.scheduleReconnect()
}

func (c *client) open(gen uint64, conn transport.Conn, u string) {
	c.lock.Lock()

	if gen != c.generation {
		c.lock.Unlock()

		c.logger.Debug("discarding connection opened after stop", "url", u)
		if err := conn.Close(); err != nil {
			c.logger.Debug("error closing discarded connection", "error", err)
		}
		return
	}

	c.conn = conn
	c.setState(Connected)
	c.metrics.RecordConnected()
	c.lock.Unlock()

	c.logger.Debug("connection established", "url", u)

	go c.read(gen, conn)
}

func (c *client) read(gen uint64, conn transport.Conn) {
	for {
		m, err := conn.ReadMessage()
		if err != nil {
			if err := conn.Close(); err != nil {
				c.logger.Debug("error releasing connection", "error", err)
			}
			c.closed(gen, err)
			return
		}

		c.receive(gen, m)
	}
}

func (c *client) receive(gen uint64, m transport.Message) {
	v, err := c.options.codec.Unmarshal(m)
	if err != nil {
		c.logger.Error("error decoding message", "type", m.Type.String(), "length", len(m.Data), "error", err)
		c.metrics.RecordDecodeError()
		return
	}

	c.lock.Lock()
	if gen != c.generation {
		c.lock.Unlock()
		return
	}
	c.buffer.append(v)
	c.lock.Unlock()

	c.metrics.RecordReceived()

	if c.options.onMessage != nil {
		c.options.onMessage(v)
	}
}

func (c *client) closed(gen uint64, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if gen != c.generation {
		return
	}

	if gows.IsUnexpectedCloseError(err, gows.CloseNormalClosure, gows.CloseGoingAway) {
		c.logger.Warn("connection lost", "error", err)
	} else {
		c.logger.Info("connection closed", "error", err)
	}

	c.conn = nil
	c.setState(Disconnected)
	c.metrics.RecordDisconnected()

	c.scheduleReconnect()
}

// scheduleReconnect arms the single reconnect timer, the lock must be held
func (c *client) scheduleReconnect() {
	if c.timer != nil {
		c.timer.Stop()
	}

	gen := c.generation
	delay := c.options.reconnectDelay

	c.logger.Info("scheduling reconnect", "delay", delay)
	c.metrics.RecordReconnectScheduled()

	c.timer = time.AfterFunc(delay, func() {
		c.lock.Lock()
		defer c.lock.Unlock()

		if gen != c.generation {
			return
		}

		c.timer = nil
		c.connect()
	})
}

// setState records and broadcasts a state change, the lock must be held
func (c *client) setState(s State) {
	p := c.state
	c.state = s

	if s == p {
		return
	}

	c.logger.Debug("state changed", "from", p.String(), "to", s.String())

	select {
	case c.statuses <- s:
	default:
	}
}

func (c *client) Stop() {
	if err := c.stop(); err != nil {
		c.logger.Error("error closing connection", "error", err)
	}
}

// Close stops the client, it returns the error of closing the live connection if any
func (c *client) Close() error {
	return c.stop()
}

func (c *client) stop() error {
	c.lock.Lock()
	return c.release()
}

// teardown stops the client only if the lifecycle is still the current one
func (c *client) teardown(lifecycle context.Context) {
	c.lock.Lock()
	if c.ctx != lifecycle {
		c.lock.Unlock()
		return
	}

	if err := c.release(); err != nil {
		c.logger.Error("error closing connection", "error", err)
	}
}

// release must be called with the lock held, it unlocks it
func (c *client) release() error {
	if c.ctx == nil && c.conn == nil && c.timer == nil {
		c.lock.Unlock()
		return nil
	}

	c.logger.Info("stopping client")

	// invalidates in-flight attempts and pending callbacks
	c.generation++

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.ctx = nil
	c.cancel = nil

	conn := c.conn
	c.conn = nil

	wasConnected := c.state == Connected
	c.setState(Disconnected)
	c.lock.Unlock()

	if conn == nil {
		return nil
	}

	if wasConnected {
		c.metrics.RecordDisconnected()
	}

	return conn.Close()
}

// Send encodes and sends a message when connected.
// Messages are dropped when the client is not connected.
func (c *client) Send(v any) {
	err := c.TrySend(v)
	switch {
	case err == nil:
	case errors.Is(err, websocket.ErrNotConnected):
		c.logger.Warn("websocket not connected, message dropped")
	default:
		c.logger.Error("send failure", "error", err)
	}
}

func (c *client) TrySend(v any) error {
	c.lock.RLock()
	conn := c.conn
	connected := c.state == Connected
	c.lock.RUnlock()

	if conn == nil || !connected {
		c.metrics.RecordDropped()
		return websocket.ErrNotConnected
	}

	m, err := c.options.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.logger.Debug("writing message", "type", m.Type.String(), "length", len(m.Data))

	if err := conn.WriteMessage(m); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	c.metrics.RecordSent()

	return nil
}

func (c *client) State() State {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.state
}

// IsConnected returns true if the websocket connection is established
func (c *client) IsConnected() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.conn != nil && c.state == Connected
}

// Messages returns a copy of the message buffer
func (c *client) Messages() []any {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.buffer.snapshot()
}

// Statuses returns a channel to receive state changes.
// The channel is never closed.
func (c *client) Statuses() <-chan State {
	return c.statuses
}
