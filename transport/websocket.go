package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gows "github.com/gorilla/websocket"
	"github.com/mickaelvieira/persistent-websocket/internal"
)

// NewDialer provides a Dialer backed by gorilla/websocket.
// Every connection it opens pings the peer regularly and expects
// the pong payload to echo the connection id.
func NewDialer(opts ...OptionModifier) Dialer {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	d := &websocketDialer{
		options: &o,
		logger:  o.logger,
		dialer: &gows.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
		},
	}

	if o.dialerModifier != nil {
		o.dialerModifier(d.dialer)
	}

	return d
}

type websocketDialer struct {
	// dialer is used to create new websocket connections
	dialer *gows.Dialer

	// logger for logging transport events
	logger *slog.Logger

	// transport's options
	options *options
}

func (d *websocketDialer) Dial(ctx context.Context, u string) (Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, u, d.options.headers)
	if err != nil {
		return nil, err
	}

	c := &websocketConn{
		id:      internal.GenId(),
		conn:    conn,
		logger:  d.logger,
		options: d.options,
		done:    make(chan struct{}),
	}

	conn.SetReadLimit(d.options.readLimit)

	conn.SetPongHandler(func(appData string) error {
		if appData != c.id {
			c.logger.Warn("invalid pong payload", "id", c.id)
			c.closeWithCode(gows.CloseInvalidFramePayloadData, "invalid pong payload")
			return nil
		}
		c.extendReadDeadline()
		return nil
	})

	c.extendReadDeadline()
	if d.options.pingInterval > 0 {
		go c.ping()
	}

	return c, nil
}

type websocketConn struct {
	// unique identifier, also used as the ping payload
	id string

	// underlying websocket connection
	conn *gows.Conn

	// logger for logging transport events
	logger *slog.Logger

	// transport's options
	options *options

	// mutex serializing writes, gorilla supports a single concurrent writer
	lock sync.Mutex

	// closed when the connection is closed locally
	done chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (c *websocketConn) ReadMessage() (Message, error) {
	for {
		t, d, err := c.conn.ReadMessage()
		if err != nil {
			return Message{}, err
		}

		switch t {
		case gows.TextMessage, gows.BinaryMessage:
			return Message{Type: MessageType(t), Data: d}, nil
		}
	}
}

func (c *websocketConn) WriteMessage(m Message) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.options.writeWait)); err != nil {
		return err
	}

	return c.conn.WriteMessage(int(m.Type), m.Data)
}

// Close sends a normal closure frame and releases the connection.
// It does not wait for the peer's acknowledgment, the pending read
// returns as soon as the underlying network connection is closed.
func (c *websocketConn) Close() error {
	return c.closeWithCode(gows.CloseNormalClosure, "")
}

func (c *websocketConn) closeWithCode(code int, reason string) error {
	c.closeOnce.Do(func() {
		close(c.done)

		m := gows.FormatCloseMessage(code, reason)
		t := time.Now().Add(c.options.writeWait)

		// https://datatracker.ietf.org/doc/html/rfc6455#section-7.1.2
		if err := c.conn.WriteControl(gows.CloseMessage, m, t); err != nil {
			c.logger.Debug("failed to send close frame", "error", err)
		}

		c.closeErr = c.conn.Close()
	})

	return c.closeErr
}

// extendReadDeadline gives the peer until the next ping plus the pong wait to answer,
// a half-open connection then fails the pending read
func (c *websocketConn) extendReadDeadline() {
	if c.options.pingInterval <= 0 {
		return
	}

	t := time.Now().Add(c.options.pingInterval + c.options.pongWait)
	if err := c.conn.SetReadDeadline(t); err != nil {
		c.logger.Error("deadline error", "error", err)
	}
}

// https://developer.mozilla.org/en-US/docs/Web/API/WebSockets_API/Writing_WebSocket_servers#pings_and_pongs_the_heartbeat_of_websockets
func (c *websocketConn) ping() {
	ticker := time.NewTicker(c.options.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			d := []byte(c.id)
			t := time.Now().Add(c.options.writeWait)

			c.logger.Debug("pinging server", "data", c.id, "interval", c.options.pingInterval)

			if err := c.conn.WriteControl(gows.PingMessage, d, t); err != nil {
				c.logger.Error("ping error", "error", err)

				// the pending read fails and the owner sees the connection as closed
				if err := c.conn.Close(); err != nil {
					c.logger.Debug("close after ping error", "error", err)
				}
				return
			}
		}
	}
}
