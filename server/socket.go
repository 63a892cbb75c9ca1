package server

import (
	"log/slog"
	"sync"
	"time"

	gows "github.com/gorilla/websocket"
	"github.com/mickaelvieira/persistent-websocket"
	"github.com/mickaelvieira/persistent-websocket/internal"
	"github.com/mickaelvieira/persistent-websocket/transport"
)

type Server interface {
	websocket.Socket

	// Channel to receive decoded messages from the peer
	ReadMessages() <-chan any

	// SendMessage writes a frame as is, bypassing the codec
	SendMessage(transport.Message)

	// Channel to receive close notifications
	Wait() <-chan struct{}
}

// NewServerSocket wraps an upgraded connection. Reading and writing happen
// on their own goroutines until the peer goes away or Close is called.
func NewServerSocket(conn *gows.Conn, opts ...OptionModifier) Server {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &server{
		id:       internal.GenId(),
		conn:     conn,
		wait:     make(chan struct{}),
		outbound: make(chan transport.Message),
		messages: make(chan any, 16),
		options:  &o,
		logger:   o.logger,
	}

	go s.read()
	go s.write()

	return s
}

type server struct {
	// unique peer identifier
	id string

	// logger for logging socket events
	logger *slog.Logger

	// socket's options
	options *options

	// mutex to protect cleanup
	lock sync.Mutex

	// underlying websocket connection
	conn *gows.Conn

	// channel to notify close events
	wait chan struct{}

	// outgoing messages to the peer
	outbound chan transport.Message

	// incoming decoded messages from the peer
	messages chan any
}

// Id returns the unique identifier of the websocket peer
func (s *server) Id() string {
	return s.id
}

// Wait returns a channel to receive close notifications
func (s *server) Wait() <-chan struct{} {
	return s.wait
}

// ReadMessages returns a channel to receive decoded messages from the peer
func (s *server) ReadMessages() <-chan any {
	return s.messages
}

// Send encodes a value and sends it to the peer
func (s *server) Send(v any) {
	m, err := s.options.codec.Marshal(v)
	if err != nil {
		s.logger.Error("encode error", "error", err)
		return
	}

	s.SendMessage(m)
}

// SendMessage sends a frame to the peer, it is dropped once the socket is closed
func (s *server) SendMessage(m transport.Message) {
	select {
	case s.outbound <- m:
	case <-s.wait:
		s.logger.Debug("socket closed, message dropped", "id", s.id)
	}
}

func (s *server) read() {
	defer func() {
		s.cleanup()
	}()

	s.conn.SetReadLimit(s.options.readLimit)
	if err := s.conn.SetReadDeadline(time.Now().Add(s.options.pongWait)); err != nil {
		s.logger.Error("deadline error", "error", err)
	}
	s.conn.SetPongHandler(func(string) error {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.options.pongWait)); err != nil {
			s.logger.Error("deadline error", "error", err)
		}
		return nil
	})

	for {
		t, d, err := s.conn.ReadMessage()
		if err != nil {
			// when the connection is closed, we'll receive a CloseError
			// we don't really need to log as errors since they are more informative
			if gows.IsUnexpectedCloseError(err, gows.CloseNormalClosure, gows.CloseGoingAway) {
				s.logger.Error("read error", "error", err)
			}
			break
		}

		v, err := s.options.codec.Unmarshal(transport.Message{Type: transport.MessageType(t), Data: d})
		if err != nil {
			s.logger.Error("decode error", "error", err)
			continue
		}

		select {
		case s.messages <- v:
		default:
			s.logger.Warn("slow consumer, message dropped", "id", s.id)
		}
	}
}

func (s *server) write() {
	ticker := time.NewTicker(s.options.pingInterval)
	defer func() {
		ticker.Stop()
	}()

	for {
		select {
		case <-s.wait:
			return

		case m := <-s.outbound:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.options.writeWait)); err != nil {
				s.logger.Error("deadline error", "error", err)
			}
			if err := s.conn.WriteMessage(int(m.Type), m.Data); err != nil {
				s.logger.Error("write error", "error", err)
				return
			}

		case <-ticker.C:
			d := []byte(s.id)
			t := time.Now().Add(s.options.writeWait)

			s.logger.Debug("pinging client", "data", s.id, "interval", s.options.pingInterval)

			if err := s.conn.WriteControl(gows.PingMessage, d, t); err != nil {
				s.logger.Error("ping error", "error", err)
				return
			}
		}
	}
}

// cleanup closes all channels and cleans up resources
func (s *server) cleanup() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.logger.Debug("cleaning up", "id", s.id)

	if err := s.conn.Close(); err != nil {
		s.logger.Debug("closing error during cleanup", "error", err)
	}

	// informs consumers that we will no longer send messages
	close(s.wait)
	close(s.messages)

	if s.options.onClose != nil {
		s.options.onClose()
	}
}

// Close the websocket connection gracefully, the peer acknowledges
// the close frame and the read loop releases the socket
func (s *server) Close() error {
	m := gows.FormatCloseMessage(gows.CloseNormalClosure, "")
	t := time.Now().Add(s.options.writeWait)

	s.logger.Info("close connection", "id", s.id)

	// Initiate graceful close
	if err := s.conn.WriteControl(gows.CloseMessage, m, t); err != nil {
		s.logger.Error("close frame failed", "error", err)
		return err
	}

	return nil
}
