// Package transport defines the socket primitive used by the persistent client
// and provides its gorilla/websocket implementation.
package transport

import (
	"context"

	gows "github.com/gorilla/websocket"
)

// MessageType is the websocket data frame opcode
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
type MessageType int

const (
	TextMessage   MessageType = gows.TextMessage
	BinaryMessage MessageType = gows.BinaryMessage
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

// Message is a single data frame exchanged with the remote peer
type Message struct {
	Type MessageType
	Data []byte
}

// Conn is an established bidirectional connection.
//
// ReadMessage blocks until a data frame arrives. It returns an error once the
// connection is gone, and keeps returning errors after that. WriteMessage may
// be called concurrently with ReadMessage. Close may be called from any
// goroutine, more than once.
type Conn interface {
	ReadMessage() (Message, error)
	WriteMessage(Message) error
	Close() error
}

// Dialer opens connections to a websocket endpoint
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}
