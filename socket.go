package websocket

import "errors"

// ErrNotConnected is returned when a message is sent without a live connection
var ErrNotConnected = errors.New("websocket client not connected")

// Socket is the behaviour shared by both ends of a connection
type Socket interface {
	// Unique identifier of the websocket peer
	Id() string

	// Send encodes the value and sends it to the remote peer
	Send(any)

	// Close the websocket connection
	Close() error
}
