// Package websocket holds the pieces shared by the client and server sockets.
//
// The client package maintains a best-effort persistent connection: it resolves
// its endpoint before every attempt, buffers decoded inbound messages and
// reconnects after a fixed delay whenever the connection drops.
package websocket
