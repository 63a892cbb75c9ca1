package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mickaelvieira/persistent-websocket/transport"
)

var errFakeClosed = errors.New("fake connection closed")

type fakeConn struct {
	url     string
	inbound chan transport.Message
	closed  chan struct{}
	once    sync.Once

	lock    sync.Mutex
	written []transport.Message
}

func newFakeConn(url string) *fakeConn {
	return &fakeConn{
		url:     url,
		inbound: make(chan transport.Message),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (transport.Message, error) {
	select {
	case m := <-c.inbound:
		return m, nil
	case <-c.closed:
		return transport.Message{}, errFakeClosed
	}
}

func (c *fakeConn) WriteMessage(m transport.Message) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}

	c.written = append(c.written, m)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) writes() []transport.Message {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]transport.Message(nil), c.written...)
}

// push delivers a text frame, it blocks until the client read it
func (c *fakeConn) push(t *testing.T, data string) {
	t.Helper()

	select {
	case c.inbound <- transport.Message{Type: transport.TextMessage, Data: []byte(data)}:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout delivering frame")
	}
}

// fakeDialer records every attempt and hands out fake connections
type fakeDialer struct {
	lock  sync.Mutex
	conns []*fakeConn
	times []time.Time
	dials chan *fakeConn

	// optional hook running before the connection is returned
	before func(ctx context.Context, url string) error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dials: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	if d.before != nil {
		if err := d.before(ctx, url); err != nil {
			return nil, err
		}
	}

	c := newFakeConn(url)

	d.lock.Lock()
	d.conns = append(d.conns, c)
	d.times = append(d.times, time.Now())
	d.lock.Unlock()

	d.dials <- c

	return c, nil
}

func (d *fakeDialer) count() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return len(d.conns)
}

func (d *fakeDialer) dialedAt(i int) time.Time {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.times[i]
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()

	select {
	case c := <-d.dials:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for dial")
		return nil
	}
}

// eventually polls the condition until it holds or the timeout expires
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
