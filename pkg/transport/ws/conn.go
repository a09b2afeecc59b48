// Package ws bridges WebSocket connections to reactor.Channel values, so a
// browser or service client can attach as a publisher, a subscriber, or
// both over one connection. It is a caller — an external collaborator in
// the core's own terms — and uses the reactor only through its public API.
package ws

import (
	"context"
	"sync"

	"github.com/fluxorio/reactor/pkg/reactor"
	"github.com/gorilla/websocket"
)

// Conn wraps a gorilla/websocket connection as a reactor.Channel: inbound
// JSON frames become publisher messages, outbound values written with Send
// become JSON frames delivered to the client. It is safe to attach the same
// Conn as both a publisher and a subscriber of a Reactor.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	inbound  chan any
	closedCh chan struct{}
	closeMu  sync.Once
}

// Wrap starts reading JSON frames from ws in the background and returns a
// Conn ready to attach to a Reactor.
func Wrap(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:       ws,
		inbound:  make(chan any, 64),
		closedCh: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer c.Close()
	for {
		var payload any
		if err := c.ws.ReadJSON(&payload); err != nil {
			return
		}
		select {
		case c.inbound <- payload:
		case <-c.closedCh:
			return
		}
	}
}

// Send writes msg to the client as a JSON frame.
func (c *Conn) Send(ctx context.Context, msg any) error {
	select {
	case <-c.closedCh:
		return reactor.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		c.Close()
		return reactor.ErrChannelClosed
	}
	return nil
}

// TrySend behaves like Send; WebSocket writes have no non-blocking mode, so
// this simply attempts the write with a background context.
func (c *Conn) TrySend(msg any) error {
	return c.Send(context.Background(), msg)
}

// Receive blocks until an inbound JSON frame arrives, the connection closes,
// or ctx is done.
func (c *Conn) Receive(ctx context.Context) (any, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return nil, reactor.ErrChannelClosed
		}
		return msg, nil
	case <-c.closedCh:
		return nil, reactor.ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryReceive returns a buffered inbound frame without blocking, if any.
func (c *Conn) TryReceive() (any, bool, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return nil, false, reactor.ErrChannelClosed
		}
		return msg, true, nil
	case <-c.closedCh:
		return nil, false, reactor.ErrChannelClosed
	default:
		return nil, false, nil
	}
}

// Close closes the underlying connection. Safe to call more than once and
// from multiple goroutines.
func (c *Conn) Close() {
	c.closeMu.Do(func() {
		close(c.closedCh)
		c.ws.Close()
	})
}

// Closed reports when the connection has closed, for a subscriber
// close-watcher to observe.
func (c *Conn) Closed() <-chan struct{} { return c.closedCh }

// IsClosed reports whether Close has run.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closedCh:
		return true
	default:
		return false
	}
}

// Capacity returns the inbound frame buffer size; outbound writes are
// unbuffered by this wrapper (backpressure is the TCP connection itself).
func (c *Conn) Capacity() int { return cap(c.inbound) }

var _ reactor.Channel = (*Conn)(nil)
