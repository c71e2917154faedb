// Package channel provides the bidirectional in-process message pipe that
// connects clients to node connections. A pipe is created as a pair of ends;
// each end sends into the other's queue. Messages carry a byte payload plus
// an optional attached channel end, which is how Open, Clone and Watch hand
// a new server end across without a transport in between.
//
// Queues are unbounded: sending never blocks, mirroring the semantics node
// connections are written against. Backpressure, where it matters, lives at
// the transport layer.
package channel

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by operations on an end the caller has closed.
	ErrClosed = errors.New("channel: closed")

	// ErrPeerClosed is returned once the peer end is closed and the queue
	// is drained.
	ErrPeerClosed = errors.New("channel: peer closed")
)

// Message is one unit of transfer: a payload and at most one attached
// channel end.
type Message struct {
	Data   []byte
	Handle *Channel
}

// Channel is one end of a pipe.
type Channel struct {
	mu     sync.Mutex
	queue  []Message
	notify chan struct{}
	closed bool
	done   chan struct{}

	peer *Channel
}

// Pipe creates a connected pair of channel ends.
func Pipe() (*Channel, *Channel) {
	a := &Channel{notify: make(chan struct{}, 1), done: make(chan struct{})}
	b := &Channel{notify: make(chan struct{}, 1), done: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

// Send queues a message for the peer. It never blocks.
func (c *Channel) Send(msg Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	peer := c.peer
	peer.mu.Lock()
	if peer.closed {
		peer.mu.Unlock()
		// The message will never be read; release anything riding on it.
		if msg.Handle != nil {
			msg.Handle.Close()
		}
		return ErrPeerClosed
	}
	peer.queue = append(peer.queue, msg)
	peer.mu.Unlock()

	select {
	case peer.notify <- struct{}{}:
	default:
	}
	return nil
}

// Recv returns the next queued message. It blocks until a message arrives,
// the context is done, or the pipe is torn down. Messages queued before the
// peer closed are still delivered; ErrPeerClosed follows once the queue is
// drained.
func (c *Channel) Recv(ctx context.Context) (Message, error) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			msg := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return msg, nil
		}
		if c.closed {
			c.mu.Unlock()
			return Message{}, ErrClosed
		}
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-c.done:
			return Message{}, ErrClosed
		case <-c.peer.done:
			// Drain check: a message may have raced in before the close.
			c.mu.Lock()
			if len(c.queue) > 0 {
				msg := c.queue[0]
				c.queue = c.queue[1:]
				c.mu.Unlock()
				return msg, nil
			}
			c.mu.Unlock()
			return Message{}, ErrPeerClosed
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Close tears down this end. Unread messages are discarded and any channel
// ends attached to them are closed in turn, so their peers observe the
// teardown instead of waiting forever. Close is idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	dropped := c.queue
	c.queue = nil
	c.mu.Unlock()

	close(c.done)

	for _, msg := range dropped {
		if msg.Handle != nil {
			msg.Handle.Close()
		}
	}
	return nil
}

// Done is closed when this end is closed. Useful in select loops that pump
// a channel into another transport.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// PeerDone is closed when the peer end is closed.
func (c *Channel) PeerDone() <-chan struct{} {
	return c.peer.done
}

// Closed reports whether this end has been closed.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
