// Package client dials a server and splices its channel fabric into the
// local process. The socket side mirrors the server bridge: one frame per
// message, data frames addressed by channel id, close frames in both
// directions. On the process side every spliced channel is an ordinary
// channel end, so a connection served across the wire looks exactly like one
// served in process.
//
// Handles attached to outbound messages are minted onto the socket as new
// channel ids, which is how Open and Clone travel: the request rides the
// parent channel, the attached end starts pumping under the new id, and the
// server's first event arrives on it.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/pseudofs/internal/logger"
	"github.com/marmos91/pseudofs/internal/protocol/frame"
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
)

// ErrClosed is returned by operations on a client that has been torn down.
var ErrClosed = errors.New("client: closed")

// Client is one dialed connection. The root channel is live as soon as Dial
// returns; further channels come from sending handles, usually via Open.
type Client struct {
	sock net.Conn
	root *channel.Channel

	ctx    context.Context
	cancel context.CancelFunc

	xid atomic.Uint32
	wg  sync.WaitGroup

	writeMu sync.Mutex

	mu       sync.Mutex
	channels map[uint32]*channel.Channel
	nextID   uint32

	done     chan struct{}
	downOnce sync.Once
}

// Dial connects to a server and brings up the root channel.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	sock, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		sock:     sock,
		ctx:      ctx,
		cancel:   cancel,
		channels: make(map[uint32]*channel.Channel),
		nextID:   frame.RootChannelID + 1,
		done:     make(chan struct{}),
	}

	userEnd, bridgeEnd := channel.Pipe()
	c.root = userEnd
	c.channels[frame.RootChannelID] = bridgeEnd
	c.startPump(frame.RootChannelID, bridgeEnd)

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// Root returns the channel speaking to the server's root directory.
func (c *Client) Root() *channel.Channel {
	return c.root
}

// Open asks the server's root to open raw and serve it on serverEnd's peer.
// The caller keeps the other end of the pair and reads the outcome there; on
// error serverEnd is released.
func (c *Client) Open(flags vio.OpenFlags, mode uint32, raw string, serverEnd *channel.Channel) error {
	body, err := (&vio.OpenRequest{Flags: flags, Mode: mode, Path: raw}).Encode()
	if err != nil {
		serverEnd.Close()
		return fmt.Errorf("encode open: %w", err)
	}

	data, err := (&vio.Message{XID: c.xid.Add(1), Op: vio.OpOpen, Body: body}).Encode()
	if err != nil {
		serverEnd.Close()
		return fmt.Errorf("encode open: %w", err)
	}

	if err := c.root.Send(channel.Message{Data: data, Handle: serverEnd}); err != nil {
		serverEnd.Close()
		return fmt.Errorf("open %q: %w", raw, err)
	}
	return nil
}

// Close tears the connection down and waits for the pumps to drain. Spliced
// channel ends observe it as a peer close.
func (c *Client) Close() error {
	c.teardown()
	c.wg.Wait()
	return nil
}

// Closed reports whether the client has been torn down, by Close or by the
// transport failing underneath it.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed when the client goes down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer c.teardown()

	for {
		f, err := frame.Read(c.sock)
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				logger.Debug("client: read from %s: %v", c.sock.RemoteAddr(), err)
			}
			return
		}

		if err := c.handleFrame(f); err != nil {
			logger.Warn("client: dropping %s: %v", c.sock.RemoteAddr(), err)
			return
		}
	}
}

func (c *Client) handleFrame(f *frame.Frame) error {
	switch f.Kind {
	case frame.KindClose:
		if ch := c.take(f.ChannelID); ch != nil {
			ch.Close()
		}
		return nil

	case frame.KindData:
		c.mu.Lock()
		ch := c.channels[f.ChannelID]
		c.mu.Unlock()

		// Replies may still be in flight for a channel this side already
		// closed; they are dropped, not protocol violations.
		if ch == nil {
			return nil
		}

		_ = ch.Send(channel.Message{Data: f.Payload})
		return nil

	default:
		return fmt.Errorf("unknown frame kind %d", f.Kind)
	}
}

func (c *Client) startPump(id uint32, ch *channel.Channel) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pump(id, ch)
	}()
}

// pump moves one spliced channel's outbound traffic onto the socket until
// either side goes away.
func (c *Client) pump(id uint32, ch *channel.Channel) {
	for {
		msg, err := ch.Recv(c.ctx)
		if err != nil {
			if errors.Is(err, channel.ErrPeerClosed) && c.forget(id, ch) {
				// The local holder hung up first; tell the server.
				_ = c.writeFrame(id, 0, frame.KindClose, nil)
			}
			return
		}

		var newID uint32
		if msg.Handle != nil {
			newID, err = c.register(msg.Handle)
			if err != nil {
				msg.Handle.Close()
				return
			}
		}

		if err := c.writeFrame(id, newID, frame.KindData, msg.Data); err != nil {
			return
		}

		// The carrying frame is on the wire, so the new channel's frames
		// cannot overtake the mint.
		if msg.Handle != nil {
			c.startPump(newID, msg.Handle)
		}
	}
}

// register claims the next free socket id for a handed-over channel end.
func (c *Client) register(ch *channel.Channel) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channels == nil {
		return 0, ErrClosed
	}

	for {
		id := c.nextID
		c.nextID++
		if c.nextID <= frame.RootChannelID {
			// Wrapped; skip the reserved ids.
			c.nextID = frame.RootChannelID + 1
		}
		if _, taken := c.channels[id]; !taken {
			c.channels[id] = ch
			return id, nil
		}
	}
}

func (c *Client) writeFrame(id, newID uint32, kind byte, payload []byte) error {
	buf := frame.Encode(id, newID, kind, payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.sock.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// take removes and returns the end registered under id.
func (c *Client) take(id uint32) *channel.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.channels[id]
	delete(c.channels, id)
	return ch
}

// forget removes the registration only if it still belongs to ch.
func (c *Client) forget(id uint32, ch *channel.Channel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels[id] != ch {
		return false
	}
	delete(c.channels, id)
	return true
}

func (c *Client) teardown() {
	c.downOnce.Do(func() {
		c.cancel()
		c.sock.Close()

		c.mu.Lock()
		channels := c.channels
		c.channels = nil
		c.mu.Unlock()

		// Closing the bridge-held ends surfaces as a peer close on every
		// spliced channel, the root included.
		for _, ch := range channels {
			ch.Close()
		}

		close(c.done)
	})
}
