package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/marmos91/pseudofs/internal/logger"
	"github.com/marmos91/pseudofs/internal/protocol/frame"
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
)

// conn multiplexes one socket onto the channel fabric. The serve goroutine
// is the only reader and the only place channels are minted; pump goroutines
// move channel traffic back onto the socket.
type conn struct {
	sock      net.Conn
	root      vfs.Entry
	rootFlags vio.OpenFlags
	scope     *vfs.ExecutionScope

	idleTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu       sync.Mutex
	channels map[uint32]*channel.Channel
}

func (c *conn) serve(ctx context.Context) {
	defer c.teardown()

	// The read loop blocks in the socket, not on ctx; the watchdog turns
	// cancellation into a read error.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.sock.Close()
		case <-done:
		}
	}()

	logger.Debug("server: connection from %s", c.sock.RemoteAddr())
	c.openRoot()

	for {
		f, err := c.readFrame()
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				logger.Debug("server: read from %s: %v", c.sock.RemoteAddr(), err)
			}
			return
		}

		if err := c.handleFrame(f); err != nil {
			logger.Warn("server: dropping %s: %v", c.sock.RemoteAddr(), err)
			return
		}
	}
}

// openRoot wires the pre-opened channel onto the root directory.
func (c *conn) openRoot() {
	clientEnd, serverEnd := channel.Pipe()

	c.mu.Lock()
	c.channels[frame.RootChannelID] = clientEnd
	c.mu.Unlock()

	c.root.Open(c.scope, c.rootFlags, 0, path.Dot(), serverEnd)
	c.startPump(frame.RootChannelID, clientEnd)
}

// readFrame reads one frame, giving the idle timeout to the header and the
// read timeout to the rest.
func (c *conn) readFrame() (*frame.Frame, error) {
	if c.idleTimeout > 0 {
		_ = c.sock.SetReadDeadline(time.Now().Add(c.idleTimeout))
	}

	length, err := frame.ReadLength(c.sock)
	if err != nil {
		return nil, err
	}

	if c.readTimeout > 0 {
		_ = c.sock.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	return frame.ReadBody(c.sock, length)
}

// handleFrame routes one inbound frame. The returned error is a protocol
// violation and drops the whole socket.
func (c *conn) handleFrame(f *frame.Frame) error {
	switch f.Kind {
	case frame.KindClose:
		// A nil entry is fine here: close frames may cross.
		if ch := c.take(f.ChannelID); ch != nil {
			ch.Close()
		}
		return nil

	case frame.KindData:
		c.mu.Lock()
		ch, ok := c.channels[f.ChannelID]
		c.mu.Unlock()
		if !ok {
			return fmt.Errorf("data for unknown channel %d", f.ChannelID)
		}

		var handle *channel.Channel
		if f.NewID != 0 {
			serverEnd, err := c.mint(f.NewID)
			if err != nil {
				return err
			}
			handle = serverEnd
		}

		// A send failure means the serving side is gone; its pump is
		// already announcing the close, and Send has released the handle.
		_ = ch.Send(channel.Message{Data: f.Payload, Handle: handle})
		return nil

	default:
		return fmt.Errorf("unknown frame kind %d", f.Kind)
	}
}

// mint creates the channel pair for a client-chosen id, keeps one end pumped
// to the socket and returns the other for the serving side.
func (c *conn) mint(id uint32) (*channel.Channel, error) {
	if id <= frame.RootChannelID {
		return nil, fmt.Errorf("new channel id %d is reserved", id)
	}

	clientEnd, serverEnd := channel.Pipe()

	c.mu.Lock()
	if _, exists := c.channels[id]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("new channel id %d is already in use", id)
	}
	c.channels[id] = clientEnd
	c.mu.Unlock()

	c.startPump(id, clientEnd)
	return serverEnd, nil
}

func (c *conn) startPump(id uint32, ch *channel.Channel) {
	if err := c.scope.Spawn(c.pump(id, ch)); err != nil {
		ch.Close()
	}
}

// pump moves one channel's server-side traffic onto the socket until either
// side goes away.
func (c *conn) pump(id uint32, ch *channel.Channel) func(context.Context) {
	return func(ctx context.Context) {
		for {
			msg, err := ch.Recv(ctx)
			if err != nil {
				if errors.Is(err, channel.ErrPeerClosed) && c.forget(id, ch) {
					// The serving side hung up first; tell the client.
					_ = c.writeFrame(id, frame.KindClose, nil)
				}
				return
			}

			if msg.Handle != nil {
				// Handles only travel client to server.
				msg.Handle.Close()
			}

			if err := c.writeFrame(id, frame.KindData, msg.Data); err != nil {
				return
			}
		}
	}
}

func (c *conn) writeFrame(id uint32, kind byte, payload []byte) error {
	buf := frame.Encode(id, 0, kind, payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.sock.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// take removes and returns the end registered under id.
func (c *conn) take(id uint32) *channel.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.channels[id]
	delete(c.channels, id)
	return ch
}

// forget removes the registration only if it still belongs to ch; the client
// may have closed the id and reused it in the meantime.
func (c *conn) forget(id uint32, ch *channel.Channel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels[id] != ch {
		return false
	}
	delete(c.channels, id)
	return true
}

func (c *conn) teardown() {
	c.sock.Close()

	c.mu.Lock()
	channels := c.channels
	c.channels = nil
	c.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}

	c.scope.Shutdown()
	c.scope.Wait()
	logger.Debug("server: connection from %s closed", c.sock.RemoteAddr())
}
