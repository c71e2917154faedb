package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/pseudofs/internal/logger"
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/token"
)

// Options configures a Server. Zero values mean no limit and no timeout.
type Options struct {
	// Addr is the TCP listen address, for example ":9470".
	Addr string

	// MaxConnections caps concurrently served sockets; excess connections
	// are accepted and immediately closed.
	MaxConnections int

	// IdleTimeout bounds the wait for the next frame header; ReadTimeout
	// bounds reading the rest of a frame once its header arrived.
	IdleTimeout time.Duration
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds how long Serve waits for sockets to drain
	// after its context is cancelled.
	ShutdownTimeout time.Duration

	// Announce registers the listener over mDNS while serving.
	Announce     bool
	AnnounceName string
}

// Server accepts TCP connections and serves the given root entry to each of
// them with the configured rights.
type Server struct {
	opts      Options
	root      vfs.Entry
	rootFlags vio.OpenFlags

	wg sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	active   int
}

func New(opts Options, root vfs.Entry, rootFlags vio.OpenFlags) *Server {
	return &Server{
		opts:      opts,
		root:      root,
		rootFlags: rootFlags,
	}
}

// Serve listens and accepts until ctx is cancelled, then waits for live
// sockets to drain.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	logger.Info("server: listening on %s", listener.Addr())

	if s.opts.Announce {
		stop, err := announce(s.opts.AnnounceName, listener.Addr())
		if err != nil {
			logger.Warn("server: announcement failed: %v", err)
		} else {
			defer stop()
		}
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			// Both Stop and the context goroutine close the listener.
			if errors.Is(err, net.ErrClosed) {
				return s.drain()
			}
			logger.Debug("server: accept: %v", err)
			continue
		}

		if !s.admit() {
			logger.Warn("server: connection limit reached, dropping %s", tcpConn.RemoteAddr())
			tcpConn.Close()
			continue
		}

		conn := s.newConn(tcpConn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release()
			conn.serve(ctx)
		}()
	}
}

// Addr reports the bound listen address, nil before Serve has one.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) newConn(sock net.Conn) *conn {
	return &conn{
		sock:         sock,
		root:         s.root,
		rootFlags:    s.rootFlags,
		scope:        vfs.NewExecutionScopeWithRegistry(token.NewSimple()),
		channels:     make(map[uint32]*channel.Channel),
		idleTimeout:  s.opts.IdleTimeout,
		readTimeout:  s.opts.ReadTimeout,
		writeTimeout: s.opts.WriteTimeout,
	}
}

func (s *Server) admit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.MaxConnections > 0 && s.active >= s.opts.MaxConnections {
		return false
	}
	s.active++
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

// drain waits for live sockets. Sockets notice the cancelled context through
// their watchdogs, so this normally returns fast.
func (s *Server) drain() error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if s.opts.ShutdownTimeout <= 0 {
		<-done
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.opts.ShutdownTimeout):
		s.mu.Lock()
		live := s.active
		s.mu.Unlock()
		return fmt.Errorf("shutdown timed out after %s with %d connections live", s.opts.ShutdownTimeout, live)
	}
}
