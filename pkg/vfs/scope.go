package vfs

import (
	"context"
	"errors"
	"sync"

	"github.com/marmos91/pseudofs/pkg/vfs/token"
)

// ErrScopeShutdown is returned by Spawn once the scope is shutting down.
var ErrScopeShutdown = errors.New("vfs: execution scope is shut down")

// ExecutionScope owns the goroutines serving connections. Every connection
// spawned through a scope observes the scope's context between requests, so
// Shutdown stops the whole tree of connections without tearing down channels
// mid-request.
//
// A scope optionally carries a token registry; trees served without one
// simply report NOT_SUPPORTED for Link, GetToken and Rename.
type ExecutionScope struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	registry token.Registry

	mu   sync.Mutex
	down bool
}

// NewExecutionScope creates a scope without a token registry.
func NewExecutionScope() *ExecutionScope {
	return NewExecutionScopeWithRegistry(nil)
}

// NewExecutionScopeWithRegistry creates a scope whose connections share the
// given token registry.
func NewExecutionScopeWithRegistry(registry token.Registry) *ExecutionScope {
	ctx, cancel := context.WithCancel(context.Background())
	return &ExecutionScope{ctx: ctx, cancel: cancel, registry: registry}
}

// Spawn runs fn on its own goroutine, tracked by the scope. fn must return
// when the passed context is done.
func (s *ExecutionScope) Spawn(fn func(ctx context.Context)) error {
	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		return ErrScopeShutdown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return nil
}

// Shutdown asks every spawned goroutine to stop. It does not wait; pair it
// with Wait for a synchronous teardown.
func (s *ExecutionScope) Shutdown() {
	s.mu.Lock()
	s.down = true
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until every spawned goroutine has returned.
func (s *ExecutionScope) Wait() {
	s.wg.Wait()
}

// Context is the context connections select on between requests.
func (s *ExecutionScope) Context() context.Context {
	return s.ctx
}

// TokenRegistry returns the scope's registry, nil when the scope was built
// without one.
func (s *ExecutionScope) TokenRegistry() token.Registry {
	return s.registry
}
