// Package token implements the registry backing GetToken, Link and Rename.
// A registry hands out one unguessable token per directory and resolves
// tokens back to their owners, which is how a client names "that other
// directory" in cross-directory operations without holding a path to it.
//
// Owners are opaque to the registry; the directory package stores and
// retrieves its own mutable directory values.
package token

import (
	"sync"

	"github.com/google/uuid"
)

// Registry mints and resolves directory tokens.
type Registry interface {
	// GetToken returns the owner's token, minting one on first use. The
	// token stays stable until the owner is unregistered.
	GetToken(owner any) ([]byte, error)

	// GetContainer resolves a token to its owner. Unknown tokens resolve to
	// nil with no error; they are a client mistake, not a registry failure.
	GetContainer(token []byte) (any, error)

	// Unregister invalidates the owner's token, if any.
	Unregister(owner any)
}

// Simple is the in-memory Registry used by pseudo trees. Tokens are random
// UUIDs, so holding a token proves it was handed out by this registry.
type Simple struct {
	mu      sync.Mutex
	byOwner map[any]string
	byToken map[string]any
}

// NewSimple creates an empty registry.
func NewSimple() *Simple {
	return &Simple{
		byOwner: make(map[any]string),
		byToken: make(map[string]any),
	}
}

// GetToken implements Registry.
func (r *Simple) GetToken(owner any) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token, ok := r.byOwner[owner]; ok {
		return []byte(token), nil
	}

	token := uuid.New().String()
	r.byOwner[owner] = token
	r.byToken[token] = owner
	return []byte(token), nil
}

// GetContainer implements Registry.
func (r *Simple) GetContainer(token []byte) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.byToken[string(token)]
	if !ok {
		return nil, nil
	}
	return owner, nil
}

// Unregister implements Registry.
func (r *Simple) Unregister(owner any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byOwner[owner]
	if !ok {
		return
	}
	delete(r.byOwner, owner)
	delete(r.byToken, token)
}
