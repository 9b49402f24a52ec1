// Package roomstore is the replicated key-value document store two game
// clients share. Documents are opaque JSON; partial updates address fields
// by slash-separated paths so untouched fields are never clobbered.
package roomstore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when no document exists at a key.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned by Create when a document already exists.
	ErrExists = errors.New("document already exists")
	// ErrClosed is returned by a store whose connection has been closed.
	ErrClosed = errors.New("store closed")
)

// Store is the document store contract. Implementations must deliver the
// full current document to every subscriber on every change; nil is
// delivered when the document is absent or was deleted. No ordering is
// promised relative to the caller's own writes.
type Store interface {
	// Create writes doc only if nothing exists at key.
	Create(ctx context.Context, key string, doc json.RawMessage) error
	// Read returns the current document or ErrNotFound.
	Read(ctx context.Context, key string) (json.RawMessage, error)
	// Set overwrites the whole document.
	Set(ctx context.Context, key string, doc json.RawMessage) error
	// Update applies a partial patch to an existing document.
	Update(ctx context.Context, key string, patch Patch) error
	// Delete removes the document. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Subscribe observes key until the subscription is cancelled or ctx ends.
	// fn is called with the current document first.
	Subscribe(ctx context.Context, key string, fn func(doc json.RawMessage)) (Subscription, error)
}

// Subscription is the handle returned by Subscribe.
type Subscription interface {
	Unsubscribe() error
}
