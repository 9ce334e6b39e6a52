// Package store provides the durable key-value persistence the session
// engines write their snapshots through. Engines never talk to a concrete
// storage API directly; production uses Redis while tests use the in-memory
// implementation.
package store

import "context"

// KeyValueStore is the persistence capability injected into the engines.
// Set must be durable before it returns: the engines rely on every mutation
// being persisted synchronously, in order, so a crash never observes a state
// change without its snapshot.
type KeyValueStore interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
