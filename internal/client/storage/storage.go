// Package storage is the client-side persistent cache. Values are opaque
// JSON blobs under string keys; ProjectCache gives them project semantics.
package storage

import "context"

// Store is a persistent key/value map.
type Store interface {
	// Get returns nil, nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put overwrites the value under key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key; an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
