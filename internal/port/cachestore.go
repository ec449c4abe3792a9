package port

import "context"

// CacheBackend persists the serialized embedding cache as one document.
type CacheBackend interface {
	Exists(ctx context.Context) (bool, error)
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the stored document atomically.
	Write(ctx context.Context, data []byte) error
	// Location names the resource in errors and logs.
	Location() string
}
