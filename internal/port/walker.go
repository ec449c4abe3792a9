package port

import (
	"context"

	"notesim/internal/domain"
)

// DocumentSource is the host-owned note collection.
type DocumentSource interface {
	// List returns every eligible, non-ignored document.
	List(ctx context.Context) ([]domain.Document, error)

	// Stat returns the current metadata of a document.
	Stat(ctx context.Context, path string) (domain.Document, error)

	// Read returns the raw content of a document.
	Read(ctx context.Context, path string) (string, error)

	// Exists reports whether path names an existing document.
	Exists(ctx context.Context, path string) (bool, error)
}
