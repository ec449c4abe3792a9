package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// EmbedOne embeds a single text. Empty input yields a nil vector and no error.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds texts in one request. The result is aligned with the
	// input; entries for empty inputs are nil.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
