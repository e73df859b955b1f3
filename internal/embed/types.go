// Package embed provides text embedding for semantic search.
package embed

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// StaticDimensions is the dimension of the hash-based static embedder.
const StaticDimensions = 384
