// Package embedding converts text into fixed-length numeric vectors for
// semantic similarity search.
package embedding

import "context"

// Provider generates vector embeddings for text. Implementations must be
// deterministic for a fixed model version: embedding the same string twice
// yields numerically indistinguishable vectors.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, order-preserving,
	// one vector per input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced embeddings.
	Dimensions() int

	// Name returns the provider identifier (backend plus model).
	Name() string
}
