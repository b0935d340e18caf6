// Package embedding provides text embedding via a remote provider.
package embedding

import "context"

// Embedder produces vector embeddings for text.
//
// EmbedBatch is strictly order-preserving and all-or-nothing: the result has
// exactly one vector per input, result[i] for texts[i], or the call fails as
// a whole. Dimensions returns the vector length once it is known (0 before
// the first successful call for providers that learn it lazily).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
