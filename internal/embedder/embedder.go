// internal/embedder/embedder.go
package embedder

import "context"

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed returns the embedding of text exactly as given
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelPreparer makes sure the embedding model is available before use
type ModelPreparer interface {
	EnsureModel(ctx context.Context) error
}
