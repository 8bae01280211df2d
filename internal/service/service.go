// internal/service/service.go
package service

import (
	"context"
	"strings"

	"github.com/MereWhiplash/pubembed/internal/embedder"
	"github.com/MereWhiplash/pubembed/internal/types"
)

// ErrEmptyText is returned when the text is empty after normalization
var ErrEmptyText error = &types.ValidationError{Message: "text must not be empty"}

// Service contains the business logic for on-demand embeddings
type Service struct {
	embedder embedder.Embedder
}

// New creates a new Service
func New(emb embedder.Embedder) *Service {
	return &Service{embedder: emb}
}

// Normalize trims text and collapses every whitespace run to a single space
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Embed normalizes text and returns its embedding. Empty input never reaches
// the embedder.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	cleaned := Normalize(text)
	if cleaned == "" {
		return nil, ErrEmptyText
	}

	embedding, err := s.embedder.Embed(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	return embedding, nil
}
