// Package types contains shared data types that have no driver dependencies.
// This allows the backfill worker and the API to share them without pulling in sqlite-vec.
package types

import (
	"errors"
	"strings"
)

// Error classes. Implementations wrap one of these with fmt.Errorf("%w: ...")
// so callers can pick a policy with errors.Is.
var (
	// ErrValidation is returned when caller input is empty after normalization
	ErrValidation = errors.New("invalid input")
	// ErrGeneration is returned when the embedding model is unreachable or answers garbage
	ErrGeneration = errors.New("embedding generation failed")
	// ErrStorage is returned on any database fault while reading or writing rows
	ErrStorage = errors.New("storage error")
	// ErrConnection is returned when a database scope cannot be acquired
	ErrConnection = errors.New("database connection error")
)

// ValidationError carries a message meant for the caller. It matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Publication is a row of the publication table.
// A nil Embedding means the row is still pending.
type Publication struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Blank reports whether the text is empty or whitespace only
func (p Publication) Blank() bool {
	return strings.TrimSpace(p.Text) == ""
}
