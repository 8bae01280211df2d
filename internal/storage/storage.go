package storage

import (
	"context"
	"regexp"

	"github.com/MereWhiplash/pubembed/internal/types"
)

// DefaultTable is the table (or collection) holding publications
const DefaultTable = "publication"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTable reports whether name can be interpolated into SQL as a table name
func ValidTable(name string) bool {
	return identRe.MatchString(name)
}

// Storage hands out scopes over the publication table
type Storage interface {
	// Open acquires a connection for the lifetime of one scan
	Open(ctx context.Context) (Scope, error)
	Close() error
}

// Scope is a single connection with at most one open transaction.
// Close must be called on every exit path; it rolls back anything not committed.
type Scope interface {
	// FetchPending returns every publication whose embedding is unset, id and text only
	FetchPending(ctx context.Context) ([]types.Publication, error)
	// PersistEmbedding sets the embedding of one row. Nothing is durable until Commit.
	PersistEmbedding(ctx context.Context, id int64, embedding []float32) error
	Commit(ctx context.Context) error
	Close(ctx context.Context) error
}
