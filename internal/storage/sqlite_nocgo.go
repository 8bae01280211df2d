//go:build !cgo

package storage

import (
	"context"
	"fmt"
)

// SQLite is a stub for non-CGO builds
type SQLite struct{}

var errNoCGO = fmt.Errorf("SQLite storage requires CGO (build with CGO_ENABLED=1)")

// NewSQLite returns an error in non-CGO builds
func NewSQLite(ctx context.Context, path, table string) (*SQLite, error) {
	return nil, errNoCGO
}

func (s *SQLite) Open(ctx context.Context) (Scope, error) {
	return nil, errNoCGO
}

func (s *SQLite) Close() error {
	return nil
}
