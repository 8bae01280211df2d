//go:build cgo

// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/MereWhiplash/pubembed/internal/types"
)

// SQLite implements Storage using SQLite with sqlite-vec
type SQLite struct {
	conn  *sql.DB
	table string
}

// NewSQLite opens the database file and creates the table when missing
func NewSQLite(ctx context.Context, path, table string) (*SQLite, error) {
	sqlite_vec.Auto()

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", types.ErrConnection, err)
	}

	// sql.Open is lazy; the file is only opened here
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to open database: %w", types.ErrConnection, err)
	}

	s := &SQLite{conn: conn, table: table}
	if err := s.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", types.ErrConnection, err)
	}

	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			text TEXT NOT NULL DEFAULT '',
			embedding BLOB
		);
	`, s.table)
	_, err := s.conn.ExecContext(ctx, schema)
	return err
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Open reserves a single connection from database/sql's pool
func (s *SQLite) Open(ctx context.Context) (Scope, error) {
	conn, err := s.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConnection, err)
	}
	return &sqliteScope{conn: conn, table: s.table}, nil
}

type sqliteScope struct {
	conn  *sql.Conn
	tx    *sql.Tx
	table string
}

func (s *sqliteScope) FetchPending(ctx context.Context) ([]types.Publication, error) {
	rows, err := s.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, text FROM %s WHERE embedding IS NULL`, s.table),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query pending rows: %w", types.ErrStorage, err)
	}
	defer rows.Close()

	var pubs []types.Publication
	for rows.Next() {
		var pub types.Publication
		var text sql.NullString
		if err := rows.Scan(&pub.ID, &text); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrStorage, err)
		}
		pub.Text = text.String
		pubs = append(pubs, pub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStorage, err)
	}

	return pubs, nil
}

func (s *sqliteScope) PersistEmbedding(ctx context.Context, id int64, embedding []float32) error {
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("%w: failed to serialize embedding: %w", types.ErrStorage, err)
	}

	if s.tx == nil {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", types.ErrStorage, err)
		}
		s.tx = tx
	}

	result, err := s.tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET embedding = ? WHERE id = ?`, s.table),
		blob, id,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update publication %d: %w", types.ErrStorage, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrStorage, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: publication with id %d not found", types.ErrStorage, id)
	}

	return nil
}

func (s *sqliteScope) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", types.ErrStorage, err)
	}
	return nil
}

func (s *sqliteScope) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}

	var rbErr error
	if s.tx != nil {
		rbErr = s.tx.Rollback()
		s.tx = nil
	}
	err := s.conn.Close()
	s.conn = nil

	if rbErr != nil {
		return fmt.Errorf("%w: rollback failed: %w", types.ErrStorage, rbErr)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrStorage, err)
	}
	return nil
}
