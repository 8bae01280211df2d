package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/MereWhiplash/pubembed/internal/types"
)

// Postgres implements Storage using PostgreSQL with pgvector
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres creates a new Postgres storage. TLS settings (sslmode,
// sslrootcert) travel in the DSN and are enforced by pgx.
func NewPostgres(ctx context.Context, dsn, table string, initSchema bool) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to postgres: %w", types.ErrConnection, err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping postgres: %w", types.ErrConnection, err)
	}

	p := &Postgres{pool: pool, table: table}
	if initSchema {
		if err := p.initSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%w: failed to initialize schema: %w", types.ErrConnection, err)
		}
	}

	return p, nil
}

func (p *Postgres) ident() string {
	return pgx.Identifier{p.table}.Sanitize()
}

func (p *Postgres) initSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL DEFAULT '',
			embedding vector
		);
	`, p.ident())
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Open pins one pooled connection for the whole scan
func (p *Postgres) Open(ctx context.Context) (Scope, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire connection: %w", types.ErrConnection, err)
	}
	return &pgScope{conn: conn, table: p.ident()}, nil
}

type pgScope struct {
	conn  *pgxpool.Conn
	tx    pgx.Tx
	table string
}

func (s *pgScope) FetchPending(ctx context.Context) ([]types.Publication, error) {
	rows, err := s.conn.Query(ctx,
		fmt.Sprintf(`SELECT id, text FROM %s WHERE embedding IS NULL`, s.table),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query pending rows: %w", types.ErrStorage, err)
	}
	defer rows.Close()

	var pubs []types.Publication
	for rows.Next() {
		var pub types.Publication
		var text *string
		if err := rows.Scan(&pub.ID, &text); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrStorage, err)
		}
		if text != nil {
			pub.Text = *text
		}
		pubs = append(pubs, pub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStorage, err)
	}

	return pubs, nil
}

func (s *pgScope) PersistEmbedding(ctx context.Context, id int64, embedding []float32) error {
	if s.tx == nil {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", types.ErrStorage, err)
		}
		s.tx = tx
	}

	result, err := s.tx.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET embedding = $1 WHERE id = $2`, s.table),
		pgvector.NewVector(embedding), id,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update publication %d: %w", types.ErrStorage, id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: publication with id %d not found", types.ErrStorage, id)
	}

	return nil
}

func (s *pgScope) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", types.ErrStorage, err)
	}
	return nil
}

func (s *pgScope) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}

	var err error
	if s.tx != nil {
		err = s.tx.Rollback(ctx)
		s.tx = nil
	}
	s.conn.Release()
	s.conn = nil

	if err != nil {
		return fmt.Errorf("%w: rollback failed: %w", types.ErrStorage, err)
	}
	return nil
}
