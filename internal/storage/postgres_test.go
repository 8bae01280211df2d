package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/pubembed/internal/storage"
	"github.com/MereWhiplash/pubembed/internal/types"
)

const pgTestTable = "publication_test"

// setupPostgres creates the store and resets the test table
func setupPostgres(t *testing.T) (*storage.Postgres, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping Postgres tests")
	}

	ctx := context.Background()
	store, err := storage.NewPostgres(ctx, dsn, pgTestTable, true)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "DELETE FROM "+pgTestTable)
	require.NoError(t, err)

	return store, pool
}

func TestPostgresStorage_Backfill(t *testing.T) {
	store, pool := setupPostgres(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx,
		`INSERT INTO publication_test (id, text) VALUES (1, 'hello world'), (2, ''), (3, 'test')`)
	require.NoError(t, err)

	scope, err := store.Open(ctx)
	require.NoError(t, err)
	defer scope.Close(ctx)

	pubs, err := scope.FetchPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pubs, 3)

	require.NoError(t, scope.PersistEmbedding(ctx, 1, []float32{0.1, 0.2}))
	require.NoError(t, scope.Commit(ctx))

	var vec pgvector.Vector
	require.NoError(t, pool.QueryRow(ctx, `SELECT embedding FROM publication_test WHERE id = 1`).Scan(&vec))
	assert.Equal(t, []float32{0.1, 0.2}, vec.Slice())

	pubs, err = scope.FetchPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pubs, 2)
}

func TestPostgresStorage_CloseRollsBack(t *testing.T) {
	store, pool := setupPostgres(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO publication_test (id, text) VALUES (1, 'hello')`)
	require.NoError(t, err)

	scope, err := store.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, scope.PersistEmbedding(ctx, 1, []float32{0.5}))
	require.NoError(t, scope.Close(ctx))

	var pending bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT embedding IS NULL FROM publication_test WHERE id = 1`).Scan(&pending))
	assert.True(t, pending)
}

func TestPostgresStorage_PersistMissingRow(t *testing.T) {
	store, _ := setupPostgres(t)
	ctx := context.Background()

	scope, err := store.Open(ctx)
	require.NoError(t, err)
	defer scope.Close(ctx)

	err = scope.PersistEmbedding(ctx, 999, []float32{0.5})
	assert.ErrorIs(t, err, types.ErrStorage)
}
