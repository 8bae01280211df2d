//go:build cgo

package storage_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/pubembed/internal/storage"
	"github.com/MereWhiplash/pubembed/internal/types"
)

// newSQLite creates a store in a temp dir and seeds it with rows
func newSQLite(t *testing.T, rows map[int64]string) (*storage.SQLite, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewSQLite(context.Background(), path, storage.DefaultTable)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	for id, text := range rows {
		_, err := raw.Exec(`INSERT INTO publication (id, text) VALUES (?, ?)`, id, text)
		require.NoError(t, err)
	}
	return store, raw
}

func embeddingOf(t *testing.T, raw *sql.DB, id int64) []byte {
	t.Helper()
	var blob []byte
	err := raw.QueryRow(`SELECT embedding FROM publication WHERE id = ?`, id).Scan(&blob)
	require.NoError(t, err)
	return blob
}

func TestSQLiteStorage_FetchPending(t *testing.T) {
	store, raw := newSQLite(t, map[int64]string{1: "hello world", 2: "", 3: "test"})

	blob, err := sqlite_vec.SerializeFloat32([]float32{1, 2})
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO publication (id, text, embedding) VALUES (4, 'done', ?)`, blob)
	require.NoError(t, err)

	ctx := context.Background()
	scope, err := store.Open(ctx)
	require.NoError(t, err)
	defer scope.Close(ctx)

	pubs, err := scope.FetchPending(ctx)
	require.NoError(t, err)

	ids := make([]int64, 0, len(pubs))
	for _, p := range pubs {
		assert.Nil(t, p.Embedding)
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []int64{1, 2, 3}, ids)
}

func TestSQLiteStorage_PersistAndCommit(t *testing.T) {
	store, raw := newSQLite(t, map[int64]string{1: "hello world"})
	ctx := context.Background()

	scope, err := store.Open(ctx)
	require.NoError(t, err)

	require.NoError(t, scope.PersistEmbedding(ctx, 1, []float32{0.1, 0.2}))
	require.NoError(t, scope.Commit(ctx))
	require.NoError(t, scope.Close(ctx))

	want, err := sqlite_vec.SerializeFloat32([]float32{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, want, embeddingOf(t, raw, 1))

	var dims int
	require.NoError(t, raw.QueryRow(`SELECT vec_length(embedding) FROM publication WHERE id = 1`).Scan(&dims))
	assert.Equal(t, 2, dims)

	// committed rows are no longer pending
	scope, err = store.Open(ctx)
	require.NoError(t, err)
	defer scope.Close(ctx)
	pubs, err := scope.FetchPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pubs)
}

func TestSQLiteStorage_CloseRollsBack(t *testing.T) {
	store, raw := newSQLite(t, map[int64]string{1: "hello world"})
	ctx := context.Background()

	scope, err := store.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, scope.PersistEmbedding(ctx, 1, []float32{0.1, 0.2}))
	require.NoError(t, scope.Close(ctx))

	assert.Nil(t, embeddingOf(t, raw, 1))

	// second close is harmless
	assert.NoError(t, scope.Close(ctx))
}

func TestSQLiteStorage_PersistMissingRow(t *testing.T) {
	store, _ := newSQLite(t, nil)
	ctx := context.Background()

	scope, err := store.Open(ctx)
	require.NoError(t, err)
	defer scope.Close(ctx)

	err = scope.PersistEmbedding(ctx, 42, []float32{1})
	assert.ErrorIs(t, err, types.ErrStorage)
}

func TestSQLiteStorage_CommitWithoutWrites(t *testing.T) {
	store, _ := newSQLite(t, nil)
	ctx := context.Background()

	scope, err := store.Open(ctx)
	require.NoError(t, err)
	defer scope.Close(ctx)

	assert.NoError(t, scope.Commit(ctx))
}

func TestNew_SQLite_Unreachable(t *testing.T) {
	_, err := storage.New(context.Background(), storage.Config{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "missing", "dir", "db.sqlite"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConnection)
}
