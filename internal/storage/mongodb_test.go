package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MereWhiplash/pubembed/internal/storage"
	"github.com/MereWhiplash/pubembed/internal/types"
)

func TestMongoDBStorage_Backfill(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set, skipping MongoDB tests")
	}

	ctx := context.Background()
	store, err := storage.NewMongoDB(ctx, storage.MongoDBOptions{
		URI:        uri,
		Database:   "pubembed_test",
		Collection: storage.DefaultTable,
	})
	require.NoError(t, err)
	defer store.Close()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	coll := client.Database("pubembed_test").Collection(storage.DefaultTable)
	_, err = coll.DeleteMany(ctx, bson.D{})
	require.NoError(t, err)
	_, err = coll.InsertMany(ctx, []interface{}{
		bson.D{{Key: "_id", Value: int64(1)}, {Key: "text", Value: "hello world"}},
		bson.D{{Key: "_id", Value: int64(2)}, {Key: "text", Value: "test"}, {Key: "embedding", Value: nil}},
		bson.D{{Key: "_id", Value: int64(3)}, {Key: "text", Value: "done"}, {Key: "embedding", Value: []float32{1}}},
	})
	require.NoError(t, err)

	scope, err := store.Open(ctx)
	require.NoError(t, err)
	defer scope.Close(ctx)

	pubs, err := scope.FetchPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pubs, 2)

	require.NoError(t, scope.PersistEmbedding(ctx, 1, []float32{0.1, 0.2}))
	require.NoError(t, scope.Commit(ctx))

	pubs, err = scope.FetchPending(ctx)
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	assert.Equal(t, int64(2), pubs[0].ID)

	err = scope.PersistEmbedding(ctx, 99, []float32{0.1})
	assert.ErrorIs(t, err, types.ErrStorage)
}
