package storage

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MereWhiplash/pubembed/internal/types"
)

// MongoDBOptions configures the MongoDB driver
type MongoDBOptions struct {
	URI        string
	Database   string
	Collection string
	// CAFile enables TLS verified against this root certificate
	CAFile string
}

// MongoDB implements Storage on a MongoDB collection. Pending documents are
// those whose embedding field is null or missing.
type MongoDB struct {
	client       *mongo.Client
	publications *mongo.Collection
}

// publicationDoc is the MongoDB document structure
type publicationDoc struct {
	ID        int64     `bson:"_id"`
	Text      string    `bson:"text"`
	Embedding []float32 `bson:"embedding,omitempty"`
}

// NewMongoDB creates a new MongoDB storage
func NewMongoDB(ctx context.Context, opts MongoDBOptions) (*MongoDB, error) {
	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.CAFile != "" {
		tlsCfg, err := loadRootCA(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrConnection, err)
		}
		clientOpts.SetTLSConfig(tlsCfg)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to mongodb: %w", types.ErrConnection, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: failed to ping mongodb: %w", types.ErrConnection, err)
	}

	return &MongoDB{
		client:       client,
		publications: client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

func loadRootCA(path string) (*tls.Config, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read root certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Open returns a scope over the shared client. Single-document updates are
// atomic in MongoDB so the scope has nothing to commit or roll back.
func (m *MongoDB) Open(ctx context.Context) (Scope, error) {
	return &mongoScope{publications: m.publications}, nil
}

type mongoScope struct {
	publications *mongo.Collection
}

func (s *mongoScope) FetchPending(ctx context.Context) ([]types.Publication, error) {
	filter := bson.D{{Key: "embedding", Value: nil}}
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "text", Value: 1}})

	cursor, err := s.publications.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query pending documents: %w", types.ErrStorage, err)
	}
	defer cursor.Close(ctx)

	var pubs []types.Publication
	for cursor.Next(ctx) {
		var doc publicationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrStorage, err)
		}
		pubs = append(pubs, types.Publication{ID: doc.ID, Text: doc.Text})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStorage, err)
	}

	return pubs, nil
}

func (s *mongoScope) PersistEmbedding(ctx context.Context, id int64, embedding []float32) error {
	result, err := s.publications.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "embedding", Value: embedding}}}},
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update publication %d: %w", types.ErrStorage, id, err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: publication with id %d not found", types.ErrStorage, id)
	}

	return nil
}

func (s *mongoScope) Commit(ctx context.Context) error {
	return nil
}

func (s *mongoScope) Close(ctx context.Context) error {
	return nil
}
