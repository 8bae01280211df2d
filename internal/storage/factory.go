package storage

import (
	"context"
	"fmt"
)

// Config holds storage configuration
type Config struct {
	Driver string // "postgres", "sqlite", "mongodb"

	// Table is the publication table or collection name
	Table string

	// InitSchema creates the table if missing. SQLite always does this.
	InitSchema bool

	// SQLite
	SQLitePath string

	// Postgres
	PostgresDSN string

	// MongoDB
	MongoDBURI      string
	MongoDBDatabase string
	// MongoDBCAFile is the root certificate used to verify the server, optional
	MongoDBCAFile string
}

// New creates a Storage implementation based on config
func New(ctx context.Context, cfg Config) (Storage, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !ValidTable(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}

	switch cfg.Driver {
	case "postgres", "":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres DSN is required")
		}
		return NewPostgres(ctx, cfg.PostgresDSN, cfg.Table, cfg.InitSchema)

	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		return NewSQLite(ctx, cfg.SQLitePath, cfg.Table)

	case "mongodb":
		if cfg.MongoDBURI == "" {
			return nil, fmt.Errorf("mongodb URI is required")
		}
		if cfg.MongoDBDatabase == "" {
			cfg.MongoDBDatabase = "pubembed"
		}
		return NewMongoDB(ctx, MongoDBOptions{
			URI:        cfg.MongoDBURI,
			Database:   cfg.MongoDBDatabase,
			Collection: cfg.Table,
			CAFile:     cfg.MongoDBCAFile,
		})

	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
