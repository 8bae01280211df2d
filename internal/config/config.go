// Package config provides application configuration.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/MereWhiplash/pubembed/internal/storage"
)

// Config holds all environment-based configuration.
// Tags carry full variable names; nested tags would let envconfig fall back to bare USER or HOST.
type Config struct {
	// StorageDriver selects the record store: postgres, sqlite or mongodb.
	// Env: STORAGE_DRIVER (default: postgres)
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBName     string `envconfig:"DB_NAME"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`

	// DBSSLMode defaults to verify-full: encrypted and the server identity checked.
	// Env: DB_SSLMODE (default: verify-full)
	DBSSLMode string `envconfig:"DB_SSLMODE" default:"verify-full"`

	// DBSSLRootCert is the root certificate file used to verify the server.
	// Env: DB_SSL_ROOT_CERT (default: ./certificate/RootCA.pem)
	DBSSLRootCert string `envconfig:"DB_SSL_ROOT_CERT" default:"./certificate/RootCA.pem"`

	// DBTable holds the publications.
	// Env: DB_TABLE (default: publication)
	DBTable string `envconfig:"DB_TABLE" default:"publication"`

	// DBInitSchema creates the table when missing.
	// Env: DB_INIT_SCHEMA (default: false)
	DBInitSchema bool `envconfig:"DB_INIT_SCHEMA" default:"false"`

	// SQLitePath is the database file for the sqlite driver.
	// Env: SQLITE_PATH
	SQLitePath string `envconfig:"SQLITE_PATH"`

	MongoDBURI      string `envconfig:"MONGODB_URI"`
	MongoDBDatabase string `envconfig:"MONGODB_DATABASE" default:"pubembed"`

	// OllamaHost is the Ollama base URL.
	// Env: OLLAMA_HOST (default: http://localhost:11434)
	OllamaHost string `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`

	// EmbeddingModel is the Ollama model name.
	// Env: EMBEDDING_MODEL (default: nomic-embed-text)
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"nomic-embed-text"`

	// EmbeddingTimeout bounds a single embedding request. Zero disables it.
	// Env: EMBEDDING_TIMEOUT (default: 60s)
	EmbeddingTimeout time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"60s"`

	// EmbeddingAPIURL, when set, makes the worker embed through a running
	// pubembed API instead of calling Ollama directly.
	// Env: EMBEDDING_API_URL
	EmbeddingAPIURL string `envconfig:"EMBEDDING_API_URL"`

	// EmbeddingDimensions, when set, rejects vectors of any other length before they are stored.
	// Env: EMBEDDING_DIMENSIONS (default: 0, no check)
	EmbeddingDimensions int `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`

	APIAddr string `envconfig:"API_ADDR" default:":8000"`

	// APIRateLimit is requests per minute per client IP, 0 disables it.
	// Env: API_RATE_LIMIT (default: 100)
	APIRateLimit int `envconfig:"API_RATE_LIMIT" default:"100"`

	// APITrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	// Env: API_TRUST_PROXY (default: false)
	APITrustProxy bool `envconfig:"API_TRUST_PROXY" default:"false"`

	// APICORSOrigins is a comma-separated list of allowed origins, empty disables CORS.
	// Env: API_CORS_ORIGINS
	APICORSOrigins string `envconfig:"API_CORS_ORIGINS"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	// LogFile sends logs to a file instead of stdout.
	// Env: LOG_FILE
	LogFile string `envconfig:"LOG_FILE"`
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file. A missing file is not an error.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late
func (c Config) Validate() error {
	switch c.StorageDriver {
	case "postgres", "sqlite", "mongodb":
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: must be postgres, sqlite, or mongodb", c.StorageDriver)
	}
	if !storage.ValidTable(c.DBTable) {
		return fmt.Errorf("invalid DB_TABLE %q", c.DBTable)
	}
	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must not be negative")
	}
	if c.APIRateLimit < 0 {
		return fmt.Errorf("API_RATE_LIMIT must not be negative")
	}
	return nil
}

// PostgresDSN builds a postgres URL from the DB settings
func (c Config) PostgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:   "/" + c.DBName,
	}
	if c.DBUser != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	}

	q := url.Values{}
	if c.DBSSLMode != "" {
		q.Set("sslmode", c.DBSSLMode)
	}
	if c.DBSSLRootCert != "" && c.DBSSLMode != "disable" {
		q.Set("sslrootcert", c.DBSSLRootCert)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Storage converts the settings into a storage.Config
func (c Config) Storage() storage.Config {
	cfg := storage.Config{
		Driver:          c.StorageDriver,
		Table:           c.DBTable,
		InitSchema:      c.DBInitSchema,
		SQLitePath:      c.SQLitePath,
		MongoDBURI:      c.MongoDBURI,
		MongoDBDatabase: c.MongoDBDatabase,
	}
	switch c.StorageDriver {
	case "postgres":
		cfg.PostgresDSN = c.PostgresDSN()
	case "mongodb":
		if c.DBSSLMode != "disable" {
			cfg.MongoDBCAFile = c.DBSSLRootCert
		}
	}
	return cfg
}

// CORSOrigins splits API_CORS_ORIGINS into trimmed, non-empty origins
func (c Config) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.APICORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
