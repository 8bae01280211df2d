// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MereWhiplash/pubembed/internal/backfill"
	"github.com/MereWhiplash/pubembed/internal/client"
	"github.com/MereWhiplash/pubembed/internal/config"
	"github.com/MereWhiplash/pubembed/internal/embedder"
	"github.com/MereWhiplash/pubembed/internal/logging"
	"github.com/MereWhiplash/pubembed/internal/storage"
	"github.com/MereWhiplash/pubembed/internal/types"
)

// version is set by goreleaser via ldflags
var version = "dev"

// modelEmbedder is an embedder whose model can be prepared before the scan
type modelEmbedder interface {
	embedder.Embedder
	embedder.ModelPreparer
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:     "pubembed-worker",
		Short:   "Fill in missing publication embeddings",
		Version: version,
		Long: `Fill in missing publication embeddings.

Makes sure the embedding model is available, then embeds every publication
whose embedding is NULL, committing one row at a time. Rows with blank text
are skipped. A database error stops the run; rows already committed stay.

Settings come from the environment, optionally seeded from a .env file.
See STORAGE_DRIVER, DB_*, SQLITE_PATH, MONGODB_*, OLLAMA_HOST, EMBEDDING_* and LOG_*.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func run(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, cleanup, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return backfillOnce(ctx, cfg, newEmbedder(cfg), logger)
}

// newEmbedder talks to Ollama, or to a pubembed API when EMBEDDING_API_URL is set
func newEmbedder(cfg config.Config) modelEmbedder {
	if cfg.EmbeddingAPIURL != "" {
		return client.New(cfg.EmbeddingAPIURL, cfg.EmbeddingTimeout)
	}
	return embedder.NewOllama(cfg.OllamaHost, cfg.EmbeddingModel, cfg.EmbeddingTimeout)
}

// backfillOnce prepares the model, opens storage and runs one scan.
// Only a model or configuration failure is returned; a database that cannot
// be reached is logged and ends the attempt normally.
func backfillOnce(ctx context.Context, cfg config.Config, emb modelEmbedder, logger *zap.Logger) error {
	logger.Info("Pulling embedding model", zap.String("model", cfg.EmbeddingModel))
	if err := emb.EnsureModel(ctx); err != nil {
		logger.Error("Failed to pull embedding model", zap.String("model", cfg.EmbeddingModel), zap.Error(err))
		return fmt.Errorf("prepare model: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage())
	if err != nil {
		if errors.Is(err, types.ErrConnection) {
			logger.Error("DB connection error", zap.String("driver", cfg.StorageDriver), zap.Error(err))
			return nil
		}
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	report := backfill.New(store, emb, logger, backfill.WithDimensions(cfg.EmbeddingDimensions)).Run(ctx)
	if report.Aborted() {
		logger.Warn("Run ended early; pending rows are picked up by the next run",
			zap.String("run_id", report.RunID),
			zap.Int("remaining", report.Total-report.Processed-report.Skipped-report.Failed),
		)
	}
	return nil
}
