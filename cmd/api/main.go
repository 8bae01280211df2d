// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MereWhiplash/pubembed/internal/api"
	"github.com/MereWhiplash/pubembed/internal/config"
	"github.com/MereWhiplash/pubembed/internal/embedder"
	"github.com/MereWhiplash/pubembed/internal/logging"
	"github.com/MereWhiplash/pubembed/internal/service"
)

// version is set by goreleaser via ldflags
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		envFile string
		addr    string
	)

	cmd := &cobra.Command{
		Use:     "pubembed-api",
		Short:   "Serve text embeddings over HTTP",
		Version: version,
		Long: `Serve text embeddings over HTTP.

Routes:
  GET  /api/ping    liveness, answers "pong!"
  POST /api/embed   {"text": "..."} -> {"embedding": [...]}
  GET  /metrics     Prometheus metrics

Settings come from the environment, optionally seeded from a .env file.
See OLLAMA_HOST, EMBEDDING_MODEL, API_ADDR, API_RATE_LIMIT, API_CORS_ORIGINS and LOG_*.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(envFile, addr)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: API_ADDR or :8000)")

	return cmd
}

func run(envFile, addr string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.APIAddr = addr
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

	emb := embedder.NewOllama(cfg.OllamaHost, cfg.EmbeddingModel, cfg.EmbeddingTimeout)
	svc := service.New(emb)
	handlers := api.NewHandlers(svc, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := api.NewRouter(handlers, logger, api.RouterConfig{
		RateLimit:   cfg.APIRateLimit,
		CORSOrigins: cfg.CORSOrigins(),
		Registry:    reg,
		Timeout:     cfg.EmbeddingTimeout + 5*time.Second,
		TrustProxy:  cfg.APITrustProxy,
	})

	srv := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.EmbeddingTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting API server",
			zap.String("addr", cfg.APIAddr),
			zap.String("model", emb.Model()),
			zap.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
