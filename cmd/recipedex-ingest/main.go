// recipedex-ingest is the one-shot ingestion job: it reads the raw recipe
// parquet file, computes embeddings, builds the indexes, and atomically
// publishes the store file the server loads at startup.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recipedex/internal/config"
	"github.com/kailas-cloud/recipedex/internal/ingest"
	logpkg "github.com/kailas-cloud/recipedex/internal/logger"
	"github.com/kailas-cloud/recipedex/internal/metrics"
	openaiTransport "github.com/kailas-cloud/recipedex/internal/transport/openai"
	"github.com/kailas-cloud/recipedex/internal/version"
)

func main() {
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.ValidateIngest(); err != nil {
		panic("invalid config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recipedex ingestion",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("input", cfg.Ingest.InputPath),
		zap.String("store_path", cfg.Store.Path),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	metrics.RegisterProviderMetrics()

	provider := openaiTransport.NewEmbedder(openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ingest.Run(ctx, provider, ingest.Options{
		InputPath:  cfg.Ingest.InputPath,
		StorePath:  cfg.Store.Path,
		ColumnID:   cfg.Ingest.ColumnID,
		ColumnText: cfg.Ingest.ColumnText,
		BatchSize:  cfg.Ingest.BatchSize,
	}, logger); err != nil {
		logger.Fatal("Ingestion failed", zap.Error(err))
	}
}
