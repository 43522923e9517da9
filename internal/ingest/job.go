package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipedex/internal/domain"
	"github.com/kailas-cloud/recipedex/internal/embcache"
	"github.com/kailas-cloud/recipedex/internal/metrics"
	"github.com/kailas-cloud/recipedex/internal/store"
)

// Provider is the raw embedding provider the job wraps with a cache.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error)
	Model() string
}

// Options configures one ingestion run.
type Options struct {
	InputPath  string
	StorePath  string
	ColumnID   string
	ColumnText string
	BatchSize  int
}

// Run executes the ingestion job: read raw rows, embed them through the
// content-addressed cache, build the indexes, and atomically publish the
// store. When a previous store exists at StorePath and was built with the
// same embedding model, its cache seeds this run, so unchanged text costs no
// provider calls and an unchanged input reproduces the file byte for byte.
func Run(ctx context.Context, provider Provider, opts Options, logger *zap.Logger) error {
	start := time.Now()

	rows, err := ReadRows(opts.InputPath, opts.ColumnID, opts.ColumnText)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	logger.Info("input loaded",
		zap.Int("rows", len(rows)),
		zap.String("input", opts.InputPath),
	)

	seed := loadCacheSeed(opts.StorePath, provider.Model(), logger)

	cached := embcache.New(provider, seed, metrics.EmbeddingCacheTotal)

	docs := make([]domain.Document, len(rows))
	for i, r := range rows {
		docs[i] = domain.Document{ID: r.ID, Text: r.Text}
	}

	st, err := store.Build(ctx, docs, cached, store.BuildOptions{BatchSize: opts.BatchSize})
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	st.SetEmbeddingCache(cached.Snapshot())

	if err := st.Persist(opts.StorePath); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}

	logger.Info("store published",
		zap.String("path", opts.StorePath),
		zap.Int("documents", st.Len()),
		zap.Int("dimensions", st.Dimension()),
		zap.String("model", st.Model()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// loadCacheSeed pulls the embedding cache out of an existing store file.
// A missing file is normal (first run); a corrupt one is logged and ignored
// since the job is about to replace it anyway. A model change invalidates
// the cache: vectors from another model must not be reused.
func loadCacheSeed(path, model string, logger *zap.Logger) map[string][]float32 {
	prev, err := store.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("previous store unusable, starting with a cold cache", zap.Error(err))
		}
		return nil
	}
	if prev.Model() != model {
		logger.Info("embedding model changed, discarding cached embeddings",
			zap.String("previous", prev.Model()),
			zap.String("current", model),
		)
		return nil
	}

	cache := prev.EmbeddingCache()
	logger.Info("reusing embedding cache", zap.Int("entries", len(cache)))
	return cache
}
