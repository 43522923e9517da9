// Package embcache decorates an embedding provider with a content-addressed
// cache: sha256 of the whitespace-normalized text maps to its vector.
// The ingestion job snapshots the cache into the persisted store, so a
// re-ingest of unchanged text makes zero provider calls.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

// provider is the consumer interface for the wrapped embedder.
type provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error)
	Model() string
}

// Cached is a caching decorator around an embedding provider.
// seed is read-only (typically the cache loaded from a persisted store);
// fresh entries land in an overlay map guarded by a mutex.
type Cached struct {
	inner provider
	seed  map[string][]float32

	mu      sync.RWMutex
	overlay map[string][]float32

	cacheTotal *prometheus.CounterVec
}

// New creates a caching decorator. seed may be nil.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"); nil disables metrics.
func New(inner provider, seed map[string][]float32, cacheTotal *prometheus.CounterVec) *Cached {
	return &Cached{
		inner:      inner,
		seed:       seed,
		overlay:    make(map[string][]float32),
		cacheTotal: cacheTotal,
	}
}

// Model reports the wrapped provider's model identity.
func (c *Cached) Model() string { return c.inner.Model() }

// Embed returns a cached embedding or calls the provider for a single text.
// Cache hits report zero tokens.
func (c *Cached) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	results, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return results[0], nil
}

// EmbedBatch resolves each text against the cache and sends only the misses
// to the provider, in input order. The returned slice matches the input order.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	results := make([]domain.EmbeddingResult, len(texts))
	keys := make([]string, len(texts))

	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		keys[i] = Key(text)
		if vec, ok := c.lookup(keys[i]); ok {
			c.incCache("hit")
			results[i] = domain.EmbeddingResult{Embedding: vec}
			continue
		}
		c.incCache("miss")
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts: %w",
			len(fresh), len(missTexts), domain.ErrEmbeddingProvider)
	}

	c.mu.Lock()
	for j, res := range fresh {
		i := missIdx[j]
		results[i] = res
		c.overlay[keys[i]] = res.Embedding
	}
	c.mu.Unlock()

	return results, nil
}

// Snapshot merges the seed and overlay into one cache map for persistence.
func (c *Cached) Snapshot() map[string][]float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]float32, len(c.seed)+len(c.overlay))
	for k, v := range c.seed {
		out[k] = v
	}
	for k, v := range c.overlay {
		out[k] = v
	}
	return out
}

// Key derives the cache key for a text: sha256 over the
// whitespace-normalized form, hex encoded.
func Key(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

func (c *Cached) lookup(key string) ([]float32, bool) {
	if vec, ok := c.seed[key]; ok {
		return vec, true
	}
	c.mu.RLock()
	vec, ok := c.overlay[key]
	c.mu.RUnlock()
	return vec, ok
}

func (c *Cached) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
