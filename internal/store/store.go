// Package store implements the persisted recipe index: documents, their
// embeddings, a BM25 lexical index, and the embedding cache, all held in one
// immutable in-memory structure backed by a single snapshot file.
package store

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

// BatchEmbedder computes embeddings for batches of texts.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error)
	Model() string
}

// Store is the in-memory index. It is built once (offline) or loaded from a
// snapshot, and is read-only afterwards: concurrent readers need no locking.
type Store struct {
	docs  []domain.Document
	byID  map[string]int
	norms []float64

	model string
	dim   int

	lex lexicalIndex

	// cache maps sha256(normalized text) to the embedding computed for it.
	// Persisted with the store so re-ingesting unchanged text skips the
	// provider entirely.
	cache map[string][]float32
}

// BuildOptions controls store construction.
type BuildOptions struct {
	// BatchSize caps how many texts go into one embedding request.
	BatchSize int
}

// Build computes one embedding per document text through the given embedder,
// builds the lexical index, and returns an immutable store pinned to the
// embedder's model identity. Documents keep their input order, so identical
// input yields an identical store.
func Build(ctx context.Context, docs []domain.Document, embedder BatchEmbedder, opts BuildOptions) (*Store, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	s := &Store{
		docs:  make([]domain.Document, len(docs)),
		byID:  make(map[string]int, len(docs)),
		model: embedder.Model(),
		cache: make(map[string][]float32),
	}
	copy(s.docs, docs)

	for i := range s.docs {
		id := s.docs[i].ID
		if id == "" {
			return nil, fmt.Errorf("%w: document %d has an empty id", domain.ErrSchema, i)
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate document id %q", domain.ErrSchema, id)
		}
		s.byID[id] = i
	}

	for start := 0; start < len(s.docs); start += batchSize {
		end := min(start+batchSize, len(s.docs))

		texts := make([]string, 0, end-start)
		for _, d := range s.docs[start:end] {
			texts = append(texts, d.Text)
		}

		results, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed documents %d..%d: %w", start, end-1, err)
		}
		if len(results) != end-start {
			return nil, fmt.Errorf("embed documents %d..%d: got %d embeddings for %d texts: %w",
				start, end-1, len(results), end-start, domain.ErrEmbeddingProvider)
		}

		for i, res := range results {
			vec := res.Embedding
			if s.dim == 0 {
				s.dim = len(vec)
			}
			if len(vec) == 0 || len(vec) != s.dim {
				return nil, fmt.Errorf("document %q: embedding dimension %d, store dimension %d: %w",
					s.docs[start+i].ID, len(vec), s.dim, domain.ErrEmbeddingProvider)
			}
			s.docs[start+i].Embedding = vec
		}
	}

	s.norms = computeNorms(s.docs)
	s.lex = buildLexicalIndex(s.docs)

	return s, nil
}

// Len returns the number of documents.
func (s *Store) Len() int { return len(s.docs) }

// Model returns the embedding model identity the store was built with.
func (s *Store) Model() string { return s.model }

// Dimension returns the embedding vector length, 0 for an empty store.
func (s *Store) Dimension() int { return s.dim }

// Document returns the document at position i.
func (s *Store) Document(i int) domain.Document { return s.docs[i] }

// SetEmbeddingCache replaces the persisted embedding cache. Called by the
// ingestion job before Persist; never by the serving process.
func (s *Store) SetEmbeddingCache(cache map[string][]float32) {
	s.cache = cache
}

// EmbeddingCache exposes the persisted cache for read-through lookups.
func (s *Store) EmbeddingCache() map[string][]float32 { return s.cache }

func computeNorms(docs []domain.Document) []float64 {
	norms := make([]float64, len(docs))
	for i, d := range docs {
		var sum float64
		for _, v := range d.Embedding {
			sum += float64(v) * float64(v)
		}
		norms[i] = math.Sqrt(sum)
	}
	return norms
}
