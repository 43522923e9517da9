// Package retriever ranks store documents against a query by vector
// similarity, BM25, or a weighted fusion of both.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipedex/internal/domain"
	"github.com/kailas-cloud/recipedex/internal/store"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeVector  Mode = "vector"
	ModeLexical Mode = "lexical"
	ModeHybrid  Mode = "hybrid"
)

// Service handles document retrieval across vector, lexical, and hybrid modes.
type Service struct {
	index        Index
	embed        Embedder
	vectorWeight float64
	logger       *zap.Logger
}

// New creates a retriever. vectorWeight is the hybrid fusion weight for the
// vector ranking, in [0,1].
func New(index Index, embed Embedder, vectorWeight float64, logger *zap.Logger) *Service {
	return &Service{index: index, embed: embed, vectorWeight: vectorWeight, logger: logger}
}

// Search returns at most k hits for the query, best first.
// An empty store yields an empty result, not an error.
func (s *Service) Search(ctx context.Context, query string, k int, m Mode) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be blank", domain.ErrInvalidArgument)
	}
	if s.index.Len() == 0 {
		return nil, nil
	}

	switch m {
	case ModeVector:
		return s.searchVector(ctx, query, k)
	case ModeLexical:
		return s.searchLexical(query, k), nil
	case ModeHybrid:
		return s.searchHybrid(ctx, query, k)
	default:
		return nil, fmt.Errorf("%w: unsupported retrieval mode %q", domain.ErrInvalidArgument, m)
	}
}

// searchVector embeds the query and ranks by cosine similarity. The query
// embedder must match the model the store was built with: embeddings across
// different models are not comparable.
func (s *Service) searchVector(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	if err := s.checkModel(); err != nil {
		return nil, err
	}

	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.index.CosineTopK(res.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

func (s *Service) searchLexical(query string, k int) []domain.Hit {
	return s.index.BM25TopK(store.Tokenize(query), k)
}

// searchHybrid runs both rankings over a widened candidate set, then fuses.
func (s *Service) searchHybrid(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	vec, err := s.searchVector(ctx, query, k)
	if err != nil {
		return nil, err
	}

	lex := s.searchLexical(query, k)

	s.logger.Debug("hybrid retrieval",
		zap.Int("vector_hits", len(vec)),
		zap.Int("lexical_hits", len(lex)),
		zap.Int("k", k),
	)

	return fuseWeighted(vec, lex, k, s.vectorWeight), nil
}

func (s *Service) checkModel() error {
	if s.embed.Model() != s.index.Model() {
		return fmt.Errorf("query embedder uses %q, store was built with %q: %w",
			s.embed.Model(), s.index.Model(), domain.ErrModelMismatch)
	}
	return nil
}
