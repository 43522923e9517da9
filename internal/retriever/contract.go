package retriever

import (
	"context"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

// Index is the read-only store surface the retriever needs.
type Index interface {
	Len() int
	Model() string
	CosineTopK(query []float32, k int) ([]domain.Hit, error)
	BM25TopK(terms []string, k int) []domain.Hit
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	Model() string
}
