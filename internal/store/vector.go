package store

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

// CosineTopK returns at most k documents most similar to the query vector by
// cosine similarity, best first. Ties break by document id ascending.
// Brute force over the full matrix: the store is sized for a single dataset
// held in memory, not for approximate-index scale.
func (s *Store) CosineTopK(query []float32, k int) ([]domain.Hit, error) {
	if k <= 0 || len(s.docs) == 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension %d, store dimension %d: %w",
			len(query), s.dim, domain.ErrModelMismatch)
	}

	var qnorm float64
	for _, v := range query {
		qnorm += float64(v) * float64(v)
	}
	qnorm = math.Sqrt(qnorm)
	if qnorm == 0 {
		return nil, nil
	}

	hits := make([]domain.Hit, 0, len(s.docs))
	for i, d := range s.docs {
		if s.norms[i] == 0 {
			continue
		}
		var dot float64
		for j, v := range d.Embedding {
			dot += float64(v) * float64(query[j])
		}
		hits = append(hits, domain.Hit{
			ID:    d.ID,
			Text:  d.Text,
			Score: dot / (s.norms[i] * qnorm),
		})
	}
	sortHits(hits)

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
