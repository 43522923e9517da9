package retriever

import (
	"sort"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

// absentRank marks a document missing from one of the rankings.
const absentRank = 1 << 30

// fuseWeighted merges the vector and lexical rankings. Each list's scores are
// min-max normalized to [0,1] and combined as w*vector + (1-w)*lexical; a
// document missing from a list contributes 0 for that side. Ties break by
// vector rank, then lexical rank, then document id, so identical inputs
// always produce identical output.
func fuseWeighted(vec, lex []domain.Hit, k int, w float64) []domain.Hit {
	type fused struct {
		hit     domain.Hit
		score   float64
		vecRank int
		lexRank int
	}

	merged := make(map[string]*fused, len(vec)+len(lex))

	vecNorm := normalize(vec)
	for rank, h := range vec {
		merged[h.ID] = &fused{hit: h, score: w * vecNorm[rank], vecRank: rank, lexRank: absentRank}
	}

	lexNorm := normalize(lex)
	for rank, h := range lex {
		if f, ok := merged[h.ID]; ok {
			f.score += (1 - w) * lexNorm[rank]
			f.lexRank = rank
			continue
		}
		merged[h.ID] = &fused{hit: h, score: (1 - w) * lexNorm[rank], vecRank: absentRank, lexRank: rank}
	}

	all := make([]*fused, 0, len(merged))
	for _, f := range merged {
		all = append(all, f)
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.vecRank != b.vecRank {
			return a.vecRank < b.vecRank
		}
		if a.lexRank != b.lexRank {
			return a.lexRank < b.lexRank
		}
		return a.hit.ID < b.hit.ID
	})

	if len(all) > k {
		all = all[:k]
	}

	out := make([]domain.Hit, len(all))
	for i, f := range all {
		out[i] = f.hit
		out[i].Score = f.score
	}
	return out
}

// normalize maps a ranking's scores onto [0,1] by position: min-max over the
// list, with a constant-score list collapsing to all ones.
func normalize(hits []domain.Hit) []float64 {
	if len(hits) == 0 {
		return nil
	}

	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}

	out := make([]float64, len(hits))
	if hi == lo {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, h := range hits {
		out[i] = (h.Score - lo) / (hi - lo)
	}
	return out
}
