package store

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

// BM25 parameters (standard Robertson values).
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// posting records in which documents a term occurs and how often.
// Doc positions are ascending, so index construction and scoring walk
// documents in a fixed order.
type posting struct {
	Term  string
	Docs  []int32
	Freqs []int32
}

type lexicalIndex struct {
	postings []posting // sorted by term
	byTerm   map[string]int
	docLens  []int32
	avgLen   float64
}

// Tokenize lowercases text and splits it on anything that is not a letter or
// digit. Deliberately stemming- and stopword-free: ranking stays deterministic
// and language-neutral.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func buildLexicalIndex(docs []domain.Document) lexicalIndex {
	freq := make(map[string]map[int32]int32)
	docLens := make([]int32, len(docs))
	var totalLen int64

	for i, d := range docs {
		terms := Tokenize(d.Text)
		docLens[i] = int32(len(terms))
		totalLen += int64(len(terms))
		for _, t := range terms {
			m, ok := freq[t]
			if !ok {
				m = make(map[int32]int32)
				freq[t] = m
			}
			m[int32(i)]++
		}
	}

	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	idx := lexicalIndex{
		postings: make([]posting, 0, len(terms)),
		byTerm:   make(map[string]int, len(terms)),
		docLens:  docLens,
	}
	if len(docs) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(docs))
	}

	for _, t := range terms {
		m := freq[t]
		p := posting{Term: t, Docs: make([]int32, 0, len(m)), Freqs: make([]int32, 0, len(m))}
		ids := make([]int32, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		for _, id := range ids {
			p.Docs = append(p.Docs, id)
			p.Freqs = append(p.Freqs, m[id])
		}
		idx.byTerm[t] = len(idx.postings)
		idx.postings = append(idx.postings, p)
	}

	return idx
}

// rebuildLookup restores the derived term map after decoding a snapshot.
func (l *lexicalIndex) rebuildLookup() {
	l.byTerm = make(map[string]int, len(l.postings))
	for i, p := range l.postings {
		l.byTerm[p.Term] = i
	}
}

// BM25TopK scores documents against the query terms and returns at most k
// hits, best first. Ties break by document id ascending.
func (s *Store) BM25TopK(terms []string, k int) []domain.Hit {
	if k <= 0 || len(s.docs) == 0 || len(terms) == 0 {
		return nil
	}

	n := float64(len(s.docs))
	scores := make(map[int32]float64)

	for _, t := range terms {
		pi, ok := s.lex.byTerm[t]
		if !ok {
			continue
		}
		p := s.lex.postings[pi]
		df := float64(len(p.Docs))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for j, doc := range p.Docs {
			tf := float64(p.Freqs[j])
			dl := float64(s.lex.docLens[doc])
			denom := tf + bm25K1*(1-bm25B+bm25B*dl/s.lex.avgLen)
			scores[doc] += idf * tf * (bm25K1 + 1) / denom
		}
	}

	hits := make([]domain.Hit, 0, len(scores))
	for doc, score := range scores {
		d := s.docs[doc]
		hits = append(hits, domain.Hit{ID: d.ID, Text: d.Text, Score: score})
	}
	sortHits(hits)

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func sortHits(hits []domain.Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}
