package store

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

const (
	snapshotMagic   = "recipedex-store"
	snapshotVersion = 1
)

// snapshot is the on-disk form of a Store. Slices only: gob encodes them in
// order, so identical input produces identical bytes. Derived structures
// (id lookup, norms, term lookup) are rebuilt on load.
type snapshot struct {
	Magic   string
	Version int

	Model string
	Dim   int

	IDs     []string
	Texts   []string
	Vectors [][]float32

	Postings []posting
	DocLens  []int32
	AvgLen   float64

	CacheKeys []string
	CacheVecs [][]float32
}

// Persist writes the store atomically: encode to a temp file in the target
// directory, then rename over the destination. A crash mid-write leaves the
// previous file intact for any server still reading it.
func (s *Store) Persist(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := s.encode(tmp); err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish store file: %w", err)
	}
	return nil
}

// Load reads a previously persisted store. Unreadable data, a wrong magic or
// version, or internal inconsistency all map to domain.ErrCorruptStore.
func Load(path string) (*Store, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}
	defer f.Close()

	return decode(f)
}

func (s *Store) encode(w io.Writer) error {
	snap := snapshot{
		Magic:    snapshotMagic,
		Version:  snapshotVersion,
		Model:    s.model,
		Dim:      s.dim,
		IDs:      make([]string, len(s.docs)),
		Texts:    make([]string, len(s.docs)),
		Vectors:  make([][]float32, len(s.docs)),
		Postings: s.lex.postings,
		DocLens:  s.lex.docLens,
		AvgLen:   s.lex.avgLen,
	}
	for i, d := range s.docs {
		snap.IDs[i] = d.ID
		snap.Texts[i] = d.Text
		snap.Vectors[i] = d.Embedding
	}

	// Cache entries sorted by key so the snapshot bytes are deterministic.
	keys := make([]string, 0, len(s.cache))
	for k := range s.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	snap.CacheKeys = keys
	snap.CacheVecs = make([][]float32, len(keys))
	for i, k := range keys {
		snap.CacheVecs[i] = s.cache[k]
	}

	return gob.NewEncoder(w).Encode(&snap)
}

func decode(r io.Reader) (*Store, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode store: %v: %w", err, domain.ErrCorruptStore)
	}

	if snap.Magic != snapshotMagic {
		return nil, fmt.Errorf("unexpected file magic %q: %w", snap.Magic, domain.ErrCorruptStore)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported store version %d (want %d): %w",
			snap.Version, snapshotVersion, domain.ErrCorruptStore)
	}
	if len(snap.Texts) != len(snap.IDs) || len(snap.Vectors) != len(snap.IDs) ||
		len(snap.DocLens) != len(snap.IDs) || len(snap.CacheVecs) != len(snap.CacheKeys) {
		return nil, fmt.Errorf("inconsistent snapshot lengths: %w", domain.ErrCorruptStore)
	}

	s := &Store{
		model: snap.Model,
		dim:   snap.Dim,
		docs:  make([]domain.Document, len(snap.IDs)),
		byID:  make(map[string]int, len(snap.IDs)),
		lex: lexicalIndex{
			postings: snap.Postings,
			docLens:  snap.DocLens,
			avgLen:   snap.AvgLen,
		},
		cache: make(map[string][]float32, len(snap.CacheKeys)),
	}

	for i := range snap.IDs {
		if len(snap.Vectors[i]) != snap.Dim {
			return nil, fmt.Errorf("document %q: vector dimension %d, store dimension %d: %w",
				snap.IDs[i], len(snap.Vectors[i]), snap.Dim, domain.ErrCorruptStore)
		}
		if _, dup := s.byID[snap.IDs[i]]; dup {
			return nil, fmt.Errorf("duplicate document id %q: %w", snap.IDs[i], domain.ErrCorruptStore)
		}
		s.docs[i] = domain.Document{ID: snap.IDs[i], Text: snap.Texts[i], Embedding: snap.Vectors[i]}
		s.byID[snap.IDs[i]] = i
	}

	for i, k := range snap.CacheKeys {
		s.cache[k] = snap.CacheVecs[i]
	}

	s.norms = computeNorms(s.docs)
	s.lex.rebuildLookup()

	return s, nil
}
