// Package memory is an in-process VectorStore rebuilt from the corpus at startup.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

type entry struct {
	doc    domain.Document
	vector []float32
	norm   float64
}

type Store struct {
	mu      sync.RWMutex
	entries []entry
}

func NewStore() *Store {
	return &Store{}
}

// Upsert replaces all entries of the sources present in chunks.
func (s *Store) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "memory upsert",
			fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}

	replaced := make(map[string]struct{}, 1)
	for _, c := range chunks {
		replaced[c.Document.Source()] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if _, ok := replaced[e.doc.Source()]; !ok {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	for i, c := range chunks {
		s.entries = append(s.entries, entry{doc: c.Document, vector: vectors[i], norm: norm(vectors[i])})
	}
	return nil
}

// Search returns up to limit documents by descending cosine similarity.
func (s *Store) Search(_ context.Context, queryVector []float32, limit int) (domain.RankedList, error) {
	if limit <= 0 {
		limit = 4
	}
	qNorm := norm(queryVector)

	s.mu.RLock()
	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, 0, len(s.entries))
	for i, e := range s.entries {
		hits = append(hits, hit{idx: i, score: cosine(queryVector, qNorm, e.vector, e.norm)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make(domain.RankedList, 0, len(hits))
	for _, h := range hits {
		out = append(out, s.entries[h.idx].doc)
	}
	s.mu.RUnlock()

	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	n := min(len(a), len(b))
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
