package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

type storeFake struct {
	limit   int
	vector  []float32
	docs    domain.RankedList
	err     error
	chunks  []domain.Chunk
	vectors [][]float32
}

func (f *storeFake) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.chunks = append(f.chunks, chunks...)
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *storeFake) Search(_ context.Context, vector []float32, limit int) (domain.RankedList, error) {
	f.vector = vector
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func TestVectorRetrieverEmbedsAndSearches(t *testing.T) {
	embedder := &embedderFake{vectors: map[string][]float32{"leave": {0.5, 0.5}}}
	store := &storeFake{docs: domain.RankedList{doc("x", "leave_policy.txt")}}

	docs, err := NewVectorRetriever(embedder, store).Retrieve(context.Background(), "leave", 4)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) != 1 || store.limit != 4 || store.vector[0] != 0.5 {
		t.Fatalf("unexpected search call: limit=%d vector=%v docs=%v", store.limit, store.vector, docs)
	}
}

func TestVectorRetrieverPropagatesEmbedError(t *testing.T) {
	embedder := &embedderFake{err: errCollaborator}
	_, err := NewVectorRetriever(embedder, &storeFake{}).Retrieve(context.Background(), "q", 4)
	if !errors.Is(err, errCollaborator) {
		t.Fatalf("expected embed error, got %v", err)
	}
}

func TestUnavailableRetrieverReturnsPlaceholder(t *testing.T) {
	r := NewUnavailableRetriever("")
	docs, err := r.Retrieve(context.Background(), "anything", 10)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != placeholderContent {
		t.Fatalf("expected single placeholder, got %v", docs)
	}
	reason, ok := degradedReason(r)
	if !ok || reason == "" {
		t.Fatalf("expected degraded reason, got %q %v", reason, ok)
	}
	if _, ok := degradedReason(&retrieverFake{}); ok {
		t.Fatalf("expected regular retriever not to be degraded")
	}
}
