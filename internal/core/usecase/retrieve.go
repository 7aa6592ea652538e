package usecase

import (
	"context"
	"fmt"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

const placeholderContent = "Mock document content"

// VectorRetriever embeds the query and searches the vector store.
type VectorRetriever struct {
	embedder ports.Embedder
	store    ports.VectorStore
}

func NewVectorRetriever(embedder ports.Embedder, store ports.VectorStore) *VectorRetriever {
	return &VectorRetriever{embedder: embedder, store: store}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int) (domain.RankedList, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := r.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search vector store: %w", err)
	}
	return docs, nil
}

// UnavailableRetriever stands in when the real retriever could not be built.
// It returns one placeholder document and never fails.
type UnavailableRetriever struct {
	reason string
}

func NewUnavailableRetriever(reason string) *UnavailableRetriever {
	if reason == "" {
		reason = "retriever is not available"
	}
	return &UnavailableRetriever{reason: reason}
}

func (r *UnavailableRetriever) Retrieve(context.Context, string, int) (domain.RankedList, error) {
	return domain.RankedList{{
		Content:  placeholderContent,
		Metadata: map[string]any{domain.MetadataSource: "unavailable"},
	}}, nil
}

func (r *UnavailableRetriever) DegradedReason() string {
	return r.reason
}

// degradedReason reports whether a retriever is the unavailable variant.
func degradedReason(retriever ports.Retriever) (string, bool) {
	u, ok := retriever.(interface{ DegradedReason() string })
	if !ok {
		return "", false
	}
	return u.DegradedReason(), true
}
