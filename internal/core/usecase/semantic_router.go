package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

const semanticRouterName = "semantic"

// SemanticRouter picks the domain template nearest to the question. Template
// vectors are computed once and only read afterwards.
type SemanticRouter struct {
	embedder  ports.Embedder
	templates []domain.DomainTemplate
	vectors   [][]float32
}

func NewSemanticRouter(ctx context.Context, embedder ports.Embedder, templates []domain.DomainTemplate) (*SemanticRouter, error) {
	if len(templates) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new semantic router", fmt.Errorf("no domain templates"))
	}

	texts := make([]string, 0, len(templates))
	for _, tpl := range templates {
		texts = append(texts, tpl.Text)
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed domain templates: %w", err)
	}
	if len(vectors) != len(templates) {
		return nil, fmt.Errorf("embed domain templates: expected %d vectors, got %d", len(templates), len(vectors))
	}

	return &SemanticRouter{
		embedder:  embedder,
		templates: append([]domain.DomainTemplate(nil), templates...),
		vectors:   vectors,
	}, nil
}

func (r *SemanticRouter) Route(ctx context.Context, question string) (*domain.SemanticRoute, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, &domain.RoutingError{Router: semanticRouterName, Err: err}
	}

	best := -1
	var bestScore float64
	for i, vector := range r.vectors {
		score, err := cosineSimilarity(queryVector, vector)
		if err != nil {
			return nil, &domain.RoutingError{
				Router: semanticRouterName,
				Err:    fmt.Errorf("template %q: %w", r.templates[i].Name, err),
			}
		}
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	return &domain.SemanticRoute{
		TemplateName:    r.templates[best].Name,
		Template:        r.templates[best].Text,
		SimilarityScore: bestScore,
	}, nil
}

// cosineSimilarity is the normalized dot product; a zero-norm side yields 0.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimension mismatch: query has %d, template has %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
