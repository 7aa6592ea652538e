package ports

import (
	"context"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

// PipelineRunner is the inbound run contract. It never returns an error: failures
// are reported inside the run.
type PipelineRunner interface {
	Run(ctx context.Context, question string, method domain.TransformationMethod, topK int) *domain.PipelineRun
}

// CorpusIndexer rebuilds the retrieval index from the corpus.
type CorpusIndexer interface {
	IndexCorpus(ctx context.Context) (*domain.IndexReport, error)
}
