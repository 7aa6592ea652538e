package ports

import (
	"context"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

// TextGenerator produces free text or a closed-set label. Implementations must be
// safe for concurrent use.
type TextGenerator interface {
	Generate(ctx context.Context, prompt domain.Prompt) (string, error)
	GenerateStructured(ctx context.Context, prompt domain.Prompt, labels []string) (string, error)
}

// Embedder builds vectors for documents and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever returns up to k documents for one query, most relevant first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (domain.RankedList, error)
}

// VectorStore indexes chunk vectors and performs similarity search.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) (domain.RankedList, error)
}

// Chunker splits source text into retrieval-sized passages.
type Chunker interface {
	Split(text string) ([]string, error)
}

// CorpusLoader reads the source files of the corpus.
type CorpusLoader interface {
	Load(ctx context.Context) ([]domain.SourceFile, error)
}

// SourceRegistry tracks which corpus files were indexed.
type SourceRegistry interface {
	Upsert(ctx context.Context, source *domain.Source) error
	GetByFilename(ctx context.Context, filename string) (*domain.Source, error)
	UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, chunkCount int, errMessage string) error
	List(ctx context.Context) ([]domain.Source, error)
}

// RunObserver is notified after every finished run.
type RunObserver interface {
	ObserveRun(ctx context.Context, run *domain.PipelineRun)
}
