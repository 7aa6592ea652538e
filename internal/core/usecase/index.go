package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

// IndexCorpusUseCase loads the corpus, chunks each file and indexes the chunk
// vectors. With a registry, files whose checksum did not change are skipped.
type IndexCorpusUseCase struct {
	loader   ports.CorpusLoader
	chunker  ports.Chunker
	embedder ports.Embedder
	store    ports.VectorStore
	registry ports.SourceRegistry
	logger   *slog.Logger
}

func NewIndexCorpusUseCase(
	loader ports.CorpusLoader,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.VectorStore,
	registry ports.SourceRegistry,
) *IndexCorpusUseCase {
	return &IndexCorpusUseCase{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		registry: registry,
		logger:   slog.Default().With("component", "indexer"),
	}
}

func (uc *IndexCorpusUseCase) IndexCorpus(ctx context.Context) (*domain.IndexReport, error) {
	files, err := uc.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "load corpus", errors.New("no documents found"))
	}

	report := &domain.IndexReport{Files: len(files)}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		source, skip, err := uc.prepareSource(ctx, file)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", file.Filename, err))
			continue
		}
		if skip {
			report.Skipped++
			continue
		}

		chunks, err := uc.indexFile(ctx, source.ID, file)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", file.Filename, err))
			uc.markStatus(ctx, source.ID, domain.SourceFailed, 0, err.Error())
			uc.logger.Warn("index_file_failed", "filename", file.Filename, "error", err)
			continue
		}

		report.Indexed++
		report.Chunks += chunks
		uc.markStatus(ctx, source.ID, domain.SourceReady, chunks, "")
	}

	uc.logger.Info("corpus_indexed",
		"files", report.Files,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"chunks", report.Chunks,
	)
	if report.Indexed == 0 && report.Skipped == 0 {
		return report, domain.WrapError(domain.ErrUnavailable, "index corpus", errors.New("no file was indexed"))
	}
	return report, nil
}

// prepareSource registers the file and reports whether it is already indexed.
func (uc *IndexCorpusUseCase) prepareSource(ctx context.Context, file domain.SourceFile) (*domain.Source, bool, error) {
	now := time.Now().UTC()
	if uc.registry == nil {
		return &domain.Source{ID: uuid.NewString(), Filename: file.Filename}, false, nil
	}

	existing, err := uc.registry.GetByFilename(ctx, file.Filename)
	switch {
	case err == nil && existing.Checksum == file.Checksum && existing.Status == domain.SourceReady:
		return existing, true, nil
	case err != nil && !domain.IsKind(err, domain.ErrNotFound):
		return nil, false, fmt.Errorf("lookup source: %w", err)
	}

	source := &domain.Source{
		ID:        uuid.NewString(),
		Filename:  file.Filename,
		Path:      file.Path,
		Checksum:  file.Checksum,
		Status:    domain.SourceIndexing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		source.ID = existing.ID
		source.CreatedAt = existing.CreatedAt
	}
	if err := uc.registry.Upsert(ctx, source); err != nil {
		return nil, false, fmt.Errorf("register source: %w", err)
	}
	return source, false, nil
}

func (uc *IndexCorpusUseCase) indexFile(ctx context.Context, sourceID string, file domain.SourceFile) (int, error) {
	parts, err := uc.chunker.Split(file.Text)
	if err != nil {
		return 0, fmt.Errorf("split text: %w", err)
	}
	if len(parts) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, parts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(parts) {
		return 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(parts)),
		)
	}

	chunks := make([]domain.Chunk, 0, len(parts))
	for i, text := range parts {
		chunks = append(chunks, domain.Chunk{
			SourceID: sourceID,
			Index:    i,
			Document: domain.Document{
				Content: text,
				Metadata: map[string]any{
					domain.MetadataSource: file.Filename,
					"chunk_index":         i,
				},
			},
		})
	}

	if err := uc.store.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}
	return len(chunks), nil
}

func (uc *IndexCorpusUseCase) markStatus(ctx context.Context, id string, status domain.SourceStatus, chunks int, errMessage string) {
	if uc.registry == nil {
		return
	}
	if err := uc.registry.UpdateStatus(ctx, id, status, chunks, errMessage); err != nil {
		uc.logger.Warn("source_status_update_failed", "source_id", id, "status", status, "error", err)
	}
}
