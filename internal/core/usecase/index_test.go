package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

type loaderFake struct {
	files []domain.SourceFile
	err   error
}

func (f *loaderFake) Load(context.Context) ([]domain.SourceFile, error) {
	return f.files, f.err
}

type chunkerFake struct{}

func (chunkerFake) Split(text string) ([]string, error) {
	return strings.Fields(text), nil
}

type registryFake struct {
	sources  map[string]*domain.Source
	statuses map[string]domain.SourceStatus
	upserts  int
}

func newRegistryFake() *registryFake {
	return &registryFake{sources: map[string]*domain.Source{}, statuses: map[string]domain.SourceStatus{}}
}

func (f *registryFake) Upsert(_ context.Context, source *domain.Source) error {
	f.upserts++
	copied := *source
	f.sources[source.Filename] = &copied
	return nil
}

func (f *registryFake) GetByFilename(_ context.Context, filename string) (*domain.Source, error) {
	source, ok := f.sources[filename]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get source", errors.New(filename))
	}
	copied := *source
	return &copied, nil
}

func (f *registryFake) UpdateStatus(_ context.Context, id string, status domain.SourceStatus, chunkCount int, _ string) error {
	f.statuses[id] = status
	for _, s := range f.sources {
		if s.ID == id {
			s.Status = status
			s.ChunkCount = chunkCount
		}
	}
	return nil
}

func (f *registryFake) List(context.Context) ([]domain.Source, error) {
	out := make([]domain.Source, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, *s)
	}
	return out, nil
}

func TestIndexCorpusChunksEmbedsAndStores(t *testing.T) {
	loader := &loaderFake{files: []domain.SourceFile{
		{Filename: "leave_policy.txt", Text: "carry forward five days", Checksum: "c1"},
		{Filename: "it_and_security_policy.txt", Text: "vpn required", Checksum: "c2"},
	}}
	store := &storeFake{}
	uc := NewIndexCorpusUseCase(loader, chunkerFake{}, &embedderFake{}, store, nil)

	report, err := uc.IndexCorpus(context.Background())
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if report.Indexed != 2 || report.Chunks != 6 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(store.chunks) != 6 || len(store.vectors) != 6 {
		t.Fatalf("expected 6 stored chunks, got %d", len(store.chunks))
	}
	if store.chunks[0].Document.Source() != "leave_policy.txt" {
		t.Fatalf("expected source metadata, got %v", store.chunks[0].Document.Metadata)
	}
}

func TestIndexCorpusSkipsUnchangedSources(t *testing.T) {
	loader := &loaderFake{files: []domain.SourceFile{{Filename: "leave_policy.txt", Text: "a b", Checksum: "c1"}}}
	registry := newRegistryFake()
	store := &storeFake{}
	uc := NewIndexCorpusUseCase(loader, chunkerFake{}, &embedderFake{}, store, registry)

	if _, err := uc.IndexCorpus(context.Background()); err != nil {
		t.Fatalf("first index: %v", err)
	}
	report, err := uc.IndexCorpus(context.Background())
	if err != nil {
		t.Fatalf("second index: %v", err)
	}
	if report.Skipped != 1 || report.Indexed != 0 {
		t.Fatalf("expected unchanged file to be skipped, got %+v", report)
	}
	if len(store.chunks) != 2 {
		t.Fatalf("expected chunks stored once, got %d", len(store.chunks))
	}

	loader.files[0].Checksum = "c2"
	report, err = uc.IndexCorpus(context.Background())
	if err != nil || report.Indexed != 1 {
		t.Fatalf("expected changed file to be reindexed, got %+v err=%v", report, err)
	}
}

func TestIndexCorpusRecordsEmbeddingFailure(t *testing.T) {
	loader := &loaderFake{files: []domain.SourceFile{{Filename: "a.txt", Text: "x", Checksum: "c"}}}
	registry := newRegistryFake()
	uc := NewIndexCorpusUseCase(loader, chunkerFake{}, &embedderFake{err: errCollaborator}, &storeFake{}, registry)

	report, err := uc.IndexCorpus(context.Background())
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected unavailable when nothing indexed, got %v", err)
	}
	if report.Failed != 1 || len(report.Errors) != 1 {
		t.Fatalf("expected one failure, got %+v", report)
	}
	if registry.sources["a.txt"].Status != domain.SourceFailed {
		t.Fatalf("expected failed status, got %s", registry.sources["a.txt"].Status)
	}
}

func TestIndexCorpusEmptyCorpus(t *testing.T) {
	uc := NewIndexCorpusUseCase(&loaderFake{}, chunkerFake{}, &embedderFake{}, &storeFake{}, nil)
	if _, err := uc.IndexCorpus(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
