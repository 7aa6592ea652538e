package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

// Loader reads policy documents from a flat directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

func New(dir string) *Loader {
	return &Loader{
		dir:    dir,
		logger: slog.Default().With("component", "corpus_loader"),
	}
}

// Load returns every supported file in the directory sorted by filename.
// Unsupported or unreadable files are logged and skipped.
func (l *Loader) Load(ctx context.Context) ([]domain.SourceFile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "read corpus dir", err)
		}
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	files := make([]domain.SourceFile, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		extract, ok := extractors[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			l.logger.Debug("corpus_file_unsupported", "filename", entry.Name())
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("corpus_file_read_failed", "filename", entry.Name(), "error", err)
			continue
		}
		text, err := extract(path, raw)
		if err != nil {
			l.logger.Warn("corpus_file_extract_failed", "filename", entry.Name(), "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			l.logger.Warn("corpus_file_empty", "filename", entry.Name())
			continue
		}

		sum := sha256.Sum256(raw)
		files = append(files, domain.SourceFile{
			Filename: entry.Name(),
			Path:     path,
			Text:     text,
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

// Extensions lists the file types Load understands.
func Extensions() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
