package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const MetadataSource = "source"

// Document is a retrieved passage. The core only reorders, filters or serializes it.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RankedList is the relevance-ordered result for one query.
type RankedList []Document

type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

func (d Document) Source() string {
	v, ok := d.Metadata[MetadataSource]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Identity is a stable content-based key. encoding/json sorts map keys, so equal
// content and metadata always serialize to the same string.
func (d Document) Identity() string {
	raw, err := json.Marshal(struct {
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}{Content: d.Content, Metadata: d.Metadata})
	if err != nil {
		return fmt.Sprintf("%q|%v", d.Content, d.Metadata)
	}
	return string(raw)
}

// Preview returns at most n runes of content followed by an ellipsis.
func (d Document) Preview(n int) string {
	runes := []rune(d.Content)
	if n <= 0 || len(runes) <= n {
		return d.Content + "..."
	}
	return string(runes[:n]) + "..."
}

// JoinContents builds prompt context: payloads separated by a blank line, in order.
func JoinContents(docs []Document) string {
	size := 0
	for _, doc := range docs {
		size += len(doc.Content) + 2
	}
	out := make([]byte, 0, size)
	for i, doc := range docs {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, doc.Content...)
	}
	return string(out)
}

type SourceStatus string

const (
	SourceIndexing SourceStatus = "indexing"
	SourceReady    SourceStatus = "ready"
	SourceFailed   SourceStatus = "failed"
)

// Source is a corpus file tracked by the indexer.
type Source struct {
	ID         string       `json:"id"`
	Filename   string       `json:"filename"`
	Path       string       `json:"path"`
	Checksum   string       `json:"checksum"`
	ChunkCount int          `json:"chunk_count"`
	Status     SourceStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// SourceFile is raw text loaded from the corpus directory.
type SourceFile struct {
	Filename string
	Path     string
	Text     string
	Checksum string
}

// Chunk is a unit handed to the vector store.
type Chunk struct {
	SourceID string
	Index    int
	Document Document
}

// IndexReport summarizes one corpus indexing pass.
type IndexReport struct {
	Files   int      `json:"files"`
	Indexed int      `json:"indexed"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Chunks  int      `json:"chunks"`
	Errors  []string `json:"errors,omitempty"`
}
