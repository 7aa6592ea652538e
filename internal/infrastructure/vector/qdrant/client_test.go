package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

func chunksFor(source string, texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		out = append(out, domain.Chunk{
			Index: i,
			Document: domain.Document{
				Content:  text,
				Metadata: map[string]any{domain.MetadataSource: source},
			},
		})
	}
	return out
}

func TestUpsertEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls, deleteCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPost && r.URL.Path == "/collections/docs/points/delete":
			atomic.AddInt32(&deleteCalls, 1)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	chunks := chunksFor("a.txt", "a", "b")
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if got := atomic.LoadInt32(&deleteCalls); got != 2 {
		t.Fatalf("expected stale points deleted per upsert, got %d", got)
	}
}

func TestEnsureCollectionAcceptsConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/docs" {
			http.Error(w, "exists", http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if err := New(server.URL, "docs", nil).Upsert(context.Background(), chunksFor("a.txt", "a"), [][]float32{{1}}); err != nil {
		t.Fatalf("expected 409 to be accepted, got %v", err)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusBadRequest)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	err := New(server.URL, "docs", nil).Upsert(context.Background(), chunksFor("a.txt", "a"), [][]float32{{0.1, 0.2}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestSearchDecodesDocuments(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/docs/points/query" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"result":{"points":[
			{"score":0.9,"payload":{"content":"carry forward 5 days","metadata":{"source":"leave_policy.txt"}}},
			{"score":0.5,"payload":{"content":"vpn","metadata":{"source":"it_and_security_policy.txt"}}}
		]}}`))
	}))
	defer server.Close()

	docs, err := New(server.URL, "docs", nil).Search(context.Background(), []float32{0.1}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) != 2 || docs[0].Source() != "leave_policy.txt" || docs[0].Content != "carry forward 5 days" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if captured["limit"].(float64) != 2 {
		t.Fatalf("expected limit 2, got %v", captured["limit"])
	}
}

func TestPointIDStablePerSourceAndIndex(t *testing.T) {
	a := chunksFor("a.txt", "x", "y")
	b := chunksFor("a.txt", "changed")
	if pointID(a[0]) != pointID(b[0]) {
		t.Fatalf("expected same id for same source and index")
	}
	if pointID(a[0]) == pointID(a[1]) {
		t.Fatalf("expected different ids for different chunk indexes")
	}
}

func TestPingListsCollections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/collections" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"collections":[]},"status":"ok"}`))
	}))
	defer server.Close()

	if err := New(server.URL, "docs", nil).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := New(server.URL+"/missing", "docs", nil).Ping(context.Background()); err == nil {
		t.Fatalf("expected error for unreachable endpoint")
	}
}
