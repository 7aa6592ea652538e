package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func useConfigFile(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if body != "" {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	t.Setenv("CONFIG_FILE", path)
}

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	useConfigFile(t, "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("RAG_FUSION_RRF_K", "")
	t.Setenv("CHUNK_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RAGTopK != 4 {
		t.Fatalf("expected default top k 4, got %d", cfg.RAGTopK)
	}
	if cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.ChunkSize != 200 || cfg.ChunkOverlap != 20 {
		t.Fatalf("expected chunking 200/20, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.VectorStore != VectorStoreMemory || cfg.LLMProvider != ProviderOllama {
		t.Fatalf("unexpected provider defaults: %s %s", cfg.VectorStore, cfg.LLMProvider)
	}
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	useConfigFile(t, `
rag_top_k: 6
rag_rerank_mode: lexical
route_labels: [leave_policy.txt, travel_policy.txt]
enable_semantic_routing: false
`)
	t.Setenv("RAG_TOP_K", "9")
	t.Setenv("ROUTE_LABELS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RAGTopK != 9 {
		t.Fatalf("expected env to override file, got %d", cfg.RAGTopK)
	}
	if cfg.RAGRerankMode != RerankLexical || cfg.EnableSemanticRouting {
		t.Fatalf("expected file values, got rerank=%s semantic=%v", cfg.RAGRerankMode, cfg.EnableSemanticRouting)
	}
	if len(cfg.RouteLabels) != 2 || cfg.RouteLabels[1] != "travel_policy.txt" {
		t.Fatalf("unexpected route labels %v", cfg.RouteLabels)
	}
}

func TestLoadParsesListAndBoolOverrides(t *testing.T) {
	useConfigFile(t, "")
	t.Setenv("ROUTE_LABELS", " a.txt, ,b.txt ")
	t.Setenv("ENABLE_LOGICAL_ROUTING", "false")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RUN_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if strings.Join(cfg.RouteLabels, "|") != "a.txt|b.txt" {
		t.Fatalf("unexpected labels %v", cfg.RouteLabels)
	}
	if cfg.EnableLogicalRouting || cfg.RateLimitRPS != 2.5 {
		t.Fatalf("unexpected overrides: logical=%v rps=%v", cfg.EnableLogicalRouting, cfg.RateLimitRPS)
	}
	if cfg.RunTimeout() != 120*time.Second {
		t.Fatalf("expected invalid int to keep default, got %s", cfg.RunTimeout())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	useConfigFile(t, "vector_store: chroma\n")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "vector_store") || !strings.Contains(err.Error(), "openai_api_key") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	useConfigFile(t, "rag_top_k: [oops\n")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.OpenAIAPIKey = "gsk-secret"
	cfg.PostgresDSN = "postgres://u:p@h/db"

	red := cfg.Redacted()
	if red.OpenAIAPIKey != "***" || red.PostgresDSN != "***" {
		t.Fatalf("expected secrets redacted, got %+v", red)
	}
	if cfg.OpenAIAPIKey != "gsk-secret" {
		t.Fatalf("expected original untouched")
	}
}

func TestResilienceMapsMilliseconds(t *testing.T) {
	cfg := Defaults()
	cfg.RetryInitialBackoffMS = 50
	cfg.BreakerEnabled = false

	rc := cfg.Resilience()
	if rc.RetryInitialBackoff != 50*time.Millisecond || rc.BreakerEnabled {
		t.Fatalf("unexpected resilience config %+v", rc)
	}
}
