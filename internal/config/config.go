package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uptiq/policy-rag/internal/infrastructure/resilience"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	VectorStoreMemory = "memory"
	VectorStoreQdrant = "qdrant"

	RerankNone    = "none"
	RerankLexical = "lexical"
)

type Config struct {
	APIPort  string `yaml:"api_port" json:"api_port"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	LLMProvider   string `yaml:"llm_provider" json:"llm_provider"`
	EmbedProvider string `yaml:"embed_provider" json:"embed_provider"`

	OllamaURL            string `yaml:"ollama_url" json:"ollama_url"`
	OllamaGenModel       string `yaml:"ollama_gen_model" json:"ollama_gen_model"`
	OllamaEmbedModel     string `yaml:"ollama_embed_model" json:"ollama_embed_model"`
	OllamaTimeoutSeconds int    `yaml:"ollama_timeout_seconds" json:"ollama_timeout_seconds"`

	OpenAIBaseURL    string `yaml:"openai_base_url" json:"openai_base_url"`
	OpenAIAPIKey     string `yaml:"openai_api_key" json:"openai_api_key"`
	OpenAIModel      string `yaml:"openai_model" json:"openai_model"`
	OpenAIEmbedModel string `yaml:"openai_embed_model" json:"openai_embed_model"`

	VectorStore      string `yaml:"vector_store" json:"vector_store"`
	QdrantURL        string `yaml:"qdrant_url" json:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection" json:"qdrant_collection"`

	CorpusPath     string `yaml:"corpus_path" json:"corpus_path"`
	IndexOnStartup bool   `yaml:"index_on_startup" json:"index_on_startup"`
	ChunkSize      int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap" json:"chunk_overlap"`

	RAGTopK           int    `yaml:"rag_top_k" json:"rag_top_k"`
	RAGFusionRRFK     int    `yaml:"rag_fusion_rrf_k" json:"rag_fusion_rrf_k"`
	RAGRerankMode     string `yaml:"rag_rerank_mode" json:"rag_rerank_mode"`
	RunTimeoutSeconds int    `yaml:"run_timeout_seconds" json:"run_timeout_seconds"`

	RouteLabels           []string `yaml:"route_labels" json:"route_labels"`
	EnableLogicalRouting  bool     `yaml:"enable_logical_routing" json:"enable_logical_routing"`
	EnableSemanticRouting bool     `yaml:"enable_semantic_routing" json:"enable_semantic_routing"`

	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`

	NATSURL            string `yaml:"nats_url" json:"nats_url"`
	NATSRunsSubject    string `yaml:"nats_runs_subject" json:"nats_runs_subject"`
	NATSQueriesSubject string `yaml:"nats_queries_subject" json:"nats_queries_subject"`
	NATSQueueGroup     string `yaml:"nats_queue_group" json:"nats_queue_group"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" json:"rate_limit_burst"`
	MaxInFlight    int     `yaml:"max_in_flight" json:"max_in_flight"`

	RetryMaxAttempts      int  `yaml:"retry_max_attempts" json:"retry_max_attempts"`
	RetryInitialBackoffMS int  `yaml:"retry_initial_backoff_ms" json:"retry_initial_backoff_ms"`
	RetryMaxBackoffMS     int  `yaml:"retry_max_backoff_ms" json:"retry_max_backoff_ms"`
	BreakerEnabled        bool `yaml:"breaker_enabled" json:"breaker_enabled"`

	WorkerMetricsPort string `yaml:"worker_metrics_port" json:"worker_metrics_port"`
}

func Defaults() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		LLMProvider:   ProviderOllama,
		EmbedProvider: ProviderOllama,

		OllamaURL:            "http://localhost:11434",
		OllamaGenModel:       "llama3.1:8b",
		OllamaEmbedModel:     "nomic-embed-text",
		OllamaTimeoutSeconds: 90,

		OpenAIBaseURL:    "https://api.groq.com/openai/v1",
		OpenAIModel:      "llama-3.1-8b-instant",
		OpenAIEmbedModel: "text-embedding-3-small",

		VectorStore:      VectorStoreMemory,
		QdrantURL:        "http://localhost:6333",
		QdrantCollection: "hr_policies",

		CorpusPath:     "./data/policies",
		IndexOnStartup: true,
		ChunkSize:      200,
		ChunkOverlap:   20,

		RAGTopK:           4,
		RAGFusionRRFK:     60,
		RAGRerankMode:     RerankNone,
		RunTimeoutSeconds: 120,

		EnableLogicalRouting:  true,
		EnableSemanticRouting: true,

		NATSRunsSubject:    "rag.runs",
		NATSQueriesSubject: "rag.queries",
		NATSQueueGroup:     "rag-workers",

		RateLimitRPS:   10,
		RateLimitBurst: 20,
		MaxInFlight:    64,

		RetryMaxAttempts:      3,
		RetryInitialBackoffMS: 200,
		RetryMaxBackoffMS:     2000,
		BreakerEnabled:        true,

		WorkerMetricsPort: "9090",
	}
}

// Load applies defaults, then the YAML file named by CONFIG_FILE (config.yml
// when unset, skipped if missing), then environment overrides.
func Load() (Config, error) {
	cfg := Defaults()

	path := mustEnv("CONFIG_FILE", "config.yml")
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.APIPort = mustEnv("API_PORT", c.APIPort)
	c.LogLevel = mustEnv("LOG_LEVEL", c.LogLevel)

	c.LLMProvider = mustEnv("LLM_PROVIDER", c.LLMProvider)
	c.EmbedProvider = mustEnv("EMBED_PROVIDER", c.EmbedProvider)

	c.OllamaURL = mustEnv("OLLAMA_URL", c.OllamaURL)
	c.OllamaGenModel = mustEnv("OLLAMA_GEN_MODEL", c.OllamaGenModel)
	c.OllamaEmbedModel = mustEnv("OLLAMA_EMBED_MODEL", c.OllamaEmbedModel)
	c.OllamaTimeoutSeconds = mustEnvInt("OLLAMA_TIMEOUT_SECONDS", c.OllamaTimeoutSeconds)

	c.OpenAIBaseURL = mustEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIAPIKey = mustEnv("OPENAI_API_KEY", mustEnv("GROQ_API_KEY", c.OpenAIAPIKey))
	c.OpenAIModel = mustEnv("OPENAI_MODEL", c.OpenAIModel)
	c.OpenAIEmbedModel = mustEnv("OPENAI_EMBED_MODEL", c.OpenAIEmbedModel)

	c.VectorStore = mustEnv("VECTOR_STORE", c.VectorStore)
	c.QdrantURL = mustEnv("QDRANT_URL", c.QdrantURL)
	c.QdrantCollection = mustEnv("QDRANT_COLLECTION", c.QdrantCollection)

	c.CorpusPath = mustEnv("CORPUS_PATH", c.CorpusPath)
	c.IndexOnStartup = mustEnvBool("INDEX_ON_STARTUP", c.IndexOnStartup)
	c.ChunkSize = mustEnvInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = mustEnvInt("CHUNK_OVERLAP", c.ChunkOverlap)

	c.RAGTopK = mustEnvInt("RAG_TOP_K", c.RAGTopK)
	c.RAGFusionRRFK = mustEnvInt("RAG_FUSION_RRF_K", c.RAGFusionRRFK)
	c.RAGRerankMode = mustEnv("RAG_RERANK_MODE", c.RAGRerankMode)
	c.RunTimeoutSeconds = mustEnvInt("RUN_TIMEOUT_SECONDS", c.RunTimeoutSeconds)

	c.RouteLabels = mustEnvList("ROUTE_LABELS", c.RouteLabels)
	c.EnableLogicalRouting = mustEnvBool("ENABLE_LOGICAL_ROUTING", c.EnableLogicalRouting)
	c.EnableSemanticRouting = mustEnvBool("ENABLE_SEMANTIC_ROUTING", c.EnableSemanticRouting)

	c.PostgresDSN = mustEnv("POSTGRES_DSN", c.PostgresDSN)

	c.NATSURL = mustEnv("NATS_URL", c.NATSURL)
	c.NATSRunsSubject = mustEnv("NATS_RUNS_SUBJECT", c.NATSRunsSubject)
	c.NATSQueriesSubject = mustEnv("NATS_QUERIES_SUBJECT", c.NATSQueriesSubject)
	c.NATSQueueGroup = mustEnv("NATS_QUEUE_GROUP", c.NATSQueueGroup)

	c.RateLimitRPS = mustEnvFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = mustEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.MaxInFlight = mustEnvInt("MAX_IN_FLIGHT", c.MaxInFlight)

	c.RetryMaxAttempts = mustEnvInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryInitialBackoffMS = mustEnvInt("RETRY_INITIAL_BACKOFF_MS", c.RetryInitialBackoffMS)
	c.RetryMaxBackoffMS = mustEnvInt("RETRY_MAX_BACKOFF_MS", c.RetryMaxBackoffMS)
	c.BreakerEnabled = mustEnvBool("BREAKER_ENABLED", c.BreakerEnabled)

	c.WorkerMetricsPort = mustEnv("WORKER_METRICS_PORT", c.WorkerMetricsPort)
}

func (c Config) Validate() error {
	var errs []error
	for _, p := range []struct{ key, value string }{
		{"llm_provider", c.LLMProvider},
		{"embed_provider", c.EmbedProvider},
	} {
		if p.value != ProviderOllama && p.value != ProviderOpenAI {
			errs = append(errs, fmt.Errorf("%s: unsupported provider %q", p.key, p.value))
		}
	}
	if c.VectorStore != VectorStoreMemory && c.VectorStore != VectorStoreQdrant {
		errs = append(errs, fmt.Errorf("vector_store: unsupported store %q", c.VectorStore))
	}
	if c.RAGRerankMode != RerankNone && c.RAGRerankMode != RerankLexical {
		errs = append(errs, fmt.Errorf("rag_rerank_mode: unsupported mode %q", c.RAGRerankMode))
	}
	if c.LLMProvider == ProviderOpenAI && c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("openai_api_key: required when llm_provider=openai"))
	}
	return errors.Join(errs...)
}

func (c Config) Resilience() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.RetryMaxAttempts = c.RetryMaxAttempts
	cfg.RetryInitialBackoff = time.Duration(c.RetryInitialBackoffMS) * time.Millisecond
	cfg.RetryMaxBackoff = time.Duration(c.RetryMaxBackoffMS) * time.Millisecond
	cfg.BreakerEnabled = c.BreakerEnabled
	return cfg
}

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// Redacted returns a copy safe to expose over the API.
func (c Config) Redacted() Config {
	out := c
	if out.OpenAIAPIKey != "" {
		out.OpenAIAPIKey = "***"
	}
	if out.PostgresDSN != "" {
		out.PostgresDSN = "***"
	}
	out.RouteLabels = append([]string(nil), c.RouteLabels...)
	return out
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
