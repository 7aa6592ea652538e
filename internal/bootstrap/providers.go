package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/uptiq/policy-rag/internal/config"
	"github.com/uptiq/policy-rag/internal/core/ports"
	"github.com/uptiq/policy-rag/internal/infrastructure/llm/ollama"
	"github.com/uptiq/policy-rag/internal/infrastructure/llm/openaicompat"
	"github.com/uptiq/policy-rag/internal/infrastructure/resilience"
	"github.com/uptiq/policy-rag/internal/infrastructure/vector/memory"
	"github.com/uptiq/policy-rag/internal/infrastructure/vector/qdrant"
)

func newModels(cfg config.Config, executor *resilience.Executor) (ports.TextGenerator, ports.Embedder, error) {
	var ollamaClient *ollama.Client
	ollamaFor := func() *ollama.Client {
		if ollamaClient == nil {
			timeout := time.Duration(cfg.OllamaTimeoutSeconds) * time.Second
			ollamaClient = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, timeout, executor)
		}
		return ollamaClient
	}
	openaiCfg := openaicompat.Config{
		BaseURL:        cfg.OpenAIBaseURL,
		APIKey:         cfg.OpenAIAPIKey,
		Model:          cfg.OpenAIModel,
		EmbeddingModel: cfg.OpenAIEmbedModel,
	}

	var generator ports.TextGenerator
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		generator = ollama.NewGenerator(ollamaFor())
	case config.ProviderOpenAI:
		g, err := openaicompat.NewGenerator(openaiCfg, executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init openai generator: %w", err)
		}
		generator = g
	default:
		return nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}

	var embedder ports.Embedder
	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		embedder = ollama.NewEmbedder(ollamaFor())
	case config.ProviderOpenAI:
		e, err := openaicompat.NewEmbedder(openaiCfg, executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init openai embedder: %w", err)
		}
		embedder = e
	default:
		return nil, nil, fmt.Errorf("unsupported embed provider %q", cfg.EmbedProvider)
	}
	return generator, embedder, nil
}

// newVectorStore returns the store and whether it survives restarts.
func newVectorStore(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.VectorStore, bool, error) {
	switch cfg.VectorStore {
	case config.VectorStoreMemory:
		return memory.NewStore(), false, nil
	case config.VectorStoreQdrant:
		client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
		if err := client.Ping(ctx); err != nil {
			return nil, true, fmt.Errorf("qdrant unreachable: %w", err)
		}
		return client, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported vector store %q", cfg.VectorStore)
	}
}
