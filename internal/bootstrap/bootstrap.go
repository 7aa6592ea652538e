package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uptiq/policy-rag/internal/config"
	"github.com/uptiq/policy-rag/internal/core/ports"
	"github.com/uptiq/policy-rag/internal/core/usecase"
	"github.com/uptiq/policy-rag/internal/infrastructure/chunking"
	"github.com/uptiq/policy-rag/internal/infrastructure/corpus/localfs"
	natsqueue "github.com/uptiq/policy-rag/internal/infrastructure/queue/nats"
	"github.com/uptiq/policy-rag/internal/infrastructure/repository/postgres"
	"github.com/uptiq/policy-rag/internal/infrastructure/resilience"
	"github.com/uptiq/policy-rag/internal/observability/metrics"
)

type Options struct {
	Service string
	// Registerer receives pipeline and resilience metrics. Nil disables them.
	Registerer prometheus.Registerer
	// PublishRunEvents sends a summary of every run to NATS.
	PublishRunEvents bool
	// SkipStartupIndex leaves indexing to the caller.
	SkipStartupIndex bool
}

type App struct {
	Config config.Config

	Orchestrator *usecase.Orchestrator
	Indexer      ports.CorpusIndexer
	Registry     ports.SourceRegistry
	NATS         *natsqueue.Conn
	Executor     *resilience.Executor

	closers []func()
}

// New wires the pipeline. Collaborator outages that only affect retrieval put
// the orchestrator in degraded mode instead of failing startup.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := slog.Default().With("component", "bootstrap")
	app := &App{Config: cfg}

	executor := resilience.NewExecutor(cfg.Resilience())
	var observers []ports.RunObserver
	if opts.Registerer != nil {
		pipelineMetrics := metrics.NewPipelineMetrics(opts.Service, opts.Registerer)
		executor = executor.WithObserver(pipelineMetrics)
		observers = append(observers, pipelineMetrics)
	}
	app.Executor = executor

	generator, embedder, err := newModels(cfg, executor)
	if err != nil {
		return nil, err
	}

	degradedReason := ""
	store, persistent, err := newVectorStore(ctx, cfg, executor)
	if err != nil {
		degradedReason = err.Error()
		logger.Warn("vector_store_unavailable", "store", cfg.VectorStore, "error", err)
	}

	if persistent && cfg.PostgresDSN != "" {
		registry, closeDB, err := openRegistry(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Warn("source_registry_unavailable", "error", err)
		} else {
			app.Registry = registry
			app.closers = append(app.closers, closeDB)
		}
	} else if cfg.PostgresDSN != "" {
		logger.Info("source_registry_skipped", "reason", "vector store is not persistent")
	}

	if store != nil {
		app.Indexer = usecase.NewIndexCorpusUseCase(
			localfs.New(cfg.CorpusPath),
			chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
			embedder,
			store,
			app.Registry,
		)
		// An in-memory index is empty until the corpus is indexed.
		if !opts.SkipStartupIndex && (cfg.IndexOnStartup || !persistent) {
			if _, err := app.Indexer.IndexCorpus(ctx); err != nil {
				degradedReason = fmt.Sprintf("index corpus: %v", err)
				logger.Warn("startup_index_failed", "error", err)
			}
		}
	}

	var retriever ports.Retriever
	if degradedReason != "" {
		retriever = usecase.NewUnavailableRetriever(degradedReason)
	} else {
		retriever = usecase.NewVectorRetriever(embedder, store)
	}

	orchestratorOpts := usecase.OrchestratorOptions{
		TopK:          cfg.RAGTopK,
		RRFK:          cfg.RAGFusionRRFK,
		LexicalRerank: cfg.RAGRerankMode == config.RerankLexical,
	}
	if cfg.EnableLogicalRouting {
		labels := cfg.RouteLabels
		if len(labels) == 0 {
			labels = usecase.DefaultRouteLabels()
		}
		router, err := usecase.NewLogicalRouter(generator, labels)
		if err != nil {
			return nil, fmt.Errorf("init logical router: %w", err)
		}
		orchestratorOpts.LogicalRouter = router
		app.Config.RouteLabels = router.Labels()
	}
	if cfg.EnableSemanticRouting {
		router, err := usecase.NewSemanticRouter(ctx, embedder, usecase.DefaultDomainTemplates())
		if err != nil {
			logger.Warn("semantic_router_disabled", "error", err)
		} else {
			orchestratorOpts.SemanticRouter = router
		}
	}

	if cfg.NATSURL != "" {
		conn, err := natsqueue.Connect(cfg.NATSURL, natsqueue.Options{
			Name:               opts.Service,
			ResilienceExecutor: executor,
		})
		if err != nil {
			logger.Warn("nats_unavailable", "error", err)
		} else {
			app.NATS = conn
			app.closers = append(app.closers, conn.Close)
			if opts.PublishRunEvents {
				observers = append(observers, natsqueue.NewRunPublisher(conn, cfg.NATSRunsSubject))
			}
		}
	}
	orchestratorOpts.Observers = observers

	app.Orchestrator = usecase.NewOrchestrator(generator, retriever, orchestratorOpts)
	if reason, ok := app.Orchestrator.Degraded(); ok {
		logger.Warn("pipeline_degraded", "reason", reason)
	}
	logger.Info("pipeline_initialized",
		"llm_provider", cfg.LLMProvider,
		"embed_provider", cfg.EmbedProvider,
		"vector_store", cfg.VectorStore,
		"logical_routing", orchestratorOpts.LogicalRouter != nil,
		"semantic_routing", orchestratorOpts.SemanticRouter != nil,
	)
	return app, nil
}

func openRegistry(ctx context.Context, dsn string) (*postgres.SourceRepository, func(), error) {
	db, err := postgres.OpenDB(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSourceRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, closeDB(db), nil
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
