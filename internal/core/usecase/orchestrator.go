package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

const (
	defaultTopK        = 4
	previewLength      = 100
	errorAnswerPrefix  = "Error processing query: "
	fusionReciprocal   = "reciprocal_rank_fusion"
	fusionLexicalBoost = "reciprocal_rank_fusion+lexical"
)

var placeholderAnswers = map[domain.SynthesisStrategy]string{
	domain.SynthesisDirect:     "Mock response: This is a placeholder response since the retriever is not available.",
	domain.SynthesisDecomposed: "Mock decomposed response: This is a placeholder response.",
	domain.SynthesisStepBack:   "Mock step-back response: This is a placeholder response.",
}

// LabelRouter is the logical routing capability used by the orchestrator.
type LabelRouter interface {
	Route(ctx context.Context, question string) (domain.RouteLabel, error)
}

// TemplateRouter is the semantic routing capability used by the orchestrator.
type TemplateRouter interface {
	Route(ctx context.Context, question string) (*domain.SemanticRoute, error)
}

type OrchestratorOptions struct {
	TopK          int
	RRFK          int
	LexicalRerank bool
	// Routers are optional; a nil router leaves its routing slot empty.
	LogicalRouter  LabelRouter
	SemanticRouter TemplateRouter
	Observers      []ports.RunObserver
}

// Orchestrator sequences transform, retrieve, rerank, route and generate for one
// question. It holds only shared read-only collaborators; every run owns its record.
type Orchestrator struct {
	transformer *QueryTransformer
	responder   *ResponseGenerator
	retriever   ports.Retriever
	opts        OrchestratorOptions
	logger      *slog.Logger
}

func NewOrchestrator(generator ports.TextGenerator, retriever ports.Retriever, opts OrchestratorOptions) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.RRFK <= 0 {
		opts.RRFK = defaultRRFK
	}
	return &Orchestrator{
		transformer: NewQueryTransformer(generator),
		responder:   NewResponseGenerator(generator),
		retriever:   retriever,
		opts:        opts,
		logger:      slog.Default().With("component", "orchestrator"),
	}
}

// Degraded reports whether runs are served by the unavailable retriever.
func (o *Orchestrator) Degraded() (string, bool) {
	return degradedReason(o.retriever)
}

// Run executes one pipeline run. Failures are reported in the returned run.
func (o *Orchestrator) Run(ctx context.Context, question string, method domain.TransformationMethod, topK int) (run *domain.PipelineRun) {
	started := time.Now()
	if topK <= 0 {
		topK = o.opts.TopK
	}
	run = &domain.PipelineRun{
		RunID:     uuid.NewString(),
		Query:     question,
		Method:    method,
		TopK:      topK,
		StartedAt: started.UTC(),
	}
	if reason, ok := o.Degraded(); ok {
		run.Degraded = true
		run.DegradedReason = reason
	}

	defer func() {
		if rec := recover(); rec != nil {
			o.fail(run, "panic", fmt.Errorf("panic: %v", rec))
		}
		run.ExecutionTime = time.Since(started).Seconds()
		o.finish(ctx, run)
	}()

	queries, err := o.transformer.Transform(ctx, question, method)
	if err != nil {
		o.fail(run, "query_transformation", err)
		return run
	}
	run.PipelineStages.QueryTransformation = &domain.TransformationStage{
		Method:             method,
		TransformedQueries: queries,
	}

	lists, err := o.retrieveAll(ctx, queries, topK)
	if err != nil {
		o.fail(run, "retrieval", err)
		return run
	}
	docs := []domain.Document(lists[0])
	if len(lists) > 1 {
		docs = UniqueUnion(lists)
	}
	run.PipelineStages.Retrieval = retrievalSnapshot(docs, len(queries))

	if method.Reranks() && len(docs) > 1 {
		var stage *domain.RerankingStage
		docs, stage = o.rerank(question, method, lists, topK)
		run.PipelineStages.Reranking = stage
	}

	run.PipelineStages.Routing = o.route(ctx, question)

	answer, stage, err := o.generate(ctx, run, question, method, queries, lists, docs, topK)
	if err != nil {
		o.fail(run, "generation", err)
		return run
	}
	run.PipelineStages.Generation = stage
	run.FinalAnswer = answer
	return run
}

// retrieveAll fetches one ranked list per query, concurrently when there are several.
func (o *Orchestrator) retrieveAll(ctx context.Context, queries []string, topK int) ([]domain.RankedList, error) {
	lists := make([]domain.RankedList, len(queries))
	if len(queries) == 1 {
		docs, err := o.retriever.Retrieve(ctx, queries[0], topK)
		if err != nil {
			return nil, &domain.RetrievalError{Query: queries[0], Err: err}
		}
		lists[0] = docs
		return lists, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(queries))
	for i, query := range queries {
		g.Go(func() error {
			docs, err := guardCall("retriever", func() (domain.RankedList, error) {
				return o.retriever.Retrieve(gctx, query, topK)
			})
			if err != nil {
				return &domain.RetrievalError{Query: query, Err: err}
			}
			lists[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

func (o *Orchestrator) rerank(
	question string,
	method domain.TransformationMethod,
	lists []domain.RankedList,
	topK int,
) ([]domain.Document, *domain.RerankingStage) {
	fused := ReciprocalRankFusion(lists, o.opts.RRFK)
	fusion := fusionReciprocal
	if o.opts.LexicalRerank {
		fused = LexicalRerank(question, fused, len(fused))
		fusion = fusionLexicalBoost
	}
	fused = trimScored(fused, topK)

	scores := make([]float64, 0, len(fused))
	for _, d := range fused {
		scores = append(scores, d.Score)
	}
	return unscored(fused), &domain.RerankingStage{
		Method:       method,
		Fusion:       fusion,
		K:            o.opts.RRFK,
		NumDocuments: len(fused),
		Scores:       scores,
	}
}

// route runs both routers concurrently. Router failures stay inside their slot.
func (o *Orchestrator) route(ctx context.Context, question string) *domain.RoutingStage {
	if o.opts.LogicalRouter == nil && o.opts.SemanticRouter == nil {
		return nil
	}

	stage := &domain.RoutingStage{}
	var wg sync.WaitGroup

	if o.opts.LogicalRouter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			label, err := guardCall("router", func() (domain.RouteLabel, error) {
				return o.opts.LogicalRouter.Route(ctx, question)
			})
			if err != nil {
				o.logger.Warn("routing_failed", "router", logicalRouterName, "error", err)
				stage.LogicalRouting = &domain.LogicalRoutingResult{Error: err.Error()}
				return
			}
			stage.LogicalRouting = &domain.LogicalRoutingResult{FileName: label}
		}()
	}

	if o.opts.SemanticRouter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			route, err := guardCall("router", func() (*domain.SemanticRoute, error) {
				return o.opts.SemanticRouter.Route(ctx, question)
			})
			if err != nil {
				o.logger.Warn("routing_failed", "router", semanticRouterName, "error", err)
				stage.SemanticRouting = &domain.SemanticRoutingResult{Error: err.Error()}
				return
			}
			stage.SemanticRouting = &domain.SemanticRoutingResult{SemanticRoute: route}
		}()
	}

	wg.Wait()
	return stage
}

// guardCall turns a panic in fn into an error. Run's own recover does not see
// panics raised on other goroutines.
func guardCall[T any](who string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s panic: %v", who, rec)
		}
	}()
	return fn()
}

func (o *Orchestrator) generate(
	ctx context.Context,
	run *domain.PipelineRun,
	question string,
	method domain.TransformationMethod,
	queries []string,
	lists []domain.RankedList,
	docs []domain.Document,
	topK int,
) (string, *domain.GenerationStage, error) {
	strategy := method.Synthesis()
	stage := &domain.GenerationStage{Strategy: strategy}

	if run.Degraded {
		stage.ContextDocs = len(docs)
		return placeholderAnswers[strategy], stage, nil
	}

	switch strategy {
	case domain.SynthesisDecomposed:
		answers := make([]string, 0, len(queries))
		for i, sub := range queries {
			answer, err := o.responder.GenerateFromDocuments(ctx, lists[i], sub)
			if err != nil {
				return "", nil, err
			}
			answers = append(answers, answer)
		}
		stage.SubQuestions = queries
		stage.SubAnswers = answers
		answer, err := o.responder.GenerateDecomposed(ctx, queries, answers, question)
		return answer, stage, err

	case domain.SynthesisStepBack:
		normal, err := o.retriever.Retrieve(ctx, question, topK)
		if err != nil {
			return "", nil, &domain.RetrievalError{Query: question, Err: err}
		}
		stepBack := lists[0]
		stage.StepBackQuery = queries[0]
		stage.NormalDocs = len(normal)
		stage.StepBackDocs = len(stepBack)
		answer, err := o.responder.GenerateStepBack(ctx, normal, stepBack, question)
		return answer, stage, err

	case domain.SynthesisDirect:
		stage.ContextDocs = len(docs)
		answer, err := o.responder.GenerateFromDocuments(ctx, docs, question)
		return answer, stage, err

	default:
		return "", nil, &domain.GenerationError{
			Strategy: strategy,
			Err:      fmt.Errorf("unsupported synthesis strategy"),
		}
	}
}

func (o *Orchestrator) fail(run *domain.PipelineRun, stage string, err error) {
	run.Error = err.Error()
	run.FailedStage = stage
	run.FinalAnswer = errorAnswerPrefix + err.Error()
	o.logger.Warn("stage_failed",
		"run_id", run.RunID,
		"stage", stage,
		"method", run.Method,
		"error", err,
	)
}

func (o *Orchestrator) finish(ctx context.Context, run *domain.PipelineRun) {
	numDocs := 0
	if run.PipelineStages.Retrieval != nil {
		numDocs = run.PipelineStages.Retrieval.NumDocuments
	}
	o.logger.Info("pipeline_run",
		"run_id", run.RunID,
		"method", run.Method,
		"status", run.Status(),
		"num_documents", numDocs,
		"execution_time", run.ExecutionTime,
		"degraded", run.Degraded,
	)
	for _, observer := range o.opts.Observers {
		observer.ObserveRun(ctx, run)
	}
}

func retrievalSnapshot(docs []domain.Document, numQueries int) *domain.RetrievalStage {
	stage := &domain.RetrievalStage{
		NumDocuments: len(docs),
		NumQueries:   numQueries,
		Documents:    make([]string, 0, len(docs)),
	}
	for _, d := range docs {
		stage.Documents = append(stage.Documents, d.Preview(previewLength))
		if src := d.Source(); src != "" {
			stage.Sources = append(stage.Sources, src)
		}
	}
	return stage
}
