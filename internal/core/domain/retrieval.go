package domain

import "time"

// RouteLabel is one value from the configured closed set of sources.
type RouteLabel string

// DomainTemplate is an expert prompt used for semantic routing.
type DomainTemplate struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type SemanticRoute struct {
	TemplateName    string  `json:"template_name"`
	Template        string  `json:"template"`
	SimilarityScore float64 `json:"similarity_score"`
}

type RunStatus string

const (
	RunCompleted          RunStatus = "completed"
	RunCompletedWithError RunStatus = "completed_with_error"
)

// PipelineRun is the working record of one orchestrator invocation.
type PipelineRun struct {
	RunID          string               `json:"run_id"`
	Query          string               `json:"query"`
	Method         TransformationMethod `json:"method"`
	TopK           int                  `json:"top_k"`
	StartedAt      time.Time            `json:"timestamp"`
	PipelineStages PipelineStages       `json:"pipeline_stages"`
	FinalAnswer    string               `json:"final_answer"`
	ExecutionTime  float64              `json:"execution_time"`
	Error          string               `json:"error,omitempty"`
	FailedStage    string               `json:"failed_stage,omitempty"`
	Degraded       bool                 `json:"degraded,omitempty"`
	DegradedReason string               `json:"degraded_reason,omitempty"`
}

func (r *PipelineRun) Status() RunStatus {
	if r.Error != "" {
		return RunCompletedWithError
	}
	return RunCompleted
}

type PipelineStages struct {
	QueryTransformation *TransformationStage `json:"query_transformation,omitempty"`
	Retrieval           *RetrievalStage      `json:"retrieval,omitempty"`
	Reranking           *RerankingStage      `json:"reranking,omitempty"`
	Routing             *RoutingStage        `json:"routing,omitempty"`
	Generation          *GenerationStage     `json:"generation,omitempty"`
}

type TransformationStage struct {
	Method             TransformationMethod `json:"method"`
	TransformedQueries []string             `json:"transformed_queries"`
}

type RetrievalStage struct {
	NumDocuments int      `json:"num_documents"`
	NumQueries   int      `json:"num_queries"`
	Documents    []string `json:"documents"`
	Sources      []string `json:"sources,omitempty"`
}

type RerankingStage struct {
	Method       TransformationMethod `json:"method"`
	Fusion       string               `json:"fusion"`
	K            int                  `json:"k"`
	NumDocuments int                  `json:"num_documents"`
	Scores       []float64            `json:"scores,omitempty"`
}

type RoutingStage struct {
	LogicalRouting  *LogicalRoutingResult  `json:"logical_routing,omitempty"`
	SemanticRouting *SemanticRoutingResult `json:"semantic_routing,omitempty"`
}

type LogicalRoutingResult struct {
	FileName RouteLabel `json:"file_name,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type SemanticRoutingResult struct {
	*SemanticRoute
	Error string `json:"error,omitempty"`
}

type GenerationStage struct {
	Strategy      SynthesisStrategy `json:"strategy"`
	SubQuestions  []string          `json:"sub_questions,omitempty"`
	SubAnswers    []string          `json:"sub_answers,omitempty"`
	StepBackQuery string            `json:"step_back_query,omitempty"`
	NormalDocs    int               `json:"normal_documents,omitempty"`
	StepBackDocs  int               `json:"step_back_documents,omitempty"`
	ContextDocs   int               `json:"context_documents,omitempty"`
}

// RunEvent is the summary published after a run finishes.
type RunEvent struct {
	RunID         string               `json:"run_id"`
	Method        TransformationMethod `json:"method"`
	Status        RunStatus            `json:"status"`
	NumDocuments  int                  `json:"num_documents"`
	ExecutionTime float64              `json:"execution_time"`
	Degraded      bool                 `json:"degraded,omitempty"`
	Error         string               `json:"error,omitempty"`
	FinishedAt    time.Time            `json:"finished_at"`
}

// QueryRequest is the transport-neutral input of the run contract.
type QueryRequest struct {
	Query  string `json:"query"`
	Method string `json:"method,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
}
