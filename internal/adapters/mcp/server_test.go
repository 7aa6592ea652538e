package mcpadapter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

type runnerFake struct {
	method domain.TransformationMethod
	topK   int
	err    string
}

func (f *runnerFake) Run(_ context.Context, question string, method domain.TransformationMethod, topK int) *domain.PipelineRun {
	f.method, f.topK = method, topK
	return &domain.PipelineRun{RunID: "r", Query: question, Method: method, FinalAnswer: "answer", Error: f.err}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = toolQuery
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestQueryToolRunsPipeline(t *testing.T) {
	runner := &runnerFake{}
	res, err := handleQuery(runner, 0)(context.Background(), callRequest(map[string]any{
		"query":  "What is the travel allowance?",
		"method": "step_back",
		"top_k":  float64(2),
	}))
	if err != nil {
		t.Fatalf("handleQuery() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success result")
	}
	var run domain.PipelineRun
	if err := json.Unmarshal([]byte(resultText(t, res)), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.FinalAnswer != "answer" || runner.method != domain.MethodStepBack || runner.topK != 2 {
		t.Fatalf("unexpected run %+v runner=%+v", run, runner)
	}
}

func TestQueryToolFlagsRunErrors(t *testing.T) {
	res, err := handleQuery(&runnerFake{err: "boom"}, 0)(context.Background(), callRequest(map[string]any{"query": "q"}))
	if err != nil {
		t.Fatalf("handleQuery() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected error flag for failed run")
	}
}

func TestQueryToolValidatesArguments(t *testing.T) {
	for name, args := range map[string]map[string]any{
		"missing query":  {},
		"unknown method": {"query": "q", "method": "magic"},
	} {
		t.Run(name, func(t *testing.T) {
			runner := &runnerFake{}
			res, err := handleQuery(runner, 0)(context.Background(), callRequest(args))
			if err != nil {
				t.Fatalf("handleQuery() error = %v", err)
			}
			if !res.IsError || runner.method != "" {
				t.Fatalf("expected tool error without run")
			}
		})
	}
}

func TestQueryToolAcceptsEmptyQuestion(t *testing.T) {
	runner := &runnerFake{}
	res, err := handleQuery(runner, 0)(context.Background(), callRequest(map[string]any{"query": ""}))
	if err != nil {
		t.Fatalf("handleQuery() error = %v", err)
	}
	if res.IsError || runner.method != domain.MethodBasic {
		t.Fatalf("expected basic run for empty question, got error=%v method=%q", res.IsError, runner.method)
	}
	var run domain.PipelineRun
	if err := json.Unmarshal([]byte(resultText(t, res)), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Query != "" {
		t.Fatalf("expected empty question to pass through, got %q", run.Query)
	}
}

func TestMethodsToolListsMethods(t *testing.T) {
	res, err := handleMethods(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleMethods() error = %v", err)
	}
	text := resultText(t, res)
	for _, m := range domain.Methods() {
		if !strings.Contains(text, string(m)) {
			t.Fatalf("expected %s in %q", m, text)
		}
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer("policy-rag", &runnerFake{}, 0)
	tools := s.ListTools()
	if _, ok := tools[toolQuery]; !ok {
		t.Fatalf("expected %s tool", toolQuery)
	}
	if _, ok := tools[toolMethods]; !ok {
		t.Fatalf("expected %s tool", toolMethods)
	}
}
