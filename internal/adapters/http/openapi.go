package httpadapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

//go:embed openapi.yaml
var openAPISpec []byte

// apiContract is the parsed API description. It validates request bodies and
// is served at /openapi.json.
type apiContract struct {
	doc          *openapi3.T
	queryRequest *openapi3.Schema
	json         []byte
}

func loadAPIContract(ctx context.Context) (*apiContract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}

	ref, ok := doc.Components.Schemas["QueryRequest"]
	if !ok || ref.Value == nil {
		return nil, fmt.Errorf("openapi document has no QueryRequest schema")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal openapi document: %w", err)
	}
	return &apiContract{doc: doc, queryRequest: ref.Value, json: raw}, nil
}

// decodeQueryRequest validates a decoded JSON body against the QueryRequest
// schema before mapping it onto the domain type.
func (c *apiContract) decodeQueryRequest(body []byte) (domain.QueryRequest, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.QueryRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode query request", fmt.Errorf("invalid json: %w", err))
	}
	if err := c.queryRequest.VisitJSON(raw); err != nil {
		return domain.QueryRequest{}, domain.WrapError(domain.ErrInvalidInput, "validate query request", err)
	}

	var req domain.QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.QueryRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode query request", err)
	}
	return req, nil
}
