package domain

import (
	"fmt"
	"strings"
)

// TransformationMethod selects the query rewriting algorithm and the synthesis path.
type TransformationMethod string

const (
	MethodBasic         TransformationMethod = "basic"
	MethodMultiQuery    TransformationMethod = "multi_query"
	MethodRAGFusion     TransformationMethod = "rag_fusion"
	MethodDecomposition TransformationMethod = "decomposition"
	MethodStepBack      TransformationMethod = "step_back"
	MethodHyDE          TransformationMethod = "hyde"
)

// SynthesisStrategy is the ResponseGenerator path used for a method.
type SynthesisStrategy string

const (
	SynthesisDirect     SynthesisStrategy = "direct"
	SynthesisDecomposed SynthesisStrategy = "decomposed"
	SynthesisStepBack   SynthesisStrategy = "step_back"
)

func Methods() []TransformationMethod {
	return []TransformationMethod{
		MethodBasic,
		MethodMultiQuery,
		MethodRAGFusion,
		MethodDecomposition,
		MethodStepBack,
		MethodHyDE,
	}
}

// ParseMethod maps an external selector to a method. Empty input means basic.
func ParseMethod(raw string) (TransformationMethod, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return MethodBasic, nil
	}
	for _, m := range Methods() {
		if string(m) == value {
			return m, nil
		}
	}
	return "", WrapError(ErrInvalidInput, "parse method", fmt.Errorf("unknown transformation method %q", raw))
}

// Synthesis reports which generation path answers a run for this method.
func (m TransformationMethod) Synthesis() SynthesisStrategy {
	switch m {
	case MethodDecomposition:
		return SynthesisDecomposed
	case MethodStepBack:
		return SynthesisStepBack
	case MethodBasic, MethodMultiQuery, MethodRAGFusion, MethodHyDE:
		return SynthesisDirect
	default:
		return SynthesisDirect
	}
}

// Reranks reports whether retrieved documents go through rank fusion.
func (m TransformationMethod) Reranks() bool {
	return m == MethodMultiQuery || m == MethodRAGFusion
}
