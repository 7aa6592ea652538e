package usecase

import (
	"sort"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

const defaultRRFK = 60

type fusedCandidate struct {
	doc   domain.Document
	score float64
}

// ReciprocalRankFusion merges ranked lists: a document at zero-based rank r adds
// 1/(r+k) to its identity's score. Ties keep first-seen order.
func ReciprocalRankFusion(lists []domain.RankedList, k int) []domain.ScoredDocument {
	if k <= 0 {
		k = defaultRRFK
	}

	acc := make(map[string]*fusedCandidate)
	fused := make([]*fusedCandidate, 0)
	for _, list := range lists {
		for rank, doc := range list {
			key := doc.Identity()
			candidate, ok := acc[key]
			if !ok {
				candidate = &fusedCandidate{doc: doc}
				acc[key] = candidate
				fused = append(fused, candidate)
			}
			candidate.score += 1.0 / float64(rank+k)
		}
	}

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].score > fused[j].score })

	out := make([]domain.ScoredDocument, 0, len(fused))
	for _, c := range fused {
		out = append(out, domain.ScoredDocument{Document: c.doc, Score: c.score})
	}
	return out
}

// UniqueUnion flattens ranked lists and drops repeated identities. Callers must not
// rely on the order; this implementation keeps first occurrence.
func UniqueUnion(lists []domain.RankedList) []domain.Document {
	seen := make(map[string]struct{})
	out := make([]domain.Document, 0)
	for _, list := range lists {
		for _, doc := range list {
			key := doc.Identity()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, doc)
		}
	}
	return out
}

func trimScored(docs []domain.ScoredDocument, limit int) []domain.ScoredDocument {
	if limit <= 0 || len(docs) <= limit {
		return docs
	}
	return docs[:limit]
}

func unscored(docs []domain.ScoredDocument) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Document)
	}
	return out
}
