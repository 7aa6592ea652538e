package usecase

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

// LexicalRerank reorders the top N fused documents by blending the normalized
// fusion score with question/content token overlap and a source-name hit.
func LexicalRerank(question string, fused []domain.ScoredDocument, topN int) []domain.ScoredDocument {
	if len(fused) == 0 {
		return fused
	}
	if topN <= 0 || topN > len(fused) {
		topN = len(fused)
	}

	head := make([]domain.ScoredDocument, topN)
	copy(head, fused[:topN])
	queryTokens := toTokenSet(question)

	minScore := head[0].Score
	maxScore := head[0].Score
	for _, doc := range head[1:] {
		if doc.Score < minScore {
			minScore = doc.Score
		}
		if doc.Score > maxScore {
			maxScore = doc.Score
		}
	}

	rangeScore := maxScore - minScore
	normalize := func(v float64) float64 {
		if rangeScore <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / rangeScore
	}

	for i := range head {
		normalizedFused := normalize(head[i].Score)
		overlap := tokenOverlap(queryTokens, toTokenSet(head[i].Content))
		sourceBoost := sourceTokenHit(queryTokens, head[i].Source())
		head[i].Score = 0.60*normalizedFused + 0.30*overlap + 0.10*sourceBoost
	}

	sort.SliceStable(head, func(i, j int) bool { return head[i].Score > head[j].Score })

	if topN == len(fused) {
		return head
	}

	out := make([]domain.ScoredDocument, 0, len(fused))
	out = append(out, head...)
	out = append(out, fused[topN:]...)
	return out
}

func tokenOverlap(query, content map[string]struct{}) float64 {
	if len(query) == 0 || len(content) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := content[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func sourceTokenHit(query map[string]struct{}, source string) float64 {
	if len(query) == 0 || source == "" {
		return 0
	}
	name := strings.ToLower(filepath.Base(source))
	for token := range query {
		if len(token) < 3 {
			continue
		}
		if strings.Contains(name, token) {
			return 1
		}
	}
	return 0
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
