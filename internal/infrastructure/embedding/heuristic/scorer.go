// Package heuristic is the last-resort embedding mode: token-overlap
// scoring. It produces no storable fixed-length vector, only pairwise
// similarity, so nothing it computes ever lands in the embeddings table.
package heuristic

import (
	"strings"
	"unicode"
)

type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// Score is |query-tokens ∩ text-tokens| / |query-tokens|, range [0,1].
func (s *Scorer) Score(query, text string) float64 {
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := tokenSet(text)
	matches := 0
	for token := range queryTokens {
		if _, ok := textTokens[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTokens))
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{}, 16)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out[b.String()] = struct{}{}
			b.Reset()
		}
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}
