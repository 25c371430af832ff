package lexical

import (
	"strings"
	"unicode"
)

const minTokenLen = 3

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "will": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "your": {}, "their": {}, "there": {},
	"been": {}, "were": {}, "into": {}, "more": {}, "some": {}, "them": {},
	"then": {}, "than": {}, "also": {}, "only": {}, "over": {}, "such": {},
	"about": {}, "would": {}, "could": {}, "should": {}, "these": {}, "those": {},
}

// tokenize lowercases, strips punctuation, splits on whitespace, and drops
// short tokens and stop-words. Queries and documents go through the same path
// so TF-IDF vectors stay comparable.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 32)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		token := b.String()
		b.Reset()
		if len(token) < minTokenLen {
			return
		}
		if _, stop := stopwords[token]; stop {
			return
		}
		out = append(out, token)
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

// termFreq normalizes raw counts by document length.
func termFreq(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return nil
	}
	tf := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		tf[token]++
	}
	n := float64(len(tokens))
	for token := range tf {
		tf[token] /= n
	}
	return tf
}
