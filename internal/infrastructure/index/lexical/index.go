package lexical

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

type indexedDoc struct {
	id     string
	tokens []string
	tf     map[string]float64
	vector map[string]float64
}

// Index is the in-process TF-IDF engine. Every insert recomputes IDF and all
// document vectors; O(corpus x vocabulary) per insert is a known scaling
// limit, acceptable because corpora stay small. RebuildAll regenerates the
// whole structure and is idempotent.
type Index struct {
	mu   sync.RWMutex
	docs []indexedDoc
	df   map[string]int
	idf  map[string]float64
}

func NewIndex() *Index {
	return &Index{
		df:  make(map[string]int),
		idf: make(map[string]float64),
	}
}

func (ix *Index) AddEntry(_ context.Context, entry domain.Entry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.add(entry)
	ix.recompute()
	return nil
}

func (ix *Index) RebuildAll(_ context.Context, entries []domain.Entry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = ix.docs[:0]
	ix.df = make(map[string]int)
	for _, entry := range entries {
		ix.add(entry)
	}
	ix.recompute()
	return nil
}

func (ix *Index) Clear(_ context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = nil
	ix.df = make(map[string]int)
	ix.idf = make(map[string]float64)
	return nil
}

// add assumes the write lock is held. Re-adding an ID replaces the old doc.
func (ix *Index) add(entry domain.Entry) {
	tokens := tokenize(entry.Title + " " + entry.Text)
	doc := indexedDoc{id: entry.ID, tokens: tokens, tf: termFreq(tokens)}

	replaced := false
	for i := range ix.docs {
		if ix.docs[i].id == entry.ID {
			ix.removeFromDF(ix.docs[i])
			ix.docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		ix.docs = append(ix.docs, doc)
	}
	for token := range doc.tf {
		ix.df[token]++
	}
}

func (ix *Index) removeFromDF(doc indexedDoc) {
	for token := range doc.tf {
		if ix.df[token] <= 1 {
			delete(ix.df, token)
		} else {
			ix.df[token]--
		}
	}
}

// recompute rebuilds IDF and every document vector. IDF values are a
// function of the current corpus only; any add invalidates them all.
func (ix *Index) recompute() {
	n := float64(len(ix.docs))
	ix.idf = make(map[string]float64, len(ix.df))
	for token, df := range ix.df {
		ix.idf[token] = math.Log((1+n)/(1+float64(df))) + 1
	}
	for i := range ix.docs {
		vec := make(map[string]float64, len(ix.docs[i].tf))
		for token, tf := range ix.docs[i].tf {
			vec[token] = tf * ix.idf[token]
		}
		ix.docs[i].vector = vec
	}
}

// FindSimilar ranks documents by cosine similarity against the query TF-IDF
// vector. Ties keep insertion order (stable sort, no secondary key).
func (ix *Index) FindSimilar(_ context.Context, query string, limit int, threshold float64) ([]domain.LexicalHit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	queryVec := make(map[string]float64, len(tokens))
	for token, tf := range termFreq(tokens) {
		if idf, ok := ix.idf[token]; ok {
			queryVec[token] = tf * idf
		}
	}

	hits := make([]domain.LexicalHit, 0, len(ix.docs))
	for _, doc := range ix.docs {
		score := sparseCosine(queryVec, doc.vector)
		if score > threshold {
			hits = append(hits, domain.LexicalHit{EntryID: doc.id, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// ExactMatch is the in-process fallback for the full-text engine: a document
// must contain every non-empty whitespace-split query term, ranked by raw
// match count.
func (ix *Index) ExactMatch(_ context.Context, query string, limit int) ([]domain.LexicalHit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	hits := make([]domain.LexicalHit, 0, len(ix.docs))
	for _, doc := range ix.docs {
		joined := strings.Join(doc.tokens, " ")
		matches := 0
		all := true
		for _, term := range terms {
			count := strings.Count(joined, term)
			if count == 0 {
				all = false
				break
			}
			matches += count
		}
		if all {
			hits = append(hits, domain.LexicalHit{EntryID: doc.id, Score: float64(matches)})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func sparseCosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for token, va := range a {
		normA += va * va
		if vb, ok := b[token]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
