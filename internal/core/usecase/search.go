package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

const (
	defaultSearchLimit = 20

	// Indices are queried for more candidates than requested so post-filters
	// (time window, boolean clauses) still have enough left to fill the limit.
	candidateFactor = 5

	// Minimum TF-IDF cosine similarity for the no-vectors semantic fallback.
	semanticFallbackThreshold = 0.1
)

type SearchUseCase struct {
	store     ports.EntryStore
	lexical   ports.LexicalIndex
	vectors   ports.VectorIndex
	embedding ports.EmbeddingSource
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSearchUseCase(
	store ports.EntryStore,
	lexical ports.LexicalIndex,
	vectors ports.VectorIndex,
	embedding ports.EmbeddingSource,
) *SearchUseCase {
	return &SearchUseCase{
		store:     store,
		lexical:   lexical,
		vectors:   vectors,
		embedding: embedding,
		now:       time.Now,
		inFlight:  make(map[string]struct{}),
	}
}

// Search runs one retrieval request. A session may have only one search in
// flight; a second concurrent request for the same session is rejected.
func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	if req.SessionID != "" {
		if !uc.acquire(req.SessionID) {
			return nil, domain.WrapError(domain.ErrSearchInFlight, "search", errors.New("session "+req.SessionID))
		}
		defer uc.release(req.SessionID)
	}

	switch req.Mode {
	case domain.ModeSemantic:
		return uc.searchSemantic(ctx, query, limit, req.Filter)
	case domain.ModeKeyword, "":
		return uc.searchKeyword(ctx, query, limit, req.Filter)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("unknown mode "+string(req.Mode)))
	}
}

func (uc *SearchUseCase) acquire(sessionID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, busy := uc.inFlight[sessionID]; busy {
		return false
	}
	uc.inFlight[sessionID] = struct{}{}
	return true
}

func (uc *SearchUseCase) release(sessionID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.inFlight, sessionID)
}

func (uc *SearchUseCase) searchKeyword(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	hits, err := uc.lexical.ExactMatch(ctx, query, limit*candidateFactor)
	if err != nil {
		return nil, err
	}
	entries, err := uc.entriesByID(ctx)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	results := make([]domain.SearchResult, 0, limit)
	for _, hit := range hits {
		entry, ok := entries[hit.EntryID]
		if !ok {
			continue
		}
		if !inTimeRange(entry, filter, now) {
			continue
		}
		if !matchesBooleanFilter(entry, filter) {
			continue
		}
		results = append(results, domain.KeywordMatch{
			Entry:      entry,
			MatchCount: countTermOccurrences(entry, query),
			Relevance:  hit.Score,
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (uc *SearchUseCase) searchSemantic(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	if uc.embedding.Degraded() {
		return uc.searchByScorer(ctx, query, limit, filter)
	}

	if uc.vectors.Size() == 0 {
		return uc.searchLexicalFallback(ctx, query, limit, filter)
	}

	queryVector, err := uc.embedding.EmbedQuery(ctx, query)
	if err != nil {
		// A query-time embedding failure fails this search only.
		return nil, err
	}
	hits, err := uc.vectors.Search(ctx, queryVector, limit*candidateFactor)
	if err != nil {
		return nil, err
	}
	entries, err := uc.entriesByID(ctx)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	results := make([]domain.SearchResult, 0, limit)
	for _, hit := range hits {
		entry, ok := entries[hit.EntryID]
		if !ok {
			continue
		}
		if !inTimeRange(entry, filter, now) {
			continue
		}
		results = append(results, domain.SemanticMatch{Entry: entry, Similarity: hit.Score})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// searchLexicalFallback answers semantic queries by TF-IDF similarity while
// no embeddings exist yet.
func (uc *SearchUseCase) searchLexicalFallback(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	hits, err := uc.lexical.FindSimilar(ctx, query, limit*candidateFactor, semanticFallbackThreshold)
	if err != nil {
		return nil, err
	}
	entries, err := uc.entriesByID(ctx)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	results := make([]domain.SearchResult, 0, limit)
	for _, hit := range hits {
		entry, ok := entries[hit.EntryID]
		if !ok {
			continue
		}
		if !inTimeRange(entry, filter, now) {
			continue
		}
		results = append(results, domain.SemanticMatch{Entry: entry, Similarity: hit.Score})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// searchByScorer is the last-resort semantic path: pairwise token-overlap
// ranking over every stored entry.
func (uc *SearchUseCase) searchByScorer(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	all, err := uc.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	scorer := uc.embedding.Scorer()

	now := uc.now()
	var matches []domain.SemanticMatch
	for _, entry := range all {
		if !inTimeRange(entry, filter, now) {
			continue
		}
		score := scorer.Score(query, entry.Title+" "+entry.Text)
		if score <= 0 {
			continue
		}
		matches = append(matches, domain.SemanticMatch{Entry: entry, Similarity: score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]domain.SearchResult, len(matches))
	for i, match := range matches {
		results[i] = match
	}
	return results, nil
}

func (uc *SearchUseCase) entriesByID(ctx context.Context) (map[string]domain.Entry, error) {
	all, err := uc.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Entry, len(all))
	for _, entry := range all {
		byID[entry.ID] = entry
	}
	return byID, nil
}

// countTermOccurrences is the raw per-entry match count used for display
// when the substrate's relevance score is not meaningful to users.
func countTermOccurrences(entry domain.Entry, query string) int {
	haystack := strings.ToLower(entry.Title + " " + entry.Text + " " + entry.URL)
	total := 0
	for _, term := range strings.Fields(strings.ToLower(query)) {
		total += strings.Count(haystack, term)
	}
	return total
}

var _ ports.SearchService = (*SearchUseCase)(nil)
