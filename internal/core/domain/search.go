package domain

import "time"

type SearchMode string

const (
	ModeKeyword  SearchMode = "keyword"
	ModeSemantic SearchMode = "semantic"
)

// TimeWindow names a recency cutoff relative to now.
type TimeWindow string

const (
	WindowAll   TimeWindow = ""
	WindowHour  TimeWindow = "hour"
	WindowDay   TimeWindow = "day"
	WindowWeek  TimeWindow = "week"
	WindowMonth TimeWindow = "month"
	WindowYear  TimeWindow = "year"
)

// SearchFilter is ephemeral per-request state; it carries no identity and is
// never persisted. The boolean fields apply to keyword mode only, the time
// fields to both modes.
type SearchFilter struct {
	Window TimeWindow `json:"window,omitempty"`
	From   time.Time  `json:"from,omitempty"`
	To     time.Time  `json:"to,omitempty"`

	Phrase    string `json:"phrase,omitempty"`
	AllWords  string `json:"all_words,omitempty"`
	AnyWords  string `json:"any_words,omitempty"`
	NoneWords string `json:"none_words,omitempty"`
}

type SearchRequest struct {
	SessionID string       `json:"session_id"`
	Query     string       `json:"query"`
	Mode      SearchMode   `json:"mode"`
	Limit     int          `json:"limit"`
	Filter    SearchFilter `json:"filter"`
}

// LexicalHit is a lexical-index match before entry hydration.
type LexicalHit struct {
	EntryID string  `json:"entry_id"`
	Score   float64 `json:"score"`
}

// VectorHit is a nearest-neighbour match, cosine similarity descending.
type VectorHit struct {
	EntryID string  `json:"entry_id"`
	Score   float64 `json:"score"`
}
