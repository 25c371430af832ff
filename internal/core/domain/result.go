package domain

type ResultKind string

const (
	KindKeyword  ResultKind = "keyword"
	KindSemantic ResultKind = "semantic"
	KindAnswer   ResultKind = "answer"
)

// SearchResult is a closed set of result variants. Each variant carries
// exactly the fields its renderer needs; there are no optional ad-hoc flags.
type SearchResult interface {
	Kind() ResultKind
}

// KeywordMatch is an exact-match hit with its raw relevance.
type KeywordMatch struct {
	Entry      Entry   `json:"entry"`
	MatchCount int     `json:"match_count"`
	Relevance  float64 `json:"relevance"`
}

func (KeywordMatch) Kind() ResultKind { return KindKeyword }

// SemanticMatch is a similarity hit, cosine or TF-IDF depending on which
// index served the query.
type SemanticMatch struct {
	Entry      Entry   `json:"entry"`
	Similarity float64 `json:"similarity"`
}

func (SemanticMatch) Kind() ResultKind { return KindSemantic }

// CohesiveAnswer is the RAG pipeline output: a cited, synthesized answer.
// Citation markers [1], [2], ... map 1:1 to Files by position.
type CohesiveAnswer struct {
	Answer         string    `json:"answer"`
	CleanedContent []string  `json:"cleaned_content"`
	Model          string    `json:"model"`
	Files          []FileRef `json:"files"`
}

func (CohesiveAnswer) Kind() ResultKind { return KindAnswer }
