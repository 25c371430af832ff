package domain

import "time"

// Entry is one captured page. Re-capturing the same ID replaces the record.
type Entry struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	WordCount  int       `json:"word_count"`
	CapturedAt time.Time `json:"captured_at"`
}

// EmbeddingVector belongs to exactly one entry and is deleted with it.
// Vectors produced by different models are never compared; ModelName tags
// provenance so mixed corpora stay apart.
type EmbeddingVector struct {
	EntryID   string    `json:"entry_id"`
	Vector    []float32 `json:"vector"`
	ModelName string    `json:"model_name"`
}

type StoreStats struct {
	TotalEntries    int `json:"total_entries"`
	TotalEmbeddings int `json:"total_embeddings"`
}

// CaptureRequest is the inbound capture payload. ID and CapturedAt are
// optional; missing values are filled by the capture use case.
type CaptureRequest struct {
	ID         string    `json:"id,omitempty"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

// UploadDocument is one cleaned document handed to the hosted assistant.
type UploadDocument struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// FileRef identifies a document uploaded to the hosted assistant.
type FileRef struct {
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	Size     int    `json:"size"`
}

type BackfillReport struct {
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}
