package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

type AnswerUseCase struct {
	store     ports.EntryStore
	cleaner   ports.TextCleaner
	assistant ports.AssistantClient
}

func NewAnswerUseCase(
	store ports.EntryStore,
	cleaner ports.TextCleaner,
	assistant ports.AssistantClient,
) *AnswerUseCase {
	return &AnswerUseCase{
		store:     store,
		cleaner:   cleaner,
		assistant: assistant,
	}
}

// UploadDocuments cleans each document and hands it to the hosted
// assistant. Documents that clean down to nothing are dropped.
func (uc *AnswerUseCase) UploadDocuments(ctx context.Context, docs []domain.UploadDocument) ([]domain.FileRef, error) {
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload documents", fmt.Errorf("documents are required"))
	}
	cleaned := make([]domain.UploadDocument, 0, len(docs))
	for _, doc := range docs {
		text, err := uc.cleaner.Clean(ctx, doc.Text)
		if err != nil {
			return nil, fmt.Errorf("clean %s: %w", doc.Filename, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		cleaned = append(cleaned, domain.UploadDocument{Text: text, Filename: doc.Filename})
	}
	if len(cleaned) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload documents", fmt.Errorf("no document survived cleaning"))
	}
	return uc.assistant.UploadDocuments(ctx, cleaned)
}

// Answer runs the full pipeline for a query: clean the stored corpus,
// upload it, ask the assistant, and return the cited answer.
func (uc *AnswerUseCase) Answer(ctx context.Context, query string) (*domain.CohesiveAnswer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("query is required"))
	}

	entries, err := uc.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrNoDocuments
	}

	docs := make([]domain.UploadDocument, 0, len(entries))
	cleanedContent := make([]string, 0, len(entries))
	for _, entry := range entries {
		text, err := uc.cleaner.Clean(ctx, entry.Text)
		if err != nil {
			return nil, fmt.Errorf("clean entry %s: %w", entry.ID, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, domain.UploadDocument{Text: text, Filename: entryFilename(entry)})
		cleanedContent = append(cleanedContent, text)
	}
	if len(docs) == 0 {
		return nil, domain.ErrNoDocuments
	}

	files, err := uc.assistant.UploadDocuments(ctx, docs)
	if err != nil {
		return nil, err
	}
	answer, err := uc.assistant.Ask(ctx, query, files)
	if err != nil {
		return nil, err
	}

	return &domain.CohesiveAnswer{
		Answer:         answer,
		CleanedContent: cleanedContent,
		Model:          uc.assistant.ModelName(),
		Files:          files,
	}, nil
}

func (uc *AnswerUseCase) Cleanup(ctx context.Context) error {
	return uc.assistant.Cleanup(ctx)
}

func entryFilename(entry domain.Entry) string {
	base := strings.TrimSpace(entry.Title)
	if base == "" {
		base = entry.ID
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if len(base) > 60 {
		base = base[:60]
	}
	return fmt.Sprintf("%s_%s.txt", entry.ID, base)
}

var _ ports.AnswerService = (*AnswerUseCase)(nil)
