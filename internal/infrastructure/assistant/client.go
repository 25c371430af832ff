// Package assistant talks to a hosted file-search assistant: uploads
// documents as files, asks grounded questions on a persistent thread,
// and polls runs to completion.
package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxPollAttempts = 60
	defaultHTTPTimeout     = 60 * time.Second
)

type Options struct {
	BaseURL         string
	APIKey          string
	AssistantID     string
	Model           string
	PollInterval    time.Duration
	MaxPollAttempts int
	HTTPTimeout     time.Duration
}

type uploadKey struct {
	filename    string
	contentHash string
}

type Client struct {
	baseURL         string
	apiKey          string
	assistantID     string
	model           string
	pollInterval    time.Duration
	maxPollAttempts int
	httpClient      *http.Client

	mu       sync.Mutex
	threadID string
	uploaded []domain.FileRef
	seen     map[uploadKey]string
}

func New(opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = defaultMaxPollAttempts
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		apiKey:          opts.APIKey,
		assistantID:     opts.AssistantID,
		model:           opts.Model,
		pollInterval:    opts.PollInterval,
		maxPollAttempts: opts.MaxPollAttempts,
		httpClient:      &http.Client{Timeout: opts.HTTPTimeout},
		seen:            make(map[uploadKey]string),
	}
}

func (c *Client) ModelName() string { return c.model }

// UploadDocuments uploads each document as an assistant file, deduplicating
// by (filename, content) so re-uploading the same capture is a no-op.
func (c *Client) UploadDocuments(ctx context.Context, docs []domain.UploadDocument) ([]domain.FileRef, error) {
	refs := make([]domain.FileRef, 0, len(docs))
	for _, doc := range docs {
		key := uploadKey{filename: doc.Filename, contentHash: hashContent(doc.Text)}

		c.mu.Lock()
		fileID, ok := c.seen[key]
		c.mu.Unlock()
		if ok {
			refs = append(refs, domain.FileRef{FileID: fileID, Filename: doc.Filename, Size: len(doc.Text)})
			continue
		}

		fileID, err := c.uploadFile(ctx, doc.Filename, doc.Text)
		if err != nil {
			return nil, domain.FromContext(fmt.Sprintf("upload %s", doc.Filename), err)
		}
		ref := domain.FileRef{FileID: fileID, Filename: doc.Filename, Size: len(doc.Text)}

		c.mu.Lock()
		c.seen[key] = fileID
		c.uploaded = append(c.uploaded, ref)
		c.mu.Unlock()

		refs = append(refs, ref)
	}
	return refs, nil
}

// UploadedFiles lists every file uploaded during this client's lifetime.
func (c *Client) UploadedFiles() []domain.FileRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.FileRef, len(c.uploaded))
	copy(out, c.uploaded)
	return out
}

// Ask posts the question with file attachments to the persistent thread,
// creates a run, polls it to a terminal state, and returns the assistant's
// message with citations normalized to [1], [2], ... markers.
func (c *Client) Ask(ctx context.Context, query string, files []domain.FileRef) (string, error) {
	threadID, err := c.ensureThread(ctx)
	if err != nil {
		return "", domain.FromContext("ensure thread", err)
	}
	if err := c.postMessage(ctx, threadID, query, files); err != nil {
		return "", domain.FromContext("post message", err)
	}
	runID, err := c.createRun(ctx, threadID)
	if err != nil {
		return "", domain.FromContext("create run", err)
	}

	run, err := c.pollRun(ctx, threadID, runID)
	if err != nil {
		return "", err
	}

	message, err := c.latestAssistantMessage(ctx, threadID, runID)
	if err != nil {
		return "", domain.FromContext("fetch answer", err)
	}
	if message == nil {
		return "", domain.WrapError(domain.ErrRunFailed, "fetch answer",
			fmt.Errorf("run %s completed without an assistant message", run.ID))
	}
	return normalizeCitations(message, files), nil
}

func (c *Client) pollRun(ctx context.Context, threadID, runID string) (*runStatus, error) {
	operation := fmt.Sprintf("poll run %s", runID)
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		run, err := c.getRun(ctx, threadID, runID)
		if err != nil {
			return nil, domain.FromContext(operation, err)
		}
		switch run.Status {
		case "completed":
			return run, nil
		case "failed", "cancelled", "expired":
			detail := run.Status
			if run.LastError != nil && run.LastError.Message != "" {
				detail = fmt.Sprintf("%s: %s", run.Status, run.LastError.Message)
			}
			return nil, domain.WrapError(domain.ErrRunFailed, operation, fmt.Errorf("run ended %s", detail))
		}
		// queued, in_progress, cancelling: keep waiting.
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return nil, domain.FromContext(operation, ctx.Err())
		}
	}
	return nil, domain.WrapError(domain.ErrTimeout, operation,
		fmt.Errorf("run not terminal after %d polls", c.maxPollAttempts))
}

// Cleanup deletes every uploaded file and the persistent thread. Deletion
// failures are collected, not fatal per file.
func (c *Client) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	files := c.uploaded
	threadID := c.threadID
	c.uploaded = nil
	c.seen = make(map[uploadKey]string)
	c.threadID = ""
	c.mu.Unlock()

	var errs []string
	for _, ref := range files {
		if err := c.deleteFile(ctx, ref.FileID); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ref.FileID, err))
		}
	}
	if threadID != "" {
		if err := c.deleteThread(ctx, threadID); err != nil {
			errs = append(errs, fmt.Sprintf("thread %s: %v", threadID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup incomplete: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Client) ensureThread(ctx context.Context) (string, error) {
	c.mu.Lock()
	threadID := c.threadID
	c.mu.Unlock()
	if threadID != "" {
		return threadID, nil
	}
	threadID, err := c.createThread(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.threadID = threadID
	c.mu.Unlock()
	return threadID, nil
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// citationPattern matches provider-style inline annotations such as
// 【4:0†report.txt】 that must be rewritten to plain [n] markers.
var citationPattern = regexp.MustCompile(`【[^】]*】`)

func normalizeCitations(message *assistantMessage, files []domain.FileRef) string {
	indexByFile := make(map[string]int, len(files))
	for i, ref := range files {
		indexByFile[ref.FileID] = i + 1
	}

	text := message.Text
	for _, ann := range message.Annotations {
		marker := "[1]"
		if idx, ok := indexByFile[ann.FileID]; ok {
			marker = fmt.Sprintf("[%d]", idx)
		}
		if ann.Text != "" {
			text = strings.ReplaceAll(text, ann.Text, marker)
		}
	}
	// Any leftover raw annotation glyphs collapse to the first file.
	text = citationPattern.ReplaceAllString(text, "[1]")
	return strings.TrimSpace(text)
}

var _ ports.AssistantClient = (*Client)(nil)
