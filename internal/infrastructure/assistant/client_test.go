package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

type fakeBackend struct {
	mux         *http.ServeMux
	uploads     int32
	runStatuses []string
	runPolls    int32
	answer      string
	annotations []map[string]any
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		mux:         http.NewServeMux(),
		runStatuses: []string{"completed"},
		answer:      "The launch date is May 4th 【0†source】.",
	}
	b.annotations = []map[string]any{
		{
			"text":          "【0†source】",
			"file_citation": map[string]string{"file_id": "file-1"},
		},
	}

	b.mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&b.uploads, 1)
		writeBody(w, map[string]any{"id": fmt.Sprintf("file-%d", n)})
	})
	b.mux.HandleFunc("DELETE /v1/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, map[string]any{"deleted": true})
	})
	b.mux.HandleFunc("POST /v1/threads", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, map[string]any{"id": "thread-1"})
	})
	b.mux.HandleFunc("DELETE /v1/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, map[string]any{"deleted": true})
	})
	b.mux.HandleFunc("POST /v1/threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, map[string]any{"id": "msg-1"})
	})
	b.mux.HandleFunc("POST /v1/threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, map[string]any{"id": "run-1", "status": "queued"})
	})
	b.mux.HandleFunc("GET /v1/threads/{id}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		poll := int(atomic.AddInt32(&b.runPolls, 1)) - 1
		if poll >= len(b.runStatuses) {
			poll = len(b.runStatuses) - 1
		}
		status := b.runStatuses[poll]
		body := map[string]any{"id": "run-1", "status": status}
		if status == "failed" {
			body["last_error"] = map[string]string{"code": "server_error", "message": "vector store offline"}
		}
		writeBody(w, body)
	})
	b.mux.HandleFunc("GET /v1/threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, map[string]any{
			"data": []map[string]any{
				{
					"role":   "assistant",
					"run_id": "run-1",
					"content": []map[string]any{
						{
							"type": "text",
							"text": map[string]any{
								"value":       b.answer,
								"annotations": b.annotations,
							},
						},
					},
				},
			},
		})
	})
	return b
}

func writeBody(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, backend *fakeBackend) *Client {
	t.Helper()
	server := httptest.NewServer(backend.mux)
	t.Cleanup(server.Close)
	return New(Options{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		AssistantID:     "asst-1",
		Model:           "gpt-4o-mini",
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 5,
	})
}

func TestUploadDocumentsDeduplicatesByFilenameAndContent(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend)

	docs := []domain.UploadDocument{
		{Text: "known fact", Filename: "page.txt"},
		{Text: "known fact", Filename: "page.txt"},
		{Text: "different content", Filename: "page.txt"},
	}
	refs, err := client.UploadDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("UploadDocuments() error = %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %d", len(refs))
	}
	if refs[0].FileID != refs[1].FileID {
		t.Fatalf("identical documents should share a file id")
	}
	if refs[0].FileID == refs[2].FileID {
		t.Fatalf("different content must upload separately")
	}
	if got := atomic.LoadInt32(&backend.uploads); got != 2 {
		t.Fatalf("expected 2 uploads, got %d", got)
	}
	if len(client.UploadedFiles()) != 2 {
		t.Fatalf("expected 2 tracked files, got %d", len(client.UploadedFiles()))
	}
}

func TestAskReturnsCitedAnswer(t *testing.T) {
	backend := newFakeBackend()
	backend.runStatuses = []string{"queued", "in_progress", "completed"}
	client := newTestClient(t, backend)

	refs, err := client.UploadDocuments(context.Background(), []domain.UploadDocument{
		{Text: "the launch date is May 4th", Filename: "launch.txt"},
	})
	if err != nil {
		t.Fatalf("UploadDocuments() error = %v", err)
	}

	answer, err := client.Ask(context.Background(), "when is the launch?", refs)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer == "" {
		t.Fatalf("expected non-empty answer")
	}
	if !strings.Contains(answer, "[1]") {
		t.Fatalf("expected [1] citation marker in %q", answer)
	}
	if strings.Contains(answer, "【") {
		t.Fatalf("raw annotation glyphs leaked into %q", answer)
	}
}

func TestAskSurfacesRunFailureDetail(t *testing.T) {
	backend := newFakeBackend()
	backend.runStatuses = []string{"in_progress", "failed"}
	client := newTestClient(t, backend)

	_, err := client.Ask(context.Background(), "question", nil)
	if !domain.IsKind(err, domain.ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "vector store offline") {
		t.Fatalf("expected last-error detail in %v", err)
	}
}

func TestAskTimesOutWhenRunNeverCompletes(t *testing.T) {
	backend := newFakeBackend()
	backend.runStatuses = []string{"in_progress"}
	client := newTestClient(t, backend)

	_, err := client.Ask(context.Background(), "question", nil)
	if !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestAskStoppedByCallerIsDistinctFromTimeout(t *testing.T) {
	backend := newFakeBackend()
	backend.runStatuses = []string{"in_progress"}
	client := newTestClient(t, backend)
	client.pollInterval = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Ask(ctx, "question", nil)
	if !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("cancellation must not be reported as timeout")
	}
}

func TestAskCompletedRunWithoutAssistantMessageFails(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend)

	backend.answer = ""
	backend.annotations = nil

	_, err := client.Ask(context.Background(), "question", nil)
	if !domain.IsKind(err, domain.ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}
}

func TestCleanupDeletesFilesAndThread(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend)

	if _, err := client.UploadDocuments(context.Background(), []domain.UploadDocument{
		{Text: "fact", Filename: "a.txt"},
	}); err != nil {
		t.Fatalf("UploadDocuments() error = %v", err)
	}
	if _, err := client.Ask(context.Background(), "question", nil); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if err := client.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(client.UploadedFiles()) != 0 {
		t.Fatalf("expected no tracked files after cleanup")
	}
}
