package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

type runStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type annotation struct {
	Text   string
	FileID string
}

type assistantMessage struct {
	Text        string
	Annotations []annotation
}

func (c *Client) uploadFile(ctx context.Context, filename, content string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("write purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		return "", fmt.Errorf("write file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", &buf)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var response struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &response, "upload file"); err != nil {
		return "", err
	}
	return response.ID, nil
}

func (c *Client) deleteFile(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/files/"+fileID, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	return c.do(req, nil, "delete file")
}

func (c *Client) createThread(ctx context.Context) (string, error) {
	var response struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/v1/threads", map[string]any{}, &response, "create thread"); err != nil {
		return "", err
	}
	return response.ID, nil
}

func (c *Client) deleteThread(ctx context.Context, threadID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/threads/"+threadID, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	return c.do(req, nil, "delete thread")
}

func (c *Client) postMessage(ctx context.Context, threadID, query string, files []domain.FileRef) error {
	attachments := make([]map[string]any, 0, len(files))
	for _, ref := range files {
		attachments = append(attachments, map[string]any{
			"file_id": ref.FileID,
			"tools":   []map[string]string{{"type": "file_search"}},
		})
	}
	payload := map[string]any{
		"role":        "user",
		"content":     query,
		"attachments": attachments,
	}
	return c.postJSON(ctx, "/v1/threads/"+threadID+"/messages", payload, nil, "post message")
}

func (c *Client) createRun(ctx context.Context, threadID string) (string, error) {
	payload := map[string]any{"assistant_id": c.assistantID}
	if c.model != "" {
		payload["model"] = c.model
	}
	var response struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/v1/threads/"+threadID+"/runs", payload, &response, "create run"); err != nil {
		return "", err
	}
	return response.ID, nil
}

func (c *Client) getRun(ctx context.Context, threadID, runID string) (*runStatus, error) {
	var run runStatus
	if err := c.getJSON(ctx, "/v1/threads/"+threadID+"/runs/"+runID, &run, "get run"); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) latestAssistantMessage(ctx context.Context, threadID, runID string) (*assistantMessage, error) {
	var response struct {
		Data []struct {
			Role    string `json:"role"`
			RunID   string `json:"run_id"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value       string `json:"value"`
					Annotations []struct {
						Text         string `json:"text"`
						FileCitation struct {
							FileID string `json:"file_id"`
						} `json:"file_citation"`
					} `json:"annotations"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/v1/threads/"+threadID+"/messages?order=desc&limit=20", &response, "list messages"); err != nil {
		return nil, err
	}

	for _, msg := range response.Data {
		if msg.Role != "assistant" || (msg.RunID != "" && msg.RunID != runID) {
			continue
		}
		var parts []string
		var annotations []annotation
		for _, content := range msg.Content {
			if content.Type != "text" || strings.TrimSpace(content.Text.Value) == "" {
				continue
			}
			parts = append(parts, content.Text.Value)
			for _, ann := range content.Text.Annotations {
				annotations = append(annotations, annotation{
					Text:   ann.Text,
					FileID: ann.FileCitation.FileID,
				})
			}
		}
		if len(parts) == 0 {
			continue
		}
		return &assistantMessage{
			Text:        strings.Join(parts, "\n"),
			Annotations: annotations,
		}, nil
	}
	return nil, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, operation)
}

func (c *Client) getJSON(ctx context.Context, path string, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	return c.do(req, out, operation)
}

func (c *Client) do(req *http.Request, out any, operation string) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("assistant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return formatAssistantHTTPError(operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func formatAssistantHTTPError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("assistant %s status: %s", operation, resp.Status)
	}
	return fmt.Errorf("assistant %s status: %s: %s", operation, resp.Status, msg)
}
