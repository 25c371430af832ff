package cleaner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaRewriter is the AI cleaning pass: a local model rewrites
// rule-cleaned text, dropping residual navigation and social chrome the
// regexes missed. Enhanced degrades to the rule output when it fails.
type OllamaRewriter struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllamaRewriter(baseURL, model string) *OllamaRewriter {
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaRewriter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (r *OllamaRewriter) Rewrite(ctx context.Context, text string) (string, error) {
	reqBody := map[string]any{
		"model":  r.model,
		"prompt": buildRewritePrompt(text),
		"stream": false,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal rewrite request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create rewrite request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama rewrite request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("ollama rewrite status: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode rewrite response: %w", err)
	}
	return strings.TrimSpace(decoded.Response), nil
}

func buildRewritePrompt(text string) string {
	const maxSnippet = 8000
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `You clean captured web page text.
Remove navigation labels, cookie banners, interaction prompts and engagement counters.
Keep every sentence of substantive content unchanged, in the original order.
Return only the cleaned text, no commentary.

Text:
` + snippet
}

var _ Rewriter = (*OllamaRewriter)(nil)
