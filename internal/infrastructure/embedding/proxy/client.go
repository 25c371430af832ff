package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/clipindex/internal/infrastructure/resilience"
)

const (
	taskTypeDocument = "retrieval_document"
	taskTypeQuery    = "retrieval_query"
)

type Options struct {
	Model       string
	BatchSize   int
	RequestGap  time.Duration
	BatchGap    time.Duration
	Executor    *resilience.Executor
	HTTPTimeout time.Duration
}

// Client calls the hosted embedding proxy. Requests are paced by a token
// bucket and grouped into batches with an inter-batch delay to respect the
// remote quota.
type Client struct {
	baseURL    string
	model      string
	batchSize  int
	batchGap   time.Duration
	limiter    *rate.Limiter
	executor   *resilience.Executor
	httpClient *http.Client
}

func New(baseURL string, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = "text-embedding-004"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.RequestGap <= 0 {
		opts.RequestGap = 100 * time.Millisecond
	}
	if opts.BatchGap <= 0 {
		opts.BatchGap = time.Second
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      opts.Model,
		batchSize:  opts.BatchSize,
		batchGap:   opts.BatchGap,
		limiter:    rate.NewLimiter(rate.Every(opts.RequestGap), 1),
		executor:   opts.Executor,
		httpClient: &http.Client{Timeout: opts.HTTPTimeout},
	}
}

func (c *Client) ModelName() string { return c.model }

// Available probes the proxy health endpoint.
func (c *Client) Available(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("proxy health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return newStatusError("health", resp)
	}
	return nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		for _, text := range texts[start:end] {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			vec, err := c.embedOne(ctx, text, taskTypeDocument)
			if err != nil {
				return nil, err
			}
			out = append(out, vec)
		}
		if end < len(texts) {
			if err := sleepCtx(ctx, c.batchGap); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.embedOne(ctx, text, taskTypeQuery)
}

func (c *Client) embedOne(ctx context.Context, text, taskType string) ([]float32, error) {
	var vec []float32
	call := func(ctx context.Context) error {
		var err error
		vec, err = c.postEmbed(ctx, text, taskType)
		return err
	}
	var err error
	if c.executor != nil {
		err = c.executor.Do(ctx, "proxy.embed", call, classifyProxyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("proxy returned empty embedding")
	}
	return vec, nil
}

func (c *Client) postEmbed(ctx context.Context, text, taskType string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"text":      text,
		"task_type": taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy embed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, newStatusError("embed", resp)
	}

	var decoded struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	return decoded.Embedding, nil
}

func newStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
