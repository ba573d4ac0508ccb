package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/docchat-backend/internal/platform/ctxutil"
	"github.com/yungbote/docchat-backend/internal/platform/envutil"
	"github.com/yungbote/docchat-backend/internal/platform/httpx"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
)

// Client is the OpenAI API surface the backend uses: embeddings for
// ingestion and retrieval, plain text generation for answers.
type Client interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// GenerateText sends a system+user prompt through the Responses API
	// and returns the assistant's output text.
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client

	embedBatchSize   int
	embedConcurrency int
	retry            httpx.RetryPolicy
}

type Option func(*client)

// WithHTTPClient swaps the underlying transport; used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRetryPolicy overrides the default backoff schedule.
func WithRetryPolicy(p httpx.RetryPolicy) Option {
	return func(c *client) { c.retry = p }
}

func NewClient(log *logger.Logger, opts ...Option) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimRight(envutil.Str("OPENAI_BASE_URL", "https://api.openai.com"), "/")
	model := envutil.Str("OPENAI_MODEL", "gpt-4o-mini")
	embedModel := envutil.Str("OPENAI_EMBED_MODEL", "text-embedding-3-small")
	timeout := envutil.DurationSeconds("OPENAI_TIMEOUT_SECONDS", 120*time.Second)
	batchSize := envutil.Int("OPENAI_EMBED_BATCH", 96)
	if batchSize <= 0 {
		batchSize = 96
	}
	concurrency := envutil.Int("OPENAI_EMBED_CONCURRENCY", 4)
	if concurrency <= 0 {
		concurrency = 1
	}

	retry := httpx.DefaultRetryPolicy()
	retry.MaxAttempts = envutil.Int("OPENAI_MAX_ATTEMPTS", retry.MaxAttempts)

	c := &client{
		log:              log.With("service", "OpenAIClient"),
		baseURL:          baseURL,
		apiKey:           apiKey,
		model:            model,
		embedModel:       embedModel,
		httpClient:       &http.Client{Timeout: timeout},
		embedBatchSize:   batchSize,
		embedConcurrency: concurrency,
		retry:            retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (e *openAIHTTPError) RetryAfterHint() time.Duration {
	if e == nil {
		return 0
	}
	return e.RetryAfter
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &openAIHTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: httpx.RetryAfterDuration(resp, 0, 0),
		}
	}
	return raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx = ctxutil.Default(ctx)
	return c.retry.Do(ctx, func(ctx context.Context) error {
		raw, err := c.doOnce(ctx, method, path, body)
		if err != nil {
			if httpx.IsRetryableError(err) {
				c.log.Warn("OpenAI request failed, may retry", "path", path, "error", err.Error())
			}
			return err
		}
		if out == nil {
			return nil
		}
		if uErr := json.Unmarshal(raw, out); uErr != nil {
			return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
		}
		return nil
	})
}

// -------------------- Embeddings API --------------------

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	out := make([][]float32, len(clean))

	g, gctx := errgroup.WithContext(ctxutil.Default(ctx))
	g.SetLimit(c.embedConcurrency)
	for start := 0; start < len(clean); start += c.embedBatchSize {
		end := start + c.embedBatchSize
		if end > len(clean) {
			end = len(clean)
		}
		offset, batch := start, clean[start:end]
		g.Go(func() error {
			return c.embedBatch(gctx, batch, out[offset:offset+len(batch)])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("embeddings response missing vector for input %d", i)
		}
	}
	return out, nil
}

// embedBatch fills dst with one vector per input, keyed by the response
// index field rather than response order.
func (c *client) embedBatch(ctx context.Context, batch []string, dst [][]float32) error {
	req := embeddingsRequest{Model: c.embedModel, Input: batch}

	var resp embeddingsResponse
	if err := c.do(ctx, "POST", "/v1/embeddings", req, &resp); err != nil {
		return err
	}
	if len(resp.Data) != len(batch) {
		return fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(batch))
	}
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(dst) {
			return fmt.Errorf("embeddings response index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		dst[d.Index] = vec
	}
	return nil
}

// -------------------- Responses API --------------------

type responsesRequest struct {
	Model string `json:"model"`

	Input []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"input"`

	Temperature float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	req := responsesRequest{
		Model: c.model,
		Input: []struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		}{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}

	var resp responsesResponse
	if err := c.do(ctx, "POST", "/v1/responses", req, &resp); err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}

	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	return text, nil
}
