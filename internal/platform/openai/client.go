package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/dpnam2112/codemate-backend/internal/observability"
	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
	"github.com/dpnam2112/codemate-backend/internal/platform/httpx"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

// Client is the OpenAI API surface used by the backend.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// Structured outputs (json_schema)
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)

	// One model turn with function tools. The caller owns the conversation.
	GenerateWithTools(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	EmbedModel       string
	Timeout          time.Duration
	MaxRetries       int
	Temperature      *float64
	RequestsPerSec   float64
	BreakerFailures  uint32
	BreakerOpenSleep time.Duration
}

func LoadConfig() Config {
	cfg := Config{
		APIKey:           envutil.String("OPENAI_API_KEY", ""),
		BaseURL:          strings.TrimRight(envutil.String("OPENAI_BASE_URL", "https://api.openai.com"), "/"),
		Model:            envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		EmbedModel:       envutil.String("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		Timeout:          envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 180*time.Second),
		MaxRetries:       envutil.Int("OPENAI_MAX_RETRIES", 4),
		RequestsPerSec:   envutil.Float("OPENAI_RPS", 0),
		BreakerFailures:  uint32(envutil.PositiveInt("OPENAI_BREAKER_FAILURES", 5)),
		BreakerOpenSleep: envutil.Seconds("OPENAI_BREAKER_OPEN_SECONDS", 30*time.Second),
	}
	if v := envutil.String("OPENAI_TEMPERATURE", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = &f
		}
	}
	return cfg
}

type client struct {
	log        *logger.Logger
	metrics    *observability.Metrics
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(cfg Config, log *logger.Logger, metrics *observability.Metrics) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSec > 0 {
		burst := int(cfg.RequestsPerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	scoped := log.With("service", "OpenAIClient")
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenSleep,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Client errors (bad schema, 400s) say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || !httpx.IsRetryableError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			scoped.Warn("OpenAI circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &client{
		log:        scoped,
		metrics:    metrics,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		breaker:    breaker,
	}, nil
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// retryAfterError carries the server's Retry-After hint through the breaker.
type retryAfterError struct {
	err   error
	delay time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

func (c *client) doOnce(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
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
		herr := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		if d := httpx.RetryAfterDuration(resp, 0, 30*time.Second); d > 0 {
			return nil, &retryAfterError{err: herr, delay: d}
		}
		return nil, herr
	}
	return raw, nil
}

func (c *client) post(ctx context.Context, path string, model string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	backoff := time.Second
	start := time.Now()

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		raw, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doOnce(ctx, path, payload)
		})
		if err == nil {
			c.metrics.ObserveLLMRequest(model, path, "200", time.Since(start))
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt >= c.cfg.MaxRetries {
			c.metrics.ObserveLLMRequest(model, path, statusLabel(err), time.Since(start))
			return err
		}

		sleepFor := backoff
		var ra *retryAfterError
		if errors.As(err, &ra) {
			sleepFor = ra.delay
		}
		sleepFor = httpx.JitterSleep(sleepFor)
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func statusLabel(err error) string {
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) {
		return strconv.Itoa(sc.HTTPStatusCode())
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "breaker_open"
	}
	return "error"
}

// -------------------- Embeddings --------------------

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

	var resp embeddingsResponse
	if err := c.post(ctx, "/v1/embeddings", c.cfg.EmbedModel, embeddingsRequest{Model: c.cfg.EmbedModel, Input: clean}, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for pos, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			idx = pos
		}
		if idx >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[idx] = vec
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("openai embeddings missing index %d: requested=%d returned=%d model=%s", i, len(clean), len(resp.Data), c.cfg.EmbedModel)
		}
	}
	return out, nil
}

// -------------------- Responses API --------------------

// Item is one entry of a Responses API input list: a role message, a
// function_call echoed back from a previous turn, or a function_call_output.
type Item struct {
	Type      string `json:"type"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

func MessageItem(role, content string) Item {
	return Item{Type: "message", Role: role, Content: content}
}

func FunctionCallItem(callID, name, arguments string) Item {
	return Item{Type: "function_call", CallID: callID, Name: name, Arguments: arguments}
}

func FunctionOutputItem(callID, output string) Item {
	return Item{Type: "function_call_output", CallID: callID, Output: output}
}

type FunctionTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice values: "" or "auto", "required", "none", or a tool name to force.
type ToolRequest struct {
	Instructions string
	Input        []Item
	Tools        []FunctionTool
	ToolChoice   string
}

type FunctionCall struct {
	CallID    string
	Name      string
	Arguments string
}

type ToolResponse struct {
	Text  string
	Calls []FunctionCall
}

type responsesRequest struct {
	Model        string         `json:"model"`
	Instructions string         `json:"instructions,omitempty"`
	Input        any            `json:"input"`
	Tools        []any          `json:"tools,omitempty"`
	ToolChoice   any            `json:"tool_choice,omitempty"`
	Text         map[string]any `json:"text,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type      string `json:"type"`
		Role      string `json:"role,omitempty"`
		CallID    string `json:"call_id,omitempty"`
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
		Content   []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func (r responsesResponse) outputText() string {
	var out strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" && c.Text != "" {
				out.WriteString(c.Text)
			}
		}
	}
	return out.String()
}

func (c *client) GenerateWithTools(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	var out ToolResponse
	body := responsesRequest{
		Model:        c.cfg.Model,
		Instructions: req.Instructions,
		Input:        req.Input,
		Temperature:  c.cfg.Temperature,
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, map[string]any{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
			"strict":      false,
		})
	}
	switch choice := strings.TrimSpace(req.ToolChoice); choice {
	case "", "auto":
	case "required", "none":
		body.ToolChoice = choice
	default:
		body.ToolChoice = map[string]any{"type": "function", "name": choice}
	}

	var resp responsesResponse
	if err := c.post(ctx, "/v1/responses", c.cfg.Model, body, &resp); err != nil {
		return out, err
	}
	if resp.Refusal != "" {
		return out, fmt.Errorf("model refused: %s", resp.Refusal)
	}
	for _, item := range resp.Output {
		if item.Type == "function_call" {
			out.Calls = append(out.Calls, FunctionCall{CallID: item.CallID, Name: item.Name, Arguments: item.Arguments})
		}
	}
	out.Text = resp.outputText()
	return out, nil
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}
	body := responsesRequest{
		Model: c.cfg.Model,
		Input: []Item{
			MessageItem("system", system),
			MessageItem("user", user),
		},
		Text: map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   schemaName,
				"schema": schema,
				"strict": true,
			},
		},
		Temperature: c.cfg.Temperature,
	}

	var resp responsesResponse
	if err := c.post(ctx, "/v1/responses", c.cfg.Model, body, &resp); err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", resp.Refusal)
	}
	text := resp.outputText()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no output_text found in response")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w; text=%s", err, text)
	}
	return obj, nil
}
