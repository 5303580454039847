// Package llm is the client for an Ollama-compatible text completion server.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/assay/pkg/retry"
)

const maxResponseBytes = 8 << 20

var tracer = otel.Tracer("github.com/JaimeStill/assay/internal/llm")

// Completion is the raw model output for one evaluation.
type Completion struct {
	Output  string
	Model   string
	Latency time.Duration
}

// Model describes one model installed on the server.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Client evaluates text against a criterion on the model server.
type Client interface {
	// Evaluate renders the prompt and returns the model's raw answer.
	Evaluate(ctx context.Context, text, criterion string) (Completion, error)
	// Health probes the server's model listing endpoint.
	Health(ctx context.Context) error
	// Models lists installed models.
	Models(ctx context.Context) ([]Model, error)
	// ModelName returns the configured generation model.
	ModelName() string
}

type client struct {
	cfg    *Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a Client. A nil httpClient uses a dedicated client with no
// overall timeout; per-attempt timeouts come from cfg.
func New(cfg *Config, httpClient *http.Client, logger *slog.Logger) Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With("system", "llm"),
	}
}

type generateOptions struct {
	NumCtx      int     `json:"num_ctx"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	Stream    bool            `json:"stream"`
	KeepAlive string          `json:"keep_alive,omitempty"`
	Options   generateOptions `json:"options"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (c *client) ModelName() string {
	return c.cfg.Model
}

func (c *client) Evaluate(ctx context.Context, text, criterion string) (Completion, error) {
	ctx, span := tracer.Start(ctx, "llm.evaluate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.cfg.Model),
		attribute.Int("llm.prompt_chars", len(text)+len(criterion)),
	)

	prompt, err := Prompt(text, criterion)
	if err != nil {
		return Completion{}, err
	}

	payload, err := json.Marshal(generateRequest{
		Model:     c.cfg.Model,
		Prompt:    prompt,
		Stream:    false,
		KeepAlive: c.cfg.KeepAlive,
		Options: generateOptions{
			NumCtx:      c.cfg.NumCtx,
			Temperature: c.cfg.Temperature,
			TopP:        c.cfg.TopP,
			TopK:        c.cfg.TopK,
			NumPredict:  c.cfg.NumPredict,
		},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal generate request: %w", err)
	}

	opts := retry.Options{
		Config: retry.Config{
			MaxRetries:      c.cfg.MaxRetries,
			BaseDelay:       c.cfg.RetryDelayDuration(),
			MaxDelay:        c.cfg.RetryDelayDuration() * 4,
			BackoffMultiple: 2,
		},
		Retryable: Retryable,
		Logger:    c.logger,
		Name:      "llm generate",
	}

	completion, err := retry.Do(ctx, opts, func(ctx context.Context, attempt int) (Completion, error) {
		span.SetAttributes(attribute.Int("llm.attempt", attempt+1))
		return c.generate(ctx, payload)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, err
	}

	span.SetAttributes(attribute.Int64("llm.latency_ms", completion.Latency.Milliseconds()))
	return completion, nil
}

func (c *client) generate(ctx context.Context, payload []byte) (Completion, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.TimeoutDuration())
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint("/api/generate"), bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	data, status, err := c.do(attemptCtx, ctx, "generate", req)
	if err != nil {
		return Completion{}, err
	}
	latency := time.Since(start)

	if status != http.StatusOK {
		return Completion{}, statusError("generate", status, data)
	}

	var resp generateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Completion{}, &TransportError{
			Op:         "generate",
			StatusCode: status,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	if resp.Error != "" {
		return Completion{}, &ResponseError{StatusCode: status, Message: resp.Error}
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}

	c.logger.Debug("generation complete", "model", model, "latency", latency, "output_bytes", len(resp.Response))

	return Completion{
		Output:  resp.Response,
		Model:   model,
		Latency: latency,
	}, nil
}

func (c *client) Health(ctx context.Context) error {
	_, err := c.tags(ctx)
	return err
}

func (c *client) Models(ctx context.Context) ([]Model, error) {
	return c.tags(ctx)
}

func (c *client) tags(ctx context.Context) ([]Model, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeoutDuration())
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.endpoint("/api/tags"), nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}

	data, status, err := c.do(attemptCtx, ctx, "tags", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError("tags", status, data)
	}

	var body struct {
		Models []Model `json:"models"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, &TransportError{Op: "tags", StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return body.Models, nil
}

// do sends req and reads the bounded body. attemptCtx carries the per-attempt
// deadline; parent distinguishes an attempt timeout from caller cancellation.
func (c *client) do(attemptCtx, parent context.Context, op string, req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, transportError(op, attemptCtx, parent, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, transportError(op, attemptCtx, parent, err)
	}
	return data, resp.StatusCode, nil
}

func (c *client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func transportError(op string, attemptCtx, parent context.Context, err error) error {
	if parent.Err() != nil {
		return &TransportError{Op: op, Err: parent.Err()}
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &TransportError{Op: op, Timeout: true, Err: err}
	}
	return &TransportError{Op: op, Transient: transientCause(err), Err: err}
}

func statusError(op string, status int, body []byte) error {
	if transientStatus(status) {
		return &TransportError{
			Op:         op,
			StatusCode: status,
			Transient:  true,
			Err:        errors.New(http.StatusText(status)),
		}
	}

	var reply struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &reply); err == nil && reply.Error != "" {
		return &ResponseError{StatusCode: status, Message: reply.Error}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ResponseError{StatusCode: status, Message: msg}
}
