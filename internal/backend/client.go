// Package backend calls model backends. Callers only ever see text plus an
// availability flag: every failure mode collapses into OK=false.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"modelarena/internal/core"
	"modelarena/internal/util"
)

// Result is the outcome of one generation call.
type Result struct {
	Text    string
	OK      bool
	Err     error
	Latency time.Duration
}

type battleIDKey struct{}

// WithBattleID tags ctx so backend calls are attributed to a battle in metrics.
func WithBattleID(ctx context.Context, battleID string) context.Context {
	return context.WithValue(ctx, battleIDKey{}, battleID)
}

func battleIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(battleIDKey{}).(string)
	return id
}

// Client sends prompts to local and remote model backends.
type Client struct {
	httpClient *http.Client
	metrics    core.MetricsCollector
	logger     core.Logger
	getenv     func(string) string
}

// NewClient creates a backend client. The http.Client is shared across all
// models; per-call deadlines come from the timeout passed to Generate.
func NewClient(httpClient *http.Client, metrics core.MetricsCollector, logger core.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger,
		getenv:     os.Getenv,
	}
}

// Generate runs one prompt against desc. It never returns an error value:
// timeouts, transport errors, bad statuses, undecodable bodies, empty text and
// panics all produce OK=false with empty text. Nothing is retried.
func (c *Client) Generate(ctx context.Context, desc core.ModelDescriptor, prompt string, timeout time.Duration) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = Result{Err: fmt.Errorf("backend %s panicked: %v", desc.ID, r)}
		}
		result.Latency = time.Since(start)
		if !result.OK {
			result.Text = ""
			c.logger.Warn("Backend %s unavailable after %v: %v", desc.ID, result.Latency, result.Err)
		} else {
			c.logger.Debug("Backend %s answered in %v (%d chars)", desc.ID, result.Latency, len(result.Text))
		}
		c.metrics.RecordBackendCall(desc.ID, battleIDFrom(ctx), result.OK, result.Latency)
	}()

	if timeout <= 0 {
		timeout = desc.Timeout()
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		text string
		err  error
	)
	switch desc.Backend {
	case core.BackendLocal:
		text, err = c.generateLocal(callCtx, desc, prompt)
	case core.BackendRemote:
		text, err = c.generateRemote(callCtx, desc, prompt)
	default:
		err = fmt.Errorf("unknown backend kind %q", desc.Backend)
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v: %w", timeout, err)
		}
		return Result{Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return Result{Err: errors.New("empty completion")}
	}
	return Result{Text: text, OK: true}
}

// post sends a JSON payload and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, error) {
	payloadBytes, err := util.MarshalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // endpoints come from the operator's models file
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, util.TruncateForLog(string(body), core.MaxErrorBodyLogSize))
	}
	return body, nil
}

func joinURL(endpoint, path string) string {
	return strings.TrimRight(endpoint, "/") + path
}
