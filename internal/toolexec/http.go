package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxToolResponseBytes = 1 << 20 // 1 MB

// HTTPRunner executes tools against an HTTP endpoint.
type HTTPRunner struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPRunner creates an HTTP-based tool runner.
func NewHTTPRunner(endpoint string, logger *slog.Logger) (*HTTPRunner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	runner := &HTTPRunner{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}

	logger.Info("created HTTP tool runner", "endpoint", endpoint)
	return runner, nil
}

// Name returns the runner identifier.
func (r *HTTPRunner) Name() string {
	return r.endpoint
}

// Execute invokes a tool with the given arguments.
func (r *HTTPRunner) Execute(ctx context.Context, name string, args map[string]interface{}) (Result, error) {
	payload, err := json.Marshal(toolRequest{Name: name, Args: args})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to send tool request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxToolResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read tool response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("tool endpoint error: %s - %s", resp.Status, bytes.TrimSpace(body))
	}

	var wire toolResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return Result{}, fmt.Errorf("failed to unmarshal tool response: %w", err)
	}

	r.logger.Info("executed tool", "tool", name, "ok", wire.OK)
	return resultFromWire(wire), nil
}

// Close disconnects the runner. HTTP runners hold no connection state.
func (r *HTTPRunner) Close() error {
	return nil
}
