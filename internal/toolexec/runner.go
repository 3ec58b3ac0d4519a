package toolexec

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

// Result is the tool endpoint's verdict on one invocation. OK false is a
// tool-level failure reported by the endpoint, not a transport error.
type Result struct {
	OK     bool
	Output string
	Detail string // failure detail when OK is false
}

// Runner executes named tools against a tool endpoint.
type Runner interface {
	// Execute invokes a tool with the given arguments.
	Execute(ctx context.Context, name string, args map[string]interface{}) (Result, error)

	// Name returns the runner identifier.
	Name() string

	// Close releases the underlying connection, if any.
	Close() error
}

// New selects a runner for the endpoint by URL scheme. WebSocket endpoints
// hold a persistent connection; everything else goes over plain HTTP POST.
func New(endpoint string, logger *slog.Logger) (Runner, error) {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return NewWebSocketRunner(endpoint, logger)
	}
	return NewHTTPRunner(endpoint, logger)
}

// toolRequest and toolResponse mirror the tool endpoint wire contract:
// POST {name, args} answered by {ok, result?, error?}.
type toolRequest struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type toolResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// resultFromWire renders the wire response for display. String results are
// unquoted; anything else stays as compact JSON.
func resultFromWire(wire toolResponse) Result {
	res := Result{OK: wire.OK, Detail: wire.Error}
	if len(wire.Result) > 0 {
		var s string
		if err := json.Unmarshal(wire.Result, &s); err == nil {
			res.Output = s
		} else {
			res.Output = string(wire.Result)
		}
	}
	return res
}
