// Package gate holds inline tool calls between detection and explicit user
// confirmation. At most one call is pending at a time; there is no queue.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"TaskChat/internal/stream"
	"TaskChat/internal/toolexec"
)

var (
	// ErrNoPending is returned when no tool call awaits a decision.
	ErrNoPending = errors.New("no tool call pending")

	// ErrCallPending rejects a second tool call while one is already held.
	ErrCallPending = errors.New("a tool call is already awaiting confirmation")

	// ErrBadArgs means the edited arguments did not parse as a JSON object.
	// The call stays pending so the arguments can be edited again.
	ErrBadArgs = errors.New("tool arguments are not a JSON object")

	// ErrExecuting rejects confirm/cancel once execution has started.
	ErrExecuting = errors.New("tool call is already executing")
)

// PendingToolCall is a tool invocation held for user confirmation. ArgsText
// is the editable pretty-printed argument object.
type PendingToolCall struct {
	Name      string
	ArgsText  string
	MessageID string
}

type gateState int

const (
	stateIdle gateState = iota
	stateAwaiting
	stateExecuting
)

// Gate is the single-slot approval point for inline tool calls.
type Gate struct {
	mu      sync.Mutex
	state   gateState
	pending PendingToolCall
	runner  toolexec.Runner
	logger  *slog.Logger
}

// New creates a Gate executing confirmed calls on the given runner.
func New(runner toolexec.Runner, logger *slog.Logger) *Gate {
	return &Gate{
		runner: runner,
		logger: logger,
	}
}

// Offer presents a detected tool call for confirmation. While a call is
// already held the new one is rejected with ErrCallPending and the first
// stays pending.
func (g *Gate) Offer(call stream.ToolCall, messageID string) (PendingToolCall, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != stateIdle {
		g.logger.Warn("rejected tool call while one is pending", "tool", call.Name)
		return PendingToolCall{}, ErrCallPending
	}

	args := call.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	pretty, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return PendingToolCall{}, fmt.Errorf("failed to format tool arguments: %w", err)
	}

	g.pending = PendingToolCall{
		Name:      call.Name,
		ArgsText:  string(pretty),
		MessageID: messageID,
	}
	g.state = stateAwaiting

	g.logger.Info("tool call awaiting confirmation", "tool", call.Name)
	return g.pending, nil
}

// Pending returns the held call, if any.
func (g *Gate) Pending() (PendingToolCall, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.state == stateAwaiting
}

// SetArgs replaces the editable argument text verbatim. Validation happens
// at Confirm.
func (g *Gate) SetArgs(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateIdle:
		return ErrNoPending
	case stateExecuting:
		return ErrExecuting
	}
	g.pending.ArgsText = text
	return nil
}

// Confirm re-parses the edited arguments and executes the call. A parse
// failure returns ErrBadArgs and keeps the call pending. Execution clears
// the pending slot whatever the outcome: tool success, tool failure, and
// transport errors are all terminal.
func (g *Gate) Confirm(ctx context.Context) (toolexec.Result, error) {
	g.mu.Lock()
	switch g.state {
	case stateIdle:
		g.mu.Unlock()
		return toolexec.Result{}, ErrNoPending
	case stateExecuting:
		g.mu.Unlock()
		return toolexec.Result{}, ErrExecuting
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(g.pending.ArgsText), &args); err != nil {
		g.mu.Unlock()
		return toolexec.Result{}, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	if args == nil {
		g.mu.Unlock()
		return toolexec.Result{}, fmt.Errorf("%w: null is not an object", ErrBadArgs)
	}

	name := g.pending.Name
	g.state = stateExecuting
	g.mu.Unlock()

	res, err := g.runner.Execute(ctx, name, args)

	g.mu.Lock()
	g.pending = PendingToolCall{}
	g.state = stateIdle
	g.mu.Unlock()

	if err != nil {
		g.logger.Error("tool execution failed", "tool", name, "error", err)
		return toolexec.Result{}, fmt.Errorf("failed to execute %s: %w", name, err)
	}

	g.logger.Info("tool executed", "tool", name, "ok", res.OK)
	return res, nil
}

// Cancel discards the pending call with no side effects. It is rejected
// once execution has started.
func (g *Gate) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateIdle:
		return ErrNoPending
	case stateExecuting:
		return ErrExecuting
	}

	g.logger.Info("tool call cancelled", "tool", g.pending.Name)
	g.pending = PendingToolCall{}
	g.state = stateIdle
	return nil
}
