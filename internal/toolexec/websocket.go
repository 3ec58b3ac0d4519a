package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// WebSocketRunner executes tools over a persistent WebSocket connection.
type WebSocketRunner struct {
	url    string
	conn   *websocket.Conn
	reqID  int32
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// wsToolRequest and wsToolResponse carry the tool contract over the socket
// with a correlation id.
type wsToolRequest struct {
	ID   int                    `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type wsToolResponse struct {
	ID     int             `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewWebSocketRunner dials the endpoint and returns a connected runner.
func NewWebSocketRunner(url string, logger *slog.Logger) (*WebSocketRunner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	runner := &WebSocketRunner{
		url:    url,
		conn:   conn,
		logger: logger,
	}

	logger.Info("created WebSocket tool runner", "url", url)
	return runner, nil
}

// Name returns the runner identifier.
func (r *WebSocketRunner) Name() string {
	return r.url
}

// Execute invokes a tool with the given arguments. Requests are serialized
// on the single connection; the response is matched by correlation id.
func (r *WebSocketRunner) Execute(ctx context.Context, name string, args map[string]interface{}) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Result{}, fmt.Errorf("runner is closed")
	}

	reqID := int(atomic.AddInt32(&r.reqID, 1))
	request := wsToolRequest{ID: reqID, Name: name, Args: args}

	if deadline, ok := ctx.Deadline(); ok {
		r.conn.SetReadDeadline(deadline)
		r.conn.SetWriteDeadline(deadline)
	}

	if err := r.conn.WriteJSON(request); err != nil {
		return Result{}, fmt.Errorf("failed to write tool request: %w", err)
	}

	var response wsToolResponse
	for {
		if err := r.conn.ReadJSON(&response); err != nil {
			return Result{}, fmt.Errorf("failed to read tool response: %w", err)
		}
		if response.ID == reqID {
			break
		}
		r.logger.Warn("discarding out-of-order tool response", "got", response.ID, "want", reqID)
	}

	r.logger.Info("executed tool", "tool", name, "ok", response.OK)
	return resultFromWire(toolResponse{OK: response.OK, Result: response.Result, Error: response.Error}), nil
}

// Close disconnects from the tool endpoint.
func (r *WebSocketRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.conn != nil {
		r.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		r.conn.Close()
	}

	r.logger.Info("closed WebSocket tool runner", "url", r.url)
	return nil
}
