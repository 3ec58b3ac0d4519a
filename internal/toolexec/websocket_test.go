package toolexec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func newToolSocketServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var req wsToolRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := wsToolResponse{ID: req.ID, OK: true}
			if req.Name == "fail" {
				resp.OK = false
				resp.Error = "tool rejected"
			} else {
				resp.Result = []byte(`"pong"`)
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketRunnerExecute(t *testing.T) {
	srv := newToolSocketServer(t)
	defer srv.Close()

	runner, err := NewWebSocketRunner(wsURL(srv), discardLogger())
	if err != nil {
		t.Fatalf("NewWebSocketRunner: %v", err)
	}
	defer runner.Close()

	res, err := runner.Execute(context.Background(), "ping", map[string]interface{}{"n": 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.OK || res.Output != "pong" {
		t.Fatalf("result = %+v, want OK pong", res)
	}

	res, err = runner.Execute(context.Background(), "fail", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK || res.Detail != "tool rejected" {
		t.Fatalf("result = %+v, want tool rejection", res)
	}
}

func TestWebSocketRunnerClosed(t *testing.T) {
	srv := newToolSocketServer(t)
	defer srv.Close()

	runner, err := NewWebSocketRunner(wsURL(srv), discardLogger())
	if err != nil {
		t.Fatalf("NewWebSocketRunner: %v", err)
	}
	if err := runner.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := runner.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := runner.Execute(context.Background(), "ping", nil); err == nil {
		t.Fatal("expected error executing on closed runner")
	}
}

func TestNewSelectsWebSocketRunner(t *testing.T) {
	srv := newToolSocketServer(t)
	defer srv.Close()

	runner, err := New(wsURL(srv), discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer runner.Close()

	if _, ok := runner.(*WebSocketRunner); !ok {
		t.Fatalf("runner type = %T, want *WebSocketRunner", runner)
	}
}
