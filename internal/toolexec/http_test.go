package toolexec

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPRunnerExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req toolRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Name != "add_task" {
			t.Errorf("tool name = %q, want %q", req.Name, "add_task")
		}
		if req.Args["title"] != "Buy milk" {
			t.Errorf("args = %#v, want title set", req.Args)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": "task created"})
	}))
	defer srv.Close()

	runner, err := NewHTTPRunner(srv.URL, discardLogger())
	if err != nil {
		t.Fatalf("NewHTTPRunner: %v", err)
	}

	res, err := runner.Execute(context.Background(), "add_task", map[string]interface{}{"title": "Buy milk"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.OK {
		t.Fatalf("result not OK: %+v", res)
	}
	if res.Output != "task created" {
		t.Fatalf("output = %q, want %q", res.Output, "task created")
	}
}

func TestHTTPRunnerToolFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": "no such tool"})
	}))
	defer srv.Close()

	runner, err := NewHTTPRunner(srv.URL, discardLogger())
	if err != nil {
		t.Fatalf("NewHTTPRunner: %v", err)
	}

	res, err := runner.Execute(context.Background(), "bogus", nil)
	if err != nil {
		t.Fatalf("tool-level failure should not be a transport error, got %v", err)
	}
	if res.OK {
		t.Fatalf("result OK = true, want false")
	}
	if res.Detail != "no such tool" {
		t.Fatalf("detail = %q, want %q", res.Detail, "no such tool")
	}
}

func TestHTTPRunnerEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	runner, err := NewHTTPRunner(srv.URL, discardLogger())
	if err != nil {
		t.Fatalf("NewHTTPRunner: %v", err)
	}

	if _, err := runner.Execute(context.Background(), "any", nil); err == nil {
		t.Fatal("expected transport error on HTTP 500")
	}
}

func TestHTTPRunnerStructuredResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"id": "t1", "done": false},
		})
	}))
	defer srv.Close()

	runner, err := NewHTTPRunner(srv.URL, discardLogger())
	if err != nil {
		t.Fatalf("NewHTTPRunner: %v", err)
	}

	res, err := runner.Execute(context.Background(), "get_task", map[string]interface{}{"id": "t1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(res.Output), &decoded); err != nil {
		t.Fatalf("structured output should stay JSON, got %q: %v", res.Output, err)
	}
	if decoded["id"] != "t1" {
		t.Fatalf("output = %q, want id t1", res.Output)
	}
}

func TestNewSelectsRunnerByScheme(t *testing.T) {
	runner, err := New("http://localhost:9/tools", discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := runner.(*HTTPRunner); !ok {
		t.Fatalf("runner type = %T, want *HTTPRunner", runner)
	}
}
