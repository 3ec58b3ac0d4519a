package store

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" {
			t.Errorf("path = %s, want /api/tasks", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Task{
			{ID: "t1", Title: "Buy milk"},
			{ID: "t2", Title: "File taxes", Done: true},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	tasks, err := c.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "Buy milk" || !tasks[1].Done {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestClientChecklists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Checklist{
			{ID: "c1", Name: "Packing", Items: []ChecklistItem{
				{Text: "passport", Completed: true},
				{Text: "charger"},
			}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	lists, err := c.Checklists(context.Background())
	if err != nil {
		t.Fatalf("Checklists: %v", err)
	}
	if len(lists) != 1 || len(lists[0].Items) != 2 || !lists[0].Items[0].Completed {
		t.Fatalf("checklists = %+v", lists)
	}
}

func TestClientJournalWindow(t *testing.T) {
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]JournalEntry{
			{ID: "j1", Date: now.AddDate(0, 0, -1), Text: "yesterday"},
			{ID: "j2", Date: now.AddDate(0, 0, -29), Text: "in window"},
			{ID: "j3", Date: now.AddDate(0, 0, -31), Text: "too old"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	c.now = func() time.Time { return now }

	entries, err := c.Journal(context.Background())
	if err != nil {
		t.Fatalf("Journal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want the two recent ones", entries)
	}
	for _, e := range entries {
		if e.ID == "j3" {
			t.Fatalf("entry outside the window was kept: %+v", e)
		}
	}
}

func TestClientJournalSnapshotFallback(t *testing.T) {
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([]JournalEntry{
			{ID: "j1", Date: now.AddDate(0, 0, -2), Text: "kept"},
			{ID: "j2", Date: now.AddDate(0, 0, -40), Text: "already old"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	c.now = func() time.Time { return now }

	first, err := c.Journal(context.Background())
	if err != nil {
		t.Fatalf("Journal: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first fetch = %+v, want one in-window entry", first)
	}

	failing.Store(true)
	cached, err := c.Journal(context.Background())
	if err != nil {
		t.Fatalf("Journal with warm snapshot should not error, got %v", err)
	}
	if len(cached) != 1 || cached[0].ID != "j1" {
		t.Fatalf("cached = %+v, want snapshot entry j1", cached)
	}
}

func TestClientJournalColdCacheError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	if _, err := c.Journal(context.Background()); err == nil {
		t.Fatal("expected error with no snapshot to fall back on")
	}
}

func TestClientStoreError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	if _, err := c.Tasks(context.Background()); err == nil {
		t.Fatal("expected error on HTTP 403")
	}
}
