package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	maxBodyBytes = 4 << 20 // 4 MB

	// JournalWindow is how far back journal entries ride along with a
	// message.
	JournalWindow = 30 * 24 * time.Hour
)

// Client fetches tasks, checklists and journal entries from the store
// service. Journal fetches keep a snapshot for reuse when the store is
// unreachable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	journal    journalSnapshot
	now        func() time.Time
}

// NewClient creates a store client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// Tasks returns all tasks.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := c.getJSON(ctx, "/api/tasks", &tasks); err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	return tasks, nil
}

// Checklists returns all checklists.
func (c *Client) Checklists(ctx context.Context) ([]Checklist, error) {
	var lists []Checklist
	if err := c.getJSON(ctx, "/api/checklists", &lists); err != nil {
		return nil, fmt.Errorf("failed to fetch checklists: %w", err)
	}
	return lists, nil
}

// Journal returns entries from the trailing thirty days. When the fetch
// fails the snapshot from the last successful fetch is served instead; the
// error surfaces only when there is no snapshot to fall back on.
func (c *Client) Journal(ctx context.Context) ([]JournalEntry, error) {
	var entries []JournalEntry
	if err := c.getJSON(ctx, "/api/journal", &entries); err != nil {
		cached, fetchedAt := c.journal.get()
		if fetchedAt.IsZero() {
			return nil, fmt.Errorf("failed to fetch journal: %w", err)
		}
		c.logger.Warn("journal fetch failed, serving cached snapshot",
			"error", err, "fetched_at", fetchedAt)
		return filterRecent(cached, c.now()), nil
	}

	c.journal.update(entries, c.now())
	return filterRecent(entries, c.now()), nil
}

// filterRecent drops entries older than the journal window.
func filterRecent(entries []JournalEntry, now time.Time) []JournalEntry {
	cutoff := now.Add(-JournalWindow)
	recent := make([]JournalEntry, 0, len(entries))
	for _, e := range entries {
		if e.Date.Before(cutoff) {
			continue
		}
		recent = append(recent, e)
	}
	return recent
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
