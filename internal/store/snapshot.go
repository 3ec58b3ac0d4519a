package store

import (
	"sync"
	"time"
)

// journalSnapshot keeps the last successful journal fetch so the client can
// serve stale entries when the store is unreachable.
type journalSnapshot struct {
	mu        sync.Mutex
	entries   []JournalEntry
	fetchedAt time.Time
}

// update replaces the snapshot contents and stamps the fetch time.
func (s *journalSnapshot) update(entries []JournalEntry, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]JournalEntry, len(entries))
	copy(s.entries, entries)
	s.fetchedAt = at
}

// get returns a copy of the snapshot and when it was taken. A zero time
// means no fetch has succeeded yet.
func (s *journalSnapshot) get() ([]JournalEntry, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]JournalEntry, len(s.entries))
	copy(entries, s.entries)
	return entries, s.fetchedAt
}
