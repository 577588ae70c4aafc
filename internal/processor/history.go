package processor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry records one answered question
type HistoryEntry struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	SQL        string    `json:"sql"`
	RowCount   int       `json:"row_count"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryLog is a bounded, newest-first log of answered questions. It is
// owned by whoever constructs the processor, so tests and multiple server
// instances each get their own log.
type HistoryLog struct {
	mu      sync.Mutex
	entries []HistoryEntry
	limit   int
}

// NewHistoryLog creates a history log holding at most limit entries.
// A non-positive limit falls back to 100.
func NewHistoryLog(limit int) *HistoryLog {
	if limit <= 0 {
		limit = 100
	}
	return &HistoryLog{limit: limit}
}

// Add prepends an entry, evicting the oldest once the limit is reached
func (h *HistoryLog) Add(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	h.entries = append([]HistoryEntry{entry}, h.entries...)
	if len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
}

// List returns a copy of the entries, newest first
func (h *HistoryLog) List() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clear removes all entries
func (h *HistoryLog) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Len reports the current number of entries
func (h *HistoryLog) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
