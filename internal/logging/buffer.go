package logging

import (
	"sync"
	"time"
)

// LogEntry is one log record as kept in the ring buffer and streamed over SSE.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Query selects entries from a RingBuffer. The zero Query matches everything.
type Query struct {
	Module   string // exact module name, empty for all
	MinLevel string // debug, info, warn or error; empty for all
	Limit    int    // newest N matches, 0 for no limit
}

// Match reports whether entry passes the module and level filters.
func (q Query) Match(entry LogEntry) bool {
	if q.Module != "" && entry.Module != q.Module {
		return false
	}
	if q.MinLevel != "" && levelRank(entry.Level) < levelRank(q.MinLevel) {
		return false
	}
	return true
}

func levelRank(level string) int {
	switch level {
	case "debug":
		return 0
	case "warn", "warning":
		return 2
	case "error":
		return 3
	default:
		return 1
	}
}

// RingBuffer keeps the last N log entries. Safe for concurrent use.
type RingBuffer struct {
	mu    sync.RWMutex
	slots []LogEntry
	next  int // slot the next Write lands in
	full  bool
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &RingBuffer{slots: make([]LogEntry, size)}
}

// Write stores entry, evicting the oldest one when the buffer is full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	rb.slots[rb.next] = entry
	rb.next++
	if rb.next == len(rb.slots) {
		rb.next = 0
		rb.full = true
	}
	rb.mu.Unlock()
}

// ReadAll returns every buffered entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Select(Query{})
}

// Select returns the entries matching q, oldest first.
func (rb *RingBuffer) Select(q Query) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []LogEntry
	visit := func(entries []LogEntry) {
		for _, e := range entries {
			if q.Match(e) {
				out = append(out, e)
			}
		}
	}
	if rb.full {
		visit(rb.slots[rb.next:])
	}
	visit(rb.slots[:rb.next])

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.slots)
	}
	return rb.next
}
