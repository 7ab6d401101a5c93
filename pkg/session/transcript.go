package session

import (
	"sync"
	"time"
)

// Transcript roles.
const (
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Entry is one transcript line.
type Entry struct {
	Time time.Time `json:"time"`
	Role string    `json:"role"`
	Text string    `json:"text"`
}

// Transcript is an append-only, bounded list of entries.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

// NewTranscript creates a transcript keeping at most max entries (0 = unbounded).
func NewTranscript(max int) *Transcript {
	return &Transcript{max: max}
}

// Append adds an entry stamped with the current time.
func (t *Transcript) Append(role, text string) Entry {
	e := Entry{Time: time.Now(), Role: role, Text: text}

	t.mu.Lock()
	t.entries = append(t.entries, e)
	if t.max > 0 && len(t.entries) > t.max {
		t.entries = t.entries[len(t.entries)-t.max:]
	}
	t.mu.Unlock()

	return e
}

// Entries returns a copy of every entry in order.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
