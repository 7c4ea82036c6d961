package eventlog

import (
	"sync"
	"time"
)

// DefaultSize is the capacity used when a non-positive size is requested.
const DefaultSize = 200

// Kind classifies a diagnostic entry.
type Kind string

const (
	KindStart     Kind = "start"
	KindStop      Kind = "stop"
	KindProgress  Kind = "progress"
	KindSuccess   Kind = "success"
	KindRetry     Kind = "retry"
	KindError     Kind = "error"
	KindTimeout   Kind = "timeout"
	KindDuplicate Kind = "duplicate"
	KindReconnect Kind = "reconnect"
)

// Entry is one diagnostic event.
type Entry struct {
	At      time.Time `json:"at"`
	Source  string    `json:"source"`
	Kind    Kind      `json:"kind"`
	Subject string    `json:"subject,omitempty"`
	Message string    `json:"message,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
}

// Recorder accepts diagnostic entries.
type Recorder interface {
	Record(e Entry)
}

// Ring is a bounded, process-local log. Once full, each new entry evicts the
// oldest one.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewRing creates a ring holding at most size entries.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return &Ring{entries: make([]Entry, size)}
}

// Record appends an entry, stamping it with the current time if unset.
func (r *Ring) Record(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns a copy of the retained entries, oldest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}

	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		return len(r.entries)
	}
	return r.next
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.entries)
}

// Nop discards every entry.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(Entry) {}
