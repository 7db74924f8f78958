// Package diagnostics holds the capped, process-wide log of degraded operations.
package diagnostics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 50

// Entry is one recorded failure.
type Entry struct {
	Timestamp time.Time      `json:"timestamp" db:"timestamp"`
	Context   string         `json:"context" db:"context"`
	Message   string         `json:"message" db:"message"`
	Stack     string         `json:"stack,omitempty" db:"stack"`
	Fields    map[string]any `json:"fields,omitempty" db:"-"`
}

// Sink persists entries outside the process. Failures are logged, never returned.
type Sink interface {
	AppendDiagnostic(ctx context.Context, e Entry) error
}

// Log is an append-only ring of the most recent entries.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	sink     Sink
}

// NewLog creates a log holding at most capacity entries (DefaultCapacity if <= 0).
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity, entries: make([]Entry, 0, capacity)}
}

// SetSink enables write-through of every appended entry.
func (l *Log) SetSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = s
}

// Append stores e, evicting the oldest entry when the log is full.
func (l *Log) Append(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.capacity-1]
	}
	l.entries = append(l.entries, e)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		if err := sink.AppendDiagnostic(context.WithoutCancel(ctx), e); err != nil {
			log.Warnf("diagnostics: failed to persist entry for %q: %v", e.Context, err)
		}
	}
}

// Record logs err under label and appends it with the given extra fields.
func (l *Log) Record(ctx context.Context, label string, err error, fields map[string]any) {
	if err == nil {
		return
	}
	log.WithFields(log.Fields(fields)).Errorf("[%s] Error: %v", label, err)
	l.Append(ctx, Entry{
		Context: label,
		Message: err.Error(),
		Stack:   errorChain(err),
		Fields:  fields,
	})
}

// Entries returns a copy of the current entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops all in-memory entries.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

// errorChain renders the wrapped causes of err, outermost first. Go errors carry
// no call stack, so the chain is what ends up in Entry.Stack.
func errorChain(err error) string {
	var parts []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		parts = append(parts, e.Error())
	}
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts, "\n  caused by: ")
}
