// Package audit records who did what to the library and when. Core
// services emit an event after every successful mutation; the recorder
// owns storage and filtering.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actor identifies the authenticated user driving an operation. It is
// passed explicitly into every core call; services never read ambient
// session state.
type Actor struct {
	Username string
	Role     string
}

// System is the actor recorded for operations not driven by a user.
var System = Actor{Username: "system", Role: "admin"}

// Event is one audit-log entry.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Action    string    `json:"action"`
	Username  string    `json:"username"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter selects events by action, username, and time window. Zero
// fields match everything.
type Filter struct {
	Action   string
	Username string
	From     time.Time
	To       time.Time
}

func (f Filter) matches(e Event) bool {
	if f.Action != "" && !strings.EqualFold(f.Action, e.Action) {
		return false
	}
	if f.Username != "" && f.Username != e.Username {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

// Recorder is the audit sink consumed by the core services.
type Recorder interface {
	Record(ctx context.Context, e Event) error
	List(ctx context.Context, f Filter) ([]Event, error)
}

// New builds an event with a fresh ID and timestamp.
func New(action string, actor Actor, details string) Event {
	return Event{
		ID:        uuid.New(),
		Action:    action,
		Username:  actor.Username,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// MemoryRecorder keeps events in memory, newest last.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRecorder) List(ctx context.Context, f Filter) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
