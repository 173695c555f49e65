package audit

import (
	"context"
	"fmt"
	"sync"

	"loanledger/internal/store"
)

// SnapshotRecorder persists events through a snapshot collection, for
// deployments using file-backed storage.
type SnapshotRecorder struct {
	mu     sync.RWMutex
	events []Event
	snap   store.Collection[Event]
}

// NewSnapshotRecorder loads previously recorded events from snap.
func NewSnapshotRecorder(ctx context.Context, snap store.Collection[Event]) (*SnapshotRecorder, error) {
	events, err := snap.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load audit log: %w", err)
	}
	return &SnapshotRecorder{events: events, snap: snap}, nil
}

func (r *SnapshotRecorder) Record(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	if err := r.snap.Replace(ctx, r.events); err != nil {
		r.events = r.events[:len(r.events)-1]
		return fmt.Errorf("persist audit log: %w", err)
	}
	return nil
}

func (r *SnapshotRecorder) List(ctx context.Context, f Filter) ([]Event, error) {
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
