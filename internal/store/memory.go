package store

import (
	"context"
	"sync"
)

// MemoryCollection is an in-process Collection for tests and ephemeral
// runs. If FailReplace is set, Replace returns it without mutating the
// stored snapshot, which lets tests exercise persistence-failure paths.
type MemoryCollection[T any] struct {
	mu          sync.RWMutex
	items       []T
	FailReplace error
}

// NewMemoryCollection creates an empty in-memory collection.
func NewMemoryCollection[T any]() *MemoryCollection[T] {
	return &MemoryCollection[T]{}
}

func (c *MemoryCollection[T]) Load(ctx context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out, nil
}

func (c *MemoryCollection[T]) Replace(ctx context.Context, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailReplace != nil {
		return c.FailReplace
	}
	c.items = make([]T, len(items))
	copy(c.items, items)
	return nil
}

// MemoryDocument is an in-process Document.
type MemoryDocument[T any] struct {
	mu          sync.RWMutex
	value       T
	present     bool
	FailReplace error
}

// NewMemoryDocument creates an empty in-memory document.
func NewMemoryDocument[T any]() *MemoryDocument[T] {
	return &MemoryDocument[T]{}
}

func (d *MemoryDocument[T]) Load(ctx context.Context) (T, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value, d.present, nil
}

func (d *MemoryDocument[T]) Replace(ctx context.Context, v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailReplace != nil {
		return d.FailReplace
	}
	d.value = v
	d.present = true
	return nil
}
