// Package store provides whole-collection snapshot persistence.
//
// Every collection is read and replaced as a unit: callers load the full
// snapshot at startup and replace it after each mutation. Implementations
// must make Replace atomic — a crash mid-save never leaves a partially
// written snapshot behind.
package store

import (
	"context"
	"errors"
)

// ErrStorage marks persistence failures. Services wrap it so callers can
// distinguish a durable-write failure from a business-rule violation.
var ErrStorage = errors.New("storage failure")

// Collection persists an ordered list of records as a single snapshot.
type Collection[T any] interface {
	// Load returns the current snapshot. A collection that has never been
	// saved loads as empty, not as an error.
	Load(ctx context.Context) ([]T, error)

	// Replace atomically swaps the stored snapshot for items.
	Replace(ctx context.Context, items []T) error
}

// Document persists a single record, such as process-wide settings.
type Document[T any] interface {
	// Load returns the stored value and whether one exists.
	Load(ctx context.Context) (T, bool, error)

	// Replace atomically swaps the stored value.
	Replace(ctx context.Context, v T) error
}
