package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileCollection stores a collection as a JSON file. Replace writes to a
// temp file in the same directory and renames it over the target, so a
// reader never observes a half-written snapshot.
type FileCollection[T any] struct {
	path string
}

// NewFileCollection creates a collection backed by the JSON file at path.
func NewFileCollection[T any](path string) *FileCollection[T] {
	return &FileCollection[T]{path: path}
}

func (c *FileCollection[T]) Load(ctx context.Context) ([]T, error) {
	items, err := readJSON[[]T](c.path)
	if err != nil {
		return nil, err
	}
	if items == nil {
		return nil, nil
	}
	return *items, nil
}

func (c *FileCollection[T]) Replace(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	return writeJSON(c.path, items)
}

// FileDocument stores a single value as a JSON file with the same
// write-temp-then-rename discipline as FileCollection.
type FileDocument[T any] struct {
	path string
}

// NewFileDocument creates a document backed by the JSON file at path.
func NewFileDocument[T any](path string) *FileDocument[T] {
	return &FileDocument[T]{path: path}
}

func (d *FileDocument[T]) Load(ctx context.Context) (T, bool, error) {
	var zero T
	v, err := readJSON[T](d.path)
	if err != nil {
		return zero, false, err
	}
	if v == nil {
		return zero, false, nil
	}
	return *v, true, nil
}

func (d *FileDocument[T]) Replace(ctx context.Context, v T) error {
	return writeJSON(d.path, v)
}

func readJSON[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &v, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot %s: %w", path, err)
	}
	return nil
}
