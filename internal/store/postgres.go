package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Postgres persists snapshots in a single table keyed by collection name.
// Each Replace runs in a serializable transaction, so concurrent writers
// cannot interleave partial snapshots.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrations returns the schema statements for the snapshot table. Each
// string is a single SQL statement.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			name       TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}
}

func (p *Postgres) load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT data FROM snapshots WHERE name = $1
	`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	return data, nil
}

func (p *Postgres) replace(ctx context.Context, name string, data []byte) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (name, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at
	`, name, data, time.Now().UTC())
	if err != nil {
		// 40001 is a serialization failure from a concurrent replace.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "40001" {
			return fmt.Errorf("replace snapshot %q: %w: %v", name, ErrStorage, err)
		}
		return fmt.Errorf("replace snapshot %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %q: %w", name, err)
	}
	return nil
}

// PostgresCollection is a Collection stored as one snapshot row.
type PostgresCollection[T any] struct {
	pg   *Postgres
	name string
}

// NewPostgresCollection creates a collection stored under name.
func NewPostgresCollection[T any](pg *Postgres, name string) *PostgresCollection[T] {
	return &PostgresCollection[T]{pg: pg, name: name}
}

func (c *PostgresCollection[T]) Load(ctx context.Context) ([]T, error) {
	data, err := c.pg.load(ctx, c.name)
	if err != nil || data == nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", c.name, err)
	}
	return items, nil
}

func (c *PostgresCollection[T]) Replace(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode snapshot %q: %w", c.name, err)
	}
	return c.pg.replace(ctx, c.name, data)
}

// PostgresDocument is a Document stored as one snapshot row.
type PostgresDocument[T any] struct {
	pg   *Postgres
	name string
}

// NewPostgresDocument creates a document stored under name.
func NewPostgresDocument[T any](pg *Postgres, name string) *PostgresDocument[T] {
	return &PostgresDocument[T]{pg: pg, name: name}
}

func (d *PostgresDocument[T]) Load(ctx context.Context) (T, bool, error) {
	var zero T
	data, err := d.pg.load(ctx, d.name)
	if err != nil || data == nil {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("decode snapshot %q: %w", d.name, err)
	}
	return v, true, nil
}

func (d *PostgresDocument[T]) Replace(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %q: %w", d.name, err)
	}
	return d.pg.replace(ctx, d.name, data)
}
