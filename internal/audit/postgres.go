package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresRecorder appends audit events to an append-only table.
type PostgresRecorder struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewPostgresRecorder wraps an open database handle.
func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{
		db:     db,
		tracer: otel.Tracer("loanledger/audit"),
	}
}

// Migrations returns the schema statements for the audit table.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id         UUID PRIMARY KEY,
			action     TEXT NOT NULL,
			username   TEXT NOT NULL,
			details    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_username ON audit_events(username)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events(created_at)`,
	}
}

func (r *PostgresRecorder) Record(ctx context.Context, e Event) error {
	ctx, span := r.tracer.Start(ctx, "audit.record",
		trace.WithAttributes(
			attribute.String("audit.action", e.Action),
			attribute.String("audit.username", e.Username),
		),
	)
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, action, username, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Action, e.Username, e.Details, e.Timestamp.UTC())
	if err != nil {
		// 23505: a retried insert hit the same event ID.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			span.SetAttributes(attribute.Bool("audit.duplicate", true))
			return nil
		}
		return fmt.Errorf("insert audit event: %w", err)
	}

	span.SetAttributes(attribute.Bool("audit.recorded", true))
	return nil
}

func (r *PostgresRecorder) List(ctx context.Context, f Filter) ([]Event, error) {
	ctx, span := r.tracer.Start(ctx, "audit.list")
	defer span.End()

	query := `
		SELECT id, action, username, details, created_at
		FROM audit_events
		WHERE 1=1
	`
	args := []interface{}{}

	if f.Action != "" {
		args = append(args, f.Action)
		query += fmt.Sprintf(" AND lower(action) = lower($%d)", len(args))
	}
	if f.Username != "" {
		args = append(args, f.Username)
		query += fmt.Sprintf(" AND username = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From.UTC())
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To.UTC())
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts time.Time
		if err := rows.Scan(&e.ID, &e.Action, &e.Username, &e.Details, &ts); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Timestamp = ts
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	span.SetAttributes(attribute.Int("audit.events", len(events)))
	return events, nil
}
