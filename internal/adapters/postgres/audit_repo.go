package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/dispatch/internal/ports/secondary"
)

// AuditRepository implements secondary.AuditRepository with PostgreSQL.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new PostgreSQL audit repository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

var _ secondary.AuditRepository = (*AuditRepository)(nil)

// Append stores an entry with the next sequence number for its task. Callers
// append after writing the task row, whose lock serialises writers per task.
func (r *AuditRepository) Append(ctx context.Context, entry *secondary.AuditRecord) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	var details []byte
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = b
	}

	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO task_audit_log (id, task_id, seq, action, performed_by, performed_at, details, notes)
		SELECT $1::text, $2::text, COALESCE(MAX(seq), 0) + 1, $3::text, $4::text, $5::timestamptz, $6::jsonb, $7::text
		FROM task_audit_log WHERE task_id = $2::text
		RETURNING seq`,
		entry.ID, entry.TaskID, entry.Action, entry.PerformedBy, entry.PerformedAt,
		nullJSON(details), nullString(entry.Notes),
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByTask returns a task's entries in insertion order.
func (r *AuditRepository) ListByTask(ctx context.Context, taskID string) ([]*secondary.AuditRecord, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, task_id, seq, action, performed_by, performed_at, details, notes
		FROM task_audit_log WHERE task_id = $1 ORDER BY seq`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditRecord
	for rows.Next() {
		var (
			e       secondary.AuditRecord
			details []byte
			notes   *string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Seq, &e.Action, &e.PerformedBy, &e.PerformedAt, &details, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.PerformedAt = e.PerformedAt.UTC()
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		e.Notes = deref(notes)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func nullJSON(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}
