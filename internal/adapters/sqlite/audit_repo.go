package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/dispatch/internal/ports/secondary"
)

// AuditRepository implements secondary.AuditRepository with SQLite.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new SQLite audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ secondary.AuditRepository = (*AuditRepository)(nil)

// Append stores an entry with the next sequence number for its task.
func (r *AuditRepository) Append(ctx context.Context, entry *secondary.AuditRecord) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	var details sql.NullString
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	q := conn(ctx, r.db)
	var seq int64
	if err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM task_audit_log WHERE task_id = ?", entry.TaskID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("failed to allocate audit sequence: %w", err)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO task_audit_log (id, task_id, seq, action, performed_by, performed_at, details, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TaskID, seq, entry.Action, entry.PerformedBy, formatTime(entry.PerformedAt),
		details, nullString(entry.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	entry.Seq = seq
	return nil
}

// ListByTask returns a task's entries in insertion order.
func (r *AuditRepository) ListByTask(ctx context.Context, taskID string) ([]*secondary.AuditRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, task_id, seq, action, performed_by, performed_at, details, notes
		FROM task_audit_log WHERE task_id = ? ORDER BY seq`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditRecord
	for rows.Next() {
		var (
			e           secondary.AuditRecord
			performedAt string
			details     sql.NullString
			notes       sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Seq, &e.Action, &e.PerformedBy, &performedAt, &details, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.PerformedAt, err = parseTime(performedAt); err != nil {
			return nil, err
		}
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		e.Notes = notes.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
