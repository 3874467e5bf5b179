package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/secondary"
)

// TaskRepository implements secondary.TaskRepository with PostgreSQL.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new PostgreSQL task repository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

var _ secondary.TaskRepository = (*TaskRepository)(nil)

const taskSelectCols = `id, task_type, priority, status, service_order_id, context, country_code, business_unit,
	assigned_to, assigned_by, assigned_at, created_by, created_at, updated_at, started_at,
	completed_at, completed_by, cancelled_at, cancelled_by, cancellation_reason,
	sla_deadline, sla_paused, sla_paused_at, total_paused_micros,
	escalation_level, escalated_at, last_escalated_tier,
	resolution_notes, resolution_time, within_sla, version`

func scanTask(row pgx.Row) (*secondary.TaskRecord, error) {
	var (
		r                                                secondary.TaskRecord
		assignedTo, assignedBy, completedBy, cancelledBy *string
		cancellationReason, resolutionNotes              *string
		pausedMicros                                     int64
	)
	err := row.Scan(
		&r.ID, &r.TaskType, &r.Priority, &r.Status, &r.ServiceOrderID, &r.Context, &r.CountryCode, &r.BusinessUnit,
		&assignedTo, &assignedBy, &r.AssignedAt, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt, &r.StartedAt,
		&r.CompletedAt, &completedBy, &r.CancelledAt, &cancelledBy, &cancellationReason,
		&r.SLADeadline, &r.SLAPaused, &r.SLAPausedAt, &pausedMicros,
		&r.EscalationLevel, &r.EscalatedAt, &r.LastEscalatedTier,
		&resolutionNotes, &r.ResolutionTime, &r.WithinSLA, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	r.TotalPaused = time.Duration(pausedMicros) * time.Microsecond
	r.AssignedTo = deref(assignedTo)
	r.AssignedBy = deref(assignedBy)
	r.CompletedBy = deref(completedBy)
	r.CancelledBy = deref(cancelledBy)
	r.CancellationReason = deref(cancellationReason)
	r.ResolutionNotes = deref(resolutionNotes)

	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	r.SLADeadline = r.SLADeadline.UTC()
	for _, t := range []*time.Time{r.AssignedAt, r.StartedAt, r.CompletedAt, r.CancelledAt, r.SLAPausedAt, r.EscalatedAt} {
		if t != nil {
			*t = t.UTC()
		}
	}
	return &r, nil
}

func scanTasks(rows pgx.Rows) ([]*secondary.TaskRecord, error) {
	defer rows.Close()
	var tasks []*secondary.TaskRecord
	for rows.Next() {
		r, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, r)
	}
	return tasks, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullString maps the empty string to NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func contextJSON(b []byte) string {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}

// Create persists a new task with version 1.
func (r *TaskRepository) Create(ctx context.Context, task *secondary.TaskRecord) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO tasks (
			id, task_type, priority, status, service_order_id, context, country_code, business_unit,
			assigned_to, assigned_by, assigned_at, created_by, created_at, updated_at,
			sla_deadline, sla_paused, sla_paused_at, total_paused_micros,
			escalation_level, escalated_at, last_escalated_tier, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, 1)`,
		task.ID, task.TaskType, task.Priority, task.Status, task.ServiceOrderID,
		contextJSON(task.Context), task.CountryCode, task.BusinessUnit,
		nullString(task.AssignedTo), nullString(task.AssignedBy), task.AssignedAt,
		task.CreatedBy, task.CreatedAt, task.UpdatedAt,
		task.SLADeadline, task.SLAPaused, task.SLAPausedAt, task.TotalPaused.Microseconds(),
		task.EscalationLevel, task.EscalatedAt, task.LastEscalatedTier,
	)
	if isUniqueViolation(err) {
		// The failed statement aborted any enclosing transaction, so the
		// existing task id cannot be looked up here.
		return &models.DuplicateActiveTaskError{ServiceOrderID: task.ServiceOrderID, TaskType: task.TaskType}
	}
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	task.Version = 1
	return nil
}

// GetByID retrieves a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*secondary.TaskRecord, error) {
	record, err := scanTask(conn(ctx, r.pool).QueryRow(ctx, "SELECT "+taskSelectCols+" FROM tasks WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NewNotFoundError("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return record, nil
}

// FindActive returns the active task for a service order and type, or nil.
func (r *TaskRepository) FindActive(ctx context.Context, serviceOrderID string, taskType models.TaskType) (*secondary.TaskRecord, error) {
	record, err := scanTask(conn(ctx, r.pool).QueryRow(ctx,
		"SELECT "+taskSelectCols+" FROM tasks WHERE service_order_id = $1 AND task_type = $2 AND status IN ('OPEN', 'ASSIGNED', 'IN_PROGRESS')",
		serviceOrderID, taskType,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active task: %w", err)
	}
	return record, nil
}

// List retrieves tasks matching the given filters.
func (r *TaskRepository) List(ctx context.Context, filters secondary.TaskFilters) ([]*secondary.TaskRecord, error) {
	where, args := buildTaskWhere(filters)
	query := "SELECT " + taskSelectCols + " FROM tasks" + where + orderBy(filters)
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filters.Limit, filters.Offset)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return scanTasks(rows)
}

// Count returns the number of tasks matching the filters.
func (r *TaskRepository) Count(ctx context.Context, filters secondary.TaskFilters) (int, error) {
	where, args := buildTaskWhere(filters)
	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}

// Update writes every mutable column if the stored version still matches.
func (r *TaskRepository) Update(ctx context.Context, task *secondary.TaskRecord, expectedVersion int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE tasks SET
			priority = $1, status = $2, context = $3,
			assigned_to = $4, assigned_by = $5, assigned_at = $6,
			updated_at = $7, started_at = $8,
			completed_at = $9, completed_by = $10,
			cancelled_at = $11, cancelled_by = $12, cancellation_reason = $13,
			sla_deadline = $14, sla_paused = $15, sla_paused_at = $16, total_paused_micros = $17,
			escalation_level = $18, escalated_at = $19, last_escalated_tier = $20,
			resolution_notes = $21, resolution_time = $22, within_sla = $23,
			version = version + 1
		WHERE id = $24 AND version = $25`,
		task.Priority, task.Status, contextJSON(task.Context),
		nullString(task.AssignedTo), nullString(task.AssignedBy), task.AssignedAt,
		task.UpdatedAt, task.StartedAt,
		task.CompletedAt, nullString(task.CompletedBy),
		task.CancelledAt, nullString(task.CancelledBy), nullString(task.CancellationReason),
		task.SLADeadline, task.SLAPaused, task.SLAPausedAt, task.TotalPaused.Microseconds(),
		task.EscalationLevel, task.EscalatedAt, task.LastEscalatedTier,
		nullString(task.ResolutionNotes), task.ResolutionTime, task.WithinSLA,
		task.ID, expectedVersion,
	)
	if isUniqueViolation(err) {
		return &models.DuplicateActiveTaskError{ServiceOrderID: task.ServiceOrderID, TaskType: task.TaskType}
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, task.ID)
	}
	task.Version = expectedVersion + 1
	return nil
}

// Escalate raises the escalation level if the task is active and its last
// escalated tier is still observedTier.
func (r *TaskRepository) Escalate(ctx context.Context, id string, observedTier, newTier int, at time.Time) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE tasks SET
			escalation_level = escalation_level + 1,
			escalated_at = $1,
			last_escalated_tier = $2,
			updated_at = $1,
			version = version + 1
		WHERE id = $3 AND last_escalated_tier = $4 AND NOT sla_paused
			AND status IN ('OPEN', 'ASSIGNED', 'IN_PROGRESS')`,
		at, newTier, id, observedTier,
	)
	if err != nil {
		return fmt.Errorf("failed to escalate task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// CountActiveByAssignee returns active task counts keyed by assignee.
func (r *TaskRepository) CountActiveByAssignee(ctx context.Context) (map[string]int, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT assigned_to, COUNT(*) FROM tasks
		WHERE assigned_to IS NOT NULL AND status IN ('OPEN', 'ASSIGNED', 'IN_PROGRESS')
		GROUP BY assigned_to`)
	if err != nil {
		return nil, fmt.Errorf("failed to count active tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			assignee string
			n        int
		)
		if err := rows.Scan(&assignee, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[assignee] = n
	}
	return counts, rows.Err()
}

func (r *TaskRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check task existence: %w", err)
	}
	if !exists {
		return models.NewNotFoundError("task", id)
	}
	return models.NewConflictError(id)
}

func buildTaskWhere(f secondary.TaskFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	in := func(column string, values []string) {
		if len(values) > 0 {
			clauses = append(clauses, column+" = ANY("+next(values)+")")
		}
	}
	eq := func(column, value string) {
		if value != "" {
			clauses = append(clauses, column+" = "+next(value))
		}
	}

	in("id", f.IDs)
	in("status", stringsOf(f.Statuses))
	in("priority", stringsOf(f.Priorities))
	in("task_type", stringsOf(f.TaskTypes))
	eq("assigned_to", f.AssignedTo)
	eq("completed_by", f.CompletedBy)
	eq("service_order_id", f.ServiceOrderID)
	eq("country_code", f.CountryCode)
	if f.DeadlineAfter != nil {
		clauses = append(clauses, "sla_deadline > "+next(*f.DeadlineAfter))
	}
	if f.DeadlineBefore != nil {
		clauses = append(clauses, "sla_deadline <= "+next(*f.DeadlineBefore))
	}
	if f.CompletedSince != nil {
		clauses = append(clauses, "completed_at >= "+next(*f.CompletedSince))
	}
	if f.MinEscalationLevel > 0 {
		clauses = append(clauses, "escalation_level >= "+next(f.MinEscalationLevel))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var sortColumns = map[secondary.TaskSortField]string{
	secondary.SortByCreatedAt:   "created_at",
	secondary.SortByUpdatedAt:   "updated_at",
	secondary.SortBySLADeadline: "sla_deadline",
	secondary.SortByStatus:      "status",
	secondary.SortByEscalatedAt: "escalated_at",
	secondary.SortByCompletedAt: "completed_at",
	secondary.SortByPriority:    "CASE priority WHEN 'URGENT' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1 END",
}

// orderBy sorts NULL lowest, as SQLite does.
func orderBy(f secondary.TaskFilters) string {
	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = sortColumns[secondary.SortByCreatedAt]
	}
	dir := " ASC NULLS FIRST"
	if f.SortDesc {
		dir = " DESC NULLS LAST"
	}
	return " ORDER BY " + column + dir + ", id " + strings.Fields(dir)[0]
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
