package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/secondary"
)

// TaskRepository implements secondary.TaskRepository with SQLite.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

var _ secondary.TaskRepository = (*TaskRepository)(nil)

const taskSelectCols = `id, task_type, priority, status, service_order_id, context, country_code, business_unit,
	assigned_to, assigned_by, assigned_at, created_by, created_at, updated_at, started_at,
	completed_at, completed_by, cancelled_at, cancelled_by, cancellation_reason,
	sla_deadline, sla_paused, sla_paused_at, total_paused_micros,
	escalation_level, escalated_at, last_escalated_tier,
	resolution_notes, resolution_time, within_sla, version`

// scanTask scans a task row into a TaskRecord.
func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*secondary.TaskRecord, error) {
	var (
		taskContext                                      string
		assignedTo, assignedBy, completedBy, cancelledBy sql.NullString
		cancellationReason, resolutionNotes              sql.NullString
		createdAt, updatedAt, slaDeadline                string
		assignedAt, startedAt, completedAt, cancelledAt  sql.NullString
		slaPausedAt, escalatedAt                         sql.NullString
		resolutionTime, withinSLA                        sql.NullInt64
		pausedMicros                                     int64
	)

	record := &secondary.TaskRecord{}
	err := scanner.Scan(
		&record.ID, &record.TaskType, &record.Priority, &record.Status, &record.ServiceOrderID,
		&taskContext, &record.CountryCode, &record.BusinessUnit,
		&assignedTo, &assignedBy, &assignedAt, &record.CreatedBy, &createdAt, &updatedAt, &startedAt,
		&completedAt, &completedBy, &cancelledAt, &cancelledBy, &cancellationReason,
		&slaDeadline, &record.SLAPaused, &slaPausedAt, &pausedMicros,
		&record.EscalationLevel, &escalatedAt, &record.LastEscalatedTier,
		&resolutionNotes, &resolutionTime, &withinSLA, &record.Version,
	)
	if err != nil {
		return nil, err
	}

	record.Context = []byte(taskContext)
	record.TotalPaused = time.Duration(pausedMicros) * time.Microsecond
	record.AssignedTo = assignedTo.String
	record.AssignedBy = assignedBy.String
	record.CompletedBy = completedBy.String
	record.CancelledBy = cancelledBy.String
	record.CancellationReason = cancellationReason.String
	record.ResolutionNotes = resolutionNotes.String

	if resolutionTime.Valid {
		v := int(resolutionTime.Int64)
		record.ResolutionTime = &v
	}
	if withinSLA.Valid {
		v := withinSLA.Int64 != 0
		record.WithinSLA = &v
	}

	for _, f := range []struct {
		src string
		dst *time.Time
	}{
		{createdAt, &record.CreatedAt},
		{updatedAt, &record.UpdatedAt},
		{slaDeadline, &record.SLADeadline},
	} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{assignedAt, &record.AssignedAt},
		{startedAt, &record.StartedAt},
		{completedAt, &record.CompletedAt},
		{cancelledAt, &record.CancelledAt},
		{slaPausedAt, &record.SLAPausedAt},
		{escalatedAt, &record.EscalatedAt},
	} {
		if *f.dst, err = parseNullTime(f.src); err != nil {
			return nil, err
		}
	}

	return record, nil
}

func scanTasks(rows *sql.Rows) ([]*secondary.TaskRecord, error) {
	defer rows.Close()
	var tasks []*secondary.TaskRecord
	for rows.Next() {
		record, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, record)
	}
	return tasks, rows.Err()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	if *v {
		return sql.NullInt64{Int64: 1, Valid: true}
	}
	return sql.NullInt64{Int64: 0, Valid: true}
}

func contextJSON(b []byte) string {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}

// Create persists a new task with version 1.
func (r *TaskRepository) Create(ctx context.Context, task *secondary.TaskRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO tasks (
			id, task_type, priority, status, service_order_id, context, country_code, business_unit,
			assigned_to, assigned_by, assigned_at, created_by, created_at, updated_at,
			sla_deadline, sla_paused, sla_paused_at, total_paused_micros,
			escalation_level, escalated_at, last_escalated_tier, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		task.ID, task.TaskType, task.Priority, task.Status, task.ServiceOrderID,
		contextJSON(task.Context), task.CountryCode, task.BusinessUnit,
		nullString(task.AssignedTo), nullString(task.AssignedBy), nullTime(task.AssignedAt),
		task.CreatedBy, formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
		formatTime(task.SLADeadline), task.SLAPaused, nullTime(task.SLAPausedAt), task.TotalPaused.Microseconds(),
		task.EscalationLevel, nullTime(task.EscalatedAt), task.LastEscalatedTier,
	)
	if isUniqueViolation(err) {
		dup := &models.DuplicateActiveTaskError{ServiceOrderID: task.ServiceOrderID, TaskType: task.TaskType}
		if existing, findErr := r.FindActive(ctx, task.ServiceOrderID, task.TaskType); findErr == nil && existing != nil {
			dup.ExistingTaskID = existing.ID
		}
		return dup
	}
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	task.Version = 1
	return nil
}

// GetByID retrieves a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*secondary.TaskRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, "SELECT "+taskSelectCols+" FROM tasks WHERE id = ?", id)

	record, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return record, nil
}

// FindActive returns the active task for a service order and type, or nil.
func (r *TaskRepository) FindActive(ctx context.Context, serviceOrderID string, taskType models.TaskType) (*secondary.TaskRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+taskSelectCols+" FROM tasks WHERE service_order_id = ? AND task_type = ? AND status IN ('OPEN', 'ASSIGNED', 'IN_PROGRESS')",
		serviceOrderID, taskType,
	)
	record, err := scanTask(row)
	if err == sql.ErrNoRows {
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
		query += " LIMIT ? OFFSET ?"
		args = append(args, filters.Limit, filters.Offset)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return scanTasks(rows)
}

// Count returns the number of tasks matching the filters.
func (r *TaskRepository) Count(ctx context.Context, filters secondary.TaskFilters) (int, error) {
	where, args := buildTaskWhere(filters)
	var n int
	if err := conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}

// Update writes every mutable column if the stored version still matches.
func (r *TaskRepository) Update(ctx context.Context, task *secondary.TaskRecord, expectedVersion int64) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE tasks SET
			priority = ?, status = ?, context = ?,
			assigned_to = ?, assigned_by = ?, assigned_at = ?,
			updated_at = ?, started_at = ?,
			completed_at = ?, completed_by = ?,
			cancelled_at = ?, cancelled_by = ?, cancellation_reason = ?,
			sla_deadline = ?, sla_paused = ?, sla_paused_at = ?, total_paused_micros = ?,
			escalation_level = ?, escalated_at = ?, last_escalated_tier = ?,
			resolution_notes = ?, resolution_time = ?, within_sla = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		task.Priority, task.Status, contextJSON(task.Context),
		nullString(task.AssignedTo), nullString(task.AssignedBy), nullTime(task.AssignedAt),
		formatTime(task.UpdatedAt), nullTime(task.StartedAt),
		nullTime(task.CompletedAt), nullString(task.CompletedBy),
		nullTime(task.CancelledAt), nullString(task.CancelledBy), nullString(task.CancellationReason),
		formatTime(task.SLADeadline), task.SLAPaused, nullTime(task.SLAPausedAt), task.TotalPaused.Microseconds(),
		task.EscalationLevel, nullTime(task.EscalatedAt), task.LastEscalatedTier,
		nullString(task.ResolutionNotes), nullInt(task.ResolutionTime), nullBool(task.WithinSLA),
		task.ID, expectedVersion,
	)
	if isUniqueViolation(err) {
		return &models.DuplicateActiveTaskError{ServiceOrderID: task.ServiceOrderID, TaskType: task.TaskType}
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return r.missOrConflict(ctx, task.ID)
	}
	task.Version = expectedVersion + 1
	return nil
}

// Escalate raises the escalation level if the task is active and its last
// escalated tier is still observedTier.
func (r *TaskRepository) Escalate(ctx context.Context, id string, observedTier, newTier int, at time.Time) error {
	stamp := formatTime(at)
	result, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE tasks SET
			escalation_level = escalation_level + 1,
			escalated_at = ?,
			last_escalated_tier = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND last_escalated_tier = ? AND sla_paused = 0
			AND status IN ('OPEN', 'ASSIGNED', 'IN_PROGRESS')`,
		stamp, newTier, stamp, id, observedTier,
	)
	if err != nil {
		return fmt.Errorf("failed to escalate task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read escalate result: %w", err)
	}
	if affected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// CountActiveByAssignee returns active task counts keyed by assignee.
func (r *TaskRepository) CountActiveByAssignee(ctx context.Context) (map[string]int, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
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
	var exists int
	err := conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check task existence: %w", err)
	}
	if exists == 0 {
		return models.NewNotFoundError("task", id)
	}
	return models.NewConflictError(id)
}

func buildTaskWhere(f secondary.TaskFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		clauses = append(clauses, column+" IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")+")")
		for _, v := range values {
			args = append(args, v)
		}
	}
	eq := func(column, value string) {
		if value != "" {
			clauses = append(clauses, column+" = ?")
			args = append(args, value)
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
		clauses = append(clauses, "sla_deadline > ?")
		args = append(args, formatTime(*f.DeadlineAfter))
	}
	if f.DeadlineBefore != nil {
		clauses = append(clauses, "sla_deadline <= ?")
		args = append(args, formatTime(*f.DeadlineBefore))
	}
	if f.CompletedSince != nil {
		clauses = append(clauses, "completed_at >= ?")
		args = append(args, formatTime(*f.CompletedSince))
	}
	if f.MinEscalationLevel > 0 {
		clauses = append(clauses, "escalation_level >= ?")
		args = append(args, f.MinEscalationLevel)
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

func orderBy(f secondary.TaskFilters) string {
	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = sortColumns[secondary.SortByCreatedAt]
	}
	dir := " ASC"
	if f.SortDesc {
		dir = " DESC"
	}
	return " ORDER BY " + column + dir + ", id" + dir
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
