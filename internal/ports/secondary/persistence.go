// Package secondary defines the driven ports: persistence, events and time.
package secondary

import (
	"context"
	"time"

	"github.com/example/dispatch/internal/models"
)

// Transactor runs fn inside a store transaction. Repository calls made with
// the ctx passed to fn join the transaction. An error from fn rolls back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TaskRepository defines the secondary port for task persistence.
type TaskRepository interface {
	// Create persists a new task. Returns a DuplicateActiveTaskError when an
	// active task already exists for the same service order and type.
	Create(ctx context.Context, task *TaskRecord) error

	// GetByID retrieves a task by its ID. Returns a NotFoundError if absent.
	GetByID(ctx context.Context, id string) (*TaskRecord, error)

	// FindActive returns the active task for a service order and type, or nil.
	FindActive(ctx context.Context, serviceOrderID string, taskType models.TaskType) (*TaskRecord, error)

	// List retrieves tasks matching the given filters.
	List(ctx context.Context, filters TaskFilters) ([]*TaskRecord, error)

	// Count returns the number of tasks matching the filters, ignoring Limit/Offset.
	Count(ctx context.Context, filters TaskFilters) (int, error)

	// Update writes the full record if its stored version equals expectedVersion.
	// On success task.Version is advanced. Returns a ConflictError otherwise.
	Update(ctx context.Context, task *TaskRecord, expectedVersion int64) error

	// Escalate raises the escalation level of an active task if its
	// last escalated tier still equals observedTier. Returns a ConflictError otherwise.
	Escalate(ctx context.Context, id string, observedTier, newTier int, at time.Time) error

	// CountActiveByAssignee returns active task counts keyed by assignee.
	CountActiveByAssignee(ctx context.Context) (map[string]int, error)
}

// TaskRecord represents a task as stored in persistence.
type TaskRecord struct {
	ID                 string
	TaskType           models.TaskType
	Priority           models.Priority
	Status             models.TaskStatus
	ServiceOrderID     string
	Context            []byte // JSON
	CountryCode        string
	BusinessUnit       string
	AssignedTo         string // Empty string means null
	AssignedBy         string // Empty string means null
	AssignedAt         *time.Time
	CreatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CompletedBy        string
	CancelledAt        *time.Time
	CancelledBy        string
	CancellationReason string
	SLADeadline        time.Time
	SLAPaused          bool
	SLAPausedAt        *time.Time
	TotalPaused        time.Duration // accumulated across closed pauses
	EscalationLevel    int
	EscalatedAt        *time.Time
	LastEscalatedTier  int
	ResolutionNotes    string
	ResolutionTime     *int
	WithinSLA          *bool
	Version            int64
}

// Clone returns a deep copy of the record.
func (r *TaskRecord) Clone() *TaskRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Context = append([]byte(nil), r.Context...)
	c.AssignedAt = cloneTime(r.AssignedAt)
	c.StartedAt = cloneTime(r.StartedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.CancelledAt = cloneTime(r.CancelledAt)
	c.SLAPausedAt = cloneTime(r.SLAPausedAt)
	c.EscalatedAt = cloneTime(r.EscalatedAt)
	if r.ResolutionTime != nil {
		v := *r.ResolutionTime
		c.ResolutionTime = &v
	}
	if r.WithinSLA != nil {
		v := *r.WithinSLA
		c.WithinSLA = &v
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TaskSortField names a sortable task column.
type TaskSortField string

// Sortable fields
const (
	SortByCreatedAt   TaskSortField = "createdAt"
	SortByUpdatedAt   TaskSortField = "updatedAt"
	SortBySLADeadline TaskSortField = "slaDeadline"
	SortByPriority    TaskSortField = "priority"
	SortByStatus      TaskSortField = "status"
	SortByEscalatedAt TaskSortField = "escalatedAt"
	SortByCompletedAt TaskSortField = "completedAt"
)

// TaskFilters contains filter options for querying tasks.
// Zero values mean "no filter".
type TaskFilters struct {
	IDs                []string
	Statuses           []models.TaskStatus
	Priorities         []models.Priority
	TaskTypes          []models.TaskType
	AssignedTo         string
	CompletedBy        string
	ServiceOrderID     string
	CountryCode        string
	DeadlineAfter      *time.Time // sla_deadline > value
	DeadlineBefore     *time.Time // sla_deadline <= value
	CompletedSince     *time.Time // completed_at >= value
	MinEscalationLevel int        // escalation_level >= value when > 0
	SortBy             TaskSortField
	SortDesc           bool
	Limit              int
	Offset             int
}

// AuditRepository defines the secondary port for the append-only audit log.
type AuditRepository interface {
	// Append stores an entry, assigning its ID when empty and its per-task sequence.
	Append(ctx context.Context, entry *AuditRecord) error

	// ListByTask returns a task's entries in insertion order.
	ListByTask(ctx context.Context, taskID string) ([]*AuditRecord, error)
}

// AuditRecord represents an audit entry as stored in persistence.
type AuditRecord struct {
	ID          string
	TaskID      string
	Seq         int64
	Action      models.AuditAction
	PerformedBy string
	PerformedAt time.Time
	Details     map[string]any
	Notes       string // Empty string means null
}

// ServiceOrderRepository defines the secondary port for the read-only service
// order mirror consulted at task creation.
type ServiceOrderRepository interface {
	// GetByID retrieves an order. Returns a NotFoundError if absent.
	GetByID(ctx context.Context, id string) (*ServiceOrderRecord, error)

	// Upsert registers or refreshes an order in the mirror.
	Upsert(ctx context.Context, order *ServiceOrderRecord) error
}

// ServiceOrderRecord represents a service order as mirrored locally.
type ServiceOrderRecord struct {
	ID           string
	CountryCode  string
	BusinessUnit string
}

// OperatorRepository defines the secondary port for the operator directory.
type OperatorRepository interface {
	// ListByCountry returns operators scoped to a country.
	ListByCountry(ctx context.Context, countryCode string) ([]*OperatorRecord, error)

	// Upsert registers or refreshes an operator.
	Upsert(ctx context.Context, operator *OperatorRecord) error
}

// OperatorRecord represents an operator as stored in persistence.
type OperatorRecord struct {
	ID          string
	Name        string
	CountryCode string
	TaskTypes   []models.TaskType // Empty means all types
	Active      bool
}
