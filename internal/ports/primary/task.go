package primary

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/dispatch/internal/models"
)

// TaskService defines the primary port for task lifecycle operations.
// Every mutating call validates against the current status before writing.
type TaskService interface {
	// CreateTask creates a task for a service order, auto-assigning when no assignee is given.
	CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error)

	// GetTask retrieves a task by ID together with its audit history.
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// ListTasks lists tasks with filters, sorting and pagination.
	ListTasks(ctx context.Context, query TaskQuery) (*TaskPage, error)

	// UpdateTask changes priority and/or records notes.
	UpdateTask(ctx context.Context, req UpdateTaskRequest) (*Task, error)

	// AssignTask assigns or reassigns an OPEN or ASSIGNED task.
	AssignTask(ctx context.Context, req AssignTaskRequest) (*Task, error)

	// StartTask moves an ASSIGNED task to IN_PROGRESS.
	StartTask(ctx context.Context, req StartTaskRequest) (*Task, error)

	// CompleteTask completes an ASSIGNED or IN_PROGRESS task.
	CompleteTask(ctx context.Context, req CompleteTaskRequest) (*Task, error)

	// CancelTask cancels any non-terminal task.
	CancelTask(ctx context.Context, req CancelTaskRequest) (*Task, error)

	// PauseSLA stops the SLA clock.
	PauseSLA(ctx context.Context, req PauseSLARequest) (*Task, error)

	// ResumeSLA restarts the SLA clock, pushing the deadline out by the paused time.
	ResumeSLA(ctx context.Context, req ResumeSLARequest) (*Task, error)
}

// CreateTaskRequest contains parameters for creating a task.
// A zero Actor falls back to the actor carried in the context.
type CreateTaskRequest struct {
	TaskType       models.TaskType
	Priority       models.Priority
	ServiceOrderID string
	Context        json.RawMessage
	AssignedTo     string // Optional: auto-assigned when empty
	CreatedBy      models.Actor
}

// UpdateTaskRequest contains parameters for updating a task.
type UpdateTaskRequest struct {
	TaskID    string
	Priority  *models.Priority
	Notes     string
	UpdatedBy models.Actor
}

// AssignTaskRequest contains parameters for assigning a task.
type AssignTaskRequest struct {
	TaskID     string
	AssignedTo string
	AssignedBy models.Actor
}

// StartTaskRequest contains parameters for starting a task.
type StartTaskRequest struct {
	TaskID    string
	StartedBy models.Actor
}

// CompleteTaskRequest contains parameters for completing a task.
type CompleteTaskRequest struct {
	TaskID          string
	ResolutionNotes string
	CompletedBy     models.Actor
}

// CancelTaskRequest contains parameters for cancelling a task.
type CancelTaskRequest struct {
	TaskID      string
	Reason      string
	CancelledBy models.Actor
}

// PauseSLARequest contains parameters for pausing a task's SLA.
type PauseSLARequest struct {
	TaskID   string
	Reason   string
	PausedBy models.Actor
}

// ResumeSLARequest contains parameters for resuming a task's SLA.
type ResumeSLARequest struct {
	TaskID    string
	ResumedBy models.Actor
}

// Task represents a task entity at the port boundary.
type Task struct {
	ID                 string             `json:"id"`
	TaskType           models.TaskType    `json:"taskType"`
	Priority           models.Priority    `json:"priority"`
	Status             models.TaskStatus  `json:"status"`
	ServiceOrderID     string             `json:"serviceOrderId"`
	Context            models.TaskContext `json:"context"`
	CountryCode        string             `json:"countryCode"`
	BusinessUnit       string             `json:"businessUnit"`
	AssignedTo         string             `json:"assignedTo,omitempty"`
	AssignedBy         models.Actor       `json:"assignedBy"`
	AssignedAt         *time.Time         `json:"assignedAt,omitempty"`
	CreatedBy          models.Actor       `json:"createdBy"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	StartedAt          *time.Time         `json:"startedAt,omitempty"`
	CompletedAt        *time.Time         `json:"completedAt,omitempty"`
	CompletedBy        models.Actor       `json:"completedBy"`
	CancelledAt        *time.Time         `json:"cancelledAt,omitempty"`
	CancelledBy        models.Actor       `json:"cancelledBy"`
	CancellationReason string             `json:"cancellationReason,omitempty"`
	SLADeadline        time.Time          `json:"slaDeadline"`
	SLAPaused          bool               `json:"slaPaused"`
	SLAPausedAt        *time.Time         `json:"slaPausedAt,omitempty"`
	TotalPausedMinutes int                `json:"totalPausedMinutes"`
	SLAStatus          models.SLAStatus   `json:"slaStatus"`
	SLAPercentage      float64            `json:"slaPercentage"`
	EscalationLevel    int                `json:"escalationLevel"`
	EscalatedAt        *time.Time         `json:"escalatedAt,omitempty"`
	ResolutionNotes    string             `json:"resolutionNotes,omitempty"`
	ResolutionTime     *int               `json:"resolutionTime,omitempty"`
	WithinSLA          *bool              `json:"withinSLA,omitempty"`
	Version            int64              `json:"version"`
	AuditHistory       []*AuditEntry      `json:"auditHistory,omitempty"` // Populated by GetTask
}

// AuditEntry represents one lifecycle transition at the port boundary.
type AuditEntry struct {
	Seq         int64              `json:"seq"`
	Action      models.AuditAction `json:"action"`
	PerformedBy models.Actor       `json:"performedBy"`
	PerformedAt time.Time          `json:"performedAt"`
	Details     map[string]any     `json:"details,omitempty"`
	Notes       string             `json:"notes,omitempty"`
}

// TaskQuery contains filter, sort and pagination options for listing tasks.
type TaskQuery struct {
	Statuses       []models.TaskStatus
	Priorities     []models.Priority
	TaskTypes      []models.TaskType
	AssignedTo     string
	ServiceOrderID string
	CountryCode    string
	SLAStatus      models.SLAStatus // Optional
	Page           int              // 1-based, defaults to 1
	PageSize       int              // defaults to DefaultPageSize
	SortBy         string           // createdAt, updatedAt, slaDeadline, priority, status
	SortOrder      string           // asc or desc
}

// Pagination defaults
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TaskPage is one page of ListTasks results.
type TaskPage struct {
	Data       []*Task    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the page returned.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}
