package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/dispatch/internal/core/assignment"
	"github.com/example/dispatch/internal/core/sla"
	coretask "github.com/example/dispatch/internal/core/task"
	"github.com/example/dispatch/internal/ctxutil"
	"github.com/example/dispatch/internal/logging"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// TaskServiceImpl implements the TaskService interface.
type TaskServiceImpl struct {
	tx           secondary.Transactor
	taskRepo     secondary.TaskRepository
	auditRepo    secondary.AuditRepository
	orderRepo    secondary.ServiceOrderRepository
	operatorRepo secondary.OperatorRepository
	publisher    secondary.EventPublisher
	clock        secondary.Clock
	policy       *sla.Policy
	logger       *slog.Logger
	metrics      *logging.Metrics
}

// NewTaskService creates a new TaskService with injected dependencies.
// logger and metrics may be nil.
func NewTaskService(
	tx secondary.Transactor,
	taskRepo secondary.TaskRepository,
	auditRepo secondary.AuditRepository,
	orderRepo secondary.ServiceOrderRepository,
	operatorRepo secondary.OperatorRepository,
	publisher secondary.EventPublisher,
	clock secondary.Clock,
	policy *sla.Policy,
	logger *slog.Logger,
	metrics *logging.Metrics,
) *TaskServiceImpl {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TaskServiceImpl{
		tx:           tx,
		taskRepo:     taskRepo,
		auditRepo:    auditRepo,
		orderRepo:    orderRepo,
		operatorRepo: operatorRepo,
		publisher:    publisher,
		clock:        clock,
		policy:       policy,
		logger:       logger,
		metrics:      metrics,
	}
}

// Ensure TaskServiceImpl implements the interface
var _ primary.TaskService = (*TaskServiceImpl)(nil)

// CreateTask creates a task for a service order.
func (s *TaskServiceImpl) CreateTask(ctx context.Context, req primary.CreateTaskRequest) (*primary.Task, error) {
	taskType, err := models.ParseTaskType(string(req.TaskType))
	if err != nil {
		return nil, err
	}
	priority, err := models.ParsePriority(string(req.Priority))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ServiceOrderID) == "" {
		return nil, models.NewValidationError("serviceOrderId", "is required")
	}
	taskContext, err := models.DecodeContext(taskType, req.Context)
	if err != nil {
		return nil, err
	}
	if err := taskContext.Validate(); err != nil {
		return nil, err
	}
	contextJSON, err := models.EncodeContext(taskContext)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task context: %w", err)
	}
	actor, err := resolveActor(ctx, req.CreatedBy, "createdBy")
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, req.ServiceOrderID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up service order: %w", err)
	}
	if order == nil {
		guard := coretask.CanCreateTask(coretask.CreateTaskContext{ServiceOrderID: req.ServiceOrderID})
		return nil, guard.Error()
	}

	now := s.now()
	deadline, err := s.policy.Deadline(now, priority)
	if err != nil {
		return nil, err
	}

	assignedTo := strings.TrimSpace(req.AssignedTo)
	assignedBy := actor
	autoAssigned := false
	if assignedTo == "" {
		assignedTo, err = s.resolveAssignee(ctx, taskType, order.CountryCode)
		if err != nil {
			return nil, err
		}
		assignedBy = models.System()
		autoAssigned = assignedTo != ""
	}

	record := &secondary.TaskRecord{
		ID:                uuid.NewString(),
		TaskType:          taskType,
		Priority:          priority,
		Status:            models.TaskStatusOpen,
		ServiceOrderID:    order.ID,
		Context:           contextJSON,
		CountryCode:       order.CountryCode,
		BusinessUnit:      order.BusinessUnit,
		CreatedBy:         actor.String(),
		CreatedAt:         now,
		UpdatedAt:         now,
		SLADeadline:       deadline,
		LastEscalatedTier: 0,
	}
	if assignedTo != "" {
		record.Status = models.TaskStatusAssigned
		record.AssignedTo = assignedTo
		record.AssignedBy = assignedBy.String()
		record.AssignedAt = &now
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		active, err := s.taskRepo.FindActive(ctx, order.ID, taskType)
		if err != nil {
			return fmt.Errorf("failed to check for active task: %w", err)
		}
		guardCtx := coretask.CreateTaskContext{
			ServiceOrderID:     order.ID,
			ServiceOrderExists: true,
			TaskType:           taskType,
		}
		if active != nil {
			guardCtx.ActiveTaskID = active.ID
		}
		if guard := coretask.CanCreateTask(guardCtx); !guard.Allowed {
			return guard.Error()
		}

		if err := s.taskRepo.Create(ctx, record); err != nil {
			return err
		}
		if err := s.auditRepo.Append(ctx, &secondary.AuditRecord{
			TaskID:      record.ID,
			Action:      models.AuditCreated,
			PerformedBy: actor.String(),
			PerformedAt: now,
			Details: map[string]any{
				"taskType":       string(taskType),
				"priority":       string(priority),
				"serviceOrderId": order.ID,
				"slaDeadline":    isoTime(deadline),
			},
		}); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
		if record.AssignedTo != "" {
			if err := s.auditRepo.Append(ctx, &secondary.AuditRecord{
				TaskID:      record.ID,
				Action:      models.AuditAssigned,
				PerformedBy: record.AssignedBy,
				PerformedAt: now,
				Details: map[string]any{
					"assignedTo":   record.AssignedTo,
					"autoAssigned": autoAssigned,
				},
			}); err != nil {
				return fmt.Errorf("failed to write audit entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "task created",
		"task_id", record.ID,
		"task_type", string(taskType),
		"priority", string(priority),
		"service_order_id", order.ID,
		"assigned_to", record.AssignedTo,
	)
	s.metrics.TaskCreated(ctx, taskType, priority)

	s.publish(ctx, secondary.NewEvent(secondary.EventTaskCreated, record.ID, now, map[string]any{
		"id":             record.ID,
		"taskType":       string(taskType),
		"priority":       string(priority),
		"status":         string(record.Status),
		"serviceOrderId": order.ID,
		"countryCode":    order.CountryCode,
		"businessUnit":   order.BusinessUnit,
		"context":        json.RawMessage(contextJSON),
		"slaDeadline":    isoTime(deadline),
		"assignedTo":     record.AssignedTo,
	}))

	return recordToTask(record, s.policy, now), nil
}

// GetTask retrieves a task with its audit history.
func (s *TaskServiceImpl) GetTask(ctx context.Context, taskID string) (*primary.Task, error) {
	record, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	entries, err := s.auditRepo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}

	task := recordToTask(record, s.policy, s.now())
	task.AuditHistory = make([]*primary.AuditEntry, len(entries))
	for i, e := range entries {
		task.AuditHistory[i] = auditRecordToEntry(e)
	}
	return task, nil
}

// ListTasks lists tasks with filters, sorting and pagination.
func (s *TaskServiceImpl) ListTasks(ctx context.Context, query primary.TaskQuery) (*primary.TaskPage, error) {
	filters, page, pageSize, err := buildTaskFilters(query)
	if err != nil {
		return nil, err
	}
	now := s.now()

	// SLA status is derived from the clock, so it is filtered after loading.
	if query.SLAStatus != "" {
		records, err := s.taskRepo.List(ctx, filters)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
		matching := make([]*secondary.TaskRecord, 0, len(records))
		for _, r := range records {
			if s.policy.Status(snapshotOf(r), now) == query.SLAStatus {
				matching = append(matching, r)
			}
		}
		start := min((page-1)*pageSize, len(matching))
		end := min(start+pageSize, len(matching))
		return &primary.TaskPage{
			Data:       recordsToTasks(matching[start:end], s.policy, now),
			Pagination: newPagination(page, pageSize, len(matching)),
		}, nil
	}

	total, err := s.taskRepo.Count(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	filters.Limit = pageSize
	filters.Offset = (page - 1) * pageSize
	records, err := s.taskRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return &primary.TaskPage{
		Data:       recordsToTasks(records, s.policy, now),
		Pagination: newPagination(page, pageSize, total),
	}, nil
}

// UpdateTask changes priority and/or records notes on an open task.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, req primary.UpdateTaskRequest) (*primary.Task, error) {
	if req.Priority == nil && strings.TrimSpace(req.Notes) == "" {
		return nil, models.NewValidationError("update", "priority or notes must be provided")
	}
	var newPriority models.Priority
	if req.Priority != nil {
		p, err := models.ParsePriority(string(*req.Priority))
		if err != nil {
			return nil, err
		}
		newPriority = p
	}
	actor, err := resolveActor(ctx, req.UpdatedBy, "updatedBy")
	if err != nil {
		return nil, err
	}

	record, now, err := s.mutate(ctx, req.TaskID, func(r *secondary.TaskRecord, now time.Time) (*secondary.AuditRecord, error) {
		if guard := coretask.CanUpdateTask(transitionContext(r)); !guard.Allowed {
			return nil, guard.Error()
		}
		details := map[string]any{}
		if newPriority != "" && newPriority != r.Priority {
			deadline, err := s.policy.RecomputeDeadline(r.CreatedAt, newPriority, r.TotalPaused)
			if err != nil {
				return nil, err
			}
			details["previousPriority"] = string(r.Priority)
			details["priority"] = string(newPriority)
			details["previousSlaDeadline"] = isoTime(r.SLADeadline)
			details["slaDeadline"] = isoTime(deadline)
			r.Priority = newPriority
			r.SLADeadline = deadline
		}
		return &secondary.AuditRecord{
			Action:      models.AuditUpdated,
			PerformedBy: actor.String(),
			Details:     details,
			Notes:       strings.TrimSpace(req.Notes),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "task updated", "task_id", record.ID, "priority", string(record.Priority))
	return recordToTask(record, s.policy, now), nil
}

// AssignTask assigns or reassigns a task to an operator.
func (s *TaskServiceImpl) AssignTask(ctx context.Context, req primary.AssignTaskRequest) (*primary.Task, error) {
	assignee := strings.TrimSpace(req.AssignedTo)
	if assignee == "" {
		return nil, models.NewValidationError("assignedTo", "is required")
	}
	actor, err := resolveActor(ctx, req.AssignedBy, "assignedBy")
	if err != nil {
		return nil, err
	}

	var previous string
	record, now, err := s.mutate(ctx, req.TaskID, func(r *secondary.TaskRecord, now time.Time) (*secondary.AuditRecord, error) {
		if guard := coretask.CanAssignTask(transitionContext(r)); !guard.Allowed {
			return nil, guard.Error()
		}
		previous = r.AssignedTo
		r.Status = models.TaskStatusAssigned
		r.AssignedTo = assignee
		r.AssignedBy = actor.String()
		r.AssignedAt = &now
		details := map[string]any{"assignedTo": assignee}
		if previous != "" {
			details["previousAssignee"] = previous
		}
		return &secondary.AuditRecord{
			Action:      models.AuditAssigned,
			PerformedBy: actor.String(),
			Details:     details,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "task assigned", "task_id", record.ID, "assigned_to", assignee, "previous_assignee", previous)
	data := map[string]any{
		"assignedTo":     assignee,
		"assignedBy":     actor.String(),
		"serviceOrderId": record.ServiceOrderID,
	}
	if previous != "" {
		data["previousAssignee"] = previous
	}
	s.publish(ctx, secondary.NewEvent(secondary.EventTaskAssigned, record.ID, now, data))
	return recordToTask(record, s.policy, now), nil
}

// StartTask moves an ASSIGNED task to IN_PROGRESS.
func (s *TaskServiceImpl) StartTask(ctx context.Context, req primary.StartTaskRequest) (*primary.Task, error) {
	actor, err := resolveActor(ctx, req.StartedBy, "startedBy")
	if err != nil {
		return nil, err
	}

	record, now, err := s.mutate(ctx, req.TaskID, func(r *secondary.TaskRecord, now time.Time) (*secondary.AuditRecord, error) {
		if guard := coretask.CanStartTask(transitionContext(r)); !guard.Allowed {
			return nil, guard.Error()
		}
		r.Status = models.TaskStatusInProgress
		r.StartedAt = &now
		return &secondary.AuditRecord{
			Action:      models.AuditStarted,
			PerformedBy: actor.String(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "task started", "task_id", record.ID, "started_by", actor.String())
	s.publish(ctx, secondary.NewEvent(secondary.EventTaskStarted, record.ID, now, map[string]any{
		"startedBy":      actor.String(),
		"assignedTo":     record.AssignedTo,
		"serviceOrderId": record.ServiceOrderID,
	}))
	return recordToTask(record, s.policy, now), nil
}

// CompleteTask completes a task, recording resolution time and SLA outcome.
func (s *TaskServiceImpl) CompleteTask(ctx context.Context, req primary.CompleteTaskRequest) (*primary.Task, error) {
	actor, err := resolveActor(ctx, req.CompletedBy, "completedBy")
	if err != nil {
		return nil, err
	}

	record, now, err := s.mutate(ctx, req.TaskID, func(r *secondary.TaskRecord, now time.Time) (*secondary.AuditRecord, error) {
		if guard := coretask.CanCompleteTask(transitionContext(r)); !guard.Allowed {
			return nil, guard.Error()
		}
		resolution := sla.ResolutionMinutes(r.CreatedAt, now)
		within := sla.IsWithinSLA(now, r.SLADeadline)
		r.Status = models.TaskStatusCompleted
		r.CompletedAt = &now
		r.CompletedBy = actor.String()
		r.ResolutionNotes = strings.TrimSpace(req.ResolutionNotes)
		r.ResolutionTime = &resolution
		r.WithinSLA = &within
		return &secondary.AuditRecord{
			Action:      models.AuditCompleted,
			PerformedBy: actor.String(),
			Details: map[string]any{
				"resolutionTime": resolution,
				"withinSLA":      within,
			},
			Notes: r.ResolutionNotes,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "task completed",
		"task_id", record.ID,
		"within_sla", *record.WithinSLA,
		"resolution_minutes", *record.ResolutionTime,
	)
	s.publish(ctx, secondary.NewEvent(secondary.EventTaskCompleted, record.ID, now, map[string]any{
		"serviceOrderId": record.ServiceOrderID,
		"completedBy":    actor.String(),
		"resolutionTime": *record.ResolutionTime,
		"withinSLA":      *record.WithinSLA,
	}))
	return recordToTask(record, s.policy, now), nil
}

// CancelTask cancels a non-terminal task. The reason is optional. A running
// pause is closed so the paused time is accounted for on the final record.
func (s *TaskServiceImpl) CancelTask(ctx context.Context, req primary.CancelTaskRequest) (*primary.Task, error) {
	reason := strings.TrimSpace(req.Reason)
	actor, err := resolveActor(ctx, req.CancelledBy, "cancelledBy")
	if err != nil {
		return nil, err
	}

	record, now, err := s.mutate(ctx, req.TaskID, func(r *secondary.TaskRecord, now time.Time) (*secondary.AuditRecord, error) {
		if guard := coretask.CanCancelTask(transitionContext(r)); !guard.Allowed {
			return nil, guard.Error()
		}
		var details map[string]any
		if r.SLAPaused {
			paused := closePause(r, now)
			details = map[string]any{"pausedSeconds": paused.Seconds()}
		}
		r.Status = models.TaskStatusCancelled
		r.CancelledAt = &now
		r.CancelledBy = actor.String()
		if reason != "" {
			r.CancellationReason = reason
			if details == nil {
				details = map[string]any{}
			}
			details["reason"] = reason
		}
		return &secondary.AuditRecord{
			Action:      models.AuditCancelled,
			PerformedBy: actor.String(),
			Details:     details,
			Notes:       reason,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "task cancelled", "task_id", record.ID, "reason", reason)
	data := map[string]any{
		"serviceOrderId": record.ServiceOrderID,
		"cancelledBy":    actor.String(),
	}
	if reason != "" {
		data["reason"] = reason
	}
	s.publish(ctx, secondary.NewEvent(secondary.EventTaskCancelled, record.ID, now, data))
	return recordToTask(record, s.policy, now), nil
}

// PauseSLA stops the SLA clock of a non-terminal task.
func (s *TaskServiceImpl) PauseSLA(ctx context.Context, req primary.PauseSLARequest) (*primary.Task, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, models.NewValidationError("reason", "is required")
	}
	actor, err := resolveActor(ctx, req.PausedBy, "pausedBy")
	if err != nil {
		return nil, err
	}

	record, now, err := s.mutate(ctx, req.TaskID, func(r *secondary.TaskRecord, now time.Time) (*secondary.AuditRecord, error) {
		if guard := coretask.CanPauseSLA(transitionContext(r)); !guard.Allowed {
			return nil, guard.Error()
		}
		r.SLAPaused = true
		r.SLAPausedAt = &now
		return &secondary.AuditRecord{
			Action:      models.AuditUpdated,
			PerformedBy: actor.String(),
			Details: map[string]any{
				"slaPaused": true,
				"reason":    reason,
			},
			Notes: reason,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "sla paused", "task_id", record.ID, "reason", reason)
	return recordToTask(record, s.policy, now), nil
}

// ResumeSLA restarts a paused SLA clock and pushes the deadline out by the
// exact time spent paused.
func (s *TaskServiceImpl) ResumeSLA(ctx context.Context, req primary.ResumeSLARequest) (*primary.Task, error) {
	actor, err := resolveActor(ctx, req.ResumedBy, "resumedBy")
	if err != nil {
		return nil, err
	}

	var paused time.Duration
	record, now, err := s.mutate(ctx, req.TaskID, func(r *secondary.TaskRecord, now time.Time) (*secondary.AuditRecord, error) {
		if guard := coretask.CanResumeSLA(transitionContext(r)); !guard.Allowed {
			return nil, guard.Error()
		}
		previousDeadline := r.SLADeadline
		paused = closePause(r, now)
		return &secondary.AuditRecord{
			Action:      models.AuditUpdated,
			PerformedBy: actor.String(),
			Details: map[string]any{
				"slaPaused":           false,
				"pausedSeconds":       paused.Seconds(),
				"previousSlaDeadline": isoTime(previousDeadline),
				"slaDeadline":         isoTime(r.SLADeadline),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "sla resumed",
		"task_id", record.ID,
		"paused", paused,
		"sla_deadline", record.SLADeadline,
	)
	return recordToTask(record, s.policy, now), nil
}

// closePause ends the open pause on r at now, shifting the deadline by the
// paused duration and adding it to the running total.
func closePause(r *secondary.TaskRecord, now time.Time) time.Duration {
	pausedAt := r.CreatedAt
	if r.SLAPausedAt != nil {
		pausedAt = *r.SLAPausedAt
	}
	var paused time.Duration
	r.SLADeadline, paused = sla.Resume(r.SLADeadline, pausedAt, now)
	r.TotalPaused += paused
	r.SLAPaused = false
	r.SLAPausedAt = nil
	return paused
}

// mutate loads a task, applies fn and writes the task back together with the
// audit entry fn returns, all in one transaction. The write fails with a
// ConflictError if the task changed since it was loaded.
func (s *TaskServiceImpl) mutate(
	ctx context.Context,
	taskID string,
	fn func(r *secondary.TaskRecord, now time.Time) (*secondary.AuditRecord, error),
) (*secondary.TaskRecord, time.Time, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, time.Time{}, models.NewValidationError("taskId", "is required")
	}

	var out *secondary.TaskRecord
	now := s.now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.taskRepo.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		expected := record.Version

		entry, err := fn(record, now)
		if err != nil {
			return err
		}
		record.UpdatedAt = now
		if err := s.taskRepo.Update(ctx, record, expected); err != nil {
			return err
		}

		entry.TaskID = record.ID
		entry.PerformedAt = now
		if err := s.auditRepo.Append(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return out, now, nil
}

// resolveAssignee picks the least-loaded eligible operator in the order's
// country. Returns "" when nobody is eligible.
func (s *TaskServiceImpl) resolveAssignee(ctx context.Context, taskType models.TaskType, countryCode string) (string, error) {
	if s.operatorRepo == nil || countryCode == "" {
		return "", nil
	}
	operators, err := s.operatorRepo.ListByCountry(ctx, countryCode)
	if err != nil {
		return "", fmt.Errorf("failed to list operators: %w", err)
	}
	if len(operators) == 0 {
		return "", nil
	}
	loads, err := s.taskRepo.CountActiveByAssignee(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count operator workload: %w", err)
	}

	candidates := make([]assignment.Candidate, len(operators))
	for i, op := range operators {
		candidates[i] = assignment.Candidate{
			OperatorID:  op.ID,
			CountryCode: op.CountryCode,
			Active:      op.Active,
			TaskTypes:   op.TaskTypes,
			OpenTasks:   loads[op.ID],
		}
	}
	operatorID, ok := assignment.LeastLoaded(assignment.Request{TaskType: taskType, CountryCode: countryCode}, candidates)
	if !ok {
		s.logger.DebugContext(ctx, "no eligible operator", "task_type", string(taskType), "country_code", countryCode)
		return "", nil
	}
	return operatorID, nil
}

// publish emits an event after commit. Failures are logged and counted, never returned.
func (s *TaskServiceImpl) publish(ctx context.Context, event secondary.Event) {
	publishEvent(ctx, s.publisher, s.logger, s.metrics, event)
}

func (s *TaskServiceImpl) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func publishEvent(ctx context.Context, publisher secondary.EventPublisher, logger *slog.Logger, metrics *logging.Metrics, event secondary.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			"topic", event.Topic(),
			"task_id", event.TaskID,
			"error", err,
		)
		metrics.PublishFailed(ctx, event.Topic())
	}
}

// resolveActor returns the request actor, falling back to the context actor.
func resolveActor(ctx context.Context, actor models.Actor, field string) (models.Actor, error) {
	if !actor.IsZero() {
		return actor, nil
	}
	if fromCtx := ctxutil.ActorFromContext(ctx); !fromCtx.IsZero() {
		return fromCtx, nil
	}
	return models.Actor{}, models.NewValidationError(field, "an acting operator is required")
}

func transitionContext(r *secondary.TaskRecord) coretask.StatusTransitionContext {
	return coretask.StatusTransitionContext{
		TaskID:    r.ID,
		Status:    r.Status,
		SLAPaused: r.SLAPaused,
	}
}

var sortFields = map[string]secondary.TaskSortField{
	"createdat":   secondary.SortByCreatedAt,
	"updatedat":   secondary.SortByUpdatedAt,
	"sladeadline": secondary.SortBySLADeadline,
	"priority":    secondary.SortByPriority,
	"status":      secondary.SortByStatus,
}

// buildTaskFilters validates a query and converts it to repository filters.
func buildTaskFilters(q primary.TaskQuery) (secondary.TaskFilters, int, int, error) {
	page := q.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return secondary.TaskFilters{}, 0, 0, models.NewValidationError("page", "must be at least 1")
	}
	pageSize := q.PageSize
	if pageSize == 0 {
		pageSize = primary.DefaultPageSize
	}
	if pageSize < 1 || pageSize > primary.MaxPageSize {
		return secondary.TaskFilters{}, 0, 0, models.NewValidationError("pageSize", fmt.Sprintf("must be between 1 and %d", primary.MaxPageSize))
	}

	filters := secondary.TaskFilters{
		Statuses:       q.Statuses,
		Priorities:     q.Priorities,
		TaskTypes:      q.TaskTypes,
		AssignedTo:     strings.TrimSpace(q.AssignedTo),
		ServiceOrderID: strings.TrimSpace(q.ServiceOrderID),
		CountryCode:    strings.ToUpper(strings.TrimSpace(q.CountryCode)),
		SortBy:         secondary.SortByCreatedAt,
		SortDesc:       true,
	}
	if q.SortBy != "" {
		field, ok := sortFields[strings.ToLower(q.SortBy)]
		if !ok {
			keys := make([]string, 0, len(sortFields))
			for _, f := range sortFields {
				keys = append(keys, string(f))
			}
			sort.Strings(keys)
			return secondary.TaskFilters{}, 0, 0, models.NewValidationError("sortBy", "must be one of "+strings.Join(keys, ", "))
		}
		filters.SortBy = field
	}
	switch strings.ToLower(q.SortOrder) {
	case "", "desc":
		filters.SortDesc = true
	case "asc":
		filters.SortDesc = false
	default:
		return secondary.TaskFilters{}, 0, 0, models.NewValidationError("sortOrder", "must be asc or desc")
	}
	return filters, page, pageSize, nil
}

func newPagination(page, pageSize, total int) primary.Pagination {
	return primary.Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}
