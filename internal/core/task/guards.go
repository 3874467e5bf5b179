// Package task contains the pure business logic for task operations.
// Guards are pure functions that evaluate preconditions without side effects.
package task

import (
	"fmt"

	"github.com/example/dispatch/internal/models"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string

	err error
}

// Error converts the guard result to an error if not allowed.
// The error matches the models sentinels via errors.Is.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return fmt.Errorf("%s", r.Reason)
}

func allowed() GuardResult {
	return GuardResult{Allowed: true}
}

func deny(err error) GuardResult {
	return GuardResult{Allowed: false, Reason: err.Error(), err: err}
}

func invalidState(taskID, op string, status models.TaskStatus, reason string) GuardResult {
	return deny(&models.InvalidStateError{TaskID: taskID, Operation: op, Status: status, Reason: reason})
}

// CreateTaskContext provides context for task creation guards.
type CreateTaskContext struct {
	ServiceOrderID     string
	ServiceOrderExists bool
	TaskType           models.TaskType
	ActiveTaskID       string // empty if no active task exists for the pair
}

// StatusTransitionContext provides context for lifecycle transition guards.
type StatusTransitionContext struct {
	TaskID    string
	Status    models.TaskStatus
	SLAPaused bool
}

// CanCreateTask evaluates whether a task can be created.
// Rules:
// - Service order must exist
// - No active task may exist for the same (service order, task type)
func CanCreateTask(ctx CreateTaskContext) GuardResult {
	if !ctx.ServiceOrderExists {
		return deny(models.NewNotFoundError("service order", ctx.ServiceOrderID))
	}
	if ctx.ActiveTaskID != "" {
		return deny(&models.DuplicateActiveTaskError{
			ServiceOrderID: ctx.ServiceOrderID,
			TaskType:       ctx.TaskType,
			ExistingTaskID: ctx.ActiveTaskID,
		})
	}
	return allowed()
}

// CanAssignTask evaluates whether a task can be (re)assigned.
// Rules:
// - Status must be OPEN or ASSIGNED
func CanAssignTask(ctx StatusTransitionContext) GuardResult {
	if ctx.Status != models.TaskStatusOpen && ctx.Status != models.TaskStatusAssigned {
		return invalidState(ctx.TaskID, "assign", ctx.Status, "only OPEN or ASSIGNED tasks can be assigned")
	}
	return allowed()
}

// CanStartTask evaluates whether a task can be started.
// Rules:
// - Status must be ASSIGNED
func CanStartTask(ctx StatusTransitionContext) GuardResult {
	if ctx.Status != models.TaskStatusAssigned {
		return invalidState(ctx.TaskID, "start", ctx.Status, "only ASSIGNED tasks can be started")
	}
	return allowed()
}

// CanCompleteTask evaluates whether a task can be completed.
// Rules:
// - Status must be ASSIGNED or IN_PROGRESS
// - SLA must not be paused (resume first)
func CanCompleteTask(ctx StatusTransitionContext) GuardResult {
	if ctx.Status != models.TaskStatusAssigned && ctx.Status != models.TaskStatusInProgress {
		return invalidState(ctx.TaskID, "complete", ctx.Status, "only ASSIGNED or IN_PROGRESS tasks can be completed")
	}
	if ctx.SLAPaused {
		return invalidState(ctx.TaskID, "complete", ctx.Status, "SLA is paused, resume it first")
	}
	return allowed()
}

// CanCancelTask evaluates whether a task can be cancelled.
// Rules:
// - Status must not be terminal
func CanCancelTask(ctx StatusTransitionContext) GuardResult {
	if ctx.Status.IsTerminal() {
		return invalidState(ctx.TaskID, "cancel", ctx.Status, "task is already closed")
	}
	return allowed()
}

// CanUpdateTask evaluates whether a task's priority or notes can be updated.
// Rules:
// - Status must not be terminal
func CanUpdateTask(ctx StatusTransitionContext) GuardResult {
	if ctx.Status.IsTerminal() {
		return invalidState(ctx.TaskID, "update", ctx.Status, "task is already closed")
	}
	return allowed()
}

// CanPauseSLA evaluates whether a task's SLA clock can be paused.
// Rules:
// - Status must not be terminal
// - SLA must not already be paused
func CanPauseSLA(ctx StatusTransitionContext) GuardResult {
	if ctx.Status.IsTerminal() {
		return invalidState(ctx.TaskID, "pause SLA of", ctx.Status, "task is already closed")
	}
	if ctx.SLAPaused {
		return invalidState(ctx.TaskID, "pause SLA of", ctx.Status, "SLA is already paused")
	}
	return allowed()
}

// CanResumeSLA evaluates whether a task's SLA clock can be resumed.
// Rules:
// - Status must not be terminal
// - SLA must be paused
func CanResumeSLA(ctx StatusTransitionContext) GuardResult {
	if ctx.Status.IsTerminal() {
		return invalidState(ctx.TaskID, "resume SLA of", ctx.Status, "task is already closed")
	}
	if !ctx.SLAPaused {
		return invalidState(ctx.TaskID, "resume SLA of", ctx.Status, "SLA is not paused")
	}
	return allowed()
}
