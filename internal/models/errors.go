package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is matching across layers.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateActiveTask = errors.New("duplicate active task")
	ErrInvalidState        = errors.New("invalid state")
	ErrConflict            = errors.New("concurrent modification")
	ErrValidation          = errors.New("validation failed")
)

// NotFoundError reports an unknown task id or an unresolvable reference.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// DuplicateActiveTaskError reports that an active task already exists for the
// same service order and task type.
type DuplicateActiveTaskError struct {
	ServiceOrderID string
	TaskType       TaskType
	ExistingTaskID string
}

func (e *DuplicateActiveTaskError) Error() string {
	if e.ExistingTaskID == "" {
		return fmt.Sprintf("an active %s task already exists for service order %s", e.TaskType, e.ServiceOrderID)
	}
	return fmt.Sprintf("an active %s task already exists for service order %s (task %s)", e.TaskType, e.ServiceOrderID, e.ExistingTaskID)
}

func (e *DuplicateActiveTaskError) Unwrap() error { return ErrDuplicateActiveTask }

// InvalidStateError reports an operation attempted from a status that does
// not permit it.
type InvalidStateError struct {
	TaskID    string
	Operation string
	Status    TaskStatus
	Reason    string
}

func (e *InvalidStateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s task %s: %s (current status: %s)", e.Operation, e.TaskID, e.Reason, e.Status)
	}
	return fmt.Sprintf("cannot %s task %s (current status: %s)", e.Operation, e.TaskID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ConflictError reports a lost optimistic-concurrency race. Callers may retry
// the read-modify-write.
type ConflictError struct {
	TaskID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s was modified concurrently, retry the operation", e.TaskID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewConflictError builds a ConflictError.
func NewConflictError(taskID string) error {
	return &ConflictError{TaskID: taskID}
}

// ValidationError reports malformed input detected before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
