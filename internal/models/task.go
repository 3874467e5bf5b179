// Package models contains domain types for dispatch task entities.
// SQL persistence lives in internal/adapters/sqlite and internal/adapters/postgres.
package models

import (
	"fmt"
	"strings"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Task status constants
const (
	TaskStatusOpen       TaskStatus = "OPEN"
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// ActiveStatuses are the statuses in which a task still needs work.
var ActiveStatuses = []TaskStatus{TaskStatusOpen, TaskStatusAssigned, TaskStatusInProgress}

// IsActive reports whether the status is OPEN, ASSIGNED or IN_PROGRESS.
func (s TaskStatus) IsActive() bool {
	switch s {
	case TaskStatusOpen, TaskStatusAssigned, TaskStatusInProgress:
		return true
	}
	return false
}

// IsTerminal reports whether the status is COMPLETED or CANCELLED.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// ParseTaskStatus parses a status, accepting any case.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case TaskStatusOpen, TaskStatusAssigned, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return status, nil
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown status %q", s))
}

// Priority is the severity of a task. It selects the SLA duration.
type Priority string

// Priority constants
const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Rank orders priorities from most to least severe. Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// ParsePriority parses a priority, accepting any case.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	}
	return "", NewValidationError("priority", fmt.Sprintf("unknown priority %q", s))
}

// TaskType is the category of operational exception a task tracks.
// Unknown types are accepted and carry a RawContext.
type TaskType string

// Known task types
const (
	TaskTypePreFlightFailure TaskType = "PRE_FLIGHT_FAILURE"
	TaskTypePaymentFailed    TaskType = "PAYMENT_FAILED"
	TaskTypeWCFIssue         TaskType = "WCF_ISSUE"
)

// IsKnown reports whether the type has a dedicated context schema.
func (t TaskType) IsKnown() bool {
	switch t {
	case TaskTypePreFlightFailure, TaskTypePaymentFailed, TaskTypeWCFIssue:
		return true
	}
	return false
}

// ParseTaskType normalises a task type name. Any non-empty identifier is allowed.
func ParseTaskType(s string) (TaskType, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if t == "" {
		return "", NewValidationError("taskType", "task type is required")
	}
	for _, r := range t {
		if !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return "", NewValidationError("taskType", fmt.Sprintf("invalid task type %q", s))
		}
	}
	return TaskType(t), nil
}

// AuditAction names the lifecycle transition an audit entry records.
type AuditAction string

// Audit action constants
const (
	AuditCreated   AuditAction = "CREATED"
	AuditAssigned  AuditAction = "ASSIGNED"
	AuditStarted   AuditAction = "STARTED"
	AuditCompleted AuditAction = "COMPLETED"
	AuditCancelled AuditAction = "CANCELLED"
	AuditUpdated   AuditAction = "UPDATED"
	AuditEscalated AuditAction = "ESCALATED"
)

// SLAStatus classifies a task against its deadline.
type SLAStatus string

// SLA status constants
const (
	SLAStatusBreached SLAStatus = "breached"
	SLAStatusAtRisk   SLAStatus = "at_risk"
	SLAStatusOnTrack  SLAStatus = "on_track"
)

// ParseSLAStatus parses an SLA status filter value.
func ParseSLAStatus(s string) (SLAStatus, error) {
	st := SLAStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case SLAStatusBreached, SLAStatusAtRisk, SLAStatusOnTrack:
		return st, nil
	}
	return "", NewValidationError("slaStatus", fmt.Sprintf("unknown sla status %q", s))
}
