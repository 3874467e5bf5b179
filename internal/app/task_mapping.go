package app

import (
	"encoding/json"
	"time"

	"github.com/example/dispatch/internal/core/sla"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// recordToTask converts a persistence record to the port view, deriving the
// SLA status at now.
func recordToTask(r *secondary.TaskRecord, policy *sla.Policy, now time.Time) *primary.Task {
	taskContext, err := models.DecodeContext(r.TaskType, r.Context)
	if err != nil {
		// Stored payloads that no longer match their schema are still shown.
		taskContext = models.RawContext{Type: r.TaskType, Data: json.RawMessage(r.Context)}
	}

	task := &primary.Task{
		ID:                 r.ID,
		TaskType:           r.TaskType,
		Priority:           r.Priority,
		Status:             r.Status,
		ServiceOrderID:     r.ServiceOrderID,
		Context:            taskContext,
		CountryCode:        r.CountryCode,
		BusinessUnit:       r.BusinessUnit,
		AssignedTo:         r.AssignedTo,
		AssignedBy:         models.ParseActor(r.AssignedBy),
		AssignedAt:         r.AssignedAt,
		CreatedBy:          models.ParseActor(r.CreatedBy),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
		CompletedBy:        models.ParseActor(r.CompletedBy),
		CancelledAt:        r.CancelledAt,
		CancelledBy:        models.ParseActor(r.CancelledBy),
		CancellationReason: r.CancellationReason,
		SLADeadline:        r.SLADeadline,
		SLAPaused:          r.SLAPaused,
		SLAPausedAt:        r.SLAPausedAt,
		TotalPausedMinutes: sla.WholeMinutes(r.TotalPaused),
		EscalationLevel:    r.EscalationLevel,
		EscalatedAt:        r.EscalatedAt,
		ResolutionNotes:    r.ResolutionNotes,
		ResolutionTime:     r.ResolutionTime,
		WithinSLA:          r.WithinSLA,
		Version:            r.Version,
	}

	if policy != nil {
		snap := snapshotOf(r)
		task.SLAStatus = policy.Status(snap, now)
		if pct, err := policy.Percentage(snap, now); err == nil {
			task.SLAPercentage = pct
		}
	}
	return task
}

func recordsToTasks(records []*secondary.TaskRecord, policy *sla.Policy, now time.Time) []*primary.Task {
	tasks := make([]*primary.Task, len(records))
	for i, r := range records {
		tasks[i] = recordToTask(r, policy, now)
	}
	return tasks
}

func snapshotOf(r *secondary.TaskRecord) sla.Snapshot {
	return sla.Snapshot{
		Status:      r.Status,
		Priority:    r.Priority,
		CreatedAt:   r.CreatedAt,
		Deadline:    r.SLADeadline,
		TotalPaused: r.TotalPaused,
		Paused:      r.SLAPaused,
		PausedAt:    r.SLAPausedAt,
		WithinSLA:   r.WithinSLA,
	}
}

func auditRecordToEntry(r *secondary.AuditRecord) *primary.AuditEntry {
	return &primary.AuditEntry{
		Seq:         r.Seq,
		Action:      r.Action,
		PerformedBy: models.ParseActor(r.PerformedBy),
		PerformedAt: r.PerformedAt,
		Details:     r.Details,
		Notes:       r.Notes,
	}
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
