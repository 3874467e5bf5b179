// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting but delegate
// business logic to services.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
)

// TaskAdapter is a thin adapter that translates CLI operations to TaskService calls.
// It depends only on the TaskService interface, enabling easy testing with mocks.
type TaskAdapter struct {
	service primary.TaskService
	out     io.Writer
}

// NewTaskAdapter creates a new TaskAdapter with the given service.
func NewTaskAdapter(service primary.TaskService, out io.Writer) *TaskAdapter {
	return &TaskAdapter{
		service: service,
		out:     out,
	}
}

// CreateOptions holds the flags of `task create`.
type CreateOptions struct {
	TaskType       string
	Priority       string
	ServiceOrderID string
	Context        string // JSON
	AssignedTo     string
}

// Create creates a task.
func (a *TaskAdapter) Create(ctx context.Context, opts CreateOptions) error {
	var raw json.RawMessage
	if opts.Context != "" {
		if !json.Valid([]byte(opts.Context)) {
			return models.NewValidationError("context", "must be valid JSON")
		}
		raw = json.RawMessage(opts.Context)
	}
	task, err := a.service.CreateTask(ctx, primary.CreateTaskRequest{
		TaskType:       models.TaskType(opts.TaskType),
		Priority:       models.Priority(opts.Priority),
		ServiceOrderID: opts.ServiceOrderID,
		Context:        raw,
		AssignedTo:     opts.AssignedTo,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Created task %s (%s, %s) due %s\n", task.ID, task.TaskType, task.Priority, formatTime(task.SLADeadline))
	if task.AssignedTo != "" {
		fmt.Fprintf(a.out, "  Assigned to %s\n", task.AssignedTo)
	} else {
		fmt.Fprintln(a.out, "  No eligible operator, task left OPEN")
	}
	return nil
}

// List lists tasks matching query.
func (a *TaskAdapter) List(ctx context.Context, query primary.TaskQuery) error {
	page, err := a.service.ListTasks(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if len(page.Data) == 0 {
		fmt.Fprintln(a.out, "No tasks found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-36s %-20s %-8s %-12s %-10s %-20s %s\n", "ID", "TYPE", "PRIORITY", "STATUS", "SLA", "DEADLINE", "ASSIGNEE")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────────────────────────────────────────────────────────────")
	for _, t := range page.Data {
		fmt.Fprintf(a.out, "%-36s %-20s %-8s %-12s %s %-20s %s\n",
			t.ID, t.TaskType, t.Priority, t.Status, slaLabel(t), formatTime(t.SLADeadline), orDash(t.AssignedTo))
	}
	p := page.Pagination
	fmt.Fprintf(a.out, "\nPage %d of %d (%d tasks)\n\n", p.Page, max(p.TotalPages, 1), p.Total)
	return nil
}

// Show displays a task and its audit history.
func (a *TaskAdapter) Show(ctx context.Context, taskID string) error {
	t, err := a.service.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	fmt.Fprintf(a.out, "\nTask:          %s\n", t.ID)
	fmt.Fprintf(a.out, "Type:          %s\n", t.TaskType)
	fmt.Fprintf(a.out, "Priority:      %s\n", t.Priority)
	fmt.Fprintf(a.out, "Status:        %s\n", t.Status)
	fmt.Fprintf(a.out, "Service order: %s (%s)\n", t.ServiceOrderID, t.CountryCode)
	fmt.Fprintf(a.out, "Assignee:      %s\n", orDash(t.AssignedTo))
	fmt.Fprintf(a.out, "SLA deadline:  %s  %s (%.0f%%)\n", formatTime(t.SLADeadline), slaLabel(t), t.SLAPercentage)
	if t.SLAPaused {
		fmt.Fprintf(a.out, "SLA paused:    since %s\n", formatTime(*t.SLAPausedAt))
	}
	if t.TotalPausedMinutes > 0 {
		fmt.Fprintf(a.out, "Paused total:  %d min\n", t.TotalPausedMinutes)
	}
	if t.EscalationLevel > 0 {
		fmt.Fprintf(a.out, "Escalation:    %s\n", color.New(color.FgRed).Sprintf("level %d", t.EscalationLevel))
	}
	if t.Context != nil {
		if b, err := json.Marshal(t.Context); err == nil {
			fmt.Fprintf(a.out, "Context:       %s\n", b)
		}
	}
	if t.ResolutionTime != nil {
		fmt.Fprintf(a.out, "Resolution:    %d min, within SLA: %t\n", *t.ResolutionTime, t.WithinSLA != nil && *t.WithinSLA)
	}
	if t.ResolutionNotes != "" {
		fmt.Fprintf(a.out, "Notes:         %s\n", t.ResolutionNotes)
	}
	if t.CancellationReason != "" {
		fmt.Fprintf(a.out, "Cancelled:     %s\n", t.CancellationReason)
	}

	if len(t.AuditHistory) > 0 {
		fmt.Fprintln(a.out, "\nHistory:")
		for _, e := range t.AuditHistory {
			line := fmt.Sprintf("  %3d  %s  %-10s by %s", e.Seq, formatTime(e.PerformedAt), e.Action, e.PerformedBy)
			if e.Notes != "" {
				line += "  " + e.Notes
			}
			fmt.Fprintln(a.out, line)
		}
	}
	fmt.Fprintln(a.out)
	return nil
}

// Assign assigns a task to an operator.
func (a *TaskAdapter) Assign(ctx context.Context, taskID, operatorID string) error {
	t, err := a.service.AssignTask(ctx, primary.AssignTaskRequest{TaskID: taskID, AssignedTo: operatorID})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Task %s assigned to %s\n", t.ID, t.AssignedTo)
	return nil
}

// Start starts work on a task.
func (a *TaskAdapter) Start(ctx context.Context, taskID string) error {
	t, err := a.service.StartTask(ctx, primary.StartTaskRequest{TaskID: taskID})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Task %s in progress\n", t.ID)
	return nil
}

// Complete completes a task.
func (a *TaskAdapter) Complete(ctx context.Context, taskID, notes string) error {
	t, err := a.service.CompleteTask(ctx, primary.CompleteTaskRequest{TaskID: taskID, ResolutionNotes: notes})
	if err != nil {
		return err
	}
	verdict := color.New(color.FgGreen).Sprint("within SLA")
	if t.WithinSLA != nil && !*t.WithinSLA {
		verdict = color.New(color.FgRed).Sprint("SLA breached")
	}
	resolution := 0
	if t.ResolutionTime != nil {
		resolution = *t.ResolutionTime
	}
	fmt.Fprintf(a.out, "✓ Task %s completed in %d min, %s\n", t.ID, resolution, verdict)
	return nil
}

// Cancel cancels a task.
func (a *TaskAdapter) Cancel(ctx context.Context, taskID, reason string) error {
	t, err := a.service.CancelTask(ctx, primary.CancelTaskRequest{TaskID: taskID, Reason: reason})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Task %s cancelled\n", t.ID)
	return nil
}

// Update changes priority and/or adds notes.
func (a *TaskAdapter) Update(ctx context.Context, taskID, priority, notes string) error {
	req := primary.UpdateTaskRequest{TaskID: taskID, Notes: notes}
	if priority != "" {
		p, err := models.ParsePriority(priority)
		if err != nil {
			return err
		}
		req.Priority = &p
	}
	t, err := a.service.UpdateTask(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Task %s updated (priority %s, due %s)\n", t.ID, t.Priority, formatTime(t.SLADeadline))
	return nil
}

// Pause pauses a task's SLA clock.
func (a *TaskAdapter) Pause(ctx context.Context, taskID, reason string) error {
	t, err := a.service.PauseSLA(ctx, primary.PauseSLARequest{TaskID: taskID, Reason: reason})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ SLA paused for task %s\n", t.ID)
	return nil
}

// Resume resumes a task's SLA clock.
func (a *TaskAdapter) Resume(ctx context.Context, taskID string) error {
	t, err := a.service.ResumeSLA(ctx, primary.ResumeSLARequest{TaskID: taskID})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ SLA resumed for task %s, new deadline %s (%d min paused in total)\n",
		t.ID, formatTime(t.SLADeadline), t.TotalPausedMinutes)
	return nil
}

// slaLabel renders the SLA status padded to a fixed width, coloured by severity.
func slaLabel(t *primary.Task) string {
	label := fmt.Sprintf("%-10s", t.SLAStatus)
	if t.SLAPaused {
		label = fmt.Sprintf("%-10s", "paused")
		return color.New(color.FgCyan).Sprint(label)
	}
	switch t.SLAStatus {
	case models.SLAStatusBreached:
		return color.New(color.FgRed).Sprint(label)
	case models.SLAStatusAtRisk:
		return color.New(color.FgYellow).Sprint(label)
	}
	return color.New(color.FgGreen).Sprint(label)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04Z")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
