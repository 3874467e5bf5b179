package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/dispatch/internal/adapters/sqlite"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/secondary"
)

func TestTaskRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)
	ctx := context.Background()

	task := newTaskRecord("task-1", "SO-1")
	task.SLADeadline = baseTime.Add(4*time.Hour + 123456*time.Microsecond)
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.Version != 1 {
		t.Errorf("Version = %d, want 1", task.Version)
	}

	got, err := repo.GetByID(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.TaskStatusOpen || got.Priority != models.PriorityUrgent {
		t.Errorf("got status=%s priority=%s", got.Status, got.Priority)
	}
	if !got.SLADeadline.Equal(task.SLADeadline) {
		t.Errorf("SLADeadline = %v, want %v", got.SLADeadline, task.SLADeadline)
	}
	if string(got.Context) != string(task.Context) {
		t.Errorf("Context = %s", got.Context)
	}
	if got.AssignedTo != "" || got.AssignedAt != nil || got.ResolutionTime != nil || got.WithinSLA != nil {
		t.Errorf("expected nullable columns to stay empty: %+v", got)
	}
}

func TestTaskRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskRepository_Create_DuplicateActive(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newTaskRecord("task-1", "SO-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := repo.Create(ctx, newTaskRecord("task-2", "SO-1"))
	var dup *models.DuplicateActiveTaskError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateActiveTaskError, got %v", err)
	}
	if dup.ExistingTaskID != "task-1" {
		t.Errorf("ExistingTaskID = %q, want task-1", dup.ExistingTaskID)
	}

	// A different type for the same order is fine.
	other := newTaskRecord("task-3", "SO-1")
	other.TaskType = models.TaskTypeWCFIssue
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create for other type failed: %v", err)
	}
}

func TestTaskRepository_Create_AfterTerminal(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)
	ctx := context.Background()

	first := newTaskRecord("task-1", "SO-1")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cancelledAt := baseTime.Add(time.Hour)
	first.Status = models.TaskStatusCancelled
	first.CancelledAt = &cancelledAt
	first.CancelledBy = "op-alice"
	first.CancellationReason = "duplicate"
	if err := repo.Update(ctx, first, 1); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := repo.Create(ctx, newTaskRecord("task-2", "SO-1")); err != nil {
		t.Fatalf("Create after cancel failed: %v", err)
	}
	active, err := repo.FindActive(ctx, "SO-1", models.TaskTypePaymentFailed)
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if active == nil || active.ID != "task-2" {
		t.Errorf("FindActive = %+v, want task-2", active)
	}
}

func TestTaskRepository_Update_VersionConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)
	ctx := context.Background()

	task := newTaskRecord("task-1", "SO-1")
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	assignedAt := baseTime.Add(time.Minute)
	first, _ := repo.GetByID(ctx, "task-1")
	first.Status = models.TaskStatusAssigned
	first.AssignedTo = "op-bob"
	first.AssignedBy = "op-alice"
	first.AssignedAt = &assignedAt
	if err := repo.Update(ctx, first, 1); err != nil {
		t.Fatalf("first Update failed: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("Version = %d, want 2", first.Version)
	}

	second, _ := repo.GetByID(ctx, "task-1")
	second.Status = models.TaskStatusAssigned
	second.AssignedTo = "op-carol"
	err := repo.Update(ctx, second, 1)
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, _ := repo.GetByID(ctx, "task-1")
	if got.AssignedTo != "op-bob" {
		t.Errorf("AssignedTo = %q, want op-bob", got.AssignedTo)
	}

	missing := newTaskRecord("missing", "SO-9")
	if err := repo.Update(ctx, missing, 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing task, got %v", err)
	}
}

func TestTaskRepository_Update_CompletionFields(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)
	ctx := context.Background()

	task := newTaskRecord("task-1", "SO-1")
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	completedAt := baseTime.Add(90 * time.Minute)
	resolution := 90
	within := true
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &completedAt
	task.CompletedBy = "op-alice"
	task.ResolutionNotes = "refunded"
	task.ResolutionTime = &resolution
	task.WithinSLA = &within
	if err := repo.Update(ctx, task, task.Version); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "task-1")
	if got.ResolutionTime == nil || *got.ResolutionTime != 90 {
		t.Errorf("ResolutionTime = %v", got.ResolutionTime)
	}
	if got.WithinSLA == nil || !*got.WithinSLA {
		t.Errorf("WithinSLA = %v", got.WithinSLA)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completedAt) {
		t.Errorf("CompletedAt = %v", got.CompletedAt)
	}
}

func TestTaskRepository_Update_PausedTotalKeepsSubMinutes(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)
	ctx := context.Background()

	task := newTaskRecord("task-1", "SO-1")
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	task.TotalPaused = 90*time.Second + 250*time.Microsecond
	task.SLADeadline = task.SLADeadline.Add(task.TotalPaused)
	if err := repo.Update(ctx, task, task.Version); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "task-1")
	if got.TotalPaused != task.TotalPaused {
		t.Errorf("TotalPaused = %s, want %s", got.TotalPaused, task.TotalPaused)
	}
	if !got.SLADeadline.Equal(task.SLADeadline) {
		t.Errorf("SLADeadline = %v, want %v", got.SLADeadline, task.SLADeadline)
	}
}

func TestTaskRepository_Escalate(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newTaskRecord("task-1", "SO-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	at := baseTime.Add(4 * time.Hour)
	if err := repo.Escalate(ctx, "task-1", 0, 2, at); err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	// A second sweeper that observed tier 0 loses.
	if err := repo.Escalate(ctx, "task-1", 0, 2, at); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, _ := repo.GetByID(ctx, "task-1")
	if got.EscalationLevel != 1 || got.LastEscalatedTier != 2 {
		t.Errorf("level=%d tier=%d, want 1/2", got.EscalationLevel, got.LastEscalatedTier)
	}
	if got.EscalatedAt == nil || !got.EscalatedAt.Equal(at) {
		t.Errorf("EscalatedAt = %v", got.EscalatedAt)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
}

func TestTaskRepository_Escalate_SkipsClosedTasks(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)
	seedTask(t, db, "done", "SO-1", models.TaskStatusCompleted, "op-alice", baseTime)

	err := repo.Escalate(context.Background(), "done", 0, 2, baseTime.Add(time.Hour))
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTaskRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)
	ctx := context.Background()

	seedTask(t, db, "a", "SO-1", models.TaskStatusOpen, "", baseTime.Add(1*time.Hour))
	seedTask(t, db, "b", "SO-2", models.TaskStatusAssigned, "op-alice", baseTime.Add(2*time.Hour))
	seedTask(t, db, "c", "SO-3", models.TaskStatusInProgress, "op-alice", baseTime.Add(3*time.Hour))
	seedTask(t, db, "d", "SO-4", models.TaskStatusCompleted, "op-alice", baseTime.Add(4*time.Hour))

	before := baseTime.Add(2 * time.Hour)
	after := baseTime.Add(1 * time.Hour)

	tests := []struct {
		name    string
		filters secondary.TaskFilters
		want    []string
	}{
		{"all", secondary.TaskFilters{}, []string{"a", "b", "c", "d"}},
		{"active", secondary.TaskFilters{Statuses: models.ActiveStatuses}, []string{"a", "b", "c"}},
		{"assignee", secondary.TaskFilters{AssignedTo: "op-alice"}, []string{"b", "c", "d"}},
		{"deadline window", secondary.TaskFilters{DeadlineAfter: &after, DeadlineBefore: &before}, []string{"b"}},
		{"by id", secondary.TaskFilters{IDs: []string{"d", "a"}}, []string{"a", "d"}},
		{"deadline desc", secondary.TaskFilters{SortBy: secondary.SortBySLADeadline, SortDesc: true, Limit: 2}, []string{"d", "c"}},
		{"paged", secondary.TaskFilters{SortBy: secondary.SortBySLADeadline, Limit: 2, Offset: 2}, []string{"c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filters)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tasks, want %v", len(got), tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	n, err := repo.Count(ctx, secondary.TaskFilters{Statuses: models.ActiveStatuses, Limit: 1})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestTaskRepository_CountActiveByAssignee(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewTaskRepository(db)

	seedTask(t, db, "a", "SO-1", models.TaskStatusAssigned, "op-alice", baseTime)
	seedTask(t, db, "b", "SO-2", models.TaskStatusInProgress, "op-alice", baseTime)
	seedTask(t, db, "c", "SO-3", models.TaskStatusAssigned, "op-bob", baseTime)
	seedTask(t, db, "d", "SO-4", models.TaskStatusCompleted, "op-bob", baseTime)
	seedTask(t, db, "e", "SO-5", models.TaskStatusOpen, "", baseTime)

	counts, err := repo.CountActiveByAssignee(context.Background())
	if err != nil {
		t.Fatalf("CountActiveByAssignee failed: %v", err)
	}
	if counts["op-alice"] != 2 || counts["op-bob"] != 1 || len(counts) != 2 {
		t.Errorf("counts = %v", counts)
	}
}
