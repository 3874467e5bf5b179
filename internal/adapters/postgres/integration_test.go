package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/example/dispatch/internal/adapters/postgres"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/secondary"
)

var baseTime = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

// startPostgres runs a throwaway PostgreSQL container and returns a migrated pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("DISPATCH_INTEGRATION") != "1" {
		t.Skip("set DISPATCH_INTEGRATION=1 to run PostgreSQL integration tests")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "dispatch",
				"POSTGRES_PASSWORD": "dispatch",
				"POSTGRES_DB":       "dispatch",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://dispatch:dispatch@%s:%s/dispatch?sslmode=disable", host, port.Port())
	pool, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Applying the schema twice is harmless.
	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

func newTask(id, serviceOrderID string) *secondary.TaskRecord {
	return &secondary.TaskRecord{
		ID:             id,
		TaskType:       models.TaskTypePaymentFailed,
		Priority:       models.PriorityUrgent,
		Status:         models.TaskStatusOpen,
		ServiceOrderID: serviceOrderID,
		Context:        []byte(`{"amount": 10, "currency": "EUR", "paymentId": "PAY-1"}`),
		CountryCode:    "FR",
		CreatedBy:      "op-alice",
		CreatedAt:      baseTime,
		UpdatedAt:      baseTime,
		SLADeadline:    baseTime.Add(4 * time.Hour),
	}
}

func TestPostgres_TaskLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	store := postgres.NewStore(pool)
	tasks := postgres.NewTaskRepository(pool)
	audits := postgres.NewAuditRepository(pool)

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if err := tasks.Create(ctx, newTask("task-1", "SO-1")); err != nil {
			return err
		}
		return audits.Append(ctx, &secondary.AuditRecord{
			TaskID: "task-1", Action: models.AuditCreated, PerformedBy: "op-alice", PerformedAt: baseTime,
			Details: map[string]any{"priority": "URGENT"},
		})
	})
	require.NoError(t, err)

	got, err := tasks.GetByID(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusOpen, got.Status)
	assert.True(t, got.SLADeadline.Equal(baseTime.Add(4*time.Hour)))
	assert.Equal(t, int64(1), got.Version)
	assert.Empty(t, got.AssignedTo)

	err = tasks.Create(ctx, newTask("task-2", "SO-1"))
	assert.ErrorIs(t, err, models.ErrDuplicateActiveTask)

	assignedAt := baseTime.Add(time.Minute)
	got.Status = models.TaskStatusAssigned
	got.AssignedTo = "op-bob"
	got.AssignedBy = "SYSTEM"
	got.AssignedAt = &assignedAt
	require.NoError(t, tasks.Update(ctx, got, 1))
	assert.Equal(t, int64(2), got.Version)
	assert.ErrorIs(t, tasks.Update(ctx, got, 1), models.ErrConflict)

	require.NoError(t, tasks.Escalate(ctx, "task-1", 0, 1, baseTime.Add(3*time.Hour+40*time.Minute)))
	assert.ErrorIs(t, tasks.Escalate(ctx, "task-1", 0, 1, baseTime.Add(3*time.Hour+41*time.Minute)), models.ErrConflict)

	active, err := tasks.List(ctx, secondary.TaskFilters{Statuses: models.ActiveStatuses, AssignedTo: "op-bob"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].EscalationLevel)

	counts, err := tasks.CountActiveByAssignee(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"op-bob": 1}, counts)

	entries, err := audits.ListByTask(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, "URGENT", entries[0].Details["priority"])
}

func TestPostgres_ConcurrentAssignOneWins(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	tasks := postgres.NewTaskRepository(pool)
	require.NoError(t, tasks.Create(ctx, newTask("task-1", "SO-1")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for _, op := range []string{"op-a", "op-b", "op-c", "op-d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := tasks.GetByID(ctx, "task-1")
			if err != nil {
				t.Errorf("GetByID: %v", err)
				return
			}
			rec.Status = models.TaskStatusAssigned
			rec.AssignedTo = op
			err = tasks.Update(ctx, rec, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, models.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 3, conflicts)
}

func TestPostgres_Directory(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	orders := postgres.NewServiceOrderRepository(pool)
	operators := postgres.NewOperatorRepository(pool)

	_, err := orders.GetByID(ctx, "SO-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, orders.Upsert(ctx, &secondary.ServiceOrderRecord{ID: "SO-1", CountryCode: "FR", BusinessUnit: "LM"}))
	order, err := orders.GetByID(ctx, "SO-1")
	require.NoError(t, err)
	assert.Equal(t, "FR", order.CountryCode)

	require.NoError(t, operators.Upsert(ctx, &secondary.OperatorRecord{
		ID: "op-bob", Name: "Bob", CountryCode: "FR", Active: true,
		TaskTypes: []models.TaskType{models.TaskTypeWCFIssue},
	}))
	list, err := operators.ListByCountry(ctx, "FR")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []models.TaskType{models.TaskTypeWCFIssue}, list[0].TaskTypes)
}
