package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/dispatch/internal/core/escalation"
	"github.com/example/dispatch/internal/core/sla"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/secondary"
)

// baseTime is midnight UTC on a fixed day; scenario timestamps are offsets from it.
var baseTime = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hours, minutes int) time.Time {
	return baseTime.Add(time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute)
}

// ============================================================================
// Clock
// ============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ============================================================================
// Transactor
// ============================================================================

type mockTransactor struct {
	mu    sync.Mutex
	calls int
}

func (m *mockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx)
}

// ============================================================================
// Task repository
// ============================================================================

// mockTaskRepository implements secondary.TaskRepository for testing.
type mockTaskRepository struct {
	mu    sync.Mutex
	tasks map[string]*secondary.TaskRecord

	createErr   error
	listErr     error
	escalateErr map[string]error
	// beforeUpdate runs inside Update before the version check, with the lock released.
	beforeUpdate func(id string)
}

var _ secondary.TaskRepository = (*mockTaskRepository)(nil)

func newMockTaskRepository() *mockTaskRepository {
	return &mockTaskRepository{
		tasks:       make(map[string]*secondary.TaskRecord),
		escalateErr: make(map[string]error),
	}
}

// seed stores a record as-is, defaulting its version to 1.
func (m *mockTaskRepository) seed(r *secondary.TaskRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Version == 0 {
		r.Version = 1
	}
	m.tasks[r.ID] = r.Clone()
}

func (m *mockTaskRepository) get(id string) *secondary.TaskRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id].Clone()
}

func (m *mockTaskRepository) Create(ctx context.Context, task *secondary.TaskRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.tasks {
		if r.Status.IsActive() && r.ServiceOrderID == task.ServiceOrderID && r.TaskType == task.TaskType {
			return &models.DuplicateActiveTaskError{ServiceOrderID: task.ServiceOrderID, TaskType: task.TaskType, ExistingTaskID: r.ID}
		}
	}
	task.Version = 1
	m.tasks[task.ID] = task.Clone()
	return nil
}

func (m *mockTaskRepository) GetByID(ctx context.Context, id string) (*secondary.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.tasks[id]
	if !ok {
		return nil, models.NewNotFoundError("task", id)
	}
	return r.Clone(), nil
}

func (m *mockTaskRepository) FindActive(ctx context.Context, serviceOrderID string, taskType models.TaskType) (*secondary.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.tasks {
		if r.Status.IsActive() && r.ServiceOrderID == serviceOrderID && r.TaskType == taskType {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (m *mockTaskRepository) List(ctx context.Context, f secondary.TaskFilters) ([]*secondary.TaskRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*secondary.TaskRecord
	for _, r := range m.tasks {
		if matchesFilters(r, f) {
			out = append(out, r.Clone())
		}
	}
	sortRecords(out, f.SortBy, f.SortDesc)

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockTaskRepository) Count(ctx context.Context, f secondary.TaskFilters) (int, error) {
	f.Limit, f.Offset = 0, 0
	records, err := m.List(ctx, f)
	return len(records), err
}

func (m *mockTaskRepository) Update(ctx context.Context, task *secondary.TaskRecord, expectedVersion int64) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(task.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[task.ID]
	if !ok {
		return models.NewNotFoundError("task", task.ID)
	}
	if stored.Version != expectedVersion {
		return models.NewConflictError(task.ID)
	}
	task.Version = expectedVersion + 1
	m.tasks[task.ID] = task.Clone()
	return nil
}

func (m *mockTaskRepository) Escalate(ctx context.Context, id string, observedTier, newTier int, at time.Time) error {
	if err := m.escalateErr[id]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.tasks[id]
	if !ok {
		return models.NewNotFoundError("task", id)
	}
	if !r.Status.IsActive() || r.LastEscalatedTier != observedTier {
		return models.NewConflictError(id)
	}
	r.LastEscalatedTier = newTier
	r.EscalationLevel++
	r.EscalatedAt = &at
	r.UpdatedAt = at
	r.Version++
	return nil
}

func (m *mockTaskRepository) CountActiveByAssignee(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range m.tasks {
		if r.Status.IsActive() && r.AssignedTo != "" {
			counts[r.AssignedTo]++
		}
	}
	return counts, nil
}

func matchesFilters(r *secondary.TaskRecord, f secondary.TaskFilters) bool {
	switch {
	case len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID):
		return false
	case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status):
		return false
	case len(f.Priorities) > 0 && !slices.Contains(f.Priorities, r.Priority):
		return false
	case len(f.TaskTypes) > 0 && !slices.Contains(f.TaskTypes, r.TaskType):
		return false
	case f.AssignedTo != "" && r.AssignedTo != f.AssignedTo:
		return false
	case f.CompletedBy != "" && r.CompletedBy != f.CompletedBy:
		return false
	case f.ServiceOrderID != "" && r.ServiceOrderID != f.ServiceOrderID:
		return false
	case f.CountryCode != "" && r.CountryCode != f.CountryCode:
		return false
	case f.DeadlineAfter != nil && !r.SLADeadline.After(*f.DeadlineAfter):
		return false
	case f.DeadlineBefore != nil && r.SLADeadline.After(*f.DeadlineBefore):
		return false
	case f.CompletedSince != nil && (r.CompletedAt == nil || r.CompletedAt.Before(*f.CompletedSince)):
		return false
	case f.MinEscalationLevel > 0 && r.EscalationLevel < f.MinEscalationLevel:
		return false
	}
	return true
}

func sortRecords(records []*secondary.TaskRecord, by secondary.TaskSortField, desc bool) {
	key := func(r *secondary.TaskRecord) time.Time {
		switch by {
		case secondary.SortBySLADeadline:
			return r.SLADeadline
		case secondary.SortByUpdatedAt:
			return r.UpdatedAt
		case secondary.SortByEscalatedAt:
			if r.EscalatedAt != nil {
				return *r.EscalatedAt
			}
		case secondary.SortByCompletedAt:
			if r.CompletedAt != nil {
				return *r.CompletedAt
			}
		default:
			return r.CreatedAt
		}
		return time.Time{}
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if by == secondary.SortByPriority && a.Priority != b.Priority {
			if desc {
				return a.Priority.Rank() > b.Priority.Rank()
			}
			return a.Priority.Rank() < b.Priority.Rank()
		}
		ka, kb := key(a), key(b)
		if ka.Equal(kb) {
			return a.ID < b.ID
		}
		if desc {
			return ka.After(kb)
		}
		return ka.Before(kb)
	})
}

// ============================================================================
// Audit repository
// ============================================================================

type mockAuditRepository struct {
	mu        sync.Mutex
	entries   map[string][]*secondary.AuditRecord
	appendErr error
}

var _ secondary.AuditRepository = (*mockAuditRepository)(nil)

func newMockAuditRepository() *mockAuditRepository {
	return &mockAuditRepository{entries: make(map[string][]*secondary.AuditRecord)}
}

func (m *mockAuditRepository) Append(ctx context.Context, entry *secondary.AuditRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Seq = int64(len(m.entries[entry.TaskID]) + 1)
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("%s-%d", entry.TaskID, entry.Seq)
	}
	c := *entry
	m.entries[entry.TaskID] = append(m.entries[entry.TaskID], &c)
	return nil
}

func (m *mockAuditRepository) ListByTask(ctx context.Context, taskID string) ([]*secondary.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries[taskID]), nil
}

func (m *mockAuditRepository) actions(taskID string) []models.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditAction
	for _, e := range m.entries[taskID] {
		out = append(out, e.Action)
	}
	return out
}

// ============================================================================
// Directory mirrors
// ============================================================================

type mockServiceOrderRepository struct {
	orders map[string]*secondary.ServiceOrderRecord
	getErr error
}

var _ secondary.ServiceOrderRepository = (*mockServiceOrderRepository)(nil)

func newMockServiceOrderRepository() *mockServiceOrderRepository {
	return &mockServiceOrderRepository{orders: make(map[string]*secondary.ServiceOrderRecord)}
}

func (m *mockServiceOrderRepository) GetByID(ctx context.Context, id string) (*secondary.ServiceOrderRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, models.NewNotFoundError("service order", id)
	}
	c := *o
	return &c, nil
}

func (m *mockServiceOrderRepository) Upsert(ctx context.Context, order *secondary.ServiceOrderRecord) error {
	c := *order
	m.orders[order.ID] = &c
	return nil
}

type mockOperatorRepository struct {
	operators []*secondary.OperatorRecord
	listErr   error
}

var _ secondary.OperatorRepository = (*mockOperatorRepository)(nil)

func (m *mockOperatorRepository) ListByCountry(ctx context.Context, countryCode string) ([]*secondary.OperatorRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*secondary.OperatorRecord
	for _, op := range m.operators {
		if op.CountryCode == countryCode {
			out = append(out, op)
		}
	}
	return out, nil
}

func (m *mockOperatorRepository) Upsert(ctx context.Context, operator *secondary.OperatorRecord) error {
	m.operators = append(m.operators, operator)
	return nil
}

// ============================================================================
// Publisher
// ============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []secondary.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event secondary.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Topic()
	}
	return out
}

var errPublish = errors.New("bus unavailable")

// ============================================================================
// Environment
// ============================================================================

type testEnv struct {
	tx        *mockTransactor
	tasks     *mockTaskRepository
	audits    *mockAuditRepository
	orders    *mockServiceOrderRepository
	operators *mockOperatorRepository
	publisher *recordingPublisher
	clock     *fakeClock
	policy    *sla.Policy
	svc       *TaskServiceImpl
}

const (
	testOrderID  = "SO-1001"
	testOperator = "op-alice"
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	policy := mustPolicy(t, map[models.Priority]time.Duration{
		models.PriorityHigh:   8 * time.Hour,
		models.PriorityMedium: 24 * time.Hour,
		models.PriorityLow:    72 * time.Hour,
	})

	env := &testEnv{
		tx:        &mockTransactor{},
		tasks:     newMockTaskRepository(),
		audits:    newMockAuditRepository(),
		orders:    newMockServiceOrderRepository(),
		operators: &mockOperatorRepository{},
		publisher: &recordingPublisher{},
		clock:     newFakeClock(baseTime),
		policy:    policy,
	}
	env.orders.orders[testOrderID] = &secondary.ServiceOrderRecord{ID: testOrderID, CountryCode: "FR", BusinessUnit: "LM"}
	env.svc = NewTaskService(env.tx, env.tasks, env.audits, env.orders, env.operators, env.publisher, env.clock, policy, nil, nil)
	return env
}

func mustPolicy(t *testing.T, overrides map[models.Priority]time.Duration) *sla.Policy {
	t.Helper()
	policy, err := sla.NewPolicy(overrides, 0)
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	return policy
}

func (e *testEnv) escalationService(workers int) *EscalationServiceImpl {
	return NewEscalationService(e.tx, e.tasks, e.audits, e.publisher, e.clock, escalation.DefaultRules(), workers, nil, nil)
}
