package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/dispatch/internal/ctxutil"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
)

// mockTaskService records the last request and returns canned results.
type mockTaskService struct {
	err       error
	lastActor models.Actor
	lastQuery primary.TaskQuery
	lastReq   any
}

func (m *mockTaskService) result(ctx context.Context, id string, req any) (*primary.Task, error) {
	m.lastActor = ctxutil.ActorFromContext(ctx)
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &primary.Task{ID: id, Status: models.TaskStatusAssigned}, nil
}

func (m *mockTaskService) CreateTask(ctx context.Context, req primary.CreateTaskRequest) (*primary.Task, error) {
	return m.result(ctx, "task-new", req)
}

func (m *mockTaskService) GetTask(ctx context.Context, taskID string) (*primary.Task, error) {
	return m.result(ctx, taskID, taskID)
}

func (m *mockTaskService) ListTasks(ctx context.Context, query primary.TaskQuery) (*primary.TaskPage, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return &primary.TaskPage{
		Data:       []*primary.Task{{ID: "task-1"}},
		Pagination: primary.Pagination{Page: 1, PageSize: 20, Total: 1, TotalPages: 1},
	}, nil
}

func (m *mockTaskService) UpdateTask(ctx context.Context, req primary.UpdateTaskRequest) (*primary.Task, error) {
	return m.result(ctx, req.TaskID, req)
}

func (m *mockTaskService) AssignTask(ctx context.Context, req primary.AssignTaskRequest) (*primary.Task, error) {
	return m.result(ctx, req.TaskID, req)
}

func (m *mockTaskService) StartTask(ctx context.Context, req primary.StartTaskRequest) (*primary.Task, error) {
	return m.result(ctx, req.TaskID, req)
}

func (m *mockTaskService) CompleteTask(ctx context.Context, req primary.CompleteTaskRequest) (*primary.Task, error) {
	return m.result(ctx, req.TaskID, req)
}

func (m *mockTaskService) CancelTask(ctx context.Context, req primary.CancelTaskRequest) (*primary.Task, error) {
	return m.result(ctx, req.TaskID, req)
}

func (m *mockTaskService) PauseSLA(ctx context.Context, req primary.PauseSLARequest) (*primary.Task, error) {
	return m.result(ctx, req.TaskID, req)
}

func (m *mockTaskService) ResumeSLA(ctx context.Context, req primary.ResumeSLARequest) (*primary.Task, error) {
	return m.result(ctx, req.TaskID, req)
}

type mockDashboardService struct {
	lastReq primary.DashboardRequest
}

func (m *mockDashboardService) GetOperatorDashboard(ctx context.Context, req primary.DashboardRequest) (*primary.OperatorDashboard, error) {
	m.lastReq = req
	return &primary.OperatorDashboard{OperatorID: req.OperatorID, Stats: primary.DashboardStats{CompletedToday: 2}}, nil
}

func newTestServer() (*mockTaskService, *mockDashboardService, http.Handler) {
	tasks := &mockTaskService{}
	dashboards := &mockDashboardService{}
	return tasks, dashboards, NewServer(tasks, dashboards, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(OperatorHeader, "op-alice")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateTask(t *testing.T) {
	tasks, _, h := newTestServer()

	w := do(t, h, http.MethodPost, "/tasks", `{"taskType":"PAYMENT_FAILED","priority":"URGENT","serviceOrderId":"SO-1","context":{"paymentId":"P1"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	req, ok := tasks.lastReq.(primary.CreateTaskRequest)
	if !ok {
		t.Fatalf("lastReq = %T", tasks.lastReq)
	}
	if req.TaskType != models.TaskTypePaymentFailed || req.ServiceOrderID != "SO-1" {
		t.Errorf("req = %+v", req)
	}
	if string(req.Context) != `{"paymentId":"P1"}` {
		t.Errorf("context = %s", req.Context)
	}
	if tasks.lastActor.String() != "op-alice" {
		t.Errorf("actor = %v, want op-alice", tasks.lastActor)
	}
}

func TestCreateTask_MalformedBody(t *testing.T) {
	_, _, h := newTestServer()

	for _, body := range []string{`{oops}`, `{"unknown":1}`} {
		w := do(t, h, http.MethodPost, "/tasks", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d", body, w.Code)
		}
	}
}

func TestLifecycleRoutes(t *testing.T) {
	tests := []struct {
		method, path, body string
		check              func(t *testing.T, req any)
	}{
		{http.MethodPost, "/tasks/t1/assign", `{"assignedTo":"op-bob"}`, func(t *testing.T, req any) {
			if r := req.(primary.AssignTaskRequest); r.TaskID != "t1" || r.AssignedTo != "op-bob" {
				t.Errorf("req = %+v", r)
			}
		}},
		{http.MethodPost, "/tasks/t1/start", "", func(t *testing.T, req any) {
			if r := req.(primary.StartTaskRequest); r.TaskID != "t1" {
				t.Errorf("req = %+v", r)
			}
		}},
		{http.MethodPost, "/tasks/t1/complete", `{"resolutionNotes":"fixed"}`, func(t *testing.T, req any) {
			if r := req.(primary.CompleteTaskRequest); r.ResolutionNotes != "fixed" {
				t.Errorf("req = %+v", r)
			}
		}},
		{http.MethodPost, "/tasks/t1/cancel", `{"reason":"dup"}`, func(t *testing.T, req any) {
			if r := req.(primary.CancelTaskRequest); r.Reason != "dup" {
				t.Errorf("req = %+v", r)
			}
		}},
		{http.MethodPost, "/tasks/t1/pause-sla", `{"reason":"waiting on customer"}`, func(t *testing.T, req any) {
			if r := req.(primary.PauseSLARequest); r.Reason != "waiting on customer" {
				t.Errorf("req = %+v", r)
			}
		}},
		{http.MethodPost, "/tasks/t1/resume-sla", "", func(t *testing.T, req any) {
			if r := req.(primary.ResumeSLARequest); r.TaskID != "t1" {
				t.Errorf("req = %+v", r)
			}
		}},
		{http.MethodPatch, "/tasks/t1", `{"priority":"high","notes":"bumped"}`, func(t *testing.T, req any) {
			r := req.(primary.UpdateTaskRequest)
			if r.Priority == nil || *r.Priority != models.PriorityHigh || r.Notes != "bumped" {
				t.Errorf("req = %+v", r)
			}
		}},
		{http.MethodGet, "/tasks/t1", "", func(t *testing.T, req any) {
			if req.(string) != "t1" {
				t.Errorf("req = %v", req)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			tasks, _, h := newTestServer()
			w := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body)
			}
			tt.check(t, tasks.lastReq)
		})
	}
}

func TestListTasks_Query(t *testing.T) {
	tasks, _, h := newTestServer()

	w := do(t, h, http.MethodGet, "/tasks?status=open,assigned&priority=URGENT&slaStatus=at_risk&page=2&pageSize=10&sortBy=slaDeadline&sortOrder=asc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	q := tasks.lastQuery
	if len(q.Statuses) != 2 || q.Statuses[1] != models.TaskStatusAssigned {
		t.Errorf("Statuses = %v", q.Statuses)
	}
	if q.SLAStatus != models.SLAStatusAtRisk || q.Page != 2 || q.PageSize != 10 || q.SortBy != "slaDeadline" {
		t.Errorf("query = %+v", q)
	}

	var page struct {
		Data       []map[string]any   `json:"data"`
		Pagination primary.Pagination `json:"pagination"`
	}
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Data) != 1 || page.Pagination.Total != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestListTasks_InvalidQuery(t *testing.T) {
	_, _, h := newTestServer()
	for _, path := range []string{"/tasks?status=DONE", "/tasks?page=abc", "/tasks?slaStatus=late"} {
		if w := do(t, h, http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"not found", models.NewNotFoundError("task", "t1"), http.StatusNotFound, "NOT_FOUND", false},
		{"duplicate", &models.DuplicateActiveTaskError{ServiceOrderID: "SO-1", TaskType: models.TaskTypeWCFIssue, ExistingTaskID: "t0"}, http.StatusConflict, "DUPLICATE_ACTIVE_TASK", false},
		{"invalid state", &models.InvalidStateError{TaskID: "t1", Operation: "start", Status: models.TaskStatusOpen}, http.StatusConflict, "INVALID_STATE", false},
		{"conflict", models.NewConflictError("t1"), http.StatusConflict, "CONFLICT", true},
		{"validation", models.NewValidationError("reason", "is required"), http.StatusBadRequest, "VALIDATION_ERROR", false},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, _, h := newTestServer()
			tasks.err = tt.err

			w := do(t, h, http.MethodPost, "/tasks/t1/start", "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var body errorBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.code || body.Retryable != tt.retryable {
				t.Errorf("body = %+v", body)
			}
			if tt.status == http.StatusInternalServerError && body.Error != "internal server error" {
				t.Errorf("internal error leaked: %q", body.Error)
			}
		})
	}
}

func TestDashboard(t *testing.T) {
	_, dashboards, h := newTestServer()

	w := do(t, h, http.MethodGet, "/operators/op-bob/dashboard?upcomingWindow=2h", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if dashboards.lastReq.OperatorID != "op-bob" || dashboards.lastReq.UpcomingWindow != 2*time.Hour {
		t.Errorf("req = %+v", dashboards.lastReq)
	}
	var got struct {
		Statistics primary.DashboardStats `json:"statistics"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Statistics.CompletedToday != 2 {
		t.Errorf("statistics = %+v", got.Statistics)
	}

	if w := do(t, h, http.MethodGet, "/operators/op-bob/dashboard?upcomingWindow=soon", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad window status = %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	_, _, h := newTestServer()
	if w := do(t, h, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
