package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
)

type createTaskBody struct {
	TaskType       string          `json:"taskType"`
	Priority       string          `json:"priority"`
	ServiceOrderID string          `json:"serviceOrderId"`
	Context        json.RawMessage `json:"context"`
	AssignedTo     string          `json:"assignedTo"`
}

type updateTaskBody struct {
	Priority *string `json:"priority"`
	Notes    string  `json:"notes"`
}

type assignTaskBody struct {
	AssignedTo string `json:"assignedTo"`
}

type completeTaskBody struct {
	ResolutionNotes string `json:"resolutionNotes"`
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var body createTaskBody
	if !s.decode(w, r, &body) {
		return
	}
	task, err := s.tasks.CreateTask(r.Context(), primary.CreateTaskRequest{
		TaskType:       models.TaskType(body.TaskType),
		Priority:       models.Priority(body.Priority),
		ServiceOrderID: body.ServiceOrderID,
		Context:        body.Context,
		AssignedTo:     body.AssignedTo,
	})
	s.respond(w, r, http.StatusCreated, task, err)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	query, err := parseTaskQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.tasks.ListTasks(r.Context(), query)
	s.respond(w, r, http.StatusOK, page, err)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.GetTask(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var body updateTaskBody
	if !s.decode(w, r, &body) {
		return
	}
	req := primary.UpdateTaskRequest{TaskID: chi.URLParam(r, "id"), Notes: body.Notes}
	if body.Priority != nil {
		p, err := models.ParsePriority(*body.Priority)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Priority = &p
	}
	task, err := s.tasks.UpdateTask(r.Context(), req)
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *Server) assignTask(w http.ResponseWriter, r *http.Request) {
	var body assignTaskBody
	if !s.decode(w, r, &body) {
		return
	}
	task, err := s.tasks.AssignTask(r.Context(), primary.AssignTaskRequest{
		TaskID:     chi.URLParam(r, "id"),
		AssignedTo: body.AssignedTo,
	})
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *Server) startTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.StartTask(r.Context(), primary.StartTaskRequest{TaskID: chi.URLParam(r, "id")})
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	var body completeTaskBody
	if !s.decode(w, r, &body) {
		return
	}
	task, err := s.tasks.CompleteTask(r.Context(), primary.CompleteTaskRequest{
		TaskID:          chi.URLParam(r, "id"),
		ResolutionNotes: body.ResolutionNotes,
	})
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if !s.decode(w, r, &body) {
		return
	}
	task, err := s.tasks.CancelTask(r.Context(), primary.CancelTaskRequest{
		TaskID: chi.URLParam(r, "id"),
		Reason: body.Reason,
	})
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *Server) pauseSLA(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if !s.decode(w, r, &body) {
		return
	}
	task, err := s.tasks.PauseSLA(r.Context(), primary.PauseSLARequest{
		TaskID: chi.URLParam(r, "id"),
		Reason: body.Reason,
	})
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *Server) resumeSLA(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.ResumeSLA(r.Context(), primary.ResumeSLARequest{TaskID: chi.URLParam(r, "id")})
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	req := primary.DashboardRequest{OperatorID: chi.URLParam(r, "id")}
	if v := r.URL.Query().Get("upcomingWindow"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.writeError(w, r, models.NewValidationError("upcomingWindow", "must be a positive duration such as 4h"))
			return
		}
		req.UpcomingWindow = d
	}
	dashboard, err := s.dashboards.GetOperatorDashboard(r.Context(), req)
	s.respond(w, r, http.StatusOK, dashboard, err)
}

// parseTaskQuery reads list filters. Multi-valued filters accept repeated
// parameters and comma-separated values.
func parseTaskQuery(r *http.Request) (primary.TaskQuery, error) {
	q := r.URL.Query()
	query := primary.TaskQuery{
		AssignedTo:     q.Get("assignedTo"),
		ServiceOrderID: q.Get("serviceOrderId"),
		CountryCode:    q.Get("countryCode"),
		SortBy:         q.Get("sortBy"),
		SortOrder:      q.Get("sortOrder"),
	}

	for _, v := range multi(q["status"]) {
		status, err := models.ParseTaskStatus(v)
		if err != nil {
			return query, err
		}
		query.Statuses = append(query.Statuses, status)
	}
	for _, v := range multi(q["priority"]) {
		priority, err := models.ParsePriority(v)
		if err != nil {
			return query, err
		}
		query.Priorities = append(query.Priorities, priority)
	}
	for _, v := range multi(q["taskType"]) {
		taskType, err := models.ParseTaskType(v)
		if err != nil {
			return query, err
		}
		query.TaskTypes = append(query.TaskTypes, taskType)
	}
	if v := q.Get("slaStatus"); v != "" {
		status, err := models.ParseSLAStatus(v)
		if err != nil {
			return query, err
		}
		query.SLAStatus = status
	}

	var err error
	if query.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return query, err
	}
	if query.PageSize, err = intParam(q.Get("pageSize"), "pageSize"); err != nil {
		return query, err
	}
	return query, nil
}

func multi(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, models.NewValidationError(name, "must be an integer")
	}
	return n, nil
}
