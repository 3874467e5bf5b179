package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/example/dispatch/internal/models"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error         string            `json:"error"`
	Code          string            `json:"code"`
	Retryable     bool              `json:"retryable,omitempty"`
	CurrentStatus models.TaskStatus `json:"currentStatus,omitempty"`
	ExistingTask  string            `json:"existingTaskId,omitempty"`
}

// statusFor maps a service error to its HTTP status and response body.
func statusFor(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var (
		invalid *models.InvalidStateError
		dup     *models.DuplicateActiveTaskError
	)
	switch {
	case errors.Is(err, models.ErrValidation):
		body.Code = "VALIDATION_ERROR"
		return http.StatusBadRequest, body
	case errors.Is(err, models.ErrNotFound):
		body.Code = "NOT_FOUND"
		return http.StatusNotFound, body
	case errors.As(err, &dup):
		body.Code = "DUPLICATE_ACTIVE_TASK"
		body.ExistingTask = dup.ExistingTaskID
		return http.StatusConflict, body
	case errors.As(err, &invalid):
		body.Code = "INVALID_STATE"
		body.CurrentStatus = invalid.Status
		return http.StatusConflict, body
	case errors.Is(err, models.ErrConflict):
		body.Code = "CONFLICT"
		body.Retryable = true
		return http.StatusConflict, body
	}
	body.Code = "INTERNAL"
	body.Error = "internal server error"
	return http.StatusInternalServerError, body
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, body)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

// decode reads a JSON body into v. An empty body leaves v zero.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, models.NewValidationError("body", fmt.Sprintf("malformed JSON: %v", err)))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
