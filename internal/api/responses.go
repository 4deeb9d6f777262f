package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/snarg/scribe-engine/internal/task"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorDetail writes a JSON error response with detail.
func WriteErrorDetail(w http.ResponseWriter, status int, msg, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Detail: detail})
}

// WriteTaskError maps a task error to its HTTP status and writes the body.
// The error code travels in the "error" field so clients can branch on it.
func WriteTaskError(w http.ResponseWriter, err error) {
	var te *task.Error
	if !errors.As(err, &te) {
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	WriteErrorDetail(w, taskErrorStatus(te.Code), string(te.Code), te.Detail)
}

func taskErrorStatus(code task.Code) int {
	switch code {
	case task.CodeNotFound:
		return http.StatusNotFound
	case task.CodeNotReady:
		return http.StatusConflict
	case task.CodeInvalidInput, task.CodeUnsupportedFormat:
		return http.StatusBadRequest
	case task.CodeQueueFull:
		return http.StatusTooManyRequests
	case task.CodeAsrEngineError, task.CodeInternalError:
		return http.StatusInternalServerError
	case task.CodeCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
