package task

import "fmt"

// Code is a short, stable error code surfaced to API clients and stored on
// failed tasks.
type Code string

const (
	CodeInvalidInput           Code = "invalid_input"
	CodeQueueFull              Code = "queue_full"
	CodeNotFound               Code = "not_found"
	CodeNotReady               Code = "not_ready"
	CodeAsrEngineError         Code = "asr_engine_error"
	CodeDiarizationUnavailable Code = "diarization_unavailable"
	CodeUnsupportedFormat      Code = "unsupported_format"
	CodeInternalError          Code = "internal_error"
	CodeCancelled              Code = "cancelled"
)

// Error pairs a stable code with a human-readable detail string.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Errorf builds a coded error with a formatted detail.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// ErrNotFound is returned for lookups of unknown task ids.
var ErrNotFound = &Error{Code: CodeNotFound, Detail: "task not found"}

// ErrNotReady is returned when a result is requested before completion.
var ErrNotReady = &Error{Code: CodeNotReady, Detail: "task not completed yet"}

// ErrQueueFull is returned when the worker queue cannot accept a submission.
var ErrQueueFull = &Error{Code: CodeQueueFull, Detail: "transcription queue is full"}
