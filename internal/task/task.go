// Package task owns the transcription task lifecycle: the in-memory registry,
// the status state machine, and the orchestrator that runs the pipeline on a
// bounded worker pool.
package task

import (
	"time"

	"github.com/snarg/scribe-engine/internal/transcript"
)

// Status is the task lifecycle state. Transitions are strictly forward:
// Pending -> Processing -> Completed | Failed. Completed and Failed are
// terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Source identifies the audio input of one submission: a validated, decodable
// file on local disk. The orchestrator takes ownership and removes the file
// when the pipeline finishes.
type Source struct {
	Path     string // absolute path to the stored upload
	Filename string // original client filename, for provenance
}

// Options are the recognized per-task settings.
type Options struct {
	DetectSpeakers bool
	ModelSize      string            // tiny, base, small, medium; "" = base
	Language       string            // ISO-639 code; "" = auto-detect
	OutputFormat   transcript.Format // preferred export format
}

// ModelSizes are the accepted ASR model sizes, smallest first.
var ModelSizes = []string{"tiny", "base", "small", "medium"}

// DefaultModelSize is used when a submission does not specify one.
const DefaultModelSize = "base"

func validModelSize(s string) bool {
	for _, m := range ModelSizes {
		if m == s {
			return true
		}
	}
	return false
}

// Snapshot is a consistent, point-in-time view of one task. All fields are
// read under a single lock acquisition; a poller never sees a torn record.
type Snapshot struct {
	ID        string
	Status    Status
	Progress  float64
	Message   string
	ErrCode   Code   // set iff Status == StatusFailed
	ErrDetail string // set iff Status == StatusFailed
	CreatedAt time.Time
}
