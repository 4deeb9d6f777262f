package task

import (
	"sync"
	"time"

	"github.com/snarg/scribe-engine/internal/transcript"
)

// record is the registry's internal task state. Only the registry touches it,
// always under the registry mutex.
type record struct {
	id        string
	status    Status
	progress  float64
	message   string
	result    *transcript.Result // immutable once set
	errCode   Code
	errDetail string
	createdAt time.Time
}

// Registry is the shared task store: a lock-guarded map from id to record.
// Every read returns a whole-record snapshot and every write replaces fields
// under the same mutex, so concurrent pollers always observe a consistent
// (status, progress, message, result/error) tuple. Updates against a terminal
// record are refused, which is what lets cancellation race the pipeline
// safely: whichever side reaches the terminal transition first wins.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*record
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*record)}
}

func (r *Registry) create(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[id] = &record{
		id:        id,
		status:    StatusPending,
		message:   "queued for processing",
		createdAt: now,
	}
}

// Snapshot returns a consistent copy of the task state.
func (r *Registry) Snapshot(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		ID:        rec.id,
		Status:    rec.status,
		Progress:  rec.progress,
		Message:   rec.message,
		ErrCode:   rec.errCode,
		ErrDetail: rec.errDetail,
		CreatedAt: rec.createdAt,
	}, true
}

// Result returns the stored result. The second value reports existence of the
// task, not of the result; a live or failed task returns (nil, true).
func (r *Registry) Result(id string) (*transcript.Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	return rec.result, true
}

// startProcessing moves a pending task to Processing. Returns false if the
// task is unknown or no longer pending (e.g. cancelled while queued).
func (r *Registry) startProcessing(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[id]
	if !ok || rec.status != StatusPending {
		return false
	}
	rec.status = StatusProcessing
	rec.message = "processing"
	return true
}

// setProgress updates progress and message on a live task. Progress never
// decreases; a lower value only replaces the message. Returns false if the
// task is unknown or terminal, signalling the worker to stop honoring it.
func (r *Registry) setProgress(id string, progress float64, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[id]
	if !ok || rec.status.Terminal() {
		return false
	}
	if progress > rec.progress {
		rec.progress = progress
	}
	rec.message = message
	return true
}

// complete moves a task to Completed with its result. Returns false if the
// task is unknown or already terminal; the result is discarded in that case.
func (r *Registry) complete(id string, res *transcript.Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[id]
	if !ok || rec.status.Terminal() {
		return false
	}
	rec.status = StatusCompleted
	rec.progress = 1.0
	rec.message = "transcription completed"
	rec.result = res
	return true
}

// fail moves a task to Failed with a coded error. Returns false if the task
// is unknown or already terminal.
func (r *Registry) fail(id string, code Code, detail string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[id]
	if !ok || rec.status.Terminal() {
		return false
	}
	rec.status = StatusFailed
	rec.errCode = code
	rec.errDetail = detail
	rec.message = "transcription failed: " + detail
	return true
}

// Remove deletes a task. Returns false if the id is unknown.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	return true
}

// ExpireBefore removes terminal tasks created before the cutoff and returns
// how many were removed. Live tasks are never expired.
func (r *Registry) ExpireBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, rec := range r.tasks {
		if rec.status.Terminal() && rec.createdAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

// Counts reports how many tasks are in each state.
func (r *Registry) Counts() (pending, processing, completed, failed int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.tasks {
		switch rec.status {
		case StatusPending:
			pending++
		case StatusProcessing:
			processing++
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
