package api

import (
	"net/http"
	"os"
	"time"

	"github.com/snarg/scribe-engine/internal/engine"
	"github.com/snarg/scribe-engine/internal/task"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Queue         task.QueueStats   `json:"queue"`
	ActiveTasks   int               `json:"active_tasks"`
}

type HealthHandler struct {
	orch       *task.Orchestrator
	uploadDir  string
	diarizer   bool
	preprocess bool
	version    string
	startTime  time.Time
}

func NewHealthHandler(orch *task.Orchestrator, uploadDir string, diarizer, preprocess bool, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		orch:       orch,
		uploadDir:  uploadDir,
		diarizer:   diarizer,
		preprocess: preprocess,
		version:    version,
		startTime:  startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Upload directory check
	if fi, err := os.Stat(h.uploadDir); err != nil || !fi.IsDir() {
		checks["storage"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	checks["asr"] = "ok"

	// Diarization check
	if h.diarizer {
		checks["diarization"] = "ok"
	} else {
		checks["diarization"] = "not_configured"
	}

	// ffmpeg check
	if h.preprocess {
		if engine.CheckFFmpeg() {
			checks["ffmpeg"] = "ok"
		} else {
			checks["ffmpeg"] = "missing"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["ffmpeg"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Queue:         h.orch.Stats(),
		ActiveTasks:   h.orch.TaskCount(),
	}

	WriteJSON(w, httpStatus, resp)
}
