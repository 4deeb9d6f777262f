package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/audio"
	"github.com/snarg/scribe-engine/internal/storage"
	"github.com/snarg/scribe-engine/internal/task"
	"github.com/snarg/scribe-engine/internal/transcript"
)

// TranscriptionsHandler exposes the task lifecycle over HTTP: submit an
// upload, poll status, fetch or download the result, delete.
type TranscriptionsHandler struct {
	orch     *task.Orchestrator
	store    *storage.UploadStore
	maxBytes int64
	log      zerolog.Logger
}

func NewTranscriptionsHandler(orch *task.Orchestrator, store *storage.UploadStore, maxBytes int64, log zerolog.Logger) *TranscriptionsHandler {
	return &TranscriptionsHandler{
		orch:     orch,
		store:    store,
		maxBytes: maxBytes,
		log:      log.With().Str("handler", "transcriptions").Logger(),
	}
}

// Routes registers the transcription endpoints.
func (h *TranscriptionsHandler) Routes(r chi.Router) {
	r.Post("/transcriptions", h.Create)
	r.Get("/transcriptions/{id}", h.Status)
	r.Get("/transcriptions/{id}/result", h.Result)
	r.Get("/transcriptions/{id}/download", h.Download)
	r.Delete("/transcriptions/{id}", h.Delete)
}

// CreateResponse is the body returned for an accepted submission.
type CreateResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Create handles POST /api/v1/transcriptions.
// Accepts a multipart upload with an audio file plus option form fields.
func (h *TranscriptionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	// Slack over the audio limit covers the multipart framing and form fields.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			WriteErrorDetail(w, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("file size exceeds %dMB limit", h.maxBytes/(1024*1024)))
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	// Sniff the leading bytes before committing the upload to disk.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	head = head[:n]

	if err := audio.Validate(header.Filename, head); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := h.store.Save(io.MultiReader(bytes.NewReader(head), file), header.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			WriteErrorDetail(w, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("file size exceeds %dMB limit", h.maxBytes/(1024*1024)))
			return
		}
		h.log.Error().Err(err).Str("file", header.Filename).Msg("failed to store upload")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	opts := task.Options{
		DetectSpeakers: formBool(r, "detect_speakers", true),
		ModelSize:      r.FormValue("model_size"),
		Language:       r.FormValue("language"),
		OutputFormat:   transcript.Format(r.FormValue("output_format")),
	}

	id, err := h.orch.Submit(task.Source{Path: path, Filename: header.Filename}, opts)
	if err != nil {
		os.Remove(path)
		WriteTaskError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, CreateResponse{
		TaskID:  id,
		Status:  string(task.StatusPending),
		Message: "file uploaded, transcription queued",
	})
}

// StatusResponse mirrors the registry snapshot for clients.
type StatusResponse struct {
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Status handles GET /api/v1/transcriptions/{id}.
func (h *TranscriptionsHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orch.Status(chi.URLParam(r, "id"))
	if err != nil {
		WriteTaskError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, StatusResponse{
		TaskID:    snap.ID,
		Status:    string(snap.Status),
		Progress:  snap.Progress,
		Message:   snap.Message,
		Error:     string(snap.ErrCode),
		Detail:    snap.ErrDetail,
		CreatedAt: snap.CreatedAt,
	})
}

// Result handles GET /api/v1/transcriptions/{id}/result.
func (h *TranscriptionsHandler) Result(w http.ResponseWriter, r *http.Request) {
	res, err := h.orch.Result(chi.URLParam(r, "id"))
	if err != nil {
		WriteTaskError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Download handles GET /api/v1/transcriptions/{id}/download?format=.
func (h *TranscriptionsHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format, err := transcript.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.orch.Export(id, format, transcript.RenderOptions{})
	if err != nil {
		WriteTaskError(w, err)
		return
	}

	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "transcription_"+short+"."+format.Extension()))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// Delete handles DELETE /api/v1/transcriptions/{id}. Live tasks are cancelled
// before removal.
func (h *TranscriptionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.orch.Delete(id); err != nil {
		WriteTaskError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "task " + id + " deleted"})
}

// formBool parses a boolean form field, falling back to def when absent or
// malformed.
func formBool(r *http.Request, name string, def bool) bool {
	v := r.FormValue(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
