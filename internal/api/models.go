package api

import (
	"net/http"

	"github.com/snarg/scribe-engine/internal/audio"
	"github.com/snarg/scribe-engine/internal/task"
)

// ModelsResponse describes what the service can do, so clients can build
// submission forms without hardcoding capabilities.
type ModelsResponse struct {
	Models           []ModelInfo `json:"models"`
	DefaultModel     string      `json:"default_model"`
	SupportedFormats []string    `json:"supported_formats"`
	OutputFormats    []string    `json:"output_formats"`
	Diarization      bool        `json:"speaker_diarization"`
}

// ModelInfo describes one ASR model size.
type ModelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var modelDescriptions = map[string]string{
	"tiny":   "fastest, lowest accuracy",
	"base":   "good balance of speed and accuracy",
	"small":  "better accuracy, slower",
	"medium": "best accuracy, slowest",
}

// ModelsHandler serves capability discovery.
type ModelsHandler struct {
	diarization bool
}

func NewModelsHandler(diarization bool) *ModelsHandler {
	return &ModelsHandler{diarization: diarization}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	models := make([]ModelInfo, 0, len(task.ModelSizes))
	for _, m := range task.ModelSizes {
		models = append(models, ModelInfo{Name: m, Description: modelDescriptions[m]})
	}
	WriteJSON(w, http.StatusOK, ModelsResponse{
		Models:           models,
		DefaultModel:     task.DefaultModelSize,
		SupportedFormats: audio.SupportedExtensions,
		OutputFormats:    []string{"txt", "json", "srt"},
		Diarization:      h.diarization,
	})
}
