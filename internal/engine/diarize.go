package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrUnavailable marks a diarization engine that cannot serve at all —
// unreachable, unauthorized, or not configured. It is a degraded mode for
// the pipeline, not a task failure.
var ErrUnavailable = errors.New("diarization engine unavailable")

// PyannoteClient calls a pyannote-server style diarization sidecar.
// Implements the Diarizer interface.
type PyannoteClient struct {
	url       string
	authToken string
	timeout   time.Duration
	client    *http.Client
}

// pyannoteResponse is the JSON response from the diarization sidecar.
type pyannoteResponse struct {
	Turns []pyannoteTurn `json:"turns"`
}

type pyannoteTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// NewPyannoteClient creates a new diarization client. authToken is the
// HuggingFace-style access token the sidecar may require; empty is allowed
// for unauthenticated deployments.
func NewPyannoteClient(url, authToken string, timeout time.Duration) *PyannoteClient {
	return &PyannoteClient{
		url:       url,
		authToken: authToken,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
	}
}

// Name returns the engine name.
func (pc *PyannoteClient) Name() string { return "pyannote" }

// Diarize sends an audio file to the diarization sidecar and returns the
// speaker turns. Connection failures and auth rejections are reported as
// ErrUnavailable; other HTTP errors are plain errors.
func (pc *PyannoteClient) Diarize(ctx context.Context, audioPath string) ([]DiarizedTurn, error) {
	if pc.url == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", ErrUnavailable)
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if pc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+pc.authToken)
	}

	resp, err := pc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: access rejected (status %d)", ErrUnavailable, resp.StatusCode)
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("diarization API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result pyannoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	turns := make([]DiarizedTurn, len(result.Turns))
	for i, t := range result.Turns {
		turns[i] = DiarizedTurn(t)
	}
	return turns, nil
}

// NoopDiarizer is used when diarization is not configured. Always reports
// ErrUnavailable so the pipeline falls back to single-speaker labels.
type NoopDiarizer struct{}

func (NoopDiarizer) Name() string { return "none" }

func (NoopDiarizer) Diarize(ctx context.Context, audioPath string) ([]DiarizedTurn, error) {
	return nil, ErrUnavailable
}
