// Package engine contains the clients for the external inference services:
// the ASR (speech-to-text) engine and the speaker diarization engine. Both
// are treated as black boxes behind small interfaces so the orchestrator can
// be tested with fakes.
package engine

import "context"

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error)
	Name() string
}

// TranscribeOpts are per-request options for the ASR engine.
type TranscribeOpts struct {
	ModelSize string // tiny, base, small, medium
	Language  string // ISO-639 code; empty = auto-detect
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds
	Segments []ResponseSegment
}

// ResponseSegment is a timestamped text segment from the ASR engine.
type ResponseSegment struct {
	Start float64
	End   float64
	Text  string
}

// Diarizer is the interface for speaker diarization backends.
//
// Implementations return ErrUnavailable (possibly wrapped) when the engine
// cannot serve at all — unreachable, unauthorized, or not configured. The
// caller degrades to single-speaker attribution in that case.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]DiarizedTurn, error)
	Name() string
}

// DiarizedTurn is one speaker turn reported by the diarization engine.
type DiarizedTurn struct {
	Start   float64
	End     float64
	Speaker string
}
