// Package transcript holds the shared transcription value types, the
// speaker-alignment algorithm, and the output renderers. Everything in this
// package is pure: callers pass values in and own what comes back.
package transcript

import "time"

// FallbackSpeaker is the label assigned when no diarization turn covers a
// segment, or when diarization produced no turns at all.
const FallbackSpeaker = "Speaker 1"

// Segment is a recognized-speech segment from the ASR engine.
// Start and End are seconds from the beginning of the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Turn is one speaker turn from the diarization engine. Speaker labels are
// stable within a single job ("Speaker 1", "Speaker 2", ...).
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// SpeakerSegment is an ASR segment with its assigned speaker label.
// The label is never empty; alignment falls back to FallbackSpeaker.
type SpeakerSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

// Result is the assembled output of one transcription task. All fields
// serialize to plain scalars: timestamps are float seconds and CreatedAt
// encodes as RFC 3339, so the JSON export round-trips losslessly.
type Result struct {
	TaskID      string           `json:"task_id,omitempty"`
	Segments    []SpeakerSegment `json:"segments"`
	FullText    string           `json:"full_text"`
	Duration    float64          `json:"duration"`
	NumSpeakers int              `json:"num_speakers"`
	Language    string           `json:"language,omitempty"`

	// Provenance
	ModelSize          string    `json:"model_size"`
	SourceFile         string    `json:"source_file,omitempty"`
	SourceFormat       string    `json:"source_format,omitempty"`
	DiarizationApplied bool      `json:"speaker_diarization"`
	CreatedAt          time.Time `json:"created_at"`
}
