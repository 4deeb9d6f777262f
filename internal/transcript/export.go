package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Format identifies an export format.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatJSON Format = "json"
	FormatSRT  Format = "srt"
)

// ErrUnsupportedFormat is returned by Render for an unknown format.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat validates a format string. Empty defaults to json.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTXT, FormatJSON, FormatSRT:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string { return string(f) }

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// RenderOptions tune the renderers.
type RenderOptions struct {
	// OmitSoloSpeaker drops the speaker prefix from srt cues when every
	// segment carries the fallback label, i.e. when no diarization ran.
	OmitSoloSpeaker bool
}

// Render serializes a result in the requested format. It is deterministic:
// rendering the same result twice yields byte-identical output.
func Render(res *Result, format Format, opts RenderOptions) ([]byte, error) {
	switch format {
	case FormatTXT:
		return renderTXT(res), nil
	case FormatJSON:
		return renderJSON(res)
	case FormatSRT:
		return renderSRT(res, opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func renderTXT(res *Result) []byte {
	if len(res.Segments) == 0 {
		return []byte(res.FullText)
	}
	var buf bytes.Buffer
	for _, s := range res.Segments {
		fmt.Fprintf(&buf, "[%s] %s: %s\n", formatClock(s.Start), s.Speaker, s.Text)
	}
	return buf.Bytes()
}

func renderJSON(res *Result) ([]byte, error) {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return append(b, '\n'), nil
}

func renderSRT(res *Result, opts RenderOptions) []byte {
	labelled := !opts.OmitSoloSpeaker || !soloFallback(res.Segments)

	var buf bytes.Buffer
	for i, s := range res.Segments {
		fmt.Fprintf(&buf, "%d\n", i+1)
		fmt.Fprintf(&buf, "%s --> %s\n", formatSRTTime(s.Start), formatSRTTime(s.End))
		if labelled {
			fmt.Fprintf(&buf, "%s: %s\n", s.Speaker, s.Text)
		} else {
			fmt.Fprintf(&buf, "%s\n", s.Text)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// soloFallback reports whether every segment carries the fallback label.
func soloFallback(segments []SpeakerSegment) bool {
	for _, s := range segments {
		if s.Speaker != FallbackSpeaker {
			return false
		}
	}
	return len(segments) > 0
}

// formatClock renders seconds as zero-padded HH:MM:SS.
func formatClock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// formatSRTTime renders seconds as HH:MM:SS,mmm. Rounded to the nearest
// millisecond so adjacent cue boundaries stay consistent.
func formatSRTTime(seconds float64) string {
	ms := int(math.Round(seconds * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms%3600000/60000, ms%60000/1000, ms%1000)
}
