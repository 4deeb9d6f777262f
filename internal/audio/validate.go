// Package audio validates uploaded files before they enter the pipeline.
package audio

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the audio formats accepted for upload.
var SupportedExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".webm"}

// ValidExtension reports whether the filename carries a supported audio
// extension.
func ValidExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Validate checks a client upload: the extension must be supported, and the
// leading bytes must not identify the content as something that is clearly
// not audio. Unrecognized headers are trusted — plenty of valid audio starts
// with codec framing we don't enumerate.
func Validate(filename string, header []byte) error {
	if !ValidExtension(filename) {
		return fmt.Errorf("unsupported file format %q (supported: %s)",
			filepath.Ext(filename), strings.Join(SupportedExtensions, ", "))
	}
	if kind := detectNonAudio(header); kind != "" {
		return fmt.Errorf("file content looks like %s, not audio", kind)
	}
	return nil
}

// DetectFormat identifies well-known audio containers from leading bytes.
// Returns "" when the header is not recognized.
func DetectFormat(header []byte) string {
	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(header, []byte("ID3")):
		return "mp3"
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return "mp3"
	case bytes.HasPrefix(header, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(header, []byte("OggS")):
		return "ogg"
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")):
		return "m4a"
	case bytes.HasPrefix(header, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "webm"
	}
	return ""
}

// detectNonAudio recognizes a handful of unambiguous non-audio signatures.
func detectNonAudio(header []byte) string {
	switch {
	case bytes.HasPrefix(header, []byte("%PDF")):
		return "a PDF document"
	case bytes.HasPrefix(header, []byte{0x89, 'P', 'N', 'G'}):
		return "a PNG image"
	case bytes.HasPrefix(header, []byte{0xFF, 0xD8, 0xFF}):
		return "a JPEG image"
	case bytes.HasPrefix(header, []byte("GIF8")):
		return "a GIF image"
	case bytes.HasPrefix(header, []byte("PK\x03\x04")):
		return "a ZIP archive"
	case bytes.HasPrefix(header, []byte{0x7F, 'E', 'L', 'F'}):
		return "an executable"
	case bytes.HasPrefix(header, []byte("<!DO")) || bytes.HasPrefix(header, []byte("<htm")):
		return "an HTML document"
	}
	return ""
}
