// Package storage spills uploaded audio to local disk until the pipeline
// picks it up. Files are written atomically and owned by the task that
// references them; anything left behind is reclaimed by the pruner.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadStore stages uploaded audio files in a local directory.
type UploadStore struct {
	dir      string
	maxBytes int64
}

// NewUploadStore creates the upload directory if needed. maxBytes of 0
// disables the size limit.
func NewUploadStore(dir string, maxBytes int64) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &UploadStore{dir: dir, maxBytes: maxBytes}, nil
}

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = fmt.Errorf("upload exceeds size limit")

// Save streams an upload to disk and returns the stored path. The write is
// atomic: temp file + rename, so a crash never leaves a partial file under
// the final name.
func (s *UploadStore) Save(r io.Reader, filename string) (string, error) {
	name := uuid.New().String()
	if ext := sanitizeExt(filename); ext != "" {
		name += ext
	}
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	src := r
	if s.maxBytes > 0 {
		// Read one byte past the limit to distinguish "exactly at" from "over".
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		tmp.Close()
		os.Remove(tmpPath)
		return "", ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename: %w", err)
	}
	return path, nil
}

// Dir returns the upload directory path.
func (s *UploadStore) Dir() string { return s.dir }

// sanitizeExt extracts a safe lowercase extension from a client-supplied
// filename. Anything that isn't a short alphanumeric extension is dropped.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
