package engine

import (
	"context"
	"sync"
)

// SerialProvider serializes calls to a Provider whose backing model instance
// cannot run two inferences concurrently. Distinct from the task-level worker
// pool: other stages and other engines still run in parallel.
type SerialProvider struct {
	mu sync.Mutex
	p  Provider
}

// NewSerialProvider wraps p so only one Transcribe runs at a time.
func NewSerialProvider(p Provider) *SerialProvider {
	return &SerialProvider{p: p}
}

func (sp *SerialProvider) Name() string { return sp.p.Name() }

func (sp *SerialProvider) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.p.Transcribe(ctx, audioPath, opts)
}

// SerialDiarizer is the same wrapper for a Diarizer.
type SerialDiarizer struct {
	mu sync.Mutex
	d  Diarizer
}

// NewSerialDiarizer wraps d so only one Diarize runs at a time.
func NewSerialDiarizer(d Diarizer) *SerialDiarizer {
	return &SerialDiarizer{d: d}
}

func (sd *SerialDiarizer) Name() string { return sd.d.Name() }

func (sd *SerialDiarizer) Diarize(ctx context.Context, audioPath string) ([]DiarizedTurn, error) {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.d.Diarize(ctx, audioPath)
}
