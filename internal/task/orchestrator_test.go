package task

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/engine"
	"github.com/snarg/scribe-engine/internal/transcript"
)

type fakeASR struct {
	mu    sync.Mutex
	resp  *engine.Response
	err   error
	block chan struct{} // if set, Transcribe waits until closed
	calls int
}

func (f *fakeASR) Name() string { return "fake-asr" }

func (f *fakeASR) Transcribe(ctx context.Context, audioPath string, opts engine.TranscribeOpts) (*engine.Response, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeDiarizer struct {
	turns []engine.DiarizedTurn
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeDiarizer) Name() string { return "fake-diarizer" }

func (f *fakeDiarizer) Diarize(ctx context.Context, audioPath string) ([]engine.DiarizedTurn, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.turns, nil
}

func helloWorldResponse() *engine.Response {
	return &engine.Response{
		Text:     "hello world",
		Language: "en",
		Duration: 4.0,
		Segments: []engine.ResponseSegment{
			{Start: 0.0, End: 2.0, Text: " hello"},
			{Start: 2.0, End: 4.0, Text: " world"},
		},
	}
}

func sourceFile(t *testing.T) Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	if err := os.WriteFile(path, []byte("RIFF-fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Source{Path: path, Filename: "meeting.wav"}
}

func newTestOrchestrator(t *testing.T, asr engine.Provider, d engine.Diarizer) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(OrchestratorOptions{
		ASR:       asr,
		Diarizer:  d,
		Workers:   2,
		QueueSize: 8,
		Log:       zerolog.Nop(),
	})
	o.Start()
	t.Cleanup(o.Stop)
	return o
}

// waitTerminal polls until the task reaches a terminal state, checking that
// progress never decreases along the way.
func waitTerminal(t *testing.T, o *Orchestrator, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	last := -1.0
	for time.Now().Before(deadline) {
		snap, err := o.Status(id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if snap.Progress < last {
			t.Fatalf("progress went backward: %f -> %f", last, snap.Progress)
		}
		last = snap.Progress
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal state")
	return Snapshot{}
}

func TestOrchestrator_CompletesWithSpeakers(t *testing.T) {
	asr := &fakeASR{resp: helloWorldResponse()}
	diar := &fakeDiarizer{turns: []engine.DiarizedTurn{
		{Start: 0.0, End: 1.5, Speaker: "Speaker 1"},
		{Start: 1.5, End: 4.0, Speaker: "Speaker 2"},
	}}
	o := newTestOrchestrator(t, asr, diar)

	id, err := o.Submit(sourceFile(t), Options{DetectSpeakers: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitTerminal(t, o, id)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", snap.Status, snap.Message)
	}
	if snap.Progress != 1.0 {
		t.Errorf("progress = %f, want 1.0", snap.Progress)
	}

	res, err := o.Result(id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(res.Segments))
	}
	// First segment overlaps Speaker 1 by 1.5s vs Speaker 2 by 0.5s.
	if res.Segments[0].Speaker != "Speaker 1" || res.Segments[1].Speaker != "Speaker 2" {
		t.Errorf("speakers = %q, %q", res.Segments[0].Speaker, res.Segments[1].Speaker)
	}
	if res.NumSpeakers != 2 {
		t.Errorf("num_speakers = %d, want 2", res.NumSpeakers)
	}
	if res.FullText != "hello world" {
		t.Errorf("full_text = %q", res.FullText)
	}
	if res.Language != "en" {
		t.Errorf("language = %q", res.Language)
	}
	if !res.DiarizationApplied {
		t.Error("diarization should be marked applied")
	}
	if res.ModelSize != DefaultModelSize {
		t.Errorf("model_size = %q, want default", res.ModelSize)
	}
}

func TestOrchestrator_DiarizationUnavailableDegrades(t *testing.T) {
	asr := &fakeASR{resp: helloWorldResponse()}
	diar := &fakeDiarizer{err: engine.ErrUnavailable}
	o := newTestOrchestrator(t, asr, diar)

	id, err := o.Submit(sourceFile(t), Options{DetectSpeakers: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitTerminal(t, o, id)
	if snap.Status != StatusCompleted {
		t.Fatalf("diarization absence must not fail the task: status = %s", snap.Status)
	}

	res, err := o.Result(id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	for i, s := range res.Segments {
		if s.Speaker != transcript.FallbackSpeaker {
			t.Errorf("segment %d: speaker = %q, want fallback", i, s.Speaker)
		}
	}
	if res.NumSpeakers != 1 {
		t.Errorf("num_speakers = %d, want 1", res.NumSpeakers)
	}
	if res.DiarizationApplied {
		t.Error("degraded task must not report diarization applied")
	}
}

func TestOrchestrator_AsrFailureIsFatal(t *testing.T) {
	asr := &fakeASR{err: errors.New("model load failed")}
	diar := &fakeDiarizer{}
	o := newTestOrchestrator(t, asr, diar)

	id, err := o.Submit(sourceFile(t), Options{DetectSpeakers: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitTerminal(t, o, id)
	if snap.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if snap.ErrCode != CodeAsrEngineError {
		t.Errorf("err code = %s, want %s", snap.ErrCode, CodeAsrEngineError)
	}

	// No partial result, ever.
	if _, err := o.Result(id); err == nil {
		t.Fatal("Result should surface the stored failure")
	} else {
		var te *Error
		if !errors.As(err, &te) || te.Code != CodeAsrEngineError {
			t.Errorf("Result error = %v, want asr_engine_error", err)
		}
	}

	// Diarization must never run after a fatal ASR error.
	diar.mu.Lock()
	calls := diar.calls
	diar.mu.Unlock()
	if calls != 0 {
		t.Errorf("diarizer calls = %d, want 0", calls)
	}
}

func TestOrchestrator_SkipsDiarizationWhenNotRequested(t *testing.T) {
	asr := &fakeASR{resp: helloWorldResponse()}
	diar := &fakeDiarizer{turns: []engine.DiarizedTurn{{Start: 0, End: 4, Speaker: "Speaker 2"}}}
	o := newTestOrchestrator(t, asr, diar)

	id, _ := o.Submit(sourceFile(t), Options{DetectSpeakers: false})
	snap := waitTerminal(t, o, id)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s", snap.Status)
	}

	diar.mu.Lock()
	calls := diar.calls
	diar.mu.Unlock()
	if calls != 0 {
		t.Errorf("diarizer calls = %d, want 0", calls)
	}

	res, _ := o.Result(id)
	if res.Segments[0].Speaker != transcript.FallbackSpeaker {
		t.Errorf("speaker = %q, want fallback", res.Segments[0].Speaker)
	}
}

func TestOrchestrator_SubmitValidation(t *testing.T) {
	o := newTestOrchestrator(t, &fakeASR{resp: helloWorldResponse()}, &fakeDiarizer{})

	t.Run("missing_source", func(t *testing.T) {
		_, err := o.Submit(Source{}, Options{})
		assertCode(t, err, CodeInvalidInput)
	})

	t.Run("nonexistent_file", func(t *testing.T) {
		_, err := o.Submit(Source{Path: "/does/not/exist.wav"}, Options{})
		assertCode(t, err, CodeInvalidInput)
	})

	t.Run("bad_model_size", func(t *testing.T) {
		_, err := o.Submit(sourceFile(t), Options{ModelSize: "enormous"})
		assertCode(t, err, CodeInvalidInput)
	})

	t.Run("bad_output_format", func(t *testing.T) {
		_, err := o.Submit(sourceFile(t), Options{OutputFormat: "docx"})
		assertCode(t, err, CodeInvalidInput)
	})
}

func assertCode(t *testing.T, err error, want Code) {
	t.Helper()
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want coded error", err)
	}
	if te.Code != want {
		t.Errorf("code = %s, want %s", te.Code, want)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	blocked := make(chan struct{})
	asr := &fakeASR{resp: helloWorldResponse(), block: blocked}
	o := NewOrchestrator(OrchestratorOptions{
		ASR:       asr,
		Diarizer:  &fakeDiarizer{},
		Workers:   1,
		QueueSize: 1,
		Log:       zerolog.Nop(),
	})
	o.Start()
	defer func() {
		close(blocked)
		o.Stop()
	}()

	// First submission occupies the worker, second fills the queue.
	if _, err := o.Submit(sourceFile(t), Options{}); err != nil {
		t.Fatalf("Submit 1: %v", err)
	}
	// Give the worker a moment to pick up the first job.
	time.Sleep(20 * time.Millisecond)
	if _, err := o.Submit(sourceFile(t), Options{}); err != nil {
		t.Fatalf("Submit 2: %v", err)
	}

	_, err := o.Submit(sourceFile(t), Options{})
	assertCode(t, err, CodeQueueFull)
}

func TestOrchestrator_CancelWhileQueued(t *testing.T) {
	blocked := make(chan struct{})
	asr := &fakeASR{resp: helloWorldResponse(), block: blocked}
	o := NewOrchestrator(OrchestratorOptions{
		ASR:       asr,
		Diarizer:  &fakeDiarizer{},
		Workers:   1,
		QueueSize: 4,
		Log:       zerolog.Nop(),
	})
	o.Start()
	defer o.Stop()

	first, _ := o.Submit(sourceFile(t), Options{})
	time.Sleep(20 * time.Millisecond)
	queued, _ := o.Submit(sourceFile(t), Options{})

	if err := o.Cancel(queued); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	snap, _ := o.Status(queued)
	if snap.Status != StatusFailed || snap.ErrCode != CodeCancelled {
		t.Errorf("cancelled task: %+v", snap)
	}

	close(blocked)

	// The cancelled task stays failed even after its queue slot drains.
	waitTerminal(t, o, first)
	snap, _ = o.Status(queued)
	if snap.Status != StatusFailed || snap.ErrCode != CodeCancelled {
		t.Errorf("cancelled task mutated after drain: %+v", snap)
	}
	if _, err := o.Result(queued); err == nil {
		t.Error("cancelled task must not yield a result")
	}
}

func TestOrchestrator_CancelTerminalIsNoop(t *testing.T) {
	o := newTestOrchestrator(t, &fakeASR{resp: helloWorldResponse()}, &fakeDiarizer{})
	id, _ := o.Submit(sourceFile(t), Options{})
	waitTerminal(t, o, id)

	if err := o.Cancel(id); err != nil {
		t.Fatalf("Cancel on terminal task: %v", err)
	}
	snap, _ := o.Status(id)
	if snap.Status != StatusCompleted {
		t.Errorf("status = %s, completed task must stay completed", snap.Status)
	}
}

func TestOrchestrator_TerminalStateIsStable(t *testing.T) {
	o := newTestOrchestrator(t, &fakeASR{resp: helloWorldResponse()}, &fakeDiarizer{})
	id, _ := o.Submit(sourceFile(t), Options{})
	first := waitTerminal(t, o, id)

	for i := 0; i < 10; i++ {
		snap, err := o.Status(id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if snap.Status != first.Status || snap.Progress != first.Progress {
			t.Fatalf("terminal snapshot changed: %+v vs %+v", snap, first)
		}
		res1, _ := o.Result(id)
		res2, _ := o.Result(id)
		if res1 != res2 {
			t.Fatal("Result returned different values for a terminal task")
		}
	}
}

func TestOrchestrator_StatusNotFound(t *testing.T) {
	o := newTestOrchestrator(t, &fakeASR{}, &fakeDiarizer{})
	if _, err := o.Status("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status err = %v, want ErrNotFound", err)
	}
	if _, err := o.Result("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Result err = %v, want ErrNotFound", err)
	}
	if err := o.Cancel("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel err = %v, want ErrNotFound", err)
	}
}

func TestOrchestrator_ResultNotReady(t *testing.T) {
	blocked := make(chan struct{})
	o := NewOrchestrator(OrchestratorOptions{
		ASR:      &fakeASR{resp: helloWorldResponse(), block: blocked},
		Diarizer: &fakeDiarizer{},
		Workers:  1, QueueSize: 4,
		Log: zerolog.Nop(),
	})
	o.Start()
	defer func() {
		close(blocked)
		o.Stop()
	}()

	id, _ := o.Submit(sourceFile(t), Options{})
	if _, err := o.Result(id); !errors.Is(err, ErrNotReady) {
		t.Errorf("Result err = %v, want ErrNotReady", err)
	}
}

func TestOrchestrator_Export(t *testing.T) {
	o := newTestOrchestrator(t, &fakeASR{resp: helloWorldResponse()}, &fakeDiarizer{
		turns: []engine.DiarizedTurn{{Start: 0, End: 4, Speaker: "Speaker 1"}},
	})
	id, _ := o.Submit(sourceFile(t), Options{DetectSpeakers: true})
	waitTerminal(t, o, id)

	out, err := o.Export(id, transcript.FormatTXT, transcript.RenderOptions{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(string(out), "[00:00:00] Speaker 1: hello") {
		t.Errorf("txt export:\n%s", out)
	}

	_, err = o.Export(id, transcript.Format("docx"), transcript.RenderOptions{})
	assertCode(t, err, CodeUnsupportedFormat)
}

func TestOrchestrator_RemovesSourceFile(t *testing.T) {
	o := newTestOrchestrator(t, &fakeASR{resp: helloWorldResponse()}, &fakeDiarizer{})
	src := sourceFile(t)
	id, _ := o.Submit(src, Options{})
	waitTerminal(t, o, id)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(src.Path); os.IsNotExist(err) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("uploaded source file was not cleaned up")
}

func TestOrchestrator_EmptySegmentsDropped(t *testing.T) {
	asr := &fakeASR{resp: &engine.Response{
		Text:     "only real text",
		Language: "en",
		Segments: []engine.ResponseSegment{
			{Start: 0, End: 1, Text: "   "},
			{Start: 1, End: 2, Text: " only real text "},
		},
	}}
	o := newTestOrchestrator(t, asr, &fakeDiarizer{})

	id, _ := o.Submit(sourceFile(t), Options{})
	waitTerminal(t, o, id)

	res, err := o.Result(id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(res.Segments) != 1 {
		t.Fatalf("segments = %d, want 1 (blank segment dropped)", len(res.Segments))
	}
	if res.Segments[0].Text != "only real text" {
		t.Errorf("text = %q, want trimmed", res.Segments[0].Text)
	}
}
