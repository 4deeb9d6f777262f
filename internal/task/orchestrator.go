package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/engine"
	"github.com/snarg/scribe-engine/internal/metrics"
	"github.com/snarg/scribe-engine/internal/transcript"
)

// OrchestratorOptions configures the task orchestrator.
type OrchestratorOptions struct {
	ASR             engine.Provider
	Diarizer        engine.Diarizer
	Workers         int           // concurrent pipelines; the single knob bounding engine load
	QueueSize       int           // pending submissions beyond the workers
	PreprocessAudio bool          // ffmpeg resample before engine calls
	TaskRetention   time.Duration // terminal tasks older than this are expired; 0 disables
	Log             zerolog.Logger
}

type job struct {
	id     string
	source Source
	opts   Options
}

// Orchestrator owns the full task lifecycle: it accepts submissions, runs the
// pipeline on a bounded worker pool, and answers status/result/export/cancel
// lookups against the registry.
type Orchestrator struct {
	reg      *Registry
	asr      engine.Provider
	diarizer engine.Diarizer
	opts     OrchestratorOptions
	jobs     chan job
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
	stop      chan struct{}
	stopOnce  sync.Once
}

// QueueStats reports the current state of the task queue for health reporting.
type QueueStats struct {
	Pending    int   `json:"pending"`
	Processing int   `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Workers    int   `json:"workers"`
}

// NewOrchestrator creates a task orchestrator. Call Start to launch workers.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		reg:      NewRegistry(),
		asr:      opts.ASR,
		diarizer: opts.Diarizer,
		opts:     opts,
		jobs:     make(chan job, opts.QueueSize),
		log:      opts.Log,
		ctx:      ctx,
		cancel:   cancel,
		stop:     make(chan struct{}),
	}
}

// Start launches the worker goroutines and the retention loop.
func (o *Orchestrator) Start() {
	if o.opts.PreprocessAudio {
		if engine.CheckFFmpeg() {
			o.log.Info().Msg("audio preprocessing enabled (ffmpeg found)")
		} else {
			o.log.Warn().Msg("preprocessing requested but ffmpeg not found in PATH; sending audio as-is")
		}
	}

	for i := 0; i < o.opts.Workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}
	if o.opts.TaskRetention > 0 {
		go o.retentionLoop()
	}
	o.log.Info().Int("workers", o.opts.Workers).Int("queue_size", o.opts.QueueSize).Msg("task orchestrator started")
}

// Stop drains the queue and waits for in-flight pipelines to finish.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
	close(o.jobs)
	o.wg.Wait()
	o.cancel()
	o.log.Info().
		Int64("completed", o.completed.Load()).
		Int64("failed", o.failed.Load()).
		Msg("task orchestrator stopped")
}

// Submit validates the submission, allocates a Pending task, and enqueues the
// pipeline work. Returns immediately with the task id. The source must be a
// readable local audio file; the orchestrator owns it from here and removes
// it once the pipeline finishes.
func (o *Orchestrator) Submit(source Source, opts Options) (string, error) {
	if source.Path == "" {
		return "", Errorf(CodeInvalidInput, "no audio source")
	}
	if fi, err := os.Stat(source.Path); err != nil || fi.IsDir() {
		return "", Errorf(CodeInvalidInput, "audio source not readable: %s", source.Path)
	}
	if opts.ModelSize == "" {
		opts.ModelSize = DefaultModelSize
	}
	if !validModelSize(opts.ModelSize) {
		return "", Errorf(CodeInvalidInput, "unknown model size %q", opts.ModelSize)
	}
	if opts.OutputFormat != "" {
		if _, err := transcript.ParseFormat(string(opts.OutputFormat)); err != nil {
			return "", Errorf(CodeInvalidInput, "unknown output format %q", opts.OutputFormat)
		}
	}

	id := uuid.New().String()
	o.reg.create(id, time.Now())

	select {
	case o.jobs <- job{id: id, source: source, opts: opts}:
	default:
		o.reg.Remove(id)
		return "", ErrQueueFull
	}

	metrics.TasksSubmittedTotal.Inc()
	metrics.QueueDepth.Set(float64(len(o.jobs)))
	o.log.Info().Str("task_id", id).Str("file", source.Filename).
		Str("model", opts.ModelSize).Bool("speakers", opts.DetectSpeakers).
		Msg("task submitted")
	return id, nil
}

// Status returns a consistent snapshot of the task. Never blocks on the
// pipeline.
func (o *Orchestrator) Status(id string) (Snapshot, error) {
	snap, ok := o.reg.Snapshot(id)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// Result returns the stored result of a completed task. Failed tasks surface
// their stored error; live tasks return ErrNotReady.
func (o *Orchestrator) Result(id string) (*transcript.Result, error) {
	snap, ok := o.reg.Snapshot(id)
	if !ok {
		return nil, ErrNotFound
	}
	switch snap.Status {
	case StatusFailed:
		return nil, &Error{Code: snap.ErrCode, Detail: snap.ErrDetail}
	case StatusCompleted:
		res, _ := o.reg.Result(id)
		return res, nil
	}
	return nil, ErrNotReady
}

// Export renders the stored result in the requested format. Same readiness
// failure modes as Result.
func (o *Orchestrator) Export(id string, format transcript.Format, opts transcript.RenderOptions) ([]byte, error) {
	res, err := o.Result(id)
	if err != nil {
		return nil, err
	}
	b, err := transcript.Render(res, format, opts)
	if errors.Is(err, transcript.ErrUnsupportedFormat) {
		return nil, Errorf(CodeUnsupportedFormat, "%v", err)
	}
	return b, err
}

// Cancel marks a live task Failed with the cancelled code. The pipeline stops
// honoring the task at its next registry write; an in-flight engine call runs
// to completion in the background and its output is discarded. Cancelling a
// terminal task is a no-op.
func (o *Orchestrator) Cancel(id string) error {
	if _, ok := o.reg.Snapshot(id); !ok {
		return ErrNotFound
	}
	if o.reg.fail(id, CodeCancelled, "cancelled by request") {
		o.failed.Add(1)
		metrics.TasksFinishedTotal.WithLabelValues(string(CodeCancelled)).Inc()
		o.log.Info().Str("task_id", id).Msg("task cancelled")
	}
	return nil
}

// Delete cancels the task if live and removes it from the registry.
func (o *Orchestrator) Delete(id string) error {
	if err := o.Cancel(id); err != nil {
		return err
	}
	o.reg.Remove(id)
	return nil
}

// Stats returns queue statistics for health reporting.
func (o *Orchestrator) Stats() QueueStats {
	pending, processing, _, _ := o.reg.Counts()
	return QueueStats{
		Pending:    pending,
		Processing: processing,
		Completed:  o.completed.Load(),
		Failed:     o.failed.Load(),
		Workers:    o.opts.Workers,
	}
}

// TaskCount returns the number of tracked tasks.
func (o *Orchestrator) TaskCount() int { return o.reg.Len() }

func (o *Orchestrator) worker(id int) {
	defer o.wg.Done()
	log := o.log.With().Int("worker", id).Logger()

	for j := range o.jobs {
		metrics.QueueDepth.Set(float64(len(o.jobs)))
		o.process(log, j)
	}
}

// process runs the full pipeline for one task. Every exit path resolves the
// task to a terminal state or observes that another party already did.
func (o *Orchestrator) process(log zerolog.Logger, j job) {
	log = log.With().Str("task_id", j.id).Logger()
	defer os.Remove(j.source.Path)

	defer func() {
		if rv := recover(); rv != nil {
			log.Error().Interface("panic", rv).Msg("pipeline panicked")
			o.finishFailed(j.id, CodeInternalError, fmt.Sprintf("panic: %v", rv))
		}
	}()

	if !o.reg.startProcessing(j.id) {
		log.Debug().Msg("task no longer pending, skipping")
		return
	}

	// Stage 1: decode/normalize audio.
	stageStart := time.Now()
	audioPath := j.source.Path
	if o.opts.PreprocessAudio {
		processed, cleanup, err := engine.Preprocess(o.ctx, j.source.Path)
		if err != nil {
			log.Warn().Err(err).Msg("preprocessing failed, using original audio")
		} else {
			audioPath = processed
			defer cleanup()
		}
	}
	metrics.TaskStageDuration.WithLabelValues("decode").Observe(time.Since(stageStart).Seconds())
	if !o.reg.setProgress(j.id, 0.10, "loading audio") {
		log.Info().Msg("task cancelled before transcription")
		return
	}

	// Stage 2: ASR. A failure here is fatal — no usable transcript exists.
	stageStart = time.Now()
	resp, err := o.asr.Transcribe(o.ctx, audioPath, engine.TranscribeOpts{
		ModelSize: j.opts.ModelSize,
		Language:  j.opts.Language,
	})
	metrics.TaskStageDuration.WithLabelValues("asr").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		log.Warn().Err(err).Msg("asr engine failed")
		o.finishFailed(j.id, CodeAsrEngineError, err.Error())
		return
	}
	if !o.reg.setProgress(j.id, 0.60, "transcribing") {
		log.Info().Msg("task cancelled during transcription, discarding transcript")
		return
	}

	// Stage 3: diarization. Absence is a degraded mode, never a failure.
	var turns []transcript.Turn
	degraded := false
	if j.opts.DetectSpeakers {
		stageStart = time.Now()
		diarized, derr := o.diarizer.Diarize(o.ctx, audioPath)
		metrics.TaskStageDuration.WithLabelValues("diarization").Observe(time.Since(stageStart).Seconds())
		if derr != nil {
			if errors.Is(derr, engine.ErrUnavailable) {
				log.Warn().Err(derr).Msg("diarization unavailable, continuing with single speaker")
			} else {
				log.Error().Err(derr).Msg("diarization failed, continuing with single speaker")
			}
			degraded = true
			metrics.DiarizationFallbacksTotal.Inc()
		} else {
			turns = make([]transcript.Turn, len(diarized))
			for i, t := range diarized {
				turns[i] = transcript.Turn{Start: t.Start, End: t.End, Speaker: t.Speaker}
			}
		}
		msg := "detecting speakers"
		if degraded {
			msg = "speaker detection unavailable, using single speaker"
		}
		if !o.reg.setProgress(j.id, 0.85, msg) {
			log.Info().Msg("task cancelled during diarization, discarding turns")
			return
		}
	}

	// Stage 4: alignment.
	segments := toSegments(resp.Segments)
	aligned := transcript.Align(segments, turns)
	if !o.reg.setProgress(j.id, 0.95, "aligning speakers") {
		return
	}

	// Stage 5: assemble and store.
	res := o.assembleResult(j, resp, aligned, degraded)
	if !o.reg.complete(j.id, res) {
		log.Info().Msg("task reached terminal state elsewhere, result discarded")
		return
	}
	o.completed.Add(1)
	metrics.TasksFinishedTotal.WithLabelValues(string(StatusCompleted)).Inc()
	log.Info().
		Int("segments", len(res.Segments)).
		Int("speakers", res.NumSpeakers).
		Str("language", res.Language).
		Float64("duration", res.Duration).
		Msg("transcription complete")
}

func (o *Orchestrator) finishFailed(id string, code Code, detail string) {
	if o.reg.fail(id, code, detail) {
		o.failed.Add(1)
		metrics.TasksFinishedTotal.WithLabelValues(string(code)).Inc()
	}
}

// toSegments converts engine segments, trimming text and dropping segments
// that are empty after trimming.
func toSegments(in []engine.ResponseSegment) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(in))
	for _, s := range in {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out = append(out, transcript.Segment{Start: s.Start, End: s.End, Text: text})
	}
	return out
}

func (o *Orchestrator) assembleResult(j job, resp *engine.Response, aligned []transcript.SpeakerSegment, degraded bool) *transcript.Result {
	texts := make([]string, len(aligned))
	for i, s := range aligned {
		texts[i] = s.Text
	}

	duration := resp.Duration
	if duration == 0 && len(aligned) > 0 {
		duration = aligned[len(aligned)-1].End
	}

	language := resp.Language
	if language == "" {
		language = j.opts.Language
	}

	numSpeakers := transcript.CountSpeakers(aligned)
	if numSpeakers == 0 {
		numSpeakers = 1
	}

	return &transcript.Result{
		TaskID:             j.id,
		Segments:           aligned,
		FullText:           strings.Join(texts, " "),
		Duration:           duration,
		NumSpeakers:        numSpeakers,
		Language:           language,
		ModelSize:          j.opts.ModelSize,
		SourceFile:         j.source.Filename,
		SourceFormat:       strings.TrimPrefix(strings.ToLower(filepath.Ext(j.source.Filename)), "."),
		DiarizationApplied: j.opts.DetectSpeakers && !degraded,
		CreatedAt:          time.Now().UTC(),
	}
}

func (o *Orchestrator) retentionLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-o.opts.TaskRetention)
			if n := o.reg.ExpireBefore(cutoff); n > 0 {
				o.log.Info().Int("expired", n).Msg("expired old tasks")
			}
		case <-o.stop:
			return
		}
	}
}
