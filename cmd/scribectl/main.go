// scribectl is a one-shot CLI for transcribing a local audio file without
// running the server. It talks to the same engine endpoints and renders the
// same output formats.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/snarg/scribe-engine/internal/audio"
	"github.com/snarg/scribe-engine/internal/config"
	"github.com/snarg/scribe-engine/internal/engine"
	"github.com/snarg/scribe-engine/internal/task"
	"github.com/snarg/scribe-engine/internal/transcript"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "transcribe":
		if err := runTranscribe(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "models":
		showModels()
	case "version":
		fmt.Println("scribectl", version)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: scribectl <command> [flags]

commands:
  transcribe <file>   transcribe an audio file
  models              list available model sizes and formats
  version             print version

examples:
  scribectl transcribe meeting.mp3
  scribectl transcribe meeting.mp3 -speakers -o result.txt
  scribectl transcribe meeting.mp3 -model small -format json`)
}

func runTranscribe(args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ExitOnError)
	speakers := fs.Bool("speakers", false, "enable speaker diarization")
	model := fs.String("model", "base", "model size (tiny, base, small, medium)")
	language := fs.String("language", "", "language code (e.g. fr, en, es); empty = auto-detect")
	output := fs.String("o", "", "output file path (default: stdout)")
	format := fs.String("format", "txt", "output format (txt, json, srt)")
	envFile := fs.String("env", "", "path to .env file")
	noPreprocess := fs.Bool("no-preprocess", false, "skip ffmpeg resampling")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file")
	}
	input := fs.Arg(0)

	fi, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", input, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", input)
	}
	if !audio.ValidExtension(input) {
		return fmt.Errorf("unsupported file format %q (supported: %s)",
			filepath.Ext(input), strings.Join(audio.SupportedExtensions, ", "))
	}

	outFormat, err := transcript.ParseFormat(*format)
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.Overrides{EnvFile: *envFile})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audioPath := input
	if !*noPreprocess && cfg.Preprocess && engine.CheckFFmpeg() {
		fmt.Fprintln(os.Stderr, "preprocessing audio...")
		processed, cleanup, perr := engine.Preprocess(ctx, input)
		if perr != nil {
			fmt.Fprintln(os.Stderr, "preprocessing failed, using original audio:", perr)
		} else {
			audioPath = processed
			defer cleanup()
		}
	}

	whisper := engine.NewWhisperClient(cfg.WhisperURL, cfg.WhisperTimeout)
	fmt.Fprintf(os.Stderr, "transcribing with model %s...\n", *model)
	start := time.Now()
	resp, err := whisper.Transcribe(ctx, audioPath, engine.TranscribeOpts{
		ModelSize: *model,
		Language:  *language,
	})
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}

	var turns []transcript.Turn
	if *speakers {
		if cfg.DiarizerURL == "" {
			fmt.Fprintln(os.Stderr, "no diarizer configured, using single speaker")
		} else {
			fmt.Fprintln(os.Stderr, "detecting speakers...")
			diarizer := engine.NewPyannoteClient(cfg.DiarizerURL, cfg.DiarizerToken, cfg.DiarizerTimeout)
			diarized, derr := diarizer.Diarize(ctx, audioPath)
			if derr != nil {
				fmt.Fprintln(os.Stderr, "speaker detection unavailable, using single speaker:", derr)
			} else {
				turns = make([]transcript.Turn, len(diarized))
				for i, t := range diarized {
					turns[i] = transcript.Turn{Start: t.Start, End: t.End, Speaker: t.Speaker}
				}
			}
		}
	}

	res := buildResult(input, *model, *language, resp, turns, *speakers && len(turns) > 0)

	out, err := transcript.Render(res, outFormat, transcript.RenderOptions{})
	if err != nil {
		return err
	}

	if *output != "" {
		if err := os.WriteFile(*output, out, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", *output, err)
		}
		fmt.Fprintf(os.Stderr, "result saved to %s\n", *output)
	} else {
		os.Stdout.Write(out)
	}

	fmt.Fprintf(os.Stderr, "done in %s: %d segments, %d speaker(s), language %s\n",
		time.Since(start).Round(time.Second), len(res.Segments), res.NumSpeakers, orUnknown(res.Language))
	return nil
}

func buildResult(input, model, language string, resp *engine.Response, turns []transcript.Turn, diarized bool) *transcript.Result {
	segments := make([]transcript.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{Start: s.Start, End: s.End, Text: text})
	}
	aligned := transcript.Align(segments, turns)

	texts := make([]string, len(aligned))
	for i, s := range aligned {
		texts[i] = s.Text
	}
	duration := resp.Duration
	if duration == 0 && len(aligned) > 0 {
		duration = aligned[len(aligned)-1].End
	}
	lang := resp.Language
	if lang == "" {
		lang = language
	}
	numSpeakers := transcript.CountSpeakers(aligned)
	if numSpeakers == 0 {
		numSpeakers = 1
	}

	return &transcript.Result{
		Segments:           aligned,
		FullText:           strings.Join(texts, " "),
		Duration:           duration,
		NumSpeakers:        numSpeakers,
		Language:           lang,
		ModelSize:          model,
		SourceFile:         filepath.Base(input),
		SourceFormat:       strings.TrimPrefix(strings.ToLower(filepath.Ext(input)), "."),
		DiarizationApplied: diarized,
		CreatedAt:          time.Now().UTC(),
	}
}

func showModels() {
	fmt.Println("Model     Description")
	fmt.Println("─────────────────────────────────────────")
	descriptions := map[string]string{
		"tiny":   "fastest, lowest accuracy",
		"base":   "good balance (default)",
		"small":  "better accuracy, slower",
		"medium": "best accuracy, slowest",
	}
	for _, m := range task.ModelSizes {
		fmt.Printf("%-9s %s\n", m, descriptions[m])
	}
	fmt.Println()
	fmt.Println("Input formats: ", strings.Join(audio.SupportedExtensions, ", "))
	fmt.Println("Output formats: txt, json, srt")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
