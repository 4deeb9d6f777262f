package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/api"
	"github.com/snarg/scribe-engine/internal/config"
	"github.com/snarg/scribe-engine/internal/engine"
	"github.com/snarg/scribe-engine/internal/storage"
	"github.com/snarg/scribe-engine/internal/task"
)

var version = "dev"

func main() {
	startTime := time.Now()

	envFile := flag.String("env", "", "path to .env file")
	addr := flag.String("addr", "", "http listen address (overrides HTTP_ADDR)")
	logLevel := flag.String("log-level", "", "log level (overrides LOG_LEVEL)")
	whisperURL := flag.String("whisper-url", "", "whisper endpoint (overrides WHISPER_URL)")
	uploadDir := flag.String("upload-dir", "", "upload directory (overrides UPLOAD_DIR)")
	workers := flag.Int("workers", 0, "pipeline workers (overrides WORKERS)")
	flag.Parse()

	// Config
	cfg, err := config.Load(config.Overrides{
		EnvFile:    *envFile,
		HTTPAddr:   *addr,
		LogLevel:   *logLevel,
		WhisperURL: *whisperURL,
		UploadDir:  *uploadDir,
		Workers:    *workers,
	})
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("scribe-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Upload storage
	store, err := storage.NewUploadStore(cfg.UploadDir, cfg.MaxUploadBytes())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create upload store")
	}
	pruner := storage.NewPruner(store.Dir(), cfg.TaskRetention, log)
	pruner.Start()
	defer pruner.Stop()

	// Engines
	var asr engine.Provider = engine.NewWhisperClient(cfg.WhisperURL, cfg.WhisperTimeout)
	if cfg.WhisperSerial {
		asr = engine.NewSerialProvider(asr)
	}
	var diarizer engine.Diarizer = engine.NoopDiarizer{}
	if cfg.DiarizerURL != "" {
		diarizer = engine.NewPyannoteClient(cfg.DiarizerURL, cfg.DiarizerToken, cfg.DiarizerTimeout)
		if cfg.DiarizerSerial {
			diarizer = engine.NewSerialDiarizer(diarizer)
		}
	} else {
		log.Warn().Msg("no diarizer configured, speaker detection will degrade to a single speaker")
	}

	// Orchestrator
	orch := task.NewOrchestrator(task.OrchestratorOptions{
		ASR:             asr,
		Diarizer:        diarizer,
		Workers:         cfg.Workers,
		QueueSize:       cfg.QueueSize,
		PreprocessAudio: cfg.Preprocess,
		TaskRetention:   cfg.TaskRetention,
		Log:             log.With().Str("component", "orchestrator").Logger(),
	})
	orch.Start()
	defer orch.Stop()

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, orch, store, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("scribe-engine stopped")
}
