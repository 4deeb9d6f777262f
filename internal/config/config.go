package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	WhisperURL     string        `env:"WHISPER_URL,required"`
	WhisperTimeout time.Duration `env:"WHISPER_TIMEOUT" envDefault:"10m"`
	WhisperSerial  bool          `env:"WHISPER_SERIAL" envDefault:"true"`

	DiarizerURL     string        `env:"DIARIZER_URL"`
	DiarizerToken   string        `env:"DIARIZER_TOKEN"`
	DiarizerTimeout time.Duration `env:"DIARIZER_TIMEOUT" envDefault:"10m"`
	DiarizerSerial  bool          `env:"DIARIZER_SERIAL" envDefault:"true"`

	UploadDir     string        `env:"UPLOAD_DIR" envDefault:"./uploads"`
	MaxUploadMB   int           `env:"MAX_UPLOAD_MB" envDefault:"100"`
	Workers       int           `env:"WORKERS" envDefault:"2"`
	QueueSize     int           `env:"QUEUE_SIZE" envDefault:"16"`
	Preprocess    bool          `env:"PREPROCESS_AUDIO" envDefault:"true"`
	TaskRetention time.Duration `env:"TASK_RETENTION" envDefault:"24h"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5m"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"5m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile    string
	HTTPAddr   string
	LogLevel   string
	WhisperURL string
	UploadDir  string
	Workers    int
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.WhisperURL != "" {
		cfg.WhisperURL = overrides.WhisperURL
	}
	if overrides.UploadDir != "" {
		cfg.UploadDir = overrides.UploadDir
	}
	if overrides.Workers > 0 {
		cfg.Workers = overrides.Workers
	}

	return cfg, nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}
