package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Model snapshot
	ModelID  string `env:"MODEL_ID" envDefault:"hynt/Zipformer-30M-RNNT-6000h"`
	ModelDir string `env:"MODEL_DIR" envDefault:"/models/Zipformer-30M-RNNT-6000h"`
	HFToken  string `env:"HF_TOKEN"`

	// Recognition engine
	EngineCmd   string `env:"ENGINE_CMD" envDefault:"sherpa-onnx-offline"`
	FFmpegBin   string `env:"FFMPEG_BIN" envDefault:"ffmpeg"`
	NumThreads  int    `env:"NUM_THREADS"`
	StderrLimit int    `env:"STDERR_LIMIT" envDefault:"2000"`

	// Job output
	OutDir      string `env:"OUT_DIR" envDefault:"./jobs"`
	Placeholder string `env:"EMPTY_TEXT_PLACEHOLDER" envDefault:"(no speech detected)"`

	// Job history
	DBPath string `env:"DB_PATH" envDefault:"./jobs/history.db"`

	// Worker pool (serves the async intakes)
	Workers   int `env:"WORKERS" envDefault:"1"`
	QueueSize int `env:"QUEUE_SIZE" envDefault:"64"`

	// Directory watcher intake (disabled when empty)
	WatchDir string `env:"WATCH_DIR"`

	// MQTT intake (disabled when broker URL is empty)
	MQTTBrokerURL    string `env:"MQTT_BROKER_URL"`
	MQTTClientID     string `env:"MQTT_CLIENT_ID" envDefault:"sherpa-serve"`
	MQTTJobsTopic    string `env:"MQTT_JOBS_TOPIC" envDefault:"asr/jobs"`
	MQTTResultsTopic string `env:"MQTT_RESULTS_TOPIC" envDefault:"asr/results"`
	MQTTUsername     string `env:"MQTT_USERNAME"`
	MQTTPassword     string `env:"MQTT_PASSWORD"`

	// HTTP. The write timeout is disabled by default: jobs are processed
	// synchronously and decode time scales with audio length.
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	S3 S3Config
}

// S3Config configures the optional artifact mirror.
type S3Config struct {
	Bucket        string        `env:"S3_BUCKET"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether the S3 mirror is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
	ModelDir string
	OutDir   string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.ModelDir != "" {
		cfg.ModelDir = overrides.ModelDir
	}
	if overrides.OutDir != "" {
		cfg.OutDir = overrides.OutDir
	}

	return cfg, nil
}
