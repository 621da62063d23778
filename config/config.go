package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	EngineWhisperCPP = "whispercpp"
	EnginePipeline   = "pipeline"
)

type Config struct {
	// Server settings
	ServerPort      string        `json:"server_port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Debug           bool          `json:"debug"`
	Version         string        `json:"version"`

	Log           LogConfig           `json:"log"`
	Upload        UploadConfig        `json:"upload"`
	Media         MediaConfig         `json:"media"`
	Transcription TranscriptionConfig `json:"transcription"`
	WhisperCPP    WhisperCPPConfig    `json:"whispercpp"`
	Pipeline      PipelineConfig      `json:"pipeline"`
	CORS          CORSConfig          `json:"cors"`
	RateLimit     RateLimitConfig     `json:"rate_limit"`
}

type LogConfig struct {
	Dir    string `json:"dir"`
	Level  string `json:"level"`
	Format string `json:"format"`
}

// UploadConfig bounds /generate uploads. Timeout is the budget for reading
// the request body and replaces the server ReadTimeout on that route.
type UploadConfig struct {
	TempDir string        `json:"temp_dir"`
	MaxSize int64         `json:"max_size"`
	Timeout time.Duration `json:"timeout"`
}

type MediaConfig struct {
	FFmpegPath string `json:"ffmpeg_path"`
}

type TranscriptionConfig struct {
	Engine     string        `json:"engine"`
	Timeout    time.Duration `json:"timeout"`
	Language   string        `json:"language"`
	Timestamps bool          `json:"timestamps"`
}

type WhisperCPPConfig struct {
	Binary    string `json:"binary"`
	ModelPath string `json:"model_path"`
	Threads   int    `json:"threads"`
}

type PipelineConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"-"`
	Model   string `json:"model"`
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
	BurstSize         int  `json:"burst_size"`
}

func defaults() *Config {
	return &Config{
		ServerPort:      "8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    15 * time.Minute,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Version:         "1.0.0",
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Upload: UploadConfig{
			MaxSize: 500 << 20,
			Timeout: 15 * time.Minute,
		},
		Media: MediaConfig{
			FFmpegPath: "ffmpeg",
		},
		Transcription: TranscriptionConfig{
			Engine:  EngineWhisperCPP,
			Timeout: 30 * time.Minute,
		},
		WhisperCPP: WhisperCPPConfig{
			Binary:    "/app/whisper.cpp/main",
			ModelPath: "/app/whisper_model/ggml-tiny.bin",
		},
		Pipeline: PipelineConfig{
			BaseURL: "http://localhost:8000/v1",
			Model:   "whisper-1",
		},
		CORS: CORSConfig{
			Enabled:          true,
			AllowedOrigins:   []string{"http://127.0.0.1:5500"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           86400,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
	}
}

// Load builds the configuration from defaults, then the optional TOML file at
// path, then environment variables. Later sources win.
func Load(path string) (*Config, error) {
	cfg := defaults()
	timestampsSet := false

	if path != "" {
		set, err := loadFile(path, cfg)
		if err != nil {
			return nil, err
		}
		timestampsSet = set
	}

	if applyEnv(cfg) {
		timestampsSet = true
	}

	// Segment output is the natural shape of the pipeline engine.
	if !timestampsSet {
		cfg.Transcription.Timestamps = cfg.Transcription.Engine == EnginePipeline
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides cfg from the environment and reports whether
// TRANSCRIBE_TIMESTAMPS was present.
func applyEnv(cfg *Config) bool {
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.Debug = getEnvAsBool("DEBUG", cfg.Debug)
	cfg.Version = getEnv("VERSION", cfg.Version)

	cfg.Log.Dir = getEnv("LOG_DIR", cfg.Log.Dir)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Upload.TempDir = getEnv("TEMP_DIR", cfg.Upload.TempDir)
	cfg.Upload.MaxSize = getEnvAsInt64("MAX_UPLOAD_SIZE", cfg.Upload.MaxSize)
	cfg.Upload.Timeout = getEnvAsDuration("UPLOAD_TIMEOUT", cfg.Upload.Timeout)

	cfg.Media.FFmpegPath = getEnv("FFMPEG_PATH", cfg.Media.FFmpegPath)

	cfg.Transcription.Engine = strings.ToLower(getEnv("TRANSCRIBE_ENGINE", cfg.Transcription.Engine))
	cfg.Transcription.Timeout = getEnvAsDuration("TRANSCRIBE_TIMEOUT", cfg.Transcription.Timeout)
	cfg.Transcription.Language = getEnv("TRANSCRIBE_LANGUAGE", cfg.Transcription.Language)
	_, timestampsSet := os.LookupEnv("TRANSCRIBE_TIMESTAMPS")
	cfg.Transcription.Timestamps = getEnvAsBool("TRANSCRIBE_TIMESTAMPS", cfg.Transcription.Timestamps)

	cfg.WhisperCPP.Binary = getEnv("WHISPER_BINARY", cfg.WhisperCPP.Binary)
	cfg.WhisperCPP.ModelPath = getEnv("WHISPER_MODEL_PATH", cfg.WhisperCPP.ModelPath)
	cfg.WhisperCPP.Threads = getEnvAsInt("WHISPER_THREADS", cfg.WhisperCPP.Threads)

	cfg.Pipeline.BaseURL = getEnv("PIPELINE_BASE_URL", cfg.Pipeline.BaseURL)
	cfg.Pipeline.APIKey = getEnv("PIPELINE_API_KEY", cfg.Pipeline.APIKey)
	cfg.Pipeline.Model = getEnv("PIPELINE_MODEL", cfg.Pipeline.Model)

	cfg.CORS.Enabled = getEnvAsBool("CORS_ENABLED", cfg.CORS.Enabled)
	cfg.CORS.AllowedOrigins = getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
	cfg.CORS.AllowedMethods = getEnvAsStringSlice("CORS_ALLOWED_METHODS", cfg.CORS.AllowedMethods)
	cfg.CORS.AllowedHeaders = getEnvAsStringSlice("CORS_ALLOWED_HEADERS", cfg.CORS.AllowedHeaders)
	cfg.CORS.ExposedHeaders = getEnvAsStringSlice("CORS_EXPOSED_HEADERS", cfg.CORS.ExposedHeaders)
	cfg.CORS.AllowCredentials = getEnvAsBool("CORS_ALLOW_CREDENTIALS", cfg.CORS.AllowCredentials)
	cfg.CORS.MaxAge = getEnvAsInt("CORS_MAX_AGE", cfg.CORS.MaxAge)

	cfg.RateLimit.Enabled = getEnvAsBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = getEnvAsInt("RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMinute)
	cfg.RateLimit.BurstSize = getEnvAsInt("RATE_LIMIT_BURST", cfg.RateLimit.BurstSize)

	return timestampsSet
}

func (c *Config) Validate() error {
	if err := validateServer(c); err != nil {
		return err
	}

	if err := validatePaths(c); err != nil {
		return err
	}

	if err := validateTranscription(c); err != nil {
		return err
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.BurstSize <= 0) {
		return errors.New("rate limit requests per minute and burst size must be positive")
	}

	return nil
}

func validateServer(c *Config) error {
	if c.ServerPort == "" {
		return errors.New("server port is required")
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be greater than 0")
	}
	if c.Upload.MaxSize <= 0 {
		return errors.New("max upload size must be greater than 0")
	}
	if c.Upload.Timeout <= 0 {
		return errors.New("upload timeout must be greater than 0")
	}
	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.Log.Dir, "log directory"},
		{c.Upload.TempDir, "temp directory"},
	}

	for _, p := range paths {
		if p.path == "" {
			continue
		}
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", p.name)
		}
	}

	return nil
}

func validateTranscription(c *Config) error {
	if c.Media.FFmpegPath == "" {
		return errors.New("ffmpeg path is required")
	}
	if c.Transcription.Timeout <= 0 {
		return errors.New("transcribe timeout must be greater than 0")
	}

	switch c.Transcription.Engine {
	case EngineWhisperCPP:
		if c.WhisperCPP.Binary == "" {
			return errors.New("whisper binary is required")
		}
		if c.WhisperCPP.ModelPath == "" {
			return errors.New("whisper model path is required")
		}
	case EnginePipeline:
		if c.Pipeline.BaseURL == "" {
			return errors.New("pipeline base url is required")
		}
		if c.Pipeline.Model == "" {
			return errors.New("pipeline model is required")
		}
	default:
		return errors.Errorf("unknown transcription engine %q", c.Transcription.Engine)
	}

	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		warnInvalid(key, value, defaultValue, "Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
		warnInvalid(key, value, defaultValue, "Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		warnInvalid(key, value, defaultValue, "Invalid boolean, using default")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		warnInvalid(key, value, defaultValue, "Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	}
	return defaultValue
}

func warnInvalid(key, value string, defaultValue interface{}, msg string) {
	logrus.WithFields(logrus.Fields{
		"key":          key,
		"value":        value,
		"defaultValue": defaultValue,
	}).Warn(msg)
}
