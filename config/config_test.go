package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("expected 8080, got %s", cfg.ServerPort)
	}
	if cfg.Transcription.Engine != EngineWhisperCPP {
		t.Errorf("expected %s, got %s", EngineWhisperCPP, cfg.Transcription.Engine)
	}
	if cfg.Transcription.Timestamps {
		t.Error("expected timestamps to be off for whispercpp by default")
	}
	if cfg.WhisperCPP.ModelPath != "/app/whisper_model/ggml-tiny.bin" {
		t.Errorf("unexpected model path %s", cfg.WhisperCPP.ModelPath)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "http://127.0.0.1:5500" {
		t.Errorf("unexpected CORS origins %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.RateLimit.Enabled {
		t.Error("expected rate limiting to be off by default")
	}
	if cfg.Upload.Timeout != 15*time.Minute {
		t.Errorf("expected 15m upload timeout, got %s", cfg.Upload.Timeout)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("READ_TIMEOUT", "10s")
	t.Setenv("WRITE_TIMEOUT", "20s")
	t.Setenv("IDLE_TIMEOUT", "30s")
	t.Setenv("TRANSCRIBE_TIMEOUT", "5m")
	t.Setenv("MAX_UPLOAD_SIZE", "1024")
	t.Setenv("UPLOAD_TIMEOUT", "45m")
	t.Setenv("RATE_LIMIT_RPM", "10")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("WHISPER_THREADS", "4")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("expected 9090, got %s", cfg.ServerPort)
	}
	if cfg.ReadTimeout != 10*time.Second {
		t.Errorf("expected 10s, got %s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 20*time.Second {
		t.Errorf("expected 20s, got %s", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.IdleTimeout)
	}
	if cfg.Transcription.Timeout != 5*time.Minute {
		t.Errorf("expected 5m, got %s", cfg.Transcription.Timeout)
	}
	if cfg.Upload.MaxSize != 1024 {
		t.Errorf("expected 1024, got %d", cfg.Upload.MaxSize)
	}
	if cfg.Upload.Timeout != 45*time.Minute {
		t.Errorf("expected 45m, got %s", cfg.Upload.Timeout)
	}
	if cfg.RateLimit.RequestsPerMinute != 10 {
		t.Errorf("expected 10, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("unexpected CORS origins %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.WhisperCPP.Threads != 4 {
		t.Errorf("expected 4, got %d", cfg.WhisperCPP.Threads)
	}
}

func TestLoadInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("READ_TIMEOUT", "soon")
	t.Setenv("WHISPER_THREADS", "many")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("expected default 30s, got %s", cfg.ReadTimeout)
	}
	if cfg.WhisperCPP.Threads != 0 {
		t.Errorf("expected default 0, got %d", cfg.WhisperCPP.Threads)
	}
}

func TestPipelineEngineDefaultsToTimestamps(t *testing.T) {
	t.Setenv("TRANSCRIBE_ENGINE", "Pipeline")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Transcription.Engine != EnginePipeline {
		t.Errorf("expected %s, got %s", EnginePipeline, cfg.Transcription.Engine)
	}
	if !cfg.Transcription.Timestamps {
		t.Error("expected timestamps on for the pipeline engine")
	}

	t.Setenv("TRANSCRIBE_TIMESTAMPS", "false")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Transcription.Timestamps {
		t.Error("expected explicit TRANSCRIBE_TIMESTAMPS=false to win")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "captioner.toml")
	content := `
debug = true

[server]
port = "7070"
write_timeout = "45m"

[upload]
timeout = "2h"

[transcription]
engine = "pipeline"
language = "en"
timestamps = false

[pipeline]
base_url = "http://asr.internal/v1"
model = "large-v3"

[cors]
allowed_origins = ["http://localhost:3000"]
allow_credentials = false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !cfg.Debug {
		t.Error("expected debug from file")
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("expected 7070, got %s", cfg.ServerPort)
	}
	if cfg.WriteTimeout != 45*time.Minute {
		t.Errorf("expected 45m, got %s", cfg.WriteTimeout)
	}
	if cfg.Upload.Timeout != 2*time.Hour {
		t.Errorf("expected 2h upload timeout, got %s", cfg.Upload.Timeout)
	}
	if cfg.Transcription.Engine != EnginePipeline {
		t.Errorf("expected pipeline, got %s", cfg.Transcription.Engine)
	}
	if cfg.Transcription.Timestamps {
		t.Error("expected timestamps=false from file to win over engine default")
	}
	if cfg.Pipeline.Model != "large-v3" {
		t.Errorf("expected large-v3, got %s", cfg.Pipeline.Model)
	}
	if cfg.CORS.AllowCredentials {
		t.Error("expected allow_credentials=false from file")
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("expected untouched default 30s, got %s", cfg.ReadTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "captioner.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = \"7070\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_PORT", "6060")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ServerPort != "6060" {
		t.Errorf("expected env port 6060, got %s", cfg.ServerPort)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[server]\nread_timeout = \"forever\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty port", func(c *Config) { c.ServerPort = "" }},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"zero upload size", func(c *Config) { c.Upload.MaxSize = 0 }},
		{"zero upload timeout", func(c *Config) { c.Upload.Timeout = 0 }},
		{"unknown engine", func(c *Config) { c.Transcription.Engine = "vosk" }},
		{"missing model", func(c *Config) { c.WhisperCPP.ModelPath = "" }},
		{"missing pipeline url", func(c *Config) {
			c.Transcription.Engine = EnginePipeline
			c.Pipeline.BaseURL = ""
		}},
		{"bad rate limit", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.BurstSize = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
