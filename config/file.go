package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// fileConfig mirrors the TOML layout. Durations are strings ("30s", "15m")
// and optional booleans are pointers so an absent key keeps the default.
type fileConfig struct {
	Debug *bool `toml:"debug"`

	Server struct {
		Port            string `toml:"port"`
		ReadTimeout     string `toml:"read_timeout"`
		WriteTimeout    string `toml:"write_timeout"`
		IdleTimeout     string `toml:"idle_timeout"`
		ShutdownTimeout string `toml:"shutdown_timeout"`
	} `toml:"server"`

	Log struct {
		Dir    string `toml:"dir"`
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`

	Upload struct {
		TempDir string `toml:"temp_dir"`
		MaxSize int64  `toml:"max_size"`
		Timeout string `toml:"timeout"`
	} `toml:"upload"`

	Media struct {
		FFmpegPath string `toml:"ffmpeg_path"`
	} `toml:"media"`

	Transcription struct {
		Engine     string `toml:"engine"`
		Timeout    string `toml:"timeout"`
		Language   string `toml:"language"`
		Timestamps *bool  `toml:"timestamps"`
	} `toml:"transcription"`

	WhisperCPP struct {
		Binary    string `toml:"binary"`
		ModelPath string `toml:"model_path"`
		Threads   int    `toml:"threads"`
	} `toml:"whispercpp"`

	Pipeline struct {
		BaseURL string `toml:"base_url"`
		APIKey  string `toml:"api_key"`
		Model   string `toml:"model"`
	} `toml:"pipeline"`

	CORS struct {
		Enabled          *bool    `toml:"enabled"`
		AllowedOrigins   []string `toml:"allowed_origins"`
		AllowedMethods   []string `toml:"allowed_methods"`
		AllowedHeaders   []string `toml:"allowed_headers"`
		ExposedHeaders   []string `toml:"exposed_headers"`
		AllowCredentials *bool    `toml:"allow_credentials"`
		MaxAge           int      `toml:"max_age"`
	} `toml:"cors"`

	RateLimit struct {
		Enabled           *bool `toml:"enabled"`
		RequestsPerMinute int   `toml:"requests_per_minute"`
		BurstSize         int   `toml:"burst_size"`
	} `toml:"rate_limit"`
}

// loadFile merges the TOML file at path into cfg and reports whether the file
// set transcription.timestamps explicitly.
func loadFile(path string, cfg *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, "read config file %s", path)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return false, errors.Wrapf(err, "parse config file %s", path)
	}

	setBool(&cfg.Debug, fc.Debug)

	setString(&cfg.ServerPort, fc.Server.Port)
	durations := []struct {
		dst   *time.Duration
		value string
		key   string
	}{
		{&cfg.ReadTimeout, fc.Server.ReadTimeout, "server.read_timeout"},
		{&cfg.WriteTimeout, fc.Server.WriteTimeout, "server.write_timeout"},
		{&cfg.IdleTimeout, fc.Server.IdleTimeout, "server.idle_timeout"},
		{&cfg.ShutdownTimeout, fc.Server.ShutdownTimeout, "server.shutdown_timeout"},
		{&cfg.Upload.Timeout, fc.Upload.Timeout, "upload.timeout"},
		{&cfg.Transcription.Timeout, fc.Transcription.Timeout, "transcription.timeout"},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return false, errors.Wrapf(err, "invalid duration for %s", d.key)
		}
		*d.dst = parsed
	}

	setString(&cfg.Log.Dir, fc.Log.Dir)
	setString(&cfg.Log.Level, fc.Log.Level)
	setString(&cfg.Log.Format, fc.Log.Format)

	setString(&cfg.Upload.TempDir, fc.Upload.TempDir)
	if fc.Upload.MaxSize != 0 {
		cfg.Upload.MaxSize = fc.Upload.MaxSize
	}

	setString(&cfg.Media.FFmpegPath, fc.Media.FFmpegPath)

	setString(&cfg.Transcription.Engine, fc.Transcription.Engine)
	setString(&cfg.Transcription.Language, fc.Transcription.Language)
	setBool(&cfg.Transcription.Timestamps, fc.Transcription.Timestamps)

	setString(&cfg.WhisperCPP.Binary, fc.WhisperCPP.Binary)
	setString(&cfg.WhisperCPP.ModelPath, fc.WhisperCPP.ModelPath)
	if fc.WhisperCPP.Threads != 0 {
		cfg.WhisperCPP.Threads = fc.WhisperCPP.Threads
	}

	setString(&cfg.Pipeline.BaseURL, fc.Pipeline.BaseURL)
	setString(&cfg.Pipeline.APIKey, fc.Pipeline.APIKey)
	setString(&cfg.Pipeline.Model, fc.Pipeline.Model)

	setBool(&cfg.CORS.Enabled, fc.CORS.Enabled)
	setStrings(&cfg.CORS.AllowedOrigins, fc.CORS.AllowedOrigins)
	setStrings(&cfg.CORS.AllowedMethods, fc.CORS.AllowedMethods)
	setStrings(&cfg.CORS.AllowedHeaders, fc.CORS.AllowedHeaders)
	setStrings(&cfg.CORS.ExposedHeaders, fc.CORS.ExposedHeaders)
	setBool(&cfg.CORS.AllowCredentials, fc.CORS.AllowCredentials)
	if fc.CORS.MaxAge != 0 {
		cfg.CORS.MaxAge = fc.CORS.MaxAge
	}

	setBool(&cfg.RateLimit.Enabled, fc.RateLimit.Enabled)
	if fc.RateLimit.RequestsPerMinute != 0 {
		cfg.RateLimit.RequestsPerMinute = fc.RateLimit.RequestsPerMinute
	}
	if fc.RateLimit.BurstSize != 0 {
		cfg.RateLimit.BurstSize = fc.RateLimit.BurstSize
	}

	return fc.Transcription.Timestamps != nil, nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setStrings(dst *[]string, value []string) {
	if len(value) > 0 {
		*dst = value
	}
}

func setBool(dst *bool, value *bool) {
	if value != nil {
		*dst = *value
	}
}
