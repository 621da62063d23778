package transcription

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/captioner/errors"
	"github.com/nijaru/captioner/middleware"
)

// AudioExtractor turns a video file into the WAV input engines expect.
type AudioExtractor interface {
	Name() string
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	HealthCheck(ctx context.Context) error
}

type ServiceConfig struct {
	TempDir    string // "" uses the OS default
	Language   string
	Timestamps bool
	Timeout    time.Duration
}

// Service runs the upload → extract → transcribe pipeline. Every call owns a
// fresh temp directory that is removed before it returns.
type Service struct {
	extractor AudioExtractor
	engine    Engine
	config    ServiceConfig
}

func NewService(extractor AudioExtractor, engine Engine, cfg ServiceConfig) *Service {
	return &Service{
		extractor: extractor,
		engine:    engine,
		config:    cfg,
	}
}

func (s *Service) EngineName() string {
	return s.engine.Name()
}

func (s *Service) ProcessVideo(ctx context.Context, video io.Reader, filename string) (*Transcript, error) {
	const op = "Service.ProcessVideo"

	logger := middleware.GetLogger(ctx).WithFields(logrus.Fields{
		"operation": op,
		"filename":  filename,
		"engine":    s.engine.Name(),
	})

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(s.config.TempDir, "captioner-*")
	if err != nil {
		return nil, errors.Internal(op, err, "failed to create temp directory")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.WithError(err).WithField("dir", dir).Error("Failed to remove temp directory")
		}
	}()

	videoPath := filepath.Join(dir, "input"+videoExt(filename))
	size, err := saveUpload(videoPath, video)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to save uploaded video")
	}
	logger.WithField("size", size).Info("Saved uploaded video")

	audioPath := filepath.Join(dir, "audio.wav")
	start := time.Now()
	if err := s.extractor.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		logger.WithError(err).Error("Audio extraction failed")
		return nil, errors.Internal(op, err, "audio extraction failed")
	}
	logger.WithField("duration", time.Since(start)).Info("Extracted audio")

	transcript, err := s.engine.Transcribe(ctx, audioPath, Options{
		Language:   s.config.Language,
		Timestamps: s.config.Timestamps,
	})
	if err != nil {
		logger.WithError(err).Error("Transcription failed")
		return nil, errors.Internal(op, err, "transcription failed")
	}

	if transcript.PlainText() == "" {
		return nil, errors.Internal(op, nil, "transcription produced no text")
	}

	logger.WithFields(logrus.Fields{
		"segments":    len(transcript.Segments),
		"text_length": len(transcript.PlainText()),
	}).Info("Transcription completed successfully")

	return transcript, nil
}

func saveUpload(path string, video io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, video)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// videoExt keeps a short alphanumeric extension from the upload name so
// ffmpeg can use it as a format hint.
func videoExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 6 {
		return ".mp4"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".mp4"
		}
	}
	return ext
}

type HealthStatus struct {
	Component string `json:"component"`
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthCheck checks the extractor and the engine.
func (s *Service) HealthCheck(ctx context.Context) []HealthStatus {
	checks := []struct {
		name  string
		check func(context.Context) error
	}{
		{s.extractor.Name(), s.extractor.HealthCheck},
		{s.engine.Name(), s.engine.HealthCheck},
	}

	statuses := make([]HealthStatus, 0, len(checks))
	for _, c := range checks {
		start := time.Now()
		err := c.check(ctx)
		status := HealthStatus{
			Component: c.name,
			OK:        err == nil,
			LatencyMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			status.Message = err.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}
