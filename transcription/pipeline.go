package transcription

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/captioner/middleware"
)

type PipelineConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Pipeline runs a hosted ASR model through an OpenAI-compatible
// transcription endpoint (OpenAI, LocalAI, faster-whisper-server).
type Pipeline struct {
	client *openai.Client
	model  string
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &Pipeline{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (p *Pipeline) Name() string {
	return "pipeline"
}

func (p *Pipeline) Transcribe(ctx context.Context, audioPath string, opts Options) (*Transcript, error) {
	logger := middleware.GetLogger(ctx).WithFields(logrus.Fields{
		"engine": p.Name(),
		"model":  p.model,
		"audio":  audioPath,
	})

	format := openai.AudioResponseFormatJSON
	if opts.Timestamps {
		format = openai.AudioResponseFormatVerboseJSON
	}

	start := time.Now()
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: audioPath,
		Language: opts.Language,
		Format:   format,
	})
	if err != nil {
		logger.WithError(err).Error("Pipeline transcription failed")
		return nil, errors.Wrap(err, "pipeline")
	}
	logger.WithField("duration", time.Since(start)).Info("Pipeline transcription finished")

	transcript := &Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Engine:   p.Name(),
		Model:    p.model,
	}
	if transcript.Language == "" {
		transcript.Language = opts.Language
	}

	if opts.Timestamps {
		for _, seg := range resp.Segments {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			transcript.Segments = append(transcript.Segments, Segment{
				Start: secondsToDuration(seg.Start),
				End:   secondsToDuration(seg.End),
				Text:  text,
			})
		}
	}

	if transcript.PlainText() == "" {
		return nil, errors.New("pipeline: transcription produced no text")
	}
	return transcript, nil
}

// HealthCheck lists models to confirm the endpoint is reachable.
func (p *Pipeline) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return errors.Wrap(err, "pipeline endpoint unreachable")
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
