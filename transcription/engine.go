package transcription

import (
	"github.com/pkg/errors"

	"github.com/nijaru/captioner/config"
)

// NewEngine builds the engine selected by cfg.Transcription.Engine.
func NewEngine(cfg *config.Config) (Engine, error) {
	switch cfg.Transcription.Engine {
	case config.EngineWhisperCPP:
		return NewWhisperCPP(WhisperCPPConfig{
			BinaryPath: cfg.WhisperCPP.Binary,
			ModelPath:  cfg.WhisperCPP.ModelPath,
			Threads:    cfg.WhisperCPP.Threads,
		}), nil
	case config.EnginePipeline:
		return NewPipeline(PipelineConfig{
			BaseURL: cfg.Pipeline.BaseURL,
			APIKey:  cfg.Pipeline.APIKey,
			Model:   cfg.Pipeline.Model,
		}), nil
	default:
		return nil, errors.Errorf("unknown transcription engine %q", cfg.Transcription.Engine)
	}
}
