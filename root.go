package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nijaru/captioner/config"
	"github.com/nijaru/captioner/logger"
	"github.com/nijaru/captioner/media"
	"github.com/nijaru/captioner/middleware"
	"github.com/nijaru/captioner/transcription"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "captioner",
		Short:         "Video caption transcription service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (TOML)")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newTranscribeCommand(&configFlag))
	rootCmd.AddCommand(newHealthCommand(&configFlag))

	return rootCmd
}

// runtimeDeps is what every command builds from the loaded configuration.
type runtimeDeps struct {
	cfg       *config.Config
	log       *logrus.Logger
	closer    io.Closer
	extractor *media.Extractor
	engine    transcription.Engine
}

func (d *runtimeDeps) Close() error {
	return d.closer.Close()
}

// withLogger returns ctx carrying the process logger, the same way the HTTP
// logging middleware scopes a request.
func (d *runtimeDeps) withLogger(ctx context.Context) context.Context {
	return context.WithValue(ctx, middleware.LoggerKey, logrus.NewEntry(d.log))
}

func buildDeps(configPath string, logOut io.Writer) (*runtimeDeps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	log, closer, err := logger.NewWithWriter(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	engine, err := transcription.NewEngine(cfg)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &runtimeDeps{
		cfg:       cfg,
		log:       log,
		closer:    closer,
		extractor: media.NewExtractor(cfg.Media.FFmpegPath),
		engine:    engine,
	}, nil
}

func (d *runtimeDeps) service() *transcription.Service {
	return transcription.NewService(d.extractor, d.engine, transcription.ServiceConfig{
		TempDir:    d.cfg.Upload.TempDir,
		Language:   d.cfg.Transcription.Language,
		Timestamps: d.cfg.Transcription.Timestamps,
		Timeout:    d.cfg.Transcription.Timeout,
	})
}
