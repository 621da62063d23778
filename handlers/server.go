package handlers

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/captioner/config"
	"github.com/nijaru/captioner/middleware"
)

type Server struct {
	handler   *Handler
	config    *config.Config
	logger    *logrus.Logger
	server    *http.Server
	startTime time.Time
}

type ServerOption func(*Server)

// NewServer wires the routes and middleware around service.
func NewServer(cfg *config.Config, service Transcriber, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		logger:    logrus.StandardLogger(),
		startTime: time.Now(),
	}
	s.handler = NewHandler(service, HandlerConfig{
		MaxUploadSize:  cfg.Upload.MaxSize,
		UploadTimeout:  cfg.Upload.Timeout,
		ProcessTimeout: cfg.Transcription.Timeout,
	})

	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.routes(),
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port":   s.config.ServerPort,
		"engine": s.handler.service.EngineName(),
	}).Info("Starting server")
	return s.server.ListenAndServe()
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.WithField("addr", l.Addr().String()).Info("Starting server")
	return s.server.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /generate", s.handler.Generate)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.middleware(mux)
}

func (s *Server) middleware(handler http.Handler) http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.Recovery(),
		middleware.CORS(s.config.CORS),
	}

	if s.config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			s.config.RateLimit.RequestsPerMinute,
			s.config.RateLimit.BurstSize,
		)
		middlewares = append(middlewares, limiter.Middleware)
	}

	return middleware.Chain(handler, middlewares...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.handler.health(w, r, s.config.Version, s.startTime)
}
