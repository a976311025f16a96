// Package api exposes the strategy engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/takashi5144/keiba-3/internal/config"
	"github.com/takashi5144/keiba-3/internal/health"
	"github.com/takashi5144/keiba-3/internal/metrics"
)

// Dependencies wires the handlers to the rest of the application.
// Backtests, Reports, Stream and Health are optional.
type Dependencies struct {
	Recommender Recommender
	Backtests   BacktestRunner
	Reports     ReportReader
	Stream      interface {
		http.Handler
		Broadcaster
	}
	Health      *health.Checker
	MetricsPath string
}

// Server is the HTTP API server
type Server struct {
	server *http.Server
	router chi.Router
	logger *logrus.Logger
}

// NewServer builds the router and the underlying http.Server
func NewServer(cfg config.ServerConfig, deps Dependencies, logger *logrus.Logger) (*Server, error) {
	if deps.Recommender == nil {
		return nil, fmt.Errorf("recommender is required")
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	router := NewRouter(cfg, deps, logger)
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  secondsOr(cfg.ReadTimeoutSeconds, 15),
			WriteTimeout: secondsOr(cfg.WriteTimeoutSeconds, 60),
			IdleTimeout:  120 * time.Second,
		},
		router: router,
		logger: logger,
	}, nil
}

// NewRouter mounts every route on a chi router
func NewRouter(cfg config.ServerConfig, deps Dependencies, logger *logrus.Logger) chi.Router {
	h := &Handler{
		recommender: deps.Recommender,
		backtests:   deps.Backtests,
		reports:     deps.Reports,
		validate:    validator.New(),
		logger:      logger,
	}
	if deps.Stream != nil {
		h.broadcaster = deps.Stream
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if deps.Health != nil {
		r.Get("/health", deps.Health.HandleHealth)
		r.Get("/ready", deps.Health.HandleReady)
	}
	metricsPath := deps.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.Handle(metricsPath, metrics.Handler())
	if deps.Stream != nil {
		r.Handle("/ws", deps.Stream)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(chimiddleware.Timeout(30*time.Second)).Post("/strategy", h.GetStrategy)
		r.With(chimiddleware.Timeout(60*time.Second)).Get("/races/{date}/recommendations", h.GetRaceRecommendations)
		r.With(chimiddleware.Timeout(30*time.Second)).Get("/races/{id}/recommendation", h.GetRaceRecommendation)
		r.With(chimiddleware.Timeout(60*time.Second)).Post("/recommendations/batch", h.GetBatchRecommendations)
		r.Get("/recommendations/latest", h.GetLatestRecommendations)

		r.Post("/backtest", h.RunBacktest)
		r.Get("/backtest/reports", h.ListReports)
		r.Get("/backtest/reports/{id}", h.GetReport)
	})

	return r
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.server.Addr).Info("API server starting")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("API server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func secondsOr(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
