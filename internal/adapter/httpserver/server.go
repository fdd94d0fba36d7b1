package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/config"
)

type sentimentService interface {
	Predict(ctx context.Context, text string) domain.Outcome
	AnalyzeBatch(ctx context.Context, items []domain.ReviewItem) []domain.BatchResult
}

type statusSource interface {
	Status() domain.LoaderStatus
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	sentiment sentimentService
	loader    statusSource

	metricsHandler    http.Handler
	metricsMiddleware echo.MiddlewareFunc

	clock     clockwork.Clock
	startTime time.Time
}

// NewServer wires the routes. metricsHandler and metricsMiddleware may be nil.
func NewServer(cfg *config.Config, sentiment sentimentService, loader statusSource, metricsHandler http.Handler, metricsMiddleware echo.MiddlewareFunc, clock clockwork.Clock) (*Server, error) {
	if _, err := bytes.Parse(cfg.MaxBodySize); err != nil {
		return nil, fmt.Errorf("invalid MAX_BODY_SIZE %q: %w", cfg.MaxBodySize, err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:              e,
		config:            cfg,
		sentiment:         sentiment,
		loader:            loader,
		metricsHandler:    metricsHandler,
		metricsMiddleware: metricsMiddleware,
		clock:             clock,
		startTime:         clock.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for tests and embedding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
