package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/hearth/internal/adapter/metrics"
	"github.com/pscheid92/hearth/internal/domain"
	"github.com/pscheid92/hearth/internal/platform/config"
)

type appService interface {
	AddContribution(ctx context.Context, contributorID, label string) domain.Result
	ActivateProtection(ctx context.Context, contributorID, label string, duration time.Duration) domain.Result
	Status(ctx context.Context) domain.StatusView
	CurrentMultiplier(ctx context.Context) float64
	ResetSeason(ctx context.Context) (domain.StatusView, error)
	GrantUnits(ctx context.Context, contributorID string, n int64) (int64, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app appService

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	healthChecks   []HealthCheck
	startTime      time.Time
}

// NewServer wires the HTTP API. httpMetrics and metricsHandler may be nil.
func NewServer(cfg *config.Config, app appService, httpMetrics *metrics.HTTPMetrics, metricsHandler http.Handler, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		app:            app,
		httpMetrics:    httpMetrics,
		metricsHandler: metricsHandler,
		healthChecks:   healthChecks,
		startTime:      time.Now(),
	}

	srv.registerRoutes()

	return srv
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

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
