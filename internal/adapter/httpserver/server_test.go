package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/hearth/internal/domain"
	"github.com/pscheid92/hearth/internal/platform/config"
)

// --- Mock implementations ---

type mockAppService struct {
	addContributionFn    func(ctx context.Context, contributorID, label string) domain.Result
	activateProtectionFn func(ctx context.Context, contributorID, label string, d time.Duration) domain.Result
	statusFn             func(ctx context.Context) domain.StatusView
	multiplierFn         func(ctx context.Context) float64
	resetSeasonFn        func(ctx context.Context) (domain.StatusView, error)
	grantUnitsFn         func(ctx context.Context, contributorID string, n int64) (int64, error)
}

func (m *mockAppService) AddContribution(ctx context.Context, contributorID, label string) domain.Result {
	if m.addContributionFn != nil {
		return m.addContributionFn(ctx, contributorID, label)
	}
	return domain.Result{OK: true}
}

func (m *mockAppService) ActivateProtection(ctx context.Context, contributorID, label string, d time.Duration) domain.Result {
	if m.activateProtectionFn != nil {
		return m.activateProtectionFn(ctx, contributorID, label, d)
	}
	return domain.Result{OK: true}
}

func (m *mockAppService) Status(ctx context.Context) domain.StatusView {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return domain.StatusView{Intensity: 60, Band: domain.BandMedium, Multiplier: 1.2}
}

func (m *mockAppService) CurrentMultiplier(ctx context.Context) float64 {
	if m.multiplierFn != nil {
		return m.multiplierFn(ctx)
	}
	return 1.0
}

func (m *mockAppService) ResetSeason(ctx context.Context) (domain.StatusView, error) {
	if m.resetSeasonFn != nil {
		return m.resetSeasonFn(ctx)
	}
	return domain.StatusView{}, errors.New("not implemented")
}

func (m *mockAppService) GrantUnits(ctx context.Context, contributorID string, n int64) (int64, error) {
	if m.grantUnitsFn != nil {
		return m.grantUnitsFn(ctx, contributorID, n)
	}
	return 0, errors.New("not implemented")
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Port:         "0",
		APIRateLimit: 1000,
		APIRateBurst: 1000,
	}
}

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	srv := &Server{
		echo:      echo.New(),
		config:    testConfig(),
		app:       app,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withAdminToken(token string) func(*Server) {
	return func(s *Server) {
		s.config.AdminToken = token
	}
}

func withConfig(fn func(*config.Config)) func(*Server) {
	return func(s *Server) {
		fn(s.config)
	}
}

func withMetricsHandler(h http.Handler) func(*Server) {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// do sends a request through the full middleware stack.
func do(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
