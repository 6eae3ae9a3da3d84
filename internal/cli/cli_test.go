package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/pscheid92/hearth/internal/domain"
	apperrors "github.com/pscheid92/hearth/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

// fakeAPI answers every request with the given status and JSON body and records what it saw.
func fakeAPI(t *testing.T, status int, body any) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.body))
		}
		seen = append(seen, rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	return srv, &seen
}

func run(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	root := RootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", serverURL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, domain.StatusView{
		Intensity:               66,
		Band:                    domain.BandHigh,
		BandLabel:               "Roaring",
		Emoji:                   "🔥",
		Multiplier:              1.35,
		ActiveContributionCount: 3,
		NextDecayAt:             time.Now().Add(30 * time.Minute),
		DailyCount:              4,
		LifetimeCount:           120,
	})

	out, err := run(t, srv.URL, "status")

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/hearth", (*seen)[0].path)
	assert.Contains(t, out, "66.0% (Roaring)")
	assert.Contains(t, out, "1.35x")
	assert.Contains(t, out, "Active contributions: 3")
	assert.Contains(t, out, "4 today, 120 lifetime")
}

func TestMultiplierCommand(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusOK, map[string]float64{"multiplier": 1.2})

	out, err := run(t, srv.URL, "multiplier")

	require.NoError(t, err)
	assert.Equal(t, "1.20\n", out)
}

func TestContributeCommand(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, domain.Result{OK: true, Message: "Contribution added (60.0% → 68.0%). Active contributions: 1."})

	out, err := run(t, srv.URL, "contribute", "u1", "Ada")

	require.NoError(t, err)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/v1/hearth/contributions", req.path)
	assert.Equal(t, map[string]any{"contributor_id": "u1", "label": "Ada"}, req.body)
	assert.Contains(t, out, "Contribution added")
}

func TestContributeCommand_RejectionIsNotAnError(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusConflict, domain.Result{Reason: domain.ReasonCooldownActive, Message: "You can contribute again in 2h 15min."})

	out, err := run(t, srv.URL, "contribute", "u1")

	require.NoError(t, err)
	assert.Contains(t, out, "You can contribute again in 2h 15min.")
	assert.Contains(t, out, "[cooldown_active]")
}

func TestProtectCommand(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, domain.Result{OK: true, Message: "Protection active for 2h."})

	out, err := run(t, srv.URL, "protect", "u1", "Ada", "2h")

	require.NoError(t, err)
	assert.Equal(t, 7200.0, (*seen)[0].body["duration_seconds"])
	assert.Contains(t, out, "Protection active for 2h.")
}

func TestProtectCommand_BadDuration(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, domain.Result{OK: true})

	_, err := run(t, srv.URL, "protect", "u1", "Ada", "soon")

	assert.ErrorContains(t, err, "invalid duration")
	assert.Empty(t, *seen)
}

func TestSeasonResetCommand(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, domain.StatusView{Intensity: 60, Band: domain.BandMedium})

	_, err := run(t, srv.URL, "season-reset")
	assert.ErrorContains(t, err, "--yes")
	assert.Empty(t, *seen)

	out, err := run(t, srv.URL, "--admin-token", "tok", "season-reset", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/admin/season-reset", (*seen)[0].path)
	assert.Equal(t, "Bearer tok", (*seen)[0].auth)
	assert.Contains(t, out, "Season reset")
}

func TestGrantCommand(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, map[string]any{"contributor_id": "u1", "units": 5})

	out, err := run(t, srv.URL, "--admin-token", "tok", "grant", "u1", "3")

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/admin/inventory/u1", (*seen)[0].path)
	assert.Equal(t, 3.0, (*seen)[0].body["units"])
	assert.Contains(t, out, "u1 now has 5 units")
}

func TestGrantCommand_InvalidUnits(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusOK, nil)

	_, err := run(t, srv.URL, "grant", "u1", "0")

	assert.ErrorContains(t, err, "positive integer")
}

func TestServerErrorIsReported(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusTooManyRequests, apperrors.ErrorResponse{Error: "rate limit exceeded", Type: apperrors.TypeRateLimited})

	_, err := run(t, srv.URL, "status")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, apperrors.TypeRateLimited, apiErr.Type)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestWatchRequiresRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	_, err := run(t, "http://unused", "watch")

	assert.ErrorContains(t, err, "--redis-url")
}

func TestRenderStatusProtection(t *testing.T) {
	var out bytes.Buffer
	renderStatus(&out, domain.StatusView{
		Intensity: 50,
		Band:      domain.BandMedium,
		Protection: domain.ProtectionStatus{
			Active:      true,
			ActivatedBy: "u7",
			Remaining:   90 * time.Minute,
		},
		LastContribution: &domain.Contribution{Label: "Ada", AddedAt: t0.Add(-5 * time.Minute)},
	}, t0)

	assert.Contains(t, out.String(), "active for 1h 30m (by u7)")
	assert.Contains(t, out.String(), "Last: Ada, 5m ago")
	assert.NotContains(t, out.String(), "Next decay")
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "2h 15m", humanize(2*time.Hour+15*time.Minute))
	assert.Equal(t, "3h", humanize(3*time.Hour))
	assert.Equal(t, "45m", humanize(45*time.Minute))
	assert.Equal(t, "30s", humanize(30*time.Second))
	assert.Equal(t, "0s", humanize(-time.Minute))
}
