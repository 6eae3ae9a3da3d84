package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pscheid92/hearth/internal/platform/retry"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Observation is the part of a current-weather report the modifier needs.
type Observation struct {
	TemperatureC float64
	Condition    string
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("weather api returned %d: %s", e.StatusCode, e.Body)
}

// Client queries the OpenWeatherMap current-weather endpoint for one location.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	lat, lon   float64
	policy     retry.Policy
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *Client) { c.policy = p }
}

func NewClient(apiKey string, lat, lon float64, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		lat:        lat,
		lon:        lon,
		policy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   200 * time.Millisecond,
			RateLimitBackoff: 2 * time.Second,
			MaxBackoff:       2 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current fetches the current observation, retrying transient failures.
func (c *Client) Current(ctx context.Context) (Observation, error) {
	p := c.policy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Weather fetch failed, retrying", "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
	}
	return retry.Do(ctx, p, classifyError, func() (Observation, error) {
		return c.fetch(ctx)
	})
}

type currentResponse struct {
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

func (c *Client) fetch(ctx context.Context) (Observation, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Observation{}, fmt.Errorf("weather request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Observation{}, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Observation{}, fmt.Errorf("failed to decode weather response: %w", err)
	}
	if parsed.Main.Temp == nil {
		return Observation{}, errors.New("weather response has no temperature")
	}

	obs := Observation{TemperatureC: *parsed.Main.Temp}
	if len(parsed.Weather) > 0 {
		obs.Condition = parsed.Weather[0].Description
	}
	return obs, nil
}

func classifyError(err error) retry.Action {
	if apiErr, ok := errors.AsType[*APIError](err); ok {
		return retry.ForStatus(apiErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	return retry.Retry
}
