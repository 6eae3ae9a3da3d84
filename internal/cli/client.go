package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pscheid92/hearth/internal/domain"
	apperrors "github.com/pscheid92/hearth/internal/platform/errors"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response that did not carry an engine result.
type APIError struct {
	StatusCode int
	Type       apperrors.ErrorType
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the hearth HTTP API.
type Client struct {
	baseURL    string
	adminToken string
	http       *http.Client
}

func NewClient(baseURL, adminToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminToken: adminToken,
		http:       httpClient,
	}
}

func (c *Client) Status(ctx context.Context) (domain.StatusView, error) {
	var view domain.StatusView
	err := c.do(ctx, http.MethodGet, "/api/v1/hearth", nil, &view)
	return view, err
}

func (c *Client) Multiplier(ctx context.Context) (float64, error) {
	var resp struct {
		Multiplier float64 `json:"multiplier"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/hearth/multiplier", nil, &resp)
	return resp.Multiplier, err
}

// Contribute returns the engine result for accepted and rejected contributions alike.
func (c *Client) Contribute(ctx context.Context, contributorID, label string) (domain.Result, error) {
	body := map[string]string{"contributor_id": contributorID, "label": label}
	return c.result(ctx, "/api/v1/hearth/contributions", body)
}

func (c *Client) Protect(ctx context.Context, contributorID, label string, duration time.Duration) (domain.Result, error) {
	body := map[string]any{
		"contributor_id":   contributorID,
		"label":            label,
		"duration_seconds": int64(duration.Seconds()),
	}
	return c.result(ctx, "/api/v1/hearth/protections", body)
}

func (c *Client) ResetSeason(ctx context.Context) (domain.StatusView, error) {
	var view domain.StatusView
	err := c.do(ctx, http.MethodPost, "/api/v1/admin/season-reset", nil, &view)
	return view, err
}

func (c *Client) Grant(ctx context.Context, contributorID string, units int64) (int64, error) {
	var resp struct {
		Units int64 `json:"units"`
	}
	path := "/api/v1/admin/inventory/" + url.PathEscape(contributorID)
	err := c.do(ctx, http.MethodPost, path, map[string]int64{"units": units}, &resp)
	return resp.Units, err
}

// result posts body and decodes a domain.Result. The server answers
// rejections with a non-2xx status and a result body, so those are not errors.
func (c *Client) result(ctx context.Context, path string, body any) (domain.Result, error) {
	status, data, err := c.send(ctx, http.MethodPost, path, body)
	if err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if json.Unmarshal(data, &result) == nil && (result.OK || result.Reason != domain.ReasonNone) {
		return result, nil
	}
	return domain.Result{}, decodeError(status, data)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	status, data, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return decodeError(status, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminToken != "" && strings.HasPrefix(path, "/api/v1/admin/") {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func decodeError(status int, data []byte) error {
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(data, &resp); err == nil && resp.Error != "" {
		return &APIError{StatusCode: status, Type: resp.Type, Message: resp.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(data))}
}
