// Package tracker provides the HTTP client for the tracker backend's modes
// and timer API.
package tracker

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

	"github.com/xvierd/focus-cli/internal/ports"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failed response is kept in APIError.
const maxErrorBody = 512

// APIError is returned for any non-2xx answer.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: backend returned %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: backend returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client implements ports.ModesBackend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ensure Client implements ports.ModesBackend.
var _ ports.ModesBackend = (*Client)(nil)

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SwitchFocus activates the focus profile named focusType.
func (c *Client) SwitchFocus(ctx context.Context, focusType string) error {
	return c.do(ctx, http.MethodPost, "/api/modes/focus/"+url.PathEscape(focusType), nil, nil)
}

// SwitchStandard reverts the machine to standard mode.
func (c *Client) SwitchStandard(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/modes/standard/normal", nil, nil)
}

// StartTimer starts the backend countdown for the given minutes.
func (c *Client) StartTimer(ctx context.Context, minutes int) error {
	body := map[string]int{"duration": minutes}
	return c.do(ctx, http.MethodPost, "/api/modes/timer/start", body, nil)
}

// StopTimer stops the backend countdown.
func (c *Client) StopTimer(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/modes/timer/stop", nil, nil)
}

// TimerStatus reads the current backend countdown.
func (c *Client) TimerStatus(ctx context.Context) (*ports.TimerStatus, error) {
	var status ports.TimerStatus
	if err := c.do(ctx, http.MethodGet, "/api/modes/timer/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetSettings reads the stored settings for a mode key.
func (c *Client) GetSettings(ctx context.Context, modeKey string) (*ports.ModeSettings, error) {
	var settings ports.ModeSettings
	if err := c.do(ctx, http.MethodGet, "/api/modes/settings/"+url.PathEscape(modeKey), nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSetting writes a single setting for a mode key.
func (c *Client) UpdateSetting(ctx context.Context, modeKey, setting string, value any) error {
	path := "/api/modes/settings/" + url.PathEscape(modeKey) + "/" + url.PathEscape(setting)
	return c.do(ctx, http.MethodPut, path, map[string]any{"value": value}, nil)
}

// ModeStatus returns the backend's description of the current mode.
func (c *Client) ModeStatus(ctx context.Context) (map[string]any, error) {
	var status map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/modes/status", nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}
