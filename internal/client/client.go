// Package client talks to the task API on behalf of the terminal UI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/csrf"
	"github.com/nhle/taskboard/internal/model"
)

// Client is a thin HTTP client for the task API. It keeps the session
// cookie in a jar and caches the session's CSRF token in memory.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	replay     bool

	mu    sync.RWMutex
	token string

	refresh singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithLogger sets the logger used for background token refresh failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithReplayOnForbidden makes a mutating request that was rejected with
// 403 retry once after the token has been refreshed.
func WithReplayOnForbidden(enabled bool) Option {
	return func(c *Client) { c.replay = enabled }
}

// New creates a Client for the API rooted at baseURL
// (e.g., http://localhost:8000).
func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Jar: jar},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Initialize fetches a CSRF token for the session. It should be called
// once before any mutating request.
func (c *Client) Initialize(ctx context.Context) error {
	_, err := c.refreshToken(ctx)
	return err
}

// Token returns the cached CSRF token, or "" if none has been fetched.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

// refreshToken fetches the session token. Concurrent callers share one
// request.
func (c *Client) refreshToken(ctx context.Context) (string, error) {
	v, err, _ := c.refresh.Do("csrf-token", func() (any, error) {
		res, err := send[struct{}](ctx, c, http.MethodGet, "/api/csrf-token", nil)
		if err != nil {
			return "", fmt.Errorf("fetching csrf token: %w", err)
		}
		if res.Kind != api.KindToken || res.Token == "" {
			return "", fmt.Errorf("fetching csrf token: %w", api.ErrMissingData)
		}
		c.setToken(res.Token)
		return res.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ListTasks returns every task, newest first. A success response without
// data yields an empty list.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	res, err := do[[]model.Task](ctx, c, http.MethodGet, "/api/tasks", nil)
	if err != nil {
		return nil, err
	}
	if res.Kind != api.KindData || res.Data == nil {
		return []model.Task{}, nil
	}
	return res.Data, nil
}

// GetTask returns one task.
func (c *Client) GetTask(ctx context.Context, id int64) (model.Task, error) {
	res, err := do[model.Task](ctx, c, http.MethodGet, taskPath(id), nil)
	if err != nil {
		return model.Task{}, err
	}
	return res.Value()
}

// CreateTask creates a task and returns it as stored by the server.
func (c *Client) CreateTask(ctx context.Context, in model.NewTask) (model.Task, error) {
	res, err := do[model.Task](ctx, c, http.MethodPost, "/api/tasks", in)
	if err != nil {
		return model.Task{}, err
	}
	return res.Value()
}

// UpdateTask applies patch to task id. The returned task carries the
// stored id, title, description and status; timestamps are not included.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error) {
	res, err := do[model.Task](ctx, c, http.MethodPut, taskPath(id), patch)
	if err != nil {
		return model.Task{}, err
	}
	return res.Value()
}

// DeleteTask removes task id.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, taskPath(id), nil)
	return err
}

func taskPath(id int64) string {
	return "/api/tasks/" + strconv.FormatInt(id, 10)
}

// do sends a request and, on 403, refreshes the CSRF token before
// reporting the failure. With replay enabled a rejected mutating request
// is sent once more with the new token.
func do[T any](ctx context.Context, c *Client, method, path string, body any) (api.Result[T], error) {
	res, err := send[T](ctx, c, method, path, body)
	if err == nil || !IsForbidden(err) {
		return res, err
	}

	if _, rerr := c.refreshToken(ctx); rerr != nil {
		c.logger.Warn("csrf token refresh failed", "error", rerr)
		return res, err
	}

	if c.replay && method != http.MethodGet {
		return send[T](ctx, c, method, path, body)
	}
	return res, err
}

// send performs one HTTP round trip and decodes the envelope.
func send[T any](ctx context.Context, c *Client, method, path string, body any) (api.Result[T], error) {
	var zero api.Result[T]

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return zero, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if tok := c.Token(); tok != "" {
			req.Header.Set(csrf.HeaderName, tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("reading response body: %w", err)
	}

	var env api.Envelope[T]
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return zero, &APIError{Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return zero, fmt.Errorf("decoding response from %s %s: %w", method, path, decodeErr)
	}
	if !env.Success {
		return zero, &APIError{Status: resp.StatusCode, Message: env.Error}
	}

	return env.Result(), nil
}

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsForbidden reports whether err is a 403 (CSRF rejection).
func IsForbidden(err error) bool { return statusOf(err) == http.StatusForbidden }

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

// IsValidation reports whether err is a 400.
func IsValidation(err error) bool { return statusOf(err) == http.StatusBadRequest }
