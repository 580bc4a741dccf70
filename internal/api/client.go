// Package api implements the authenticated HTTP client for the CodeMate
// backend: bearer-token decoration, the enveloped JSON contract, and the
// single-flight access-token refresh with queued replay.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	refreshPath = "/auth/refresh"
	logoutPath  = "/auth/logout"

	// maxBodySize is the maximum response body size read (1 MB).
	maxBodySize = 1 << 20
)

// SessionHook is the client's view of the session store.
type SessionHook interface {
	// Token returns the current access token, or "".
	Token() string
	// RefreshToken replaces only the access token. It must fail when the
	// session holds no current user.
	RefreshToken(token string) error
	// Clear drops all local session state (the logout cascade).
	Clear()
}

// MetricsRecorder is an optional interface for recording client metrics.
type MetricsRecorder interface {
	IncRequests(method, resource string, statusCode int)
	ObserveDuration(method, resource string, seconds float64)
	IncRefresh(outcome string)
	SetRefreshWaiters(n int)
	IncAuthFailure()
}

// Client talks to the CodeMate REST backend. Refresh coordination state is
// per-instance, so clients in tests never share it.
type Client struct {
	httpc    *http.Client
	baseURL  string
	basePath string
	session  SessionHook
	metrics  MetricsRecorder

	// onSessionExpired runs once after an unrecoverable auth failure, after
	// the local session has been cleared. The CLI uses it to tell the user
	// to log in again; it is the analogue of the SPA's login redirect.
	onSessionExpired func(error)

	mu           sync.Mutex
	defaultToken string
	refreshing   bool
	waiters      []chan refreshResult
	expired      bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// WithSession attaches the session store used for token lookup and refresh.
func WithSession(s SessionHook) Option {
	return func(c *Client) { c.session = s }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSessionExpiredHandler sets the unrecoverable-auth-failure callback.
func WithSessionExpiredHandler(fn func(error)) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

// New creates a Client for the given base URL. The client carries a cookie
// jar because the refresh and logout endpoints are cookie-authenticated.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		httpc:    &http.Client{Timeout: 30 * time.Second, Jar: jar},
		baseURL:  baseURL,
		basePath: strings.TrimSuffix(u.Path, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpc.Jar == nil {
		c.httpc.Jar = jar
	}
	return c, nil
}

// SetAuthToken sets the default Authorization token. New credentials also
// re-arm the refresh coordinator after a previous session expiry.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultToken = token
	c.expired = false
}

// RemoveAuthToken clears the default Authorization token.
func (c *Client) RemoveAuthToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultToken = ""
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	tok := c.defaultToken
	c.mu.Unlock()
	if tok != "" {
		return tok
	}
	if c.session != nil {
		return c.session.Token()
	}
	return ""
}

// Do sends the request, attaching the bearer token unless the caller already
// set one, and runs the 401 refresh-and-replay flow. A request is replayed at
// most once; a second 401 is surfaced as a final failure. 401s from the
// refresh endpoint itself bypass the flow entirely.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "" {
		if tok := c.currentToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || strings.HasSuffix(req.URL.Path, refreshPath) {
		return resp, nil
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	resp.Body.Close()

	token, err := c.ensureFreshToken(req.Context())
	if err != nil {
		return nil, err
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+token)
	return c.roundTrip(retry)
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpc.Do(req)
	if c.metrics != nil {
		resource := c.resourceLabel(req.URL.Path)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.metrics.IncRequests(req.Method, resource, status)
		c.metrics.ObserveDuration(req.Method, resource, time.Since(start).Seconds())
	}
	return resp, err
}

// resourceLabel reduces a request path to its first segment under the API
// base path, keeping metric label cardinality bounded.
func (c *Client) resourceLabel(path string) string {
	rest := strings.TrimPrefix(path, c.basePath)
	rest = strings.TrimPrefix(rest, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "root"
	}
	return rest
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		retry.Body = body
	}
	return retry, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// envelope is the backend's standard response shape.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Status  string          `json:"status"`
}

func call[T any](ctx context.Context, c *Client, method, path string, body interface{}) (T, error) {
	var zero T

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return zero, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return zero, fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}

	var env envelope
	if len(raw) > 0 {
		// Tolerate non-JSON error bodies; the status code still classifies.
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode >= 400 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return zero, fmt.Errorf("%s %s: %w", method, path, &APIError{
			StatusCode: resp.StatusCode,
			Status:     env.Status,
			Message:    msg,
		})
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return zero, nil
	}
	if err := json.Unmarshal(env.Data, &zero); err != nil {
		return zero, fmt.Errorf("%s %s: decoding response data: %w", method, path, err)
	}
	return zero, nil
}

// Get issues a GET and decodes the envelope data into T.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	return call[T](ctx, c, http.MethodGet, path, nil)
}

// Post issues a POST and decodes the envelope data into T.
func Post[T any](ctx context.Context, c *Client, path string, body interface{}) (T, error) {
	return call[T](ctx, c, http.MethodPost, path, body)
}

// Put issues a PUT and decodes the envelope data into T.
func Put[T any](ctx context.Context, c *Client, path string, body interface{}) (T, error) {
	return call[T](ctx, c, http.MethodPut, path, body)
}

// Delete issues a DELETE and decodes the envelope data into T.
func Delete[T any](ctx context.Context, c *Client, path string) (T, error) {
	return call[T](ctx, c, http.MethodDelete, path, nil)
}

// Exec issues a request whose response payload the caller does not need.
func (c *Client) Exec(ctx context.Context, method, path string, body interface{}) error {
	_, err := call[json.RawMessage](ctx, c, method, path, body)
	return err
}
