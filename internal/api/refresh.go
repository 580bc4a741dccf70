package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type refreshResult struct {
	token string
	err   error
}

// ensureFreshToken returns a valid access token after a 401, refreshing at
// most once no matter how many requests fail concurrently. The first caller
// performs the refresh; the rest queue and receive the shared outcome.
func (c *Client) ensureFreshToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return "", ErrSessionExpired
	}
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		if c.metrics != nil {
			c.metrics.SetRefreshWaiters(len(c.waiters))
		}
		c.mu.Unlock()

		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	token, err := c.refreshAccessToken(ctx)
	if err != nil {
		// Same terminal error for the triggering request and every waiter.
		err = fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	c.mu.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil
	if c.metrics != nil {
		c.metrics.SetRefreshWaiters(0)
	}
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{token: token, err: err}
	}

	if err != nil {
		if c.metrics != nil {
			c.metrics.IncRefresh("failure")
			c.metrics.IncAuthFailure()
		}
		c.expireSession(err)
		return "", err
	}
	if c.metrics != nil {
		c.metrics.IncRefresh("success")
	}
	return token, nil
}

// refreshAccessToken calls POST /auth/refresh directly on the underlying
// HTTP client so the call never re-enters the 401 interception.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	// The refresh serves queued requests besides the triggering one, so it
	// must outlive the trigger's cancellation; the client timeout bounds it.
	rctx := context.WithoutCancel(ctx)

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, c.baseURL+refreshPath, nil)
	if err != nil {
		return "", fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling refresh endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("reading refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &APIError{StatusCode: resp.StatusCode, Status: env.Status, Message: msg}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("decoding refresh response: %w", err)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return "", fmt.Errorf("decoding refresh payload: %w", err)
		}
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("no access token in refresh response")
	}

	if c.session == nil {
		return "", fmt.Errorf("no current user found")
	}
	// A refresh without a known user is as good as a failed refresh.
	if err := c.session.RefreshToken(payload.AccessToken); err != nil {
		return "", err
	}
	c.SetAuthToken(payload.AccessToken)

	return payload.AccessToken, nil
}

// expireSession runs the logout cascade exactly once: best-effort server
// logout, local session clear, and the session-expired callback.
func (c *Client) expireSession(cause error) {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return
	}
	c.expired = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+logoutPath, nil)
	if err == nil {
		if resp, err := c.httpc.Do(req); err == nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
			resp.Body.Close()
		}
	}

	if c.session != nil {
		c.session.Clear()
	}
	c.RemoveAuthToken()

	// Clear re-arms SetAuthToken paths; keep the expired marker until the
	// next explicit SetAuthToken from a fresh login.
	c.mu.Lock()
	c.expired = true
	c.mu.Unlock()

	if c.onSessionExpired != nil {
		c.onSessionExpired(cause)
	}
}
