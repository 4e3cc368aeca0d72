// ABOUTME: Outbound HTTP client for webhook calls to interface endpoints
// ABOUTME: Bounded retries with increasing backoff for 5xx and network errors only

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// SessionIDHeader carries the session correlation id on every outbound call.
const SessionIDHeader = "Portim-Session-Id"

// TokenHeader carries the destination interface's decrypted control token.
const TokenHeader = "Portim-Interface-Token"

// Client posts payloads to interface endpoints. Transport-level retries are
// handled here; callers perform one logical delivery attempt.
type Client struct {
	http   *retryablehttp.Client
	logger *slog.Logger
}

// New creates a webhook client with the given per-attempt timeout and retry
// budget. 4xx responses are never retried; 5xx and transport errors are,
// with linearly increasing backoff.
func New(timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "webhook")

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = 2 * time.Second
	rc.RetryWaitMax = time.Duration(maxRetries+1) * 2 * time.Second
	rc.Logger = nil
	rc.Backoff = retryablehttp.LinearJitterBackoff
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode >= 500, nil
	}

	return &Client{http: rc, logger: logger}
}

// Post sends body to url with the given headers. The body is forwarded
// byte-identical; no re-serialization happens here. Any non-2xx response,
// timeout, or connection error is returned as an error carrying the status
// or failure text.
func (c *Client) Post(ctx context.Context, url string, body []byte, headers map[string]string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Info("webhook call failed", "url", url, "session_id", headers[SessionIDHeader], "error", err)
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Info("webhook call rejected", "url", url, "session_id", headers[SessionIDHeader], "status", resp.StatusCode)
		return fmt.Errorf("webhook returned %s", resp.Status)
	}

	return nil
}
