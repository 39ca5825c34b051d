package client

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

	"go.uber.org/zap"

	apperrors "github.com/charlesng35/tidylink/pkg/errors"
	"github.com/charlesng35/tidylink/pkg/logger"
)

// DefaultTimeout bounds a single REST round trip.
const DefaultTimeout = 30 * time.Second

// Client is a thin HTTP client for the marketplace REST API. It handles Bearer
// authentication and JSON (de)serialization; every failure is returned as an
// *errors.AppError carrying the server payload or a fallback message.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a REST client rooted at baseURL (e.g. https://api.example.com).
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logger.WithModule("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the bearer token sent with every request.
func (c *Client) Token() string {
	return c.token
}

// do builds the request, sends it and decodes a 2xx JSON body into result.
// Non-2xx responses become AppErrors built from the body; transport failures
// become Unreachable errors. Both use fallback when the server gave no message.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any, fallback string) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(fmt.Errorf("client: marshal request body: %w", err), fallback)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return apperrors.Wrap(fmt.Errorf("client: build request: %w", err), fallback)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return apperrors.Unreachable(fmt.Errorf("client: %s %s: %w", method, path, err), fallback)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Unreachable(fmt.Errorf("client: read response body: %w", err), fallback)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		appErr := apperrors.FromResponse(resp.StatusCode, respBody, fallback)
		c.log.Warn("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", appErr.Message),
		)
		return appErr
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return apperrors.Wrap(fmt.Errorf("client: decode %s %s: %w", method, path, err), fallback)
	}
	return nil
}
