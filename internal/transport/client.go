// Package transport is the HTTP layer under the dashboard server client:
// authentication, request pacing and the JSON codec.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// RequestObserver is told about every completed request. status is zero
// when no response was received.
type RequestObserver func(method, path string, status int, elapsed time.Duration)

// Client provides HTTP client functionality with authentication.
type Client struct {
	http    *http.Client
	auth    Authenticator
	apiKey  string
	baseURL *url.URL
	server  string
	limiter *rate.Limiter
	observe RequestObserver
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithAuthenticator sets how the API key is attached to requests.
func WithAuthenticator(auth Authenticator) Option {
	return func(c *Client) {
		if auth != nil {
			c.auth = auth
		}
	}
}

// WithRateLimit paces requests to perSecond with the given burst.
// A non-positive rate disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = constants.BurstSize
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRequestObserver registers a hook called after every request.
func WithRequestObserver(fn RequestObserver) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// New creates a transport client for the server at baseURL.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.NewConfigError("transport", "server URL is required", nil)
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewConfigError("transport", "invalid server URL "+baseURL, err)
	}

	c := &Client{
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		auth:    &KeyAuth{},
		apiKey:  apiKey,
		baseURL: u,
		server:  u.Host,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Server returns the host name used in error messages.
func (c *Client) Server() string {
	return c.server
}

// URL resolves path against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do sends a request with body encoded as JSON. The caller closes the
// response body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	if c.apiKey == "" {
		if _, none := c.auth.(*NoAuth); !none {
			return nil, &errors.AuthenticationError{
				Server:  c.server,
				Method:  "api_key",
				Message: constants.ErrMsgInvalidAPIKey,
				Err:     errors.ErrAPIKeyRequired,
			}
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WrapParse("json", "request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), reader)
	if err != nil {
		return nil, errors.WrapResource("create", "request", method+" "+path, err)
	}
	c.auth.Apply(req, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, contextError(ctx)
			}
			// The wait would outlast the deadline.
			return nil, errors.Join(errors.ErrTimeout, err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if c.observe != nil {
		c.observe(method, path, status, elapsed)
	}
	logging.FromContext(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("elapsed", elapsed).
		Msg("Server request")

	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			err = errors.Join(errors.ErrTimeout, err)
		}
		return nil, &errors.APIError{
			Server:   c.server,
			Method:   method,
			Endpoint: path,
			Message:  err.Error(),
			Err:      err,
		}
	}
	return resp, nil
}

// contextError classifies a request stopped by ctx as timed out or canceled.
func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(errors.ErrTimeout, ctx.Err())
	}
	return errors.Join(errors.ErrCanceled, ctx.Err())
}

// JSON sends a request and decodes the JSON response into target.
// target may be nil to discard the body.
func (c *Client) JSON(ctx context.Context, method, path string, query url.Values, body, target any) error {
	resp, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if err := DecodeResponse(resp, target); err != nil {
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) {
			apiErr.Server = c.server
			apiErr.Method = method
			apiErr.Endpoint = path
		}
		return err
	}
	return nil
}

// Get performs a GET request and decodes the response.
func (c *Client) Get(ctx context.Context, path string, query url.Values, target any) error {
	return c.JSON(ctx, http.MethodGet, path, query, nil, target)
}

// Post performs a POST request and decodes the response.
func (c *Client) Post(ctx context.Context, path string, body, target any) error {
	return c.JSON(ctx, http.MethodPost, path, nil, body, target)
}

// Delete performs a DELETE request and decodes the response.
func (c *Client) Delete(ctx context.Context, path string, target any) error {
	return c.JSON(ctx, http.MethodDelete, path, nil, nil, target)
}
