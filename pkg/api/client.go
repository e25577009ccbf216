package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RequestOptions carries per-call request settings. Default headers
// configured on the client are applied on top of these, so defaults win
// on conflicting keys.
type RequestOptions struct {
	Headers map[string]string
}

// Client issues GET requests against the recorder's HTTP API. Transport
// failures never surface as errors: FetchResource collapses them into an
// absent (nil) response, which typed endpoint methods convert into
// ErrNoResponse at their own boundary.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	defaultHeaders map[string]string
	logger         zerolog.Logger
}

// NewClient creates a Client for the given recorder base URL.
func NewClient(baseURL string, timeout time.Duration, defaultHeaders map[string]string, logger zerolog.Logger) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("api base URL must use http or https")
	}

	return &Client{
		baseURL:        parsed,
		httpClient:     &http.Client{Timeout: timeout},
		defaultHeaders: defaultHeaders,
		logger:         logger,
	}, nil
}

// resourceURL builds an absolute URL for path and sets each params entry
// as a query parameter. Last write wins on duplicate keys.
func (c *Client) resourceURL(path string, params map[string]string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	query := u.Query()
	for key, value := range params {
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()
	return &u
}

// WebsocketURL returns the live endpoint for path, with the scheme
// upgraded from http(s) to ws(s).
func (c *Client) WebsocketURL(path string) string {
	u := *c.resourceURL(path, nil)
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	return u.String()
}

// FetchResource issues a GET request for the given API path. A nil return
// means the request did not produce a usable response: cancellations are
// logged at warn level, any other transport failure or non-2xx status at
// error level. Callers must treat nil as "no data", not as a failure.
func (c *Client) FetchResource(ctx context.Context, path string, params map[string]string, opts *RequestOptions) *http.Response {
	u := c.resourceURL(path, params)
	c.logger.Debug().Str("url", u.String()).Msg("GET")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		c.logger.Error().Err(err).Str("url", u.String()).Msg("Failed to build request")
		return nil
	}

	if opts != nil {
		for key, value := range opts.Headers {
			req.Header.Set(key, value)
		}
	}
	// Defaults are applied last on purpose: they take precedence over
	// per-call headers.
	for key, value := range c.defaultHeaders {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn().Str("url", u.String()).Msg("Request was aborted")
		} else {
			c.logger.Error().Err(err).Str("url", u.String()).Msg("Request failed")
		}
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error().Int("status", resp.StatusCode).Str("url", u.String()).Msg("Unexpected response status")
		resp.Body.Close()
		return nil
	}

	return resp
}
