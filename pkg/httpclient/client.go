// Package httpclient wraps http.Client with the request defaults an API
// client needs: a bounded timeout, an explicit redirect policy and headers
// that identify the caller.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrNilContext is returned by Do when called without a context.
var ErrNilContext = errors.New("context cannot be nil")

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects bounds followed redirects. A negative value returns the
	// redirect response to the caller instead.
	MaxRedirects int
	// UserAgent is sent on every request that does not set its own. API
	// providers such as Reddit throttle generic agents, so callers should
	// identify themselves.
	UserAgent string
	// Header holds defaults added to requests that lack them.
	Header http.Header
	// Transport overrides the default, e.g. for proxies or uTLS.
	Transport http.RoundTripper
}

// Client is an http.Client with per-request defaults.
type Client struct {
	*http.Client
	header http.Header
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("negative timeout %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &http.Client{
		Timeout:       cfg.Timeout,
		CheckRedirect: redirectPolicy(cfg.MaxRedirects),
	}
	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	header := cfg.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if cfg.UserAgent != "" {
		header.Set("User-Agent", cfg.UserAgent)
	}
	return &Client{Client: c, header: header}, nil
}

func redirectPolicy(max int) func(*http.Request, []*http.Request) error {
	if max < 0 {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) > max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

// Do sends req bound to ctx. ctx cancels the request independently of the
// client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	out := req.Clone(ctx)
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	for k, vs := range c.header {
		if _, ok := out.Header[k]; !ok {
			out.Header[k] = vs
		}
	}

	resp, err := c.Client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	return resp, nil
}
