// Package reddit implements search.Searcher over Reddit's OAuth API using
// application-only (client credentials) authentication.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/dugout/internal/fingerprint"
	"github.com/FranksOps/dugout/internal/metrics"
	"github.com/FranksOps/dugout/internal/search"
	"github.com/FranksOps/dugout/pkg/httpclient"
	"github.com/FranksOps/dugout/pkg/proxy"
	"github.com/FranksOps/dugout/pkg/ratelimit"
)

const (
	DefaultAPIBase = "https://oauth.reddit.com"
	DefaultAuthURL = "https://www.reddit.com/api/v1/access_token"

	// maxPageSize is the largest listing page the API serves.
	maxPageSize = 100
	// tokenSlack renews a token this long before it expires.
	tokenSlack = time.Minute
)

// ErrMissingCredentials is returned by New when the client id, secret or
// user agent is empty.
var ErrMissingCredentials = errors.New("reddit client id, secret and user agent are required")

// Config configures a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string

	APIBase string
	AuthURL string
	Timeout time.Duration

	Fingerprint fingerprint.Profile
	// Proxies, when non-empty, rotates one proxy per request.
	Proxies *proxy.Pool
	// Limiter paces requests and is paused when the quota headers report an
	// exhausted budget.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Client talks to the Reddit API.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger *slog.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ search.Searcher = (*Client)(nil)

// New builds a Client. No network traffic happens until the first call.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{Proxy: proxy.ProxyFunc})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout: cfg.Timeout,
		// a missing subreddit answers its search with a redirect, which
		// classify needs to see
		MaxRedirects: -1,
		UserAgent:    cfg.UserAgent,
		Header:       http.Header{"Accept": {"application/json"}},
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Client{
		cfg:    cfg,
		http:   client,
		logger: cfg.Logger,
	}, nil
}

// Search fetches one page of q's listing, starting after the given cursor.
func (c *Client) Search(ctx context.Context, q search.Query, after string) (*search.Page, error) {
	params := url.Values{}
	params.Set("q", q.String())
	params.Set("restrict_sr", "1")
	params.Set("raw_json", "1")
	params.Set("type", "link")
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Time != "" {
		params.Set("t", string(q.Time))
	}
	limit := q.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	params.Set("limit", fmt.Sprint(limit))
	if after != "" {
		params.Set("after", after)
	}

	path := "/r/" + url.PathEscape(q.Forum) + "/search"
	var l listing
	if err := c.getJSON(ctx, "search", path, params, &l); err != nil {
		return nil, fmt.Errorf("search r/%s for %q: %w", q.Forum, q.Keyword, err)
	}

	page := &search.Page{After: l.Data.After}
	for _, child := range l.Data.Children {
		if child.Kind != kindLink {
			continue
		}
		var d linkData
		if err := json.Unmarshal(child.Data, &d); err != nil {
			return nil, fmt.Errorf("decode post in r/%s: %w", q.Forum, err)
		}
		page.Posts = append(page.Posts, d.post())
	}
	return page, nil
}

// Replies fetches the comment tree of post and returns it in delivery order,
// bounded by opts. "Load more" stubs are dropped, never expanded.
func (c *Client) Replies(ctx context.Context, post *search.Post, opts search.ReplyOptions) ([]*search.Reply, error) {
	if post == nil || post.ID == "" {
		return nil, errors.New("post has no id")
	}

	params := url.Values{}
	params.Set("raw_json", "1")
	if !opts.Flatten {
		params.Set("depth", "1")
	}

	var listings []listing
	path := "/comments/" + url.PathEscape(post.ID)
	if err := c.getJSON(ctx, "comments", path, params, &listings); err != nil {
		return nil, fmt.Errorf("comments of %s: %w", post.ID, err)
	}
	if len(listings) < 2 {
		return nil, nil
	}

	replies, err := walkComments(listings[1].Data.Children, opts, nil)
	if err != nil {
		return nil, fmt.Errorf("decode comments of %s: %w", post.ID, err)
	}
	return replies, nil
}

// getJSON issues an authenticated GET and decodes a 2xx body into out. A
// rejected token is renewed once.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		err = c.get(ctx, endpoint, path, params, token, out)
		if attempt == 0 && errors.Is(err, search.ErrUnauthorized) {
			c.logger.Debug("access token rejected, renewing", "endpoint", endpoint)
			c.invalidate(token)
			continue
		}
		return err
	}
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, token string, out any) error {
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.cfg.APIBase + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)

	resp, body, err := c.send(ctx, endpoint, req)
	if err != nil {
		return err
	}

	c.observeQuota(resp.Header)
	if err := classify(resp, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// send performs req through the next proxy of the pool, if any, and returns
// the response with its body already read and closed.
func (c *Client) send(ctx context.Context, endpoint string, req *http.Request) (*http.Response, []byte, error) {
	activeProxy := c.cfg.Proxies.Next()
	ctx = proxy.WithProxy(ctx, activeProxy)

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		metrics.RecordAPICall(endpoint, 0, time.Since(start))
		if activeProxy != nil {
			_ = c.cfg.Proxies.MarkFailure(activeProxy)
		}
		return nil, nil, err
	}
	defer resp.Body.Close()
	if activeProxy != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			_ = c.cfg.Proxies.MarkThrottled(activeProxy, retryAfter(resp.Header))
		} else {
			_ = c.cfg.Proxies.MarkSuccess(activeProxy)
		}
	}

	body, err := io.ReadAll(resp.Body)
	metrics.RecordAPICall(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	return resp, body, nil
}

// observeQuota pauses the limiter until the window resets once the server
// reports no requests left.
func (c *Client) observeQuota(h http.Header) {
	if c.cfg.Limiter == nil {
		return
	}
	remaining, ok := headerFloat(h, "X-Ratelimit-Remaining")
	if !ok || remaining >= 1 {
		return
	}
	reset, ok := headerFloat(h, "X-Ratelimit-Reset")
	if !ok || reset <= 0 {
		return
	}
	until := time.Now().Add(time.Duration(reset * float64(time.Second)))
	c.logger.Info("request budget spent, pausing", "until", until.Format(time.RFC3339))
	c.cfg.Limiter.Pause(until)
}
