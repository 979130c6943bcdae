// Package proxy rotates outgoing API traffic across a set of HTTP proxies and
// benches proxies that keep failing or get throttled.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	ErrNilProxy     = errors.New("proxy URL cannot be nil")
	ErrUnknownProxy = errors.New("proxy not found in pool")
)

const (
	defaultMaxFailures = 3
	defaultCooldown    = 5 * time.Minute
)

// Config tunes how quickly a failing proxy is benched and for how long.
type Config struct {
	// MaxFailures is the net failure count that benches a proxy.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out.
	Cooldown time.Duration
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Total     int
	Available int
	Successes int
	Failures  int
	Throttled int
}

type entry struct {
	url       *url.URL
	key       string
	failures  int
	successes int
	throttled int
	benched   time.Time
}

func (e *entry) available(now time.Time) bool {
	return !now.Before(e.benched)
}

// Pool hands out proxies round robin. The zero value is not usable; a nil
// *Pool is, and behaves as an empty pool.
type Pool struct {
	mu      sync.Mutex
	entries []*entry
	byKey   map[string]*entry
	next    int
	cfg     Config
	now     func() time.Time
}

// NewPool creates an empty pool, filling unset config values with defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	return &Pool{
		byKey: make(map[string]*entry),
		cfg:   cfg,
		now:   time.Now,
	}
}

// LoadFile adds the proxies listed in path. See Load for the format.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open proxy list: %w", err)
	}
	defer f.Close()

	if err := p.Load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load adds one proxy per line of r. Blank lines and lines starting with '#'
// are skipped.
func (p *Pool) Load(r io.Reader) error {
	var raw []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw = append(raw, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read proxy list: %w", err)
	}
	return p.Add(raw...)
}

// Add parses and appends proxies. A missing scheme means http. Entries
// already in the pool are ignored.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*url.URL, 0, len(rawURLs))
	for _, raw := range rawURLs {
		u, err := parse(raw)
		if err != nil {
			return err
		}
		parsed = append(parsed, u)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range parsed {
		key := u.String()
		if _, ok := p.byKey[key]; ok {
			continue
		}
		e := &entry{url: u, key: key}
		p.entries = append(p.entries, e)
		p.byKey[key] = e
	}
	return nil
}

func parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q: missing host", raw)
	}
	return u, nil
}

// Next returns the next available proxy in round-robin order. It returns nil
// for a nil or empty pool, or when every proxy is benched.
func (p *Pool) Next() *url.URL {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range len(p.entries) {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)
		if e.available(now) {
			return e.url
		}
	}
	return nil
}

// MarkSuccess records a completed request. Each success forgives one earlier
// failure.
func (p *Pool) MarkSuccess(u *url.URL) error {
	return p.update(u, func(e *entry) {
		e.successes++
		if e.failures > 0 {
			e.failures--
		}
	})
}

// MarkFailure records a transport failure and benches the proxy for the
// cooldown once it reaches MaxFailures.
func (p *Pool) MarkFailure(u *url.URL) error {
	return p.update(u, func(e *entry) {
		e.failures++
		if e.failures >= p.cfg.MaxFailures {
			e.failures = 0
			e.benched = p.now().Add(p.cfg.Cooldown)
		}
	})
}

// MarkThrottled benches the proxy for d after the API answered through it
// with a rate limit, so other proxies carry the traffic meanwhile. A
// non-positive d only counts the event.
func (p *Pool) MarkThrottled(u *url.URL, d time.Duration) error {
	return p.update(u, func(e *entry) {
		e.throttled++
		if d <= 0 {
			return
		}
		if until := p.now().Add(d); until.After(e.benched) {
			e.benched = until
		}
	})
}

func (p *Pool) update(u *url.URL, fn func(*entry)) error {
	if u == nil {
		return ErrNilProxy
	}
	if p == nil {
		return ErrUnknownProxy
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byKey[u.String()]
	if !ok {
		return ErrUnknownProxy
	}
	fn(e)
	return nil
}

// Len returns the number of proxies in the pool, benched or not.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Stats summarizes the pool's health.
func (p *Pool) Stats() Stats {
	var s Stats
	if p == nil {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	s.Total = len(p.entries)
	for _, e := range p.entries {
		if e.available(now) {
			s.Available++
		}
		s.Successes += e.successes
		s.Failures += e.failures
		s.Throttled += e.throttled
	}
	return s
}

type contextKey struct{}

// WithProxy returns a context that routes requests made with it through u.
// A nil u leaves ctx unchanged.
func WithProxy(ctx context.Context, u *url.URL) context.Context {
	if u == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the proxy stored by WithProxy, or nil.
func FromContext(ctx context.Context) *url.URL {
	u, _ := ctx.Value(contextKey{}).(*url.URL)
	return u
}

// ProxyFunc is an http.Transport Proxy function that picks the proxy from
// the request context, so one transport (and its connection pool) can serve
// every proxy. Requests without one fall back to the environment.
func ProxyFunc(req *http.Request) (*url.URL, error) {
	if u := FromContext(req.Context()); u != nil {
		return u, nil
	}
	return http.ProxyFromEnvironment(req)
}
