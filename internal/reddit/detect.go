package reddit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/dugout/internal/search"
)

// classify maps a non-2xx response to the search package's error values.
func classify(resp *http.Response, body []byte) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &search.RateLimitError{RetryAfter: retryAfter(resp.Header)}
	case remainingSpent(resp.Header):
		return &search.RateLimitError{RetryAfter: retryAfter(resp.Header)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", search.ErrUnauthorized, resp.Status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", search.ErrForumNotFound, resp.Request.URL.Path)
	case status >= 300 && status < 400:
		loc := resp.Header.Get("Location")
		if strings.Contains(loc, "/subreddits/search") {
			return fmt.Errorf("%w: %s redirects to %s", search.ErrForumNotFound, resp.Request.URL.Path, loc)
		}
		return fmt.Errorf("unexpected redirect to %q", loc)
	}
	return fmt.Errorf("unexpected status %s: %s", resp.Status, snippet(body))
}

func remainingSpent(h http.Header) bool {
	remaining, ok := headerFloat(h, "X-Ratelimit-Remaining")
	return ok && remaining < 1
}

// retryAfter reads the server's suggested wait from Retry-After, falling back
// to the quota reset header.
func retryAfter(h http.Header) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	if reset, ok := headerFloat(h, "X-Ratelimit-Reset"); ok && reset > 0 {
		return time.Duration(reset * float64(time.Second))
	}
	return 0
}

func headerFloat(h http.Header, key string) (float64, bool) {
	v := strings.TrimSpace(h.Get(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
