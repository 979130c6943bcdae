// Package search defines the content search capability the collector runs
// against. Implementations may talk to a live API or serve canned results.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeFilter bounds how far back a search looks.
type TimeFilter string

const (
	TimeHour  TimeFilter = "hour"
	TimeDay   TimeFilter = "day"
	TimeWeek  TimeFilter = "week"
	TimeMonth TimeFilter = "month"
	TimeYear  TimeFilter = "year"
	TimeAll   TimeFilter = "all"
)

// ErrInvalidTimeFilter is returned by ParseTimeFilter.
var ErrInvalidTimeFilter = errors.New("time filter must be one of: hour, day, week, month, year, all")

// ParseTimeFilter validates s.
func ParseTimeFilter(s string) (TimeFilter, error) {
	switch tf := TimeFilter(strings.ToLower(s)); tf {
	case TimeHour, TimeDay, TimeWeek, TimeMonth, TimeYear, TimeAll:
		return tf, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTimeFilter, s)
}

// SortNew orders results newest first.
const SortNew = "new"

// Query describes one search request.
type Query struct {
	Forum   string
	Keyword string
	Sort    string
	Time    TimeFilter
	// Limit caps the total number of posts across all pages.
	Limit int
}

// String renders the query text: a quoted keyword matched against the title
// or the body.
func (q Query) String() string {
	kw := strings.ReplaceAll(q.Keyword, `"`, ``)
	return fmt.Sprintf(`title:"%s" OR selftext:"%s"`, kw, kw)
}

// Post is a top-level submission returned by a search.
type Post struct {
	ID     string
	Title  string
	Body   string
	Author string
	// Permalink may be site-relative ("/r/x/comments/...") or absolute.
	Permalink  string
	CreatedUTC float64
	NumReplies int
}

// Reply is a comment under a post.
type Reply struct {
	ID         string
	ParentID   string
	Body       string
	Author     string
	Permalink  string
	CreatedUTC float64
	// Depth is 0 for top-level replies.
	Depth int
}

// Page is one slice of a paginated search listing.
type Page struct {
	Posts []*Post
	// After is the cursor for the next page, empty at the end of the listing.
	After string
}

// ReplyOptions controls which replies Replies returns.
type ReplyOptions struct {
	// Max caps the number of replies, in delivery order. Zero means no cap.
	Max int
	// Flatten includes nested replies depth-first. When false only top-level
	// replies are returned.
	Flatten bool
}

// Searcher is the search capability. Implementations remove "load more"
// placeholder nodes before returning replies.
type Searcher interface {
	Search(ctx context.Context, q Query, after string) (*Page, error)
	Replies(ctx context.Context, post *Post, opts ReplyOptions) ([]*Reply, error)
}

var (
	// ErrRateLimited signals that the request may succeed if repeated later.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized means the credentials were rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForumNotFound means the forum does not exist or cannot be searched.
	ErrForumNotFound = errors.New("forum not found")
)

// RateLimitError is a rate limit signal carrying the server's suggested wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Is makes errors.Is(err, ErrRateLimited) hold for *RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsFatal reports whether err should stop the whole run rather than a single
// task.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForumNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// RetryAfter extracts the suggested wait from a rate limit error, or zero.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
