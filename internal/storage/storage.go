package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Source says whether a record came from a top-level post or a reply to one.
type Source string

const (
	SourcePost  Source = "post"
	SourceReply Source = "reply"
)

// ErrUnknownSource is returned when a stored source value cannot be mapped.
var ErrUnknownSource = errors.New("unknown record source")

// ParseSource accepts the current values and the legacy reddit_post and
// reddit_comment spellings found in older batch files.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "post", "reddit_post":
		return SourcePost, nil
	case "reply", "comment", "reddit_comment":
		return SourceReply, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// TimeLayout renders timestamps as ISO-8601 with an explicit +00:00 offset.
const TimeLayout = "2006-01-02T15:04:05-07:00"

// Record is one collected post or reply.
type Record struct {
	Source Source `json:"source"`
	Forum  string `json:"forum"`
	// Author is nil for deleted or anonymous authors, never "".
	Author         *string   `json:"author"`
	Text           string    `json:"text"`
	Permalink      string    `json:"permalink"`
	CreatedAt      time.Time `json:"created_at"`
	MatchedKeyword string    `json:"matched_keyword"`
	// CharLen is set by the final dedup pass. Zero means not computed.
	CharLen int `json:"char_len,omitempty"`
}

// Key identifies the observation a record describes. Two records with the
// same key are the same observation, whichever task produced them.
type Key struct {
	Text      string
	Permalink string
}

// Key returns the dedup identity of r.
func (r *Record) Key() Key {
	return Key{Text: r.Text, Permalink: r.Permalink}
}

// AuthorName returns the author or "" when absent.
func (r *Record) AuthorName() string {
	if r.Author == nil {
		return ""
	}
	return *r.Author
}

// CreatedAtString renders CreatedAt in UTC using TimeLayout.
func (r *Record) CreatedAtString() string {
	return r.CreatedAt.UTC().Format(TimeLayout)
}

// TextLen is the length of Text in Unicode code points.
func (r *Record) TextLen() int {
	return utf8.RuneCountInString(r.Text)
}

// HasCharLen reports whether any record carries a computed char_len, which
// decides whether tabular writers emit that column.
func HasCharLen(records []*Record) bool {
	for _, r := range records {
		if r.CharLen > 0 {
			return true
		}
	}
	return false
}

// Filter narrows a Query.
type Filter struct {
	Forum          string
	MatchedKeyword string
	Source         Source
	Since          *time.Time
	// RunID restricts database backends to one collection run.
	RunID  string
	Limit  int
	Offset int
}

// Match applies the field filters of f to r. Limit and Offset are left to the
// caller.
func (f Filter) Match(r *Record) bool {
	if f.Forum != "" && r.Forum != f.Forum {
		return false
	}
	if f.MatchedKeyword != "" && r.MatchedKeyword != f.MatchedKeyword {
		return false
	}
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Offset and Limit to records already in result order.
func (f Filter) Page(records []*Record) []*Record {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*Record{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Options configures an opened backend.
type Options struct {
	// RunID scopes Replace for backends that hold several runs in one table.
	RunID string
}

// Backend persists record snapshots and reads them back in insertion order.
type Backend interface {
	// Replace overwrites everything this backend previously wrote for the
	// current run with records.
	Replace(ctx context.Context, records []*Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
