package reddit

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/dugout/internal/search"
)

const (
	kindComment = "t1"
	kindLink    = "t3"
	kindMore    = "more"
)

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type linkData struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Selftext     string  `json:"selftext"`
	SelftextHTML string  `json:"selftext_html"`
	Author       string  `json:"author"`
	Permalink    string  `json:"permalink"`
	CreatedUTC   float64 `json:"created_utc"`
	NumComments  int     `json:"num_comments"`
}

func (d linkData) post() *search.Post {
	return &search.Post{
		ID:         d.ID,
		Title:      d.Title,
		Body:       bodyText(d.Selftext, d.SelftextHTML),
		Author:     d.Author,
		Permalink:  d.Permalink,
		CreatedUTC: d.CreatedUTC,
		NumReplies: d.NumComments,
	}
}

type commentData struct {
	ID         string  `json:"id"`
	ParentID   string  `json:"parent_id"`
	Body       string  `json:"body"`
	BodyHTML   string  `json:"body_html"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	Depth      int     `json:"depth"`
	// Replies is "" for a leaf and a listing otherwise.
	Replies json.RawMessage `json:"replies"`
}

func (d commentData) reply() *search.Reply {
	return &search.Reply{
		ID:         d.ID,
		ParentID:   d.ParentID,
		Body:       bodyText(d.Body, d.BodyHTML),
		Author:     d.Author,
		Permalink:  d.Permalink,
		CreatedUTC: d.CreatedUTC,
		Depth:      d.Depth,
	}
}

// walkComments appends comments depth-first in delivery order, skipping
// "more" stubs, and stops once opts.Max replies are collected.
func walkComments(children []thing, opts search.ReplyOptions, out []*search.Reply) ([]*search.Reply, error) {
	for _, child := range children {
		if opts.Max > 0 && len(out) >= opts.Max {
			return out, nil
		}
		if child.Kind != kindComment {
			continue
		}
		var d commentData
		if err := json.Unmarshal(child.Data, &d); err != nil {
			return out, err
		}
		out = append(out, d.reply())

		if !opts.Flatten {
			continue
		}
		nested, err := nestedListing(d.Replies)
		if err != nil {
			return out, err
		}
		if nested == nil {
			continue
		}
		if out, err = walkComments(nested.Data.Children, opts, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func nestedListing(raw json.RawMessage) (*listing, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	var l listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// bodyText prefers the plain body, falls back to the text of the rendered
// HTML, and blanks out moderation placeholders.
func bodyText(plain, html string) string {
	if isPlaceholder(plain) {
		return ""
	}
	if strings.TrimSpace(plain) != "" || strings.TrimSpace(html) == "" {
		return plain
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	text := doc.Text()
	if isPlaceholder(text) {
		return ""
	}
	return text
}

func isPlaceholder(s string) bool {
	switch strings.TrimSpace(s) {
	case "[deleted]", "[removed]":
		return true
	}
	return false
}
