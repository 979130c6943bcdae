package pipeline

import (
	"math"
	"strings"
	"time"

	"github.com/FranksOps/dugout/internal/search"
	"github.com/FranksOps/dugout/internal/storage"
	"github.com/FranksOps/dugout/internal/textnorm"
)

// DefaultPermalinkBase prefixes the site-relative permalinks the API returns.
const DefaultPermalinkBase = "https://reddit.com"

// BuildPost turns a search hit into a post record. It reports false when the
// normalized title and body are empty or the item has no permalink, and the
// caller must skip the item.
func BuildPost(item *search.Post, forum, keyword, base string) (*storage.Record, bool) {
	if item == nil {
		return nil, false
	}
	text := textnorm.Join(item.Title, item.Body)
	return build(storage.SourcePost, text, item.Author, item.Permalink, item.CreatedUTC, forum, keyword, base)
}

// BuildReply turns a reply into a record. forum and keyword are those of the
// task that found the enclosing post; the reply text is not matched itself.
func BuildReply(item *search.Reply, forum, keyword, base string) (*storage.Record, bool) {
	if item == nil {
		return nil, false
	}
	return build(storage.SourceReply, textnorm.Clean(item.Body), item.Author, item.Permalink, item.CreatedUTC, forum, keyword, base)
}

func build(source storage.Source, text, author, permalink string, created float64, forum, keyword, base string) (*storage.Record, bool) {
	if text == "" || permalink == "" {
		return nil, false
	}
	return &storage.Record{
		Source:         source,
		Forum:          forum,
		Author:         authorOf(author),
		Text:           text,
		Permalink:      absolute(base, permalink),
		CreatedAt:      epoch(created),
		MatchedKeyword: keyword,
	}, true
}

// authorOf maps deleted and anonymous authors to nil.
func authorOf(name string) *string {
	name = strings.TrimSpace(name)
	if name == "" || name == "[deleted]" {
		return nil
	}
	return &name
}

func absolute(base, permalink string) string {
	if strings.HasPrefix(permalink, "https://") || strings.HasPrefix(permalink, "http://") {
		return permalink
	}
	if base == "" {
		base = DefaultPermalinkBase
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(permalink, "/") {
		permalink = "/" + permalink
	}
	return base + permalink
}

func epoch(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
