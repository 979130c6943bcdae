package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/FranksOps/dugout/internal/storage"
)

func strPtr(s string) *string { return &s }

func sample(now time.Time) []*storage.Record {
	return []*storage.Record{
		{Source: storage.SourcePost, Forum: "baseball", Author: strPtr("a"), Text: "Yankees win", Permalink: "p1", CreatedAt: now, MatchedKeyword: "Yankees"},
		{Source: storage.SourceReply, Forum: "baseball", Text: "agreed", Permalink: "p1/c1", CreatedAt: now.Add(time.Hour), MatchedKeyword: "Yankees"},
		{Source: storage.SourcePost, Forum: "NYYankees", Author: strPtr("b"), Text: "Yankees win", Permalink: "p1", CreatedAt: now.Add(2 * time.Hour), MatchedKeyword: "Bronx Bombers"},
		{Source: storage.SourcePost, Forum: "NewYorkMets", Author: strPtr("c"), Text: "lgm", Permalink: "p2", CreatedAt: now.Add(-time.Hour), MatchedKeyword: "Mets"},
	}
}

func TestGenerateSummary(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	summary := GenerateSummary(sample(now))

	if summary.TotalRecords != 4 {
		t.Errorf("expected 4 total records, got %d", summary.TotalRecords)
	}
	if summary.Posts != 3 || summary.Replies != 1 {
		t.Errorf("expected 3 posts and 1 reply, got %d and %d", summary.Posts, summary.Replies)
	}
	if summary.AnonymousAuthors != 1 {
		t.Errorf("expected 1 record without author, got %d", summary.AnonymousAuthors)
	}
	if summary.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", summary.Duplicates)
	}
	if summary.AvgCharLen != 7.75 {
		t.Errorf("expected avg length 7.75, got %v", summary.AvgCharLen)
	}
	if !summary.Earliest.Equal(now.Add(-time.Hour)) || !summary.Latest.Equal(now.Add(2*time.Hour)) {
		t.Errorf("unexpected time range %v - %v", summary.Earliest, summary.Latest)
	}
	if summary.Span != "3h0m0s" {
		t.Errorf("expected 3h span, got %s", summary.Span)
	}

	wantForums := []Count{{"baseball", 2}, {"NYYankees", 1}, {"NewYorkMets", 1}}
	if diff := cmp.Diff(wantForums, summary.Forums); diff != "" {
		t.Errorf("forums mismatch (-want +got):\n%s", diff)
	}
	wantKeywords := []Count{{"Yankees", 2}, {"Bronx Bombers", 1}, {"Mets", 1}}
	if diff := cmp.Diff(wantKeywords, summary.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateSummary_Empty(t *testing.T) {
	summary := GenerateSummary(nil)
	if summary.TotalRecords != 0 || summary.Forums != nil {
		t.Errorf("expected zero summary, got %+v", summary)
	}
}

func TestTop(t *testing.T) {
	counts := []Count{{"a", 3}, {"b", 2}, {"c", 1}}
	if got := Top(counts, 2); len(got) != 2 {
		t.Errorf("expected 2 buckets, got %d", len(got))
	}
	if got := Top(counts, 0); len(got) != 3 {
		t.Errorf("expected every bucket, got %d", len(got))
	}
}

func TestWriteJSON(t *testing.T) {
	summary := Summary{
		TotalRecords: 5,
	}
	var buf bytes.Buffer
	err := WriteJSON(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"total_records": 5`) {
		t.Errorf("expected JSON to contain total_records: 5")
	}
}

func TestWriteText(t *testing.T) {
	summary := GenerateSummary(sample(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)))
	var buf bytes.Buffer
	err := WriteText(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Records:       4 (3 posts, 1 replies)") {
		t.Errorf("expected record counts in text, got:\n%s", out)
	}
	if !strings.Contains(out, "baseball: 2") {
		t.Errorf("expected text to contain baseball: 2")
	}
}

func TestWriteText_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, Summary{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "Created:") {
		t.Errorf("expected no time range for an empty dataset")
	}
}

func TestWriteTable(t *testing.T) {
	summary := GenerateSummary(sample(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)))
	var buf bytes.Buffer
	if err := WriteTable(&buf, summary, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "baseball") || !strings.Contains(out, "Yankees") {
		t.Errorf("expected the top forum and keyword, got:\n%s", out)
	}
	if strings.Contains(out, "NewYorkMets") {
		t.Errorf("expected rows beyond the limit to be cut")
	}
}

func TestWriteHTML(t *testing.T) {
	summary := Summary{
		TotalRecords: 10,
		Duplicates:   2,
		Forums:       []Count{{"<b>baseball</b>", 10}},
	}
	var buf bytes.Buffer
	err := WriteHTML(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>Dugout Dataset Report</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, "&lt;b&gt;baseball&lt;/b&gt;") {
		t.Errorf("expected forum names to be escaped")
	}
}
