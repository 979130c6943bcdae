package csvbackend

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/dugout/internal/storage"
	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string { return &s }

func sampleRecords(now time.Time) []*storage.Record {
	return []*storage.Record{
		{
			Source:         storage.SourcePost,
			Forum:          "baseball",
			Author:         strPtr("bronx_fan"),
			Text:           `Yankees win, "again"`,
			Permalink:      "https://reddit.com/r/baseball/comments/abc/yankees_win/",
			CreatedAt:      now.Add(-2 * time.Hour),
			MatchedKeyword: "Yankees",
		},
		{
			Source:         storage.SourceReply,
			Forum:          "baseball",
			Author:         nil,
			Text:           "deleted user said something",
			Permalink:      "https://reddit.com/r/baseball/comments/abc/yankees_win/c1/",
			CreatedAt:      now.Add(-1 * time.Hour),
			MatchedKeyword: "Yankees",
		},
	}
}

func TestCSVBackend(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "dugout.csv")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create CSV backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second) // layout has second precision

	// Query before the first write is empty, not an error
	empty, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Query on missing file failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Expected 0 results, got %d", len(empty))
	}

	recs := sampleRecords(now)
	if err := b.Replace(ctx, recs[:1]); err != nil {
		t.Fatalf("Failed to write first snapshot: %v", err)
	}
	if err := b.Replace(ctx, recs); err != nil {
		t.Fatalf("Failed to write second snapshot: %v", err)
	}

	// Snapshots overwrite, they never append
	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if diff := cmp.Diff(recs, all); diff != "" {
		t.Errorf("roundtrip mismatch (-want +got):\n%s", diff)
	}

	// Test Source filter
	replies, err := b.Query(ctx, storage.Filter{Source: storage.SourceReply})
	if err != nil {
		t.Fatalf("Failed to query by source: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("Expected 1 reply, got %d", len(replies))
	}
	if replies[0].Author != nil {
		t.Errorf("Expected absent author to stay absent, got %q", *replies[0].Author)
	}

	// Test Since filter
	past := now.Add(-90 * time.Minute)
	since, err := b.Query(ctx, storage.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query by Since: %v", err)
	}
	if len(since) != 1 || since[0].Source != storage.SourceReply {
		t.Errorf("Expected only the reply after %v, got %v", past, since)
	}

	// Test offset
	offset, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query offset: %v", err)
	}
	if len(offset) != 1 || offset[0].Source != storage.SourceReply {
		t.Errorf("Expected reply at offset 1, got %v", offset)
	}

	// No temp files left behind
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the csv file in %s, found %d entries", tmpDir, len(entries))
	}
}

func TestWrite_CharLenColumn(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	recs := sampleRecords(now)

	var checkpoint bytes.Buffer
	if err := Write(&checkpoint, recs); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	header := strings.SplitN(checkpoint.String(), "\n", 2)[0]
	if header != "source,forum,author,text,permalink,created_at,matched_keyword" {
		t.Errorf("unexpected checkpoint header %q", header)
	}

	for _, r := range recs {
		r.CharLen = r.TextLen()
	}
	var final bytes.Buffer
	if err := Write(&final, recs); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(final.String()), "\n")
	if !strings.HasSuffix(lines[0], ",char_len") {
		t.Errorf("expected char_len column in final header, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "2025-06-01T10:00:00+00:00") {
		t.Errorf("expected UTC timestamp in row, got %q", lines[1])
	}
	if !strings.HasSuffix(lines[1], ",20") {
		t.Errorf("expected char_len 20 for first row, got %q", lines[1])
	}
}

func TestRead_LegacyColumns(t *testing.T) {
	legacy := "source,subreddit,author,text,permalink,created_utc,matched_keyword,char_len\n" +
		"reddit_post,mlb,someone,Mets win,https://reddit.com/r/mlb/comments/x/,2025-05-01T01:02:03+00:00,Mets,8.0\n" +
		"reddit_comment,mlb,,LGM,https://reddit.com/r/mlb/comments/x/c/,2025-05-01T01:05:00+00:00,Mets,\n"

	recs, err := Read(strings.NewReader(legacy))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Source != storage.SourcePost || recs[0].Forum != "mlb" || recs[0].CharLen != 8 {
		t.Errorf("unexpected first record %+v", recs[0])
	}
	if recs[1].Source != storage.SourceReply || recs[1].Author != nil || recs[1].CharLen != 0 {
		t.Errorf("unexpected second record %+v", recs[1])
	}
	want := time.Date(2025, 5, 1, 1, 2, 3, 0, time.UTC)
	if !recs[0].CreatedAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, recs[0].CreatedAt)
	}
}

func TestRead_Errors(t *testing.T) {
	if _, err := Read(strings.NewReader("forum,author\nmlb,x\n")); err == nil {
		t.Error("expected error for missing required columns")
	}
	bad := "source,text,permalink\ntweet,hi,https://x\n"
	if _, err := Read(strings.NewReader(bad)); err == nil {
		t.Error("expected error for unknown source")
	}
	recs, err := Read(strings.NewReader(""))
	if err != nil || len(recs) != 0 {
		t.Errorf("expected empty result for empty input, got %v, %v", recs, err)
	}
}
