package jsonbackend

import (
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

func TestJSONBackend(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "dugout.jsonl")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	recs := []*storage.Record{
		{
			Source:         storage.SourcePost,
			Forum:          "mlb",
			Author:         strPtr("amazin"),
			Text:           "Mets <3 & stuff",
			Permalink:      "https://reddit.com/r/mlb/comments/1/",
			CreatedAt:      now.Add(-time.Hour),
			MatchedKeyword: "Mets",
			CharLen:        15,
		},
		{
			Source:         storage.SourceReply,
			Forum:          "mlb",
			Text:           "LGM",
			Permalink:      "https://reddit.com/r/mlb/comments/1/c/",
			CreatedAt:      now,
			MatchedKeyword: "Mets",
			CharLen:        3,
		},
	}

	if err := b.Replace(ctx, recs[:1]); err != nil {
		t.Fatalf("Failed to save first snapshot: %v", err)
	}
	if err := b.Replace(ctx, recs); err != nil {
		t.Fatalf("Failed to save second snapshot: %v", err)
	}

	got, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if diff := cmp.Diff(recs, got); diff != "" {
		t.Errorf("roundtrip mismatch (-want +got):\n%s", diff)
	}

	limited, err := b.Query(ctx, storage.Filter{Limit: 1})
	if err != nil {
		t.Fatalf("Failed to query limit: %v", err)
	}
	if len(limited) != 1 || limited[0].Source != storage.SourcePost {
		t.Errorf("expected the post first, got %v", limited)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], `"author":null`) {
		t.Errorf("expected null author for absent author, got %s", lines[1])
	}
	if !strings.Contains(lines[0], "<3 & stuff") {
		t.Errorf("expected unescaped text, got %s", lines[0])
	}
}

func TestJSONBackend_MissingFile(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := b.Query(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}
