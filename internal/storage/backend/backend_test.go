package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/dugout/internal/storage"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		target   string
		kind     Kind
		location string
	}{
		{"reddit-teams.csv", KindCSV, "reddit-teams.csv"},
		{"out/data", KindCSV, "out/data"},
		{"batch.JSONL", KindJSON, "batch.JSONL"},
		{"batch.ndjson", KindJSON, "batch.ndjson"},
		{"runs.db", KindSQLite, "runs.db"},
		{"sqlite:///tmp/runs", KindSQLite, "/tmp/runs"},
		{"postgres://u:p@localhost/dugout", KindPostgres, "postgres://u:p@localhost/dugout"},
		{"postgresql://localhost/dugout", KindPostgres, "postgresql://localhost/dugout"},
	}

	for _, tt := range tests {
		kind, loc := Detect(tt.target)
		if kind != tt.kind || loc != tt.location {
			t.Errorf("Detect(%q) = %s, %s; want %s, %s", tt.target, kind, loc, tt.kind, tt.location)
		}
	}

	if IsFile("postgres://localhost/x") {
		t.Error("postgres target should not be a file")
	}
	if !IsFile("x.csv") {
		t.Error("csv target should be a file")
	}
}

func TestOpen_RoundTripsEachFileKind(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	rec := &storage.Record{
		Source:         storage.SourcePost,
		Forum:          "baseball",
		Text:           "Yankees win",
		Permalink:      "https://reddit.com/r/baseball/comments/a/",
		CreatedAt:      time.Date(2025, 7, 4, 18, 0, 0, 0, time.UTC),
		MatchedKeyword: "Yankees",
	}

	for _, name := range []string{"out.csv", "out.jsonl", "out.db"} {
		t.Run(name, func(t *testing.T) {
			b, err := Open(ctx, filepath.Join(dir, name), storage.Options{})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer b.Close()

			if err := b.Replace(ctx, []*storage.Record{rec}); err != nil {
				t.Fatalf("Replace failed: %v", err)
			}
			got, err := b.Query(ctx, storage.Filter{})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != 1 || got[0].Text != rec.Text || !got[0].CreatedAt.Equal(rec.CreatedAt) {
				t.Errorf("unexpected roundtrip result %v", got)
			}
		})
	}

	if _, err := Open(ctx, "", storage.Options{}); err == nil {
		t.Error("expected error for empty target")
	}
}
