package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/dugout/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	path string
}

// headers defines the CSV column order. char_len is appended only when the
// records being written carry it.
var headers = []string{
	"source",
	"forum",
	"author",
	"text",
	"permalink",
	"created_at",
	"matched_keyword",
}

const charLenHeader = "char_len"

// legacy column names written by older collectors
var aliases = map[string]string{
	"subreddit":   "forum",
	"created_utc": "created_at",
}

// New creates a CSV-backed storage.Backend. The file is not touched until the
// first Replace.
func New(filePath string) (storage.Backend, error) {
	if filePath == "" {
		return nil, fmt.Errorf("csv backend: empty path")
	}
	return &csvBackend{path: filePath}, nil
}

// Replace writes every record to a temp file next to the target and renames
// it into place, so a concurrent reader sees either the old or the new file.
func (b *csvBackend) Replace(ctx context.Context, records []*storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(b.path), "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}
	return nil
}

// Write encodes records as CSV with a header row.
func Write(w io.Writer, records []*storage.Record) error {
	withLen := storage.HasCharLen(records)

	cols := headers
	if withLen {
		cols = append(append([]string{}, headers...), charLenHeader)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range records {
		row := []string{
			string(r.Source),
			r.Forum,
			r.AuthorName(),
			r.Text,
			r.Permalink,
			r.CreatedAtString(),
			r.MatchedKeyword,
		}
		if withLen {
			n := ""
			if r.CharLen > 0 {
				n = strconv.Itoa(r.CharLen)
			}
			row = append(row, n)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*storage.Record{}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", b.path, err)
	}
	defer f.Close()

	all, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.path, err)
	}

	var filtered []*storage.Record
	for _, r := range all {
		if filter.Match(r) {
			filtered = append(filtered, r)
		}
	}
	return filter.Page(filtered), nil
}

// Read decodes a CSV record table. Columns are located by header name, so
// extra columns are ignored and legacy names are accepted.
func Read(r io.Reader) ([]*storage.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return []*storage.Record{}, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		idx[name] = i
	}
	for _, required := range []string{"source", "text", "permalink"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := []*storage.Record{}
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		source, err := storage.ParseSource(field(row, "source"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := &storage.Record{
			Source:         source,
			Forum:          field(row, "forum"),
			Text:           field(row, "text"),
			Permalink:      field(row, "permalink"),
			MatchedKeyword: field(row, "matched_keyword"),
		}
		if author := field(row, "author"); author != "" {
			rec.Author = &author
		}
		if ts := field(row, "created_at"); ts != "" {
			createdAt, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad created_at: %w", line, err)
			}
			rec.CreatedAt = createdAt.UTC()
		}
		if n := field(row, charLenHeader); n != "" {
			// pandas writes integer columns with gaps as floats
			if v, err := strconv.ParseFloat(n, 64); err == nil {
				rec.CharLen = int(v)
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

func (b *csvBackend) Close() error {
	return nil
}
