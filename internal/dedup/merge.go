package dedup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/dugout/internal/storage"
	"github.com/FranksOps/dugout/internal/storage/backend"
)

const (
	DefaultPattern = "reddit_batch*.csv"
	DefaultOutput  = "reddit_data.csv"
)

// ErrNoInputs is returned when no file in the directory matches the pattern.
var ErrNoInputs = errors.New("no files matched")

// MergeOptions configures Merge.
type MergeOptions struct {
	Dir     string
	Pattern string
	// Output is a file name inside Dir.
	Output string
	// Dedup drops rows whose (text, permalink) key was already seen in an
	// earlier row. Without it, rows are concatenated as read.
	Dedup bool
	// Concurrency bounds parallel file reads. Zero uses GOMAXPROCS.
	Concurrency int
}

// MergeResult describes a completed merge.
type MergeResult struct {
	Files      []string
	Output     string
	Rows       int
	Duplicates int
}

// Merge concatenates every batch file in Dir matching Pattern, in lexical
// filename order, and writes the result to Dir/Output.
func Merge(ctx context.Context, opts MergeOptions) (*MergeResult, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if opts.Output == "" {
		opts.Output = DefaultOutput
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}

	files, err := inputs(opts)
	if err != nil {
		return nil, err
	}

	batches := make([][]*storage.Record, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, path := range files {
		g.Go(func() error {
			recs, err := readFile(gctx, path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			batches[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*storage.Record
	for _, b := range batches {
		all = append(all, b...)
	}

	res := &MergeResult{Files: files, Output: filepath.Join(opts.Dir, opts.Output)}
	if opts.Dedup {
		all, res.Duplicates = collapse(all)
	}
	res.Rows = len(all)

	out, err := backend.Open(ctx, res.Output, storage.Options{})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", res.Output, err)
	}
	defer out.Close()
	if err := out.Replace(ctx, all); err != nil {
		return nil, fmt.Errorf("write %s: %w", res.Output, err)
	}
	return res, nil
}

// inputs lists the matching files in lexical order, leaving out the output.
func inputs(opts MergeOptions) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(opts.Dir, opts.Pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", opts.Pattern, err)
	}
	output := filepath.Clean(filepath.Join(opts.Dir, opts.Output))

	var files []string
	for _, m := range matches {
		if filepath.Clean(m) == output {
			continue
		}
		files = append(files, m)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w %q in %s", ErrNoInputs, opts.Pattern, opts.Dir)
	}
	sort.Strings(files)
	return files, nil
}

func readFile(ctx context.Context, path string) ([]*storage.Record, error) {
	b, err := backend.Open(ctx, path, storage.Options{})
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return b.Query(ctx, storage.Filter{})
}
