// Package pipeline runs the collection loop: every (forum, keyword) task is
// searched in turn, hits and their replies become records, and the growing
// record list is checkpointed to storage as it goes.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/FranksOps/dugout/internal/dedup"
	"github.com/FranksOps/dugout/internal/keywords"
	"github.com/FranksOps/dugout/internal/metrics"
	"github.com/FranksOps/dugout/internal/search"
	"github.com/FranksOps/dugout/internal/storage"
	"github.com/FranksOps/dugout/pkg/retry"
)

// Config tunes a collection run.
type Config struct {
	Sort string
	Time search.TimeFilter
	// Limit caps the posts taken per task.
	Limit          int
	IncludeReplies bool
	Replies        search.ReplyOptions
	// CheckpointEvery writes a snapshot whenever the record count reaches a
	// multiple of it after a post. Zero leaves only the per-forum snapshots.
	CheckpointEvery int
	PermalinkBase   string
	// Retry governs repeats of rate limited calls.
	Retry retry.Config
	RunID string
}

// DefaultConfig mirrors the command line defaults.
func DefaultConfig() Config {
	return Config{
		Sort:            search.SortNew,
		Time:            search.TimeWeek,
		Limit:           50,
		Replies:         search.ReplyOptions{Max: 20},
		CheckpointEvery: 1000,
		PermalinkBase:   DefaultPermalinkBase,
		Retry:           retry.DefaultConfig(),
	}
}

// Pipeline owns the record accumulator of one run. It is not safe for
// concurrent use.
type Pipeline struct {
	cfg        Config
	searcher   search.Searcher
	checkpoint storage.Backend
	logger     *slog.Logger

	records []*storage.Record
}

// New builds a Pipeline. checkpoint may be nil to disable snapshots.
func New(cfg Config, searcher search.Searcher, checkpoint storage.Backend, logger *slog.Logger) *Pipeline {
	d := DefaultConfig()
	if cfg.Sort == "" {
		cfg.Sort = d.Sort
	}
	if cfg.Time == "" {
		cfg.Time = d.Time
	}
	if cfg.Limit <= 0 {
		cfg.Limit = d.Limit
	}
	if cfg.PermalinkBase == "" {
		cfg.PermalinkBase = d.PermalinkBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RunID != "" {
		logger = logger.With("run_id", cfg.RunID)
	}
	return &Pipeline{
		cfg:        cfg,
		searcher:   searcher,
		checkpoint: checkpoint,
		logger:     logger,
	}
}

// Run executes tasks in order, one at a time, and returns the deduplicated
// records. A fatal error ends the run with nil records; snapshots written
// before it stay on disk.
func (p *Pipeline) Run(ctx context.Context, tasks []keywords.Task) ([]*storage.Record, error) {
	if p.searcher == nil {
		return nil, errors.New("pipeline has no searcher")
	}
	p.records = nil
	start := time.Now()

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.logger.Info("searching", "forum", task.Forum, "keyword", task.Keyword, "task", i+1, "of", len(tasks))
		if err := p.runTask(ctx, task); err != nil {
			if fatal(err) {
				p.logger.Error("run aborted", "forum", task.Forum, "keyword", task.Keyword, "records", len(p.records), "error", err)
				return nil, err
			}
			metrics.TaskErrors.WithLabelValues(task.Forum).Inc()
			p.logger.Warn("task aborted", "forum", task.Forum, "keyword", task.Keyword, "error", err)
		}

		if i == len(tasks)-1 || tasks[i+1].Forum != task.Forum {
			p.writeCheckpoint(ctx, "forum", task.Forum)
		}
	}

	out := dedup.Records(p.records)
	p.logger.Info("collection finished",
		"tasks", len(tasks),
		"records", len(p.records),
		"unique", len(out),
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	return out, nil
}

func (p *Pipeline) runTask(ctx context.Context, task keywords.Task) error {
	q := search.Query{
		Forum:   task.Forum,
		Keyword: task.Keyword,
		Sort:    p.cfg.Sort,
		Time:    p.cfg.Time,
		Limit:   p.cfg.Limit,
	}

	seen := 0
	after := ""
	for {
		var page *search.Page
		err := p.call(ctx, func(ctx context.Context) error {
			var err error
			page, err = p.searcher.Search(ctx, q, after)
			return err
		})
		if err != nil {
			return err
		}

		for _, post := range page.Posts {
			if seen >= p.cfg.Limit {
				return nil
			}
			seen++
			if err := p.handlePost(ctx, task, post); err != nil {
				return err
			}
		}

		if page.After == "" || page.After == after || len(page.Posts) == 0 || seen >= p.cfg.Limit {
			return nil
		}
		after = page.After
	}
}

func (p *Pipeline) handlePost(ctx context.Context, task keywords.Task, post *search.Post) error {
	rec, ok := BuildPost(post, task.Forum, task.Keyword, p.cfg.PermalinkBase)
	if !ok {
		return nil
	}
	p.add(rec)

	if p.cfg.IncludeReplies {
		var replies []*search.Reply
		err := p.call(ctx, func(ctx context.Context) error {
			var err error
			replies, err = p.searcher.Replies(ctx, post, p.cfg.Replies)
			return err
		})
		if err != nil {
			return err
		}
		for _, r := range replies {
			if rrec, ok := BuildReply(r, task.Forum, task.Keyword, p.cfg.PermalinkBase); ok {
				p.add(rrec)
			}
		}
	}

	if every := p.cfg.CheckpointEvery; every > 0 && len(p.records)%every == 0 {
		p.writeCheckpoint(ctx, "periodic", task.Forum)
	}
	return nil
}

func (p *Pipeline) add(rec *storage.Record) {
	p.records = append(p.records, rec)
	metrics.RecordsCollected.WithLabelValues(rec.Forum, string(rec.Source)).Inc()
}

// call runs fn, repeating it while it reports a rate limit.
func (p *Pipeline) call(ctx context.Context, fn func(context.Context) error) error {
	cfg := p.cfg.Retry
	cfg.IsRetryable = func(err error) bool {
		return errors.Is(err, search.ErrRateLimited)
	}
	cfg.Hint = search.RetryAfter
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.RateLimitRetries.Inc()
		p.logger.Warn("rate limited, backing off", "attempt", attempt, "delay", delay.String(), "error", err)
	}
	return retry.Do(ctx, cfg, fn)
}

// writeCheckpoint overwrites the checkpoint with every record so far. A
// failure is logged and the run goes on with its records intact.
func (p *Pipeline) writeCheckpoint(ctx context.Context, reason, forum string) {
	if p.checkpoint == nil {
		return
	}
	err := p.checkpoint.Replace(ctx, p.records)
	metrics.RecordCheckpoint(len(p.records), err)
	if err != nil {
		p.logger.Error("checkpoint failed", "reason", reason, "forum", forum, "records", len(p.records), "error", err)
		return
	}
	p.logger.Info("checkpoint written", "reason", reason, "forum", forum, "records", len(p.records))
}

// Records returns the raw accumulator, duplicates included.
func (p *Pipeline) Records() []*storage.Record {
	return p.records
}

func fatal(err error) bool {
	return search.IsFatal(err) || errors.Is(err, retry.ErrMaxAttemptsExceeded)
}
