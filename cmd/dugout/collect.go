package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FranksOps/dugout/internal/config"
	"github.com/FranksOps/dugout/internal/fingerprint"
	"github.com/FranksOps/dugout/internal/keywords"
	"github.com/FranksOps/dugout/internal/logger"
	"github.com/FranksOps/dugout/internal/metrics"
	"github.com/FranksOps/dugout/internal/pipeline"
	"github.com/FranksOps/dugout/internal/reddit"
	"github.com/FranksOps/dugout/internal/search"
	"github.com/FranksOps/dugout/internal/storage"
	"github.com/FranksOps/dugout/internal/storage/backend"
	"github.com/FranksOps/dugout/pkg/proxy"
	"github.com/FranksOps/dugout/pkg/ratelimit"
)

var collectFlags = map[string]string{
	"client-id":        "reddit.client_id",
	"client-secret":    "reddit.client_secret",
	"user-agent":       "reddit.user_agent",
	"api-base":         "reddit.api_base",
	"auth-url":         "reddit.auth_url",
	"limit":            "collect.limit",
	"time-filter":      "collect.time_filter",
	"keywords":         "collect.keywords",
	"subs":             "collect.subs",
	"teams":            "collect.teams",
	"include-comments": "collect.include_comments",
	"max-comments":     "collect.max_comments",
	"flatten-comments": "collect.flatten_comments",
	"out":              "collect.out",
	"checkpoint":       "collect.checkpoint",
	"checkpoint-every": "collect.checkpoint_every",
	"timeout":          "http.timeout",
	"rps":              "http.rps",
	"jitter":           "http.jitter",
	"tls-profile":      "http.tls_profile",
	"proxy":            "http.proxies",
	"proxy-file":       "http.proxy_file",
	"retry-attempts":   "retry.max_attempts",
	"retry-initial":    "retry.initial_delay",
	"retry-max":        "retry.max_delay",
	"retry-multiplier": "retry.multiplier",
	"metrics-port":     "metrics.port",
}

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Search every forum for every team keyword and write the records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper(cmd, collectFlags)
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

			rows, err := collect(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with %d rows.\n", cfg.Collect.Out, rows)
			return nil
		},
	}

	f := cmd.Flags()
	f.String("client-id", "", "Reddit app client id")
	f.String("client-secret", "", "Reddit app client secret")
	f.String("user-agent", "", `Reddit user agent, e.g. "mlb-sentiment by u/YOURNAME"`)
	f.String("api-base", reddit.DefaultAPIBase, "Reddit API base URL")
	f.String("auth-url", reddit.DefaultAuthURL, "Reddit token endpoint")
	f.Int("limit", 50, "max posts per forum and keyword")
	f.String("time-filter", string(search.TimeWeek), "time window: hour, day, week, month, year, all")
	f.StringSlice("keywords", nil, "search keywords, used verbatim (default: every team alias)")
	f.StringSlice("subs", nil, "forums to search (default: built-in list)")
	f.String("teams", "", "YAML team alias table replacing the built-in one")
	f.Bool("include-comments", false, "also collect comments of matching posts")
	f.Int("max-comments", 20, "comments kept per post, 0 for all")
	f.Bool("flatten-comments", false, "include nested comments, depth first")
	f.String("out", "reddit-teams.csv", "output: .csv, .jsonl, .db/sqlite:// or postgres:// URL")
	f.String("checkpoint", "", "checkpoint target (default: --out)")
	f.Int("checkpoint-every", 1000, "checkpoint whenever the record count hits a multiple of this, 0 to only checkpoint per forum")
	f.Duration("timeout", 0, "HTTP request timeout (default 15s)")
	f.Float64("rps", 1, "API requests per second, 0 for no pacing")
	f.Float64("jitter", 0.1, "random extra delay between requests, as a fraction of the interval")
	f.String("tls-profile", string(fingerprint.ProfileGo), "TLS client hello: go, chrome, firefox, safari, random")
	f.StringSlice("proxy", nil, "proxy URLs to rotate API requests through")
	f.String("proxy-file", "", "file with one proxy URL per line")
	f.Int("retry-attempts", 0, "attempts per rate limited call (default 6)")
	f.Duration("retry-initial", 0, "first rate limit backoff (default 2s)")
	f.Duration("retry-max", 0, "backoff ceiling (default 2m)")
	f.Float64("retry-multiplier", 0, "backoff growth factor (default 2)")
	f.Int("metrics-port", 0, "serve Prometheus metrics on this port, 0 to disable")
	return cmd
}

func collect(ctx context.Context, cfg *config.Config, log *slog.Logger) (int, error) {
	runID := uuid.NewString()
	log = log.With("run_id", runID)

	table := keywords.DefaultTeams
	if cfg.Collect.Teams != "" {
		var err error
		if table, err = keywords.LoadTable(cfg.Collect.Teams); err != nil {
			return 0, err
		}
	}
	kws := keywords.Index(table, cfg.Collect.Keywords)
	forums := keywords.Forums(cfg.Collect.Subs)
	tasks := keywords.Tasks(forums, kws)
	log.Info("starting collection", "forums", len(forums), "keywords", len(kws), "tasks", len(tasks))

	pool := proxy.NewPool(proxy.Config{})
	if err := pool.Add(cfg.HTTP.Proxies...); err != nil {
		return 0, err
	}
	if cfg.HTTP.ProxyFile != "" {
		if err := pool.LoadFile(cfg.HTTP.ProxyFile); err != nil {
			return 0, err
		}
	}

	limiter := ratelimit.NewLimiter(cfg.HTTP.RPS, cfg.HTTP.Jitter)
	defer limiter.Stop()

	profile, err := fingerprint.ParseProfile(cfg.HTTP.TLSProfile)
	if err != nil {
		return 0, err
	}
	client, err := reddit.New(reddit.Config{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		APIBase:      cfg.Reddit.APIBase,
		AuthURL:      cfg.Reddit.AuthURL,
		Timeout:      cfg.HTTP.Timeout,
		Fingerprint:  profile,
		Proxies:      pool,
		Limiter:      limiter,
		Logger:       log,
	})
	if err != nil {
		return 0, err
	}

	if cfg.Metrics.Port > 0 {
		srv := metrics.Start(cfg.Metrics.Port, log)
		defer srv.Stop(context.Background())
	}

	opts := storage.Options{RunID: runID}
	checkpoint, err := openTarget(ctx, cfg.Collect.Checkpoint, opts)
	if err != nil {
		return 0, err
	}
	defer checkpoint.Close()

	out := checkpoint
	if cfg.Collect.Out != cfg.Collect.Checkpoint {
		if out, err = openTarget(ctx, cfg.Collect.Out, opts); err != nil {
			return 0, err
		}
		defer out.Close()
	}

	pcfg := pipeline.Config{
		Sort:            search.SortNew,
		Time:            search.TimeFilter(cfg.Collect.TimeFilter),
		Limit:           cfg.Collect.Limit,
		IncludeReplies:  cfg.Collect.IncludeComments,
		Replies:         cfg.ReplyOptions(),
		CheckpointEvery: cfg.Collect.CheckpointEvery,
		PermalinkBase:   cfg.Collect.PermalinkBase,
		Retry:           cfg.RetryPolicy(),
		RunID:           runID,
	}
	records, err := pipeline.New(pcfg, client, checkpoint, log).Run(ctx, tasks)
	if pool.Len() > 0 {
		st := pool.Stats()
		log.Info("proxy pool", "total", st.Total, "available", st.Available,
			"successes", st.Successes, "throttled", st.Throttled)
	}
	if err != nil {
		return 0, err
	}

	if err := out.Replace(ctx, records); err != nil {
		return 0, fmt.Errorf("write %s: %w", cfg.Collect.Out, err)
	}
	return len(records), nil
}

// openTarget opens a storage target, creating the parent directory of file
// targets first.
func openTarget(ctx context.Context, target string, opts storage.Options) (storage.Backend, error) {
	if backend.IsFile(target) {
		_, location := backend.Detect(target)
		if dir := filepath.Dir(location); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}
	b, err := backend.Open(ctx, target, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", target, err)
	}
	return b, nil
}
