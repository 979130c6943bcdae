package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/FranksOps/dugout/internal/fingerprint"
	"github.com/FranksOps/dugout/internal/search"
)

func TestLoad_Defaults(t *testing.T) {
	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Collect.Limit != 50 || cfg.Collect.TimeFilter != "week" || cfg.Collect.Out != "reddit-teams.csv" {
		t.Errorf("unexpected collect defaults %+v", cfg.Collect)
	}
	if cfg.Collect.Checkpoint != cfg.Collect.Out {
		t.Errorf("expected the checkpoint to default to the output, got %q", cfg.Collect.Checkpoint)
	}
	if cfg.Collect.IncludeComments {
		t.Errorf("expected comments off by default")
	}
	if got := cfg.ReplyOptions(); got != (search.ReplyOptions{Max: 20}) {
		t.Errorf("unexpected reply options %+v", got)
	}
	if cfg.HTTP.Timeout != 15*time.Second || cfg.HTTP.TLSProfile != string(fingerprint.ProfileGo) {
		t.Errorf("unexpected http defaults %+v", cfg.HTTP)
	}
	if rp := cfg.RetryPolicy(); rp.MaxAttempts != 6 || rp.InitialDelay != 2*time.Second {
		t.Errorf("unexpected retry policy %+v", rp)
	}

	if err := cfg.ValidateCredentials(); !errors.Is(err, ErrMissingClientID) {
		t.Errorf("expected ErrMissingClientID, got %v", err)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DUGOUT_REDDIT_CLIENT_ID", "id")
	t.Setenv("DUGOUT_REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("DUGOUT_REDDIT_USER_AGENT", "mlb-sentiment by u/someone")
	t.Setenv("DUGOUT_COLLECT_LIMIT", "10")
	t.Setenv("DUGOUT_COLLECT_SUBS", "baseball,mlb")
	t.Setenv("DUGOUT_HTTP_TIMEOUT", "3s")

	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := cfg.ValidateCredentials(); err != nil {
		t.Errorf("expected credentials from the environment, got %v", err)
	}
	if cfg.Collect.Limit != 10 {
		t.Errorf("expected limit 10, got %d", cfg.Collect.Limit)
	}
	if diff := cmp.Diff([]string{"baseball", "mlb"}, cfg.Collect.Subs); diff != "" {
		t.Errorf("subs mismatch (-want +got):\n%s", diff)
	}
	if cfg.HTTP.Timeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", cfg.HTTP.Timeout)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dugout.yaml")
	data := []byte(`
collect:
  time_filter: month
  include_comments: true
  flatten_comments: true
  max_comments: 0
  keywords: [Yankees, "Red Sox"]
  checkpoint: partial.csv
log:
  format: json
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := NewViper(path)
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Collect.TimeFilter != "month" || !cfg.Collect.IncludeComments {
		t.Errorf("unexpected collect config %+v", cfg.Collect)
	}
	if got := cfg.ReplyOptions(); got != (search.ReplyOptions{Max: 0, Flatten: true}) {
		t.Errorf("unexpected reply options %+v", got)
	}
	if diff := cmp.Diff([]string{"Yankees", "Red Sox"}, cfg.Collect.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
	if cfg.Collect.Checkpoint != "partial.csv" {
		t.Errorf("expected explicit checkpoint path, got %q", cfg.Collect.Checkpoint)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected json logs, got %q", cfg.Log.Format)
	}
}

func TestNewViper_MissingFile(t *testing.T) {
	if _, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		v, _ := NewViper("")
		cfg, err := Load(v)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"limit", func(c *Config) { c.Collect.Limit = 0 }, ErrInvalidLimit},
		{"time filter", func(c *Config) { c.Collect.TimeFilter = "decade" }, search.ErrInvalidTimeFilter},
		{"max comments", func(c *Config) { c.Collect.MaxComments = -1 }, ErrInvalidMaxComments},
		{"checkpoint every", func(c *Config) { c.Collect.CheckpointEvery = -5 }, ErrInvalidCheckpoint},
		{"output", func(c *Config) { c.Collect.Out = " " }, ErrMissingOutput},
		{"rps", func(c *Config) { c.HTTP.RPS = -1 }, ErrInvalidRPS},
		{"jitter", func(c *Config) { c.HTTP.Jitter = 2 }, ErrInvalidJitter},
		{"tls profile", func(c *Config) { c.HTTP.TLSProfile = "netscape" }, fingerprint.ErrUnknownProfile},
		{"attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, ErrInvalidMaxAttempts},
		{"multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }, ErrInvalidMultiplier},
		{"delays", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, ErrMaxDelayBelowInitial},
		{"metrics port", func(c *Config) { c.Metrics.Port = 70000 }, ErrInvalidMetricsPort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	c := &Config{Reddit: RedditConfig{ClientID: "id", ClientSecret: "secret"}}
	if err := c.ValidateCredentials(); !errors.Is(err, ErrMissingUserAgent) {
		t.Errorf("expected ErrMissingUserAgent, got %v", err)
	}
	c.Reddit.ClientSecret = ""
	if err := c.ValidateCredentials(); !errors.Is(err, ErrMissingClientSecret) {
		t.Errorf("expected ErrMissingClientSecret, got %v", err)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{"Red Sox"}, []string{"Red Sox"}},
		{[]string{"Yankees, Mets ,"}, []string{"Yankees", "Mets"}},
		{[]string{"a,b", "c"}, []string{"a,b", "c"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitList(tt.in)); diff != "" {
			t.Errorf("splitList(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}
