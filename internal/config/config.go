// Package config loads collector settings from flags, DUGOUT_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/dugout/internal/fingerprint"
	"github.com/FranksOps/dugout/internal/logger"
	"github.com/FranksOps/dugout/internal/search"
	"github.com/FranksOps/dugout/pkg/ratelimit"
	"github.com/FranksOps/dugout/pkg/retry"
)

// EnvPrefix prefixes every environment variable, e.g. DUGOUT_REDDIT_CLIENT_ID.
const EnvPrefix = "DUGOUT"

// Configuration validation errors.
var (
	ErrMissingClientID      = errors.New("reddit.client_id is required")
	ErrMissingClientSecret  = errors.New("reddit.client_secret is required")
	ErrMissingUserAgent     = errors.New("reddit.user_agent is required")
	ErrInvalidLimit         = errors.New("collect.limit must be at least 1")
	ErrInvalidMaxComments   = errors.New("collect.max_comments must be non-negative")
	ErrInvalidCheckpoint    = errors.New("collect.checkpoint_every must be non-negative")
	ErrMissingOutput        = errors.New("collect.out is required")
	ErrInvalidRPS           = errors.New("http.rps must be non-negative")
	ErrInvalidJitter        = errors.New("http.jitter must be between 0 and 1")
	ErrInvalidMaxAttempts   = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidMultiplier    = errors.New("retry.multiplier must be >= 1.0")
	ErrInvalidMetricsPort   = errors.New("metrics.port must be between 0 and 65535")
	ErrMaxDelayBelowInitial = errors.New("retry.max_delay cannot be below retry.initial_delay")
)

// Config is the complete collector configuration.
type Config struct {
	Reddit  RedditConfig  `mapstructure:"reddit"`
	Collect CollectConfig `mapstructure:"collect"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// RedditConfig holds API credentials and endpoints.
type RedditConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	UserAgent    string `mapstructure:"user_agent"`
	APIBase      string `mapstructure:"api_base"`
	AuthURL      string `mapstructure:"auth_url"`
}

// CollectConfig shapes a collection run.
type CollectConfig struct {
	Limit           int      `mapstructure:"limit"`
	TimeFilter      string   `mapstructure:"time_filter"`
	Keywords        []string `mapstructure:"keywords"`
	Subs            []string `mapstructure:"subs"`
	Teams           string   `mapstructure:"teams"`
	IncludeComments bool     `mapstructure:"include_comments"`
	MaxComments     int      `mapstructure:"max_comments"`
	FlattenComments bool     `mapstructure:"flatten_comments"`
	Out             string   `mapstructure:"out"`
	// Checkpoint defaults to Out.
	Checkpoint      string `mapstructure:"checkpoint"`
	CheckpointEvery int    `mapstructure:"checkpoint_every"`
	PermalinkBase   string `mapstructure:"permalink_base"`
}

// HTTPConfig tunes the API transport.
type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	RPS        float64       `mapstructure:"rps"`
	Jitter     float64       `mapstructure:"jitter"`
	TLSProfile string        `mapstructure:"tls_profile"`
	Proxies    []string      `mapstructure:"proxies"`
	ProxyFile  string        `mapstructure:"proxy_file"`
}

// RetryConfig governs rate limit backoff.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Port is non-zero.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// SetDefaults registers every key with its default, which also lets
// AutomaticEnv resolve it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	r := retry.DefaultConfig()

	v.SetDefault("reddit.client_id", "")
	v.SetDefault("reddit.client_secret", "")
	v.SetDefault("reddit.user_agent", "")
	v.SetDefault("reddit.api_base", "https://oauth.reddit.com")
	v.SetDefault("reddit.auth_url", "https://www.reddit.com/api/v1/access_token")

	v.SetDefault("collect.limit", 50)
	v.SetDefault("collect.time_filter", string(search.TimeWeek))
	v.SetDefault("collect.keywords", []string{})
	v.SetDefault("collect.subs", []string{})
	v.SetDefault("collect.teams", "")
	v.SetDefault("collect.include_comments", false)
	v.SetDefault("collect.max_comments", 20)
	v.SetDefault("collect.flatten_comments", false)
	v.SetDefault("collect.out", "reddit-teams.csv")
	v.SetDefault("collect.checkpoint", "")
	v.SetDefault("collect.checkpoint_every", 1000)
	v.SetDefault("collect.permalink_base", "https://reddit.com")

	v.SetDefault("http.timeout", 15*time.Second)
	// well under the 100 requests per minute granted to an OAuth client
	v.SetDefault("http.rps", ratelimit.PerMinute(60))
	v.SetDefault("http.jitter", 0.1)
	v.SetDefault("http.tls_profile", string(fingerprint.ProfileGo))
	v.SetDefault("http.proxies", []string{})
	v.SetDefault("http.proxy_file", "")

	v.SetDefault("retry.max_attempts", r.MaxAttempts)
	v.SetDefault("retry.initial_delay", r.InitialDelay)
	v.SetDefault("retry.max_delay", r.MaxDelay)
	v.SetDefault("retry.multiplier", r.Multiplier)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.port", 0)
}

// NewViper returns a viper instance with defaults and environment lookup set
// up. When file is non-empty it is read as the config file.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return v, nil
}

// Load decodes v into a Config and validates the settings shared by every
// command.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Collect.Keywords = splitList(cfg.Collect.Keywords)
	cfg.Collect.Subs = splitList(cfg.Collect.Subs)
	cfg.HTTP.Proxies = splitList(cfg.HTTP.Proxies)
	if cfg.Collect.Checkpoint == "" {
		cfg.Collect.Checkpoint = cfg.Collect.Out
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every setting that has no safe fallback. Credentials are
// checked separately by ValidateCredentials since only collect needs them.
func (c *Config) Validate() error {
	if c.Collect.Limit < 1 {
		return ErrInvalidLimit
	}
	if _, err := search.ParseTimeFilter(c.Collect.TimeFilter); err != nil {
		return err
	}
	if c.Collect.MaxComments < 0 {
		return ErrInvalidMaxComments
	}
	if c.Collect.CheckpointEvery < 0 {
		return ErrInvalidCheckpoint
	}
	if strings.TrimSpace(c.Collect.Out) == "" {
		return ErrMissingOutput
	}
	if c.HTTP.RPS < 0 {
		return ErrInvalidRPS
	}
	if c.HTTP.Jitter < 0 || c.HTTP.Jitter > 1 {
		return ErrInvalidJitter
	}
	if _, err := fingerprint.ParseProfile(c.HTTP.TLSProfile); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Retry.Multiplier < 1 {
		return ErrInvalidMultiplier
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return ErrMaxDelayBelowInitial
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if err := logger.ValidateFormat(c.Log.Format); err != nil {
		return err
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return ErrInvalidMetricsPort
	}
	return nil
}

// ValidateCredentials checks the API credentials.
func (c *Config) ValidateCredentials() error {
	if strings.TrimSpace(c.Reddit.ClientID) == "" {
		return ErrMissingClientID
	}
	if strings.TrimSpace(c.Reddit.ClientSecret) == "" {
		return ErrMissingClientSecret
	}
	if strings.TrimSpace(c.Reddit.UserAgent) == "" {
		return ErrMissingUserAgent
	}
	return nil
}

// RetryPolicy converts the retry settings for pkg/retry.
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Multiplier:   c.Retry.Multiplier,
	}
}

// ReplyOptions converts the comment settings for the search capability.
func (c *Config) ReplyOptions() search.ReplyOptions {
	return search.ReplyOptions{
		Max:     c.Collect.MaxComments,
		Flatten: c.Collect.FlattenComments,
	}
}

// splitList accepts lists given as repeated values or as one comma separated
// string, the form environment variables arrive in.
func splitList(in []string) []string {
	if len(in) != 1 {
		return in
	}
	fields := strings.FieldsFunc(in[0], func(r rune) bool { return r == ',' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
