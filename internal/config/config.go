// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scrape     ScrapeConfig     `mapstructure:"scrape"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Ops        OpsConfig        `mapstructure:"ops"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ScrapeConfig governs the crawl loops and the bot identity.
type ScrapeConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	ListingPath  string `mapstructure:"listing_path"`
	BotName      string `mapstructure:"bot_name"`
	ContactEmail string `mapstructure:"contact_email"`
	// PageDelayMs is the politeness delay between full-crawl pages;
	// SyncDelayMs the shorter delay used by the incremental path.
	PageDelayMs int `mapstructure:"page_delay_ms"`
	SyncDelayMs int `mapstructure:"sync_delay_ms"`
	// EmptyPageLimit and StalePageLimit are the circuit-breaker
	// thresholds. The source gives no rationale for 5; it is preserved
	// as an overridable default rather than second-guessed.
	EmptyPageLimit int `mapstructure:"empty_page_limit"`
	StalePageLimit int `mapstructure:"stale_page_limit"`
	FallbackPages  int `mapstructure:"fallback_pages"`
	MaxPageCap     int `mapstructure:"max_page_cap"`
	TargetEntries  int `mapstructure:"target_entries"`
	SyncMaxPages   int `mapstructure:"sync_max_pages"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
	BackoffBaseMs  int `mapstructure:"backoff_base_ms"`
}

// DatabaseConfig controls the watermark store connection.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// CheckpointConfig controls periodic progress saves during long crawls.
type CheckpointConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Dir        string `mapstructure:"dir"`
	Prefix     string `mapstructure:"prefix"`
	EveryPages int    `mapstructure:"every_pages"`
}

// OpsConfig controls the optional HTTP server exposing health probes
// and Prometheus metrics during long crawls. An empty Addr disables it.
type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GRADCAFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scrape.base_url", "https://www.thegradcafe.com")
	v.SetDefault("scrape.listing_path", "/survey/index.php")
	v.SetDefault("scrape.bot_name", "Academic Research Bot")
	v.SetDefault("scrape.contact_email", "academic.research@example.com")
	v.SetDefault("scrape.page_delay_ms", 1500)
	v.SetDefault("scrape.sync_delay_ms", 500)
	v.SetDefault("scrape.empty_page_limit", 5)
	v.SetDefault("scrape.stale_page_limit", 5)
	v.SetDefault("scrape.fallback_pages", 1000)
	v.SetDefault("scrape.max_page_cap", 1500)
	v.SetDefault("scrape.target_entries", 30000)
	v.SetDefault("scrape.sync_max_pages", 100)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base_ms", 1000)
	v.SetDefault("database.table", "applicant_data")
	v.SetDefault("database.max_conns", 2)
	v.SetDefault("checkpoint.enabled", true)
	v.SetDefault("checkpoint.dir", "checkpoints")
	v.SetDefault("checkpoint.prefix", "applicant_data")
	v.SetDefault("checkpoint.every_pages", 50)
	v.SetDefault("ops.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scrape.BaseURL == "" {
		return fmt.Errorf("scrape.base_url is required")
	}
	if _, err := url.ParseRequestURI(c.Scrape.BaseURL); err != nil {
		return fmt.Errorf("scrape.base_url is invalid: %w", err)
	}
	if !strings.HasPrefix(c.Scrape.ListingPath, "/") {
		return fmt.Errorf("scrape.listing_path must start with /")
	}
	if c.Scrape.ContactEmail == "" {
		return fmt.Errorf("scrape.contact_email is required")
	}
	if c.Scrape.EmptyPageLimit <= 0 {
		return fmt.Errorf("scrape.empty_page_limit must be > 0")
	}
	if c.Scrape.StalePageLimit <= 0 {
		return fmt.Errorf("scrape.stale_page_limit must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.Checkpoint.Enabled && c.Checkpoint.EveryPages <= 0 {
		return fmt.Errorf("checkpoint.every_pages must be > 0 when checkpointing is enabled")
	}
	return nil
}

// UserAgent returns the declared bot identity, contact address included.
func (c Config) UserAgent() string {
	return fmt.Sprintf("%s (+%s)", c.Scrape.BotName, c.Scrape.ContactEmail)
}

// ListingURL returns the absolute URL of the survey list view.
func (c Config) ListingURL() string {
	return c.Scrape.BaseURL + c.Scrape.ListingPath
}

// Timeout converts the HTTP timeout config into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffBase converts the backoff unit config into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.HTTP.BackoffBaseMs) * time.Millisecond
}

// PageDelay converts the full-crawl politeness delay into a duration.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Scrape.PageDelayMs) * time.Millisecond
}

// SyncDelay converts the incremental politeness delay into a duration.
func (c Config) SyncDelay() time.Duration {
	return time.Duration(c.Scrape.SyncDelayMs) * time.Millisecond
}
