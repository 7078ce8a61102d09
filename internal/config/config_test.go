package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://www.thegradcafe.com", cfg.Scrape.BaseURL)
	assert.Equal(t, "/survey/index.php", cfg.Scrape.ListingPath)
	assert.Equal(t, 1500, cfg.Scrape.PageDelayMs)
	assert.Equal(t, 500, cfg.Scrape.SyncDelayMs)
	assert.Equal(t, 5, cfg.Scrape.EmptyPageLimit)
	assert.Equal(t, 5, cfg.Scrape.StalePageLimit)
	assert.Equal(t, 1000, cfg.Scrape.FallbackPages)
	assert.Equal(t, 1500, cfg.Scrape.MaxPageCap)
	assert.Equal(t, 30, cfg.HTTP.TimeoutSeconds)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, "applicant_data", cfg.Database.Table)
	assert.True(t, cfg.Checkpoint.Enabled)
	assert.Equal(t, 50, cfg.Checkpoint.EveryPages)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scrape:
  base_url: https://staging.thegradcafe.com
  empty_page_limit: 3
http:
  max_retries: 5
checkpoint:
  enabled: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.thegradcafe.com", cfg.Scrape.BaseURL)
	assert.Equal(t, 3, cfg.Scrape.EmptyPageLimit)
	assert.Equal(t, 5, cfg.HTTP.MaxRetries)
	assert.False(t, cfg.Checkpoint.Enabled)
	// Untouched keys keep their defaults.
	assert.Equal(t, "/survey/index.php", cfg.Scrape.ListingPath)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GRADCAFE_SCRAPE_EMPTY_PAGE_LIMIT", "9")
	t.Setenv("GRADCAFE_HTTP_TIMEOUT_SECONDS", "10")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Scrape.EmptyPageLimit)
	assert.Equal(t, 10, cfg.HTTP.TimeoutSeconds)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.Scrape.BaseURL = "" }},
		{"invalid base url", func(c *Config) { c.Scrape.BaseURL = "not a url" }},
		{"relative listing path", func(c *Config) { c.Scrape.ListingPath = "survey" }},
		{"missing contact email", func(c *Config) { c.Scrape.ContactEmail = "" }},
		{"zero empty page limit", func(c *Config) { c.Scrape.EmptyPageLimit = 0 }},
		{"zero stale page limit", func(c *Config) { c.Scrape.StalePageLimit = 0 }},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"zero retries", func(c *Config) { c.HTTP.MaxRetries = 0 }},
		{"checkpointing without interval", func(c *Config) {
			c.Checkpoint.Enabled = true
			c.Checkpoint.EveryPages = 0
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDerivedValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Scrape: ScrapeConfig{
			BaseURL:      "https://www.thegradcafe.com",
			ListingPath:  "/survey/index.php",
			BotName:      "Academic Research Bot",
			ContactEmail: "academic.research@example.com",
			PageDelayMs:  1500,
			SyncDelayMs:  500,
		},
		HTTP: HTTPConfig{TimeoutSeconds: 30, BackoffBaseMs: 1000},
	}

	assert.Equal(t, "Academic Research Bot (+academic.research@example.com)", cfg.UserAgent())
	assert.Equal(t, "https://www.thegradcafe.com/survey/index.php", cfg.ListingURL())
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, time.Second, cfg.BackoffBase())
	assert.Equal(t, 1500*time.Millisecond, cfg.PageDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.SyncDelay())
}
