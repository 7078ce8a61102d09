// Package cmd defines and implements the CLI commands for the gradcafe
// executable.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradharvest/gradcafe-crawler/internal/api"
	"github.com/gradharvest/gradcafe-crawler/internal/config"
	"github.com/gradharvest/gradcafe-crawler/internal/logging"
	"github.com/gradharvest/gradcafe-crawler/internal/metrics"
	"github.com/gradharvest/gradcafe-crawler/internal/scrape"
)

var cfgFile string

// app bundles the pieces every subcommand needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	metrics.Init()
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) newFetcher() *scrape.Fetcher {
	return scrape.NewFetcher(scrape.FetcherConfig{
		BaseURL:     a.cfg.Scrape.BaseURL,
		ListingPath: a.cfg.Scrape.ListingPath,
		UserAgent:   a.cfg.UserAgent(),
		Timeout:     a.cfg.Timeout(),
		MaxRetries:  a.cfg.HTTP.MaxRetries,
		BackoffBase: a.cfg.BackoffBase(),
	}, a.logger)
}

// startOps serves health probes and metrics for the duration of the
// command when ops.addr is configured.
func (a *app) startOps(ctx context.Context) {
	addr := a.cfg.Ops.Addr
	if addr == "" {
		return
	}
	go func() {
		if err := api.NewServer(a.logger).ListenAndServe(ctx, addr); err != nil {
			a.logger.Warn("ops server stopped", zap.Error(err))
		}
	}()
}

func (a *app) paginatorConfig(delay time.Duration) scrape.PaginatorConfig {
	return scrape.PaginatorConfig{
		BaseURL:           a.cfg.Scrape.BaseURL,
		ListingURL:        a.cfg.ListingURL(),
		FallbackPageCount: a.cfg.Scrape.FallbackPages,
		MaxPageCap:        a.cfg.Scrape.MaxPageCap,
		EmptyPageLimit:    a.cfg.Scrape.EmptyPageLimit,
		PageDelay:         delay,
		CheckpointEvery:   a.cfg.Checkpoint.EveryPages,
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gradcafe",
		Short: "Harvests admission results from the GradCafe survey listing",
		Long: `gradcafe incrementally harvests structured admission records from the
GradCafe survey list view. It reconstructs typed entries from the
listing's irregular multi-row table layout and supports both full
paginated crawls and incremental crawls bounded by the newest
date_added already loaded downstream.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newPagesCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// writeEntries serializes the harvest as pretty-printed JSON to path,
// or to stdout when path is "-".
func writeEntries(path string, entries []scrape.Entry) error {
	if entries == nil {
		entries = []scrape.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("write entries: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write entries: %w", err)
	}
	return nil
}
