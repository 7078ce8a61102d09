package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradharvest/gradcafe-crawler/internal/scrape"
	"github.com/gradharvest/gradcafe-crawler/internal/store"
)

// newSyncCmd creates the 'sync' subcommand: an incremental crawl that
// only collects entries newer than the watermark stored in Postgres.
func newSyncCmd() *cobra.Command {
	var (
		maxPages int
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Crawl only entries newer than the stored watermark",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			a.startOps(cmd.Context())

			watermark, err := store.NewPostgresWatermark(cmd.Context(), store.Config{
				DSN:      a.cfg.Database.DSN,
				Table:    a.cfg.Database.Table,
				MaxConns: a.cfg.Database.MaxConns,
			})
			if err != nil {
				return err
			}
			defer watermark.Close()

			fetcher := a.newFetcher()
			fetcher.CheckPolicy(cmd.Context())

			crawler := scrape.NewIncrementalCrawler(fetcher, watermark, scrape.IncrementalConfig{
				PaginatorConfig: a.paginatorConfig(a.cfg.SyncDelay()),
				StalePageLimit:  a.cfg.Scrape.StalePageLimit,
				MaxPages:        a.cfg.Scrape.SyncMaxPages,
			}, a.logger)

			entries, err := crawler.CrawlNewSince(cmd.Context(), maxPages)
			if err != nil {
				return err
			}
			a.logger.Info("sync completed", zap.Int("new_entries", len(entries)))
			return writeEntries(outPath, entries)
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages to check for new data (0 = config default)")
	cmd.Flags().StringVar(&outPath, "out", "new_applicant_data.json", "output JSON file ('-' for stdout)")

	return cmd
}
