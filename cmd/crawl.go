package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradharvest/gradcafe-crawler/internal/checkpoint"
	"github.com/gradharvest/gradcafe-crawler/internal/scrape"
)

// newCrawlCmd creates the 'crawl' subcommand: a full paginated crawl of
// the listing.
func newCrawlCmd() *cobra.Command {
	var (
		maxPages      int
		targetEntries int
		outPath       string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a full paginated crawl of the listing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			a.startOps(cmd.Context())

			fetcher := a.newFetcher()
			fetcher.CheckPolicy(cmd.Context())

			var sink scrape.Sink = checkpoint.Discard{}
			if a.cfg.Checkpoint.Enabled {
				fileSink, err := checkpoint.NewFileSink(a.cfg.Checkpoint.Dir, a.cfg.Checkpoint.Prefix, a.logger)
				if err != nil {
					return err
				}
				sink = fileSink
			}

			paginator := scrape.NewPaginator(fetcher, a.paginatorConfig(a.cfg.PageDelay()), sink, a.logger)

			if targetEntries <= 0 {
				targetEntries = a.cfg.Scrape.TargetEntries
			}
			entries, err := paginator.Crawl(cmd.Context(), scrape.CrawlOptions{
				MaxPages:      maxPages,
				TargetEntries: targetEntries,
			})
			if err != nil {
				return err
			}
			a.logger.Info("crawl completed", zap.Int("entries", len(entries)))
			return writeEntries(outPath, entries)
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages to crawl (0 = auto-detect)")
	cmd.Flags().IntVar(&targetEntries, "target-entries", 0, "stop once this many entries are collected (0 = config default)")
	cmd.Flags().StringVar(&outPath, "out", "applicant_data.json", "output JSON file ('-' for stdout)")

	return cmd
}
