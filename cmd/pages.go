package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gradharvest/gradcafe-crawler/internal/scrape"
)

// newPagesCmd creates the 'pages' subcommand, a debug helper that
// prints the discovered page count of the listing.
func newPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages",
		Short: "Print the discovered total page count of the listing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			paginator := scrape.NewPaginator(a.newFetcher(), a.paginatorConfig(a.cfg.PageDelay()), nil, a.logger)
			fmt.Fprintln(cmd.OutOrStdout(), paginator.DiscoverPageCount(cmd.Context()))
			return nil
		},
	}
}
