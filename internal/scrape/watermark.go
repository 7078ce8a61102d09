package scrape

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gradharvest/gradcafe-crawler/internal/metrics"
)

// WatermarkProvider reports the newest date_added already persisted by
// the downstream loader. A nil time with a nil error means no data has
// been loaded yet.
type WatermarkProvider interface {
	LatestKnownDate(ctx context.Context) (*time.Time, error)
}

// dateFormats are tried in order against the listing's date_added text.
// The first layout that parses wins.
var dateFormats = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"1/2/2006",
	"2006-01-02",
}

// IncrementalConfig extends the paginator knobs with the incremental
// stopping rule.
type IncrementalConfig struct {
	PaginatorConfig
	// StalePageLimit stops the crawl after this many consecutive pages
	// contributed no new entries. It is a distinct counter from the
	// empty-page breaker: a page can be non-empty but entirely old.
	StalePageLimit int
	// MaxPages bounds the incremental loop when the caller passes none.
	MaxPages int
}

// IncrementalCrawler wraps the page loop with a watermark cutoff so
// only entries newer than the externally known latest date are
// returned.
type IncrementalCrawler struct {
	fetcher  pageFetcher
	provider WatermarkProvider
	cfg      IncrementalConfig
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewIncrementalCrawler builds an IncrementalCrawler.
func NewIncrementalCrawler(fetcher pageFetcher, provider WatermarkProvider, cfg IncrementalConfig, logger *zap.Logger) *IncrementalCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	if cfg.StalePageLimit <= 0 {
		cfg.StalePageLimit = 5
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	return &IncrementalCrawler{
		fetcher:  fetcher,
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		logger:   logger,
	}
}

// CrawlNewSince walks the listing and returns the entries strictly newer
// than the stored watermark, in page-then-row order. Without a watermark
// there is no safe bound, so it returns nothing and leaves the full
// crawl to the explicit non-incremental path. A provider failure is
// fatal to the run for the same reason.
func (c *IncrementalCrawler) CrawlNewSince(ctx context.Context, maxPages int) ([]Entry, error) {
	cutoff, err := c.provider.LatestKnownDate(ctx)
	if err != nil {
		return nil, err
	}
	if cutoff == nil {
		c.logger.Info("no watermark available; run a full crawl first")
		return nil, nil
	}
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPages
	}
	c.logger.Info("looking for entries newer than watermark",
		zap.Time("cutoff", *cutoff),
		zap.Int("max_pages", maxPages))

	var fresh []Entry
	state := &crawlState{}
	for state.page = 1; state.page <= maxPages; state.page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fresh, err
		}

		entries, err := c.pageEntries(ctx, state.page)
		if err != nil && ctx.Err() != nil {
			return fresh, ctx.Err()
		}
		if len(entries) == 0 {
			state.consecutiveEmpty++
			metrics.ObservePage("empty")
			if state.consecutiveEmpty >= c.cfg.EmptyPageLimit {
				c.logger.Warn("too many consecutive empty pages, stopping",
					zap.Int("page", state.page))
				break
			}
			continue
		}
		state.consecutiveEmpty = 0
		metrics.ObservePage("ok")

		newOnPage := 0
		for _, entry := range entries {
			if c.isNewerThan(entry.DateAdded, *cutoff) {
				fresh = append(fresh, entry)
				newOnPage++
			}
		}
		if newOnPage == 0 {
			state.consecutiveStale++
			c.logger.Debug("no new entries on page",
				zap.Int("page", state.page),
				zap.Int("old_entries", len(entries)),
				zap.Int("consecutive_stale", state.consecutiveStale))
			if state.consecutiveStale >= c.cfg.StalePageLimit {
				c.logger.Info("several consecutive pages with no new data, stopping",
					zap.Int("page", state.page))
				break
			}
			continue
		}
		state.consecutiveStale = 0
		metrics.ObserveEntries(newOnPage)
		c.logger.Info("found new entries",
			zap.Int("page", state.page),
			zap.Int("new", newOnPage),
			zap.Int("total_new", len(fresh)))
	}
	return fresh, nil
}

func (c *IncrementalCrawler) pageEntries(ctx context.Context, page int) ([]Entry, error) {
	params := pageParams(page)
	body, err := c.fetcher.Fetch(ctx, c.cfg.ListingURL, params)
	if err != nil {
		return nil, err
	}
	return ParseListPage(c.cfg.BaseURL, body), nil
}

// isNewerThan compares an entry's date_added against the cutoff. Absent
// or unparseable dates fail open: the entry counts as new rather than
// silently dropping possibly-new data.
func (c *IncrementalCrawler) isNewerThan(dateAdded *string, cutoff time.Time) bool {
	if dateAdded == nil {
		return true
	}
	text := strings.TrimSpace(*dateAdded)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, text); err == nil {
			return t.After(cutoff)
		}
	}
	c.logger.Debug("could not parse date_added; including entry", zap.String("date", text))
	return true
}
