package scrape

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gradharvest/gradcafe-crawler/internal/metrics"
)

var pageOfPattern = regexp.MustCompile(`(?i)Page\s+\d+\s+of\s+(\d+)`)

// pageFetcher is the narrow fetch capability the crawl loops depend on.
type pageFetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

// PaginatorConfig holds the crawl loop knobs. The thresholds mirror the
// listing's observed behavior and are deliberately overridable rather
// than hard-coded.
type PaginatorConfig struct {
	// BaseURL is the site root used to absolutize entry links.
	BaseURL string
	// ListingURL is the full URL of the survey list view.
	ListingURL string
	// FallbackPageCount is assumed when discovery fails entirely.
	FallbackPageCount int
	// MaxPageCap bounds an auto-discovered page count.
	MaxPageCap int
	// EmptyPageLimit is the consecutive empty/failed page circuit breaker.
	EmptyPageLimit int
	// PageDelay is the fixed politeness delay between page requests.
	PageDelay time.Duration
	// CheckpointEvery saves accumulated entries to the sink every N
	// pages. Zero disables checkpointing.
	CheckpointEvery int
}

func (c *PaginatorConfig) applyDefaults() {
	if c.FallbackPageCount <= 0 {
		c.FallbackPageCount = 1000
	}
	if c.MaxPageCap <= 0 {
		c.MaxPageCap = 1500
	}
	if c.EmptyPageLimit <= 0 {
		c.EmptyPageLimit = 5
	}
}

// CrawlOptions bounds one crawl run.
type CrawlOptions struct {
	// MaxPages limits the page loop; zero means auto-discover (capped
	// at MaxPageCap).
	MaxPages int
	// TargetEntries stops the crawl once enough entries accumulated;
	// zero means unbounded.
	TargetEntries int
}

// Paginator drives the page-by-page crawl of the listing. Execution is
// strictly sequential: one page is fetched, parsed and folded into the
// accumulator before the next request goes out.
type Paginator struct {
	fetcher pageFetcher
	cfg     PaginatorConfig
	limiter *rate.Limiter
	sink    Sink
	logger  *zap.Logger
}

// NewPaginator builds a Paginator. sink may be nil to disable
// checkpointing.
func NewPaginator(fetcher pageFetcher, cfg PaginatorConfig, sink Sink, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Paginator{
		fetcher: fetcher,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		sink:    sink,
		logger:  logger,
	}
}

// DiscoverPageCount fetches the first listing page and determines the
// total page count from the pagination widget, falling back to a
// "Page X of Y" text search and finally to a conservative fixed ceiling.
// It never fails; every error path resolves to the fallback.
func (p *Paginator) DiscoverPageCount(ctx context.Context) int {
	body, err := p.fetcher.Fetch(ctx, p.cfg.ListingURL, nil)
	if err != nil {
		p.logger.Warn("page count discovery failed", zap.Error(err))
		return p.cfg.FallbackPageCount
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return p.cfg.FallbackPageCount
	}
	if n := maxPaginationLabel(doc); n > 0 {
		return n
	}
	if m := pageOfPattern.FindStringSubmatch(doc.Text()); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return p.cfg.FallbackPageCount
}

// maxPaginationLabel returns the largest purely numeric anchor label
// inside a pagination widget, or 0 when none is found.
func maxPaginationLabel(doc *goquery.Document) int {
	maxPage := 0
	doc.Find(`div[class*="paginat"], nav[class*="paginat"], ul[class*="paginat"]`).
		Find("a").
		Each(func(_ int, link *goquery.Selection) {
			label := strings.TrimSpace(link.Text())
			if n, err := strconv.Atoi(label); err == nil && n > maxPage {
				maxPage = n
			}
		})
	return maxPage
}

// Crawl iterates the listing page by page and returns the accumulated
// entries. Fetch failures and empty pages feed the consecutive-empty
// circuit breaker; the loop otherwise runs to its page or entry bound.
// The returned error is non-nil only for context cancellation.
func (p *Paginator) Crawl(ctx context.Context, opts CrawlOptions) ([]Entry, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = p.DiscoverPageCount(ctx)
		if maxPages > p.cfg.MaxPageCap {
			maxPages = p.cfg.MaxPageCap
		}
		p.logger.Info("detected page count", zap.Int("max_pages", maxPages))
	}

	state := &crawlState{}
	for state.page = 1; state.page <= maxPages; state.page++ {
		if opts.TargetEntries > 0 && len(state.entries) >= opts.TargetEntries {
			break
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return state.entries, err
		}

		entries, err := p.fetchPage(ctx, state.page)
		if err != nil && ctx.Err() != nil {
			return state.entries, ctx.Err()
		}
		if len(entries) == 0 {
			state.consecutiveEmpty++
			metrics.ObservePage("empty")
			p.logger.Debug("empty page",
				zap.Int("page", state.page),
				zap.Int("consecutive_empty", state.consecutiveEmpty),
				zap.Error(err))
			if state.consecutiveEmpty >= p.cfg.EmptyPageLimit {
				p.logger.Warn("too many consecutive empty pages, stopping",
					zap.Int("page", state.page))
				break
			}
			continue
		}

		state.consecutiveEmpty = 0
		state.entries = append(state.entries, entries...)
		metrics.ObservePage("ok")
		metrics.ObserveEntries(len(entries))
		p.logger.Info("scraped page",
			zap.Int("page", state.page),
			zap.Int("max_pages", maxPages),
			zap.Int("found", len(entries)),
			zap.Int("total", len(state.entries)))

		p.maybeCheckpoint(ctx, state)
	}
	return state.entries, nil
}

// fetchPage fetches and parses one listing page.
func (p *Paginator) fetchPage(ctx context.Context, page int) ([]Entry, error) {
	body, err := p.fetcher.Fetch(ctx, p.cfg.ListingURL, pageParams(page))
	if err != nil {
		return nil, err
	}
	return ParseListPage(p.cfg.BaseURL, body), nil
}

// pageParams builds the query for a listing page. The parameter is
// omitted for page 1, matching the listing's canonical first-page URL.
func pageParams(page int) url.Values {
	if page <= 1 {
		return nil
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	return params
}

// maybeCheckpoint saves progress to the sink at the configured page
// interval. Checkpointing is a courtesy against losing long crawls, so
// a failed save is logged and swallowed.
func (p *Paginator) maybeCheckpoint(ctx context.Context, state *crawlState) {
	if p.sink == nil || p.cfg.CheckpointEvery <= 0 || state.page%p.cfg.CheckpointEvery != 0 {
		return
	}
	if err := p.sink.Save(ctx, state.page, state.entries); err != nil {
		p.logger.Warn("checkpoint save failed", zap.Int("page", state.page), zap.Error(err))
		return
	}
	metrics.ObserveCheckpoint()
}
