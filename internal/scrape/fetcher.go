package scrape

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/gradharvest/gradcafe-crawler/internal/metrics"
)

// FetcherConfig controls the HTTP client behavior.
type FetcherConfig struct {
	// BaseURL is the site root, e.g. "https://www.thegradcafe.com".
	BaseURL string
	// ListingPath is the survey list view path under BaseURL.
	ListingPath string
	// UserAgent is the declared bot identity, including a contact address.
	UserAgent string
	// Timeout bounds each individual request.
	Timeout time.Duration
	// MaxRetries is the total attempt budget for retryable failures.
	MaxRetries int
	// BackoffBase is the unit of the exponential backoff; attempt n
	// sleeps BackoffBase << n before retrying.
	BackoffBase time.Duration
}

// Fetcher issues single GETs through a Colly collector and retries
// transient failures with exponential backoff. It holds no per-call
// state; collectors are cloned per request.
type Fetcher struct {
	cfg    FetcherConfig
	base   *colly.Collector
	robots *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

// NewFetcher builds a Fetcher. Construction performs no network I/O;
// the robots advisory check is a separate, explicit step (CheckPolicy).
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	// Robots compliance is an advisory check run once at startup, not a
	// per-request gate.
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:    cfg,
		base:   c,
		robots: &http.Client{Timeout: 10 * time.Second},
		sleep:  sleepWithContext,
		logger: logger,
	}
}

// ListingURL returns the absolute URL of the survey list view.
func (f *Fetcher) ListingURL() string {
	return f.cfg.BaseURL + f.cfg.ListingPath
}

// Fetch performs a GET against rawURL with the optional query parameters
// appended. 429 and 5xx responses and network errors are retried with
// 2^attempt backoff up to the configured budget; any other non-200
// status fails immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		body, status, err := f.do(ctx, target)
		switch {
		case err == nil && status == http.StatusOK:
			metrics.ObserveFetch(status)
			return body, nil
		case err == nil && status != 0 && !retryableStatus(status):
			metrics.ObserveFetch(status)
			return nil, &PermanentError{URL: target, StatusCode: status}
		case err == nil:
			metrics.ObserveFetch(status)
			lastErr = fmt.Errorf("http %d", status)
			f.logger.Warn("retryable status",
				zap.String("url", target),
				zap.Int("status", status),
				zap.Int("attempt", attempt+1))
		default:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
			}
			lastErr = err
			f.logger.Warn("request failed",
				zap.String("url", target),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}

		if attempt < f.cfg.MaxRetries-1 {
			metrics.ObserveFetchRetry()
			if serr := f.sleep(ctx, f.backoff(attempt)); serr != nil {
				return nil, serr
			}
		}
	}
	return nil, &TransientError{URL: target, Attempts: f.cfg.MaxRetries, Err: lastErr}
}

// do runs a single collector visit and reports the body, status code and
// transport error. status is 0 when no response was received at all.
func (f *Fetcher) do(ctx context.Context, target string) ([]byte, int, error) {
	collector := f.base.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()
	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if status != 0 {
			return body, status, nil
		}
		if fetchErr != nil {
			return nil, 0, fetchErr
		}
		if err != nil {
			return nil, 0, err
		}
		return body, status, nil
	}
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	return f.cfg.BackoffBase << attempt
}

// CheckPolicy fetches the site's robots.txt once and evaluates whether
// the listing path is permitted for the declared identity. The result
// is advisory: a failed check logs a warning and reports allowed, so
// startup never hard-fails on a compliance probe.
func (f *Fetcher) CheckPolicy(ctx context.Context) bool {
	robotsURL := f.cfg.BaseURL + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		f.logger.Warn("robots check skipped", zap.Error(err))
		return true
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	resp, err := f.robots.Do(req)
	if err != nil {
		f.logger.Warn("could not fetch robots.txt; proceeding with caution", zap.Error(err))
		return true
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		f.logger.Warn("could not read robots.txt; proceeding with caution", zap.Error(err))
		return true
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, raw)
	if err != nil {
		f.logger.Warn("could not parse robots.txt; proceeding with caution", zap.Error(err))
		return true
	}
	allowed := true
	if group := data.FindGroup(f.cfg.UserAgent); group != nil {
		allowed = group.Test(f.cfg.ListingPath)
	}
	if allowed {
		f.logger.Info("robots.txt check: ALLOWED", zap.String("path", f.cfg.ListingPath))
	} else {
		f.logger.Warn("robots.txt check: DISALLOWED", zap.String("path", f.cfg.ListingPath))
	}
	return allowed
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
