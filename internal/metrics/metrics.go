// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal        *prometheus.CounterVec
	scraperFetchesTotal      *prometheus.CounterVec
	scraperFetchRetriesTotal prometheus.Counter
	scraperEntriesTotal      prometheus.Counter
	scraperCheckpointsTotal  prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call
// multiple times; observation helpers are no-ops until it runs.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total listing pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		scraperFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetches_total",
				Help: "Total HTTP fetch attempts, labeled by status code.",
			},
			[]string{"code"},
		)
		scraperFetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_fetch_retries_total",
				Help: "Total fetch attempts retried after a transient failure.",
			},
		)
		scraperEntriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_entries_total",
				Help: "Total entries reconstructed from listing pages.",
			},
		)
		scraperCheckpointsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_checkpoints_total",
				Help: "Total successful checkpoint saves.",
			},
		)
	})
}

// Handler returns an HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records the outcome of one processed page.
func ObservePage(outcome string) {
	if scraperPagesTotal != nil {
		scraperPagesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveFetch records one fetch attempt by HTTP status code.
func ObserveFetch(code int) {
	if scraperFetchesTotal != nil {
		scraperFetchesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

// ObserveFetchRetry records one retried fetch attempt.
func ObserveFetchRetry() {
	if scraperFetchRetriesTotal != nil {
		scraperFetchRetriesTotal.Inc()
	}
}

// ObserveEntries records parsed entries.
func ObserveEntries(n int) {
	if scraperEntriesTotal != nil {
		scraperEntriesTotal.Add(float64(n))
	}
}

// ObserveCheckpoint records one successful checkpoint save.
func ObserveCheckpoint() {
	if scraperCheckpointsTotal != nil {
		scraperCheckpointsTotal.Inc()
	}
}
