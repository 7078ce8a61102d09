package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// statusSequenceHandler replays the given status codes, one per request,
// repeating the last one when exhausted.
type statusSequenceHandler struct {
	mu       sync.Mutex
	codes    []int
	requests []*http.Request
}

func (h *statusSequenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, r.Clone(context.Background()))
	code := h.codes[len(h.codes)-1]
	if len(h.requests) <= len(h.codes) {
		code = h.codes[len(h.requests)-1]
	}
	w.WriteHeader(code)
	if code == http.StatusOK {
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}
}

func (h *statusSequenceHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

func newTestFetcher(t *testing.T, baseURL string, maxRetries int) (*Fetcher, *[]time.Duration) {
	t.Helper()
	f := NewFetcher(FetcherConfig{
		BaseURL:     baseURL,
		ListingPath: "/survey/index.php",
		UserAgent:   "Academic Research Bot (+research@example.com)",
		Timeout:     5 * time.Second,
		MaxRetries:  maxRetries,
		BackoffBase: time.Second,
	}, zap.NewNop())

	var slept []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return f, &slept
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	handler := &statusSequenceHandler{codes: []int{429, 429, 200}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	f, slept := newTestFetcher(t, srv.URL, 3)
	body, err := f.Fetch(context.Background(), srv.URL+"/survey/index.php", nil)

	require.NoError(t, err)
	assert.Contains(t, string(body), "ok")
	assert.Equal(t, 3, handler.count())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestFetchPermanentStatusNoRetry(t *testing.T) {
	t.Parallel()

	handler := &statusSequenceHandler{codes: []int{404}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	f, slept := newTestFetcher(t, srv.URL, 3)
	_, err := f.Fetch(context.Background(), srv.URL+"/survey/index.php", nil)

	var perm *PermanentError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, http.StatusNotFound, perm.StatusCode)
	assert.Equal(t, 1, handler.count())
	assert.Empty(t, *slept)
}

func TestFetchTransientBudgetExhausted(t *testing.T) {
	t.Parallel()

	handler := &statusSequenceHandler{codes: []int{500}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	f, slept := newTestFetcher(t, srv.URL, 3)
	_, err := f.Fetch(context.Background(), srv.URL+"/survey/index.php", nil)

	var transient *TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, transient.Attempts)
	assert.Equal(t, 3, handler.count())
	assert.Len(t, *slept, 2)
}

func TestFetchNetworkErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close() // connection refused from here on

	f, slept := newTestFetcher(t, target, 3)
	_, err := f.Fetch(context.Background(), target+"/survey/index.php", nil)

	var transient *TransientError
	require.ErrorAs(t, err, &transient)
	assert.Len(t, *slept, 2)
}

func TestFetchAppendsQueryParams(t *testing.T) {
	t.Parallel()

	handler := &statusSequenceHandler{codes: []int{200}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	f, _ := newTestFetcher(t, srv.URL, 3)
	params := url.Values{}
	params.Set("page", "7")
	_, err := f.Fetch(context.Background(), srv.URL+"/survey/index.php", params)

	require.NoError(t, err)
	require.Equal(t, 1, handler.count())
	assert.Equal(t, "page=7", handler.requests[0].URL.RawQuery)
	assert.Equal(t, "/survey/index.php", handler.requests[0].URL.Path)
}

func TestFetchDeclaresIdentity(t *testing.T) {
	t.Parallel()

	handler := &statusSequenceHandler{codes: []int{200}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	f, _ := newTestFetcher(t, srv.URL, 3)
	_, err := f.Fetch(context.Background(), srv.URL+"/survey/index.php", nil)

	require.NoError(t, err)
	require.Equal(t, 1, handler.count())
	assert.Equal(t,
		"Academic Research Bot (+research@example.com)",
		handler.requests[0].Header.Get("User-Agent"))
}

func TestCheckPolicyAllowed(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /admin/\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, _ := newTestFetcher(t, srv.URL, 3)
	assert.True(t, f.CheckPolicy(context.Background()))
}

func TestCheckPolicyDisallowed(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /survey/\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, _ := newTestFetcher(t, srv.URL, 3)
	assert.False(t, f.CheckPolicy(context.Background()))
}

func TestCheckPolicyFailsOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	f, _ := newTestFetcher(t, target, 3)
	assert.True(t, f.CheckPolicy(context.Background()))
}

func TestNewFetcherAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := NewFetcher(FetcherConfig{BaseURL: "https://example.com"}, nil)
	assert.Equal(t, 3, f.cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, f.cfg.Timeout)
	assert.Equal(t, time.Second, f.cfg.BackoffBase)
	assert.Equal(t, "https://example.com", f.ListingURL())
}

func TestTransientErrorUnwraps(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection reset")
	err := &TransientError{URL: "https://example.com", Attempts: 3, Err: inner}
	assert.ErrorIs(t, err, inner)
}
