package scrape

import "fmt"

// TransientError reports a fetch that stayed retryable (429, 5xx,
// network or timeout failures) until the retry budget ran out. Callers
// treat it as an empty page for circuit-breaker purposes.
type TransientError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("fetch %s: retry budget exhausted after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError reports a non-200 status that is not worth retrying.
type PermanentError struct {
	URL        string
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
}
