package refresher

import "fmt"

// TransientError means the fetch step failed in a retryable way on every
// allowed attempt. Surfaced so the dispatching queue can dead-letter or
// alert; no persistence was touched.
type TransientError struct {
	Attempts int
	Cause    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("refresh fetch failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// FatalError is a non-retryable failure: hashing, storage or the
// persistence write. The invocation stops without partial state.
type FatalError struct {
	Stage string
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("refresh %s failed: %v", e.Stage, e.Cause)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// FetchError classifies one attempt against the remote resource.
// Temporary failures (connection errors, timeouts, 429, 5xx) are eligible
// for retry; everything else fails the invocation immediately.
type FetchError struct {
	URL        string
	StatusCode int
	Temporary  bool
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
