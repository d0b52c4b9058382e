package igapi

import (
	"fmt"
	"time"
)

// ConfigurationError means the call was never attempted: the runtime
// setting record is missing or incomplete, or a required argument was
// empty. Not retryable.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("fetcher api not configured: %s", e.Reason)
}

// ConnectionError is a network-level failure before a response arrived.
type ConnectionError struct {
	URL   string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("fetcher api connection failed for %s: %v", e.URL, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// TimeoutError means the configured deadline elapsed before a response.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetcher api call to %s timed out after %s", e.URL, e.Timeout)
}

// ResponseError covers non-2xx statuses, API-level failure envelopes and
// unparseable bodies on otherwise successful responses.
type ResponseError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("fetcher api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fetcher api error (status %d)", e.StatusCode)
}
