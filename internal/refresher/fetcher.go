package refresher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPFetcher downloads the remote resource bytes directly. This path is
// a raw binary transfer, not a logical API operation, so it does not go
// through the structured call log.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPFetcher(timeout time.Duration, perSecond float64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Temporary: false, Cause: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Temporary: false, Cause: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Timeouts and connection-level failures are worth another try.
		if errors.Is(err, context.Canceled) {
			return nil, &FetchError{URL: url, Temporary: false, Cause: err}
		}
		return nil, &FetchError{URL: url, Temporary: true, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Temporary:  retryableStatus(resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Temporary: true, Cause: err}
	}
	return data, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return code >= 500
	}
}
