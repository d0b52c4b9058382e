package igapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/pkg/logger"
	"github.com/gramvault/gramvault/internal/pkg/metrics"
	"github.com/gramvault/gramvault/internal/repository"
)

// SettingSource yields the live runtime configuration. Implementations
// must read fresh on every call; the client never caches credentials.
type SettingSource interface {
	Current(ctx context.Context) (*model.FetcherSetting, error)
}

// CallLogStore persists the audit trail of outbound calls.
type CallLogStore interface {
	Insert(ctx context.Context, entry *model.APICallLog) error
	Finalize(ctx context.Context, entry *model.APICallLog) error
}

// Client issues single-attempt calls against the external data-fetching
// service. Every issued attempt produces exactly one call log entry,
// created pending before the request goes out and finalized once with a
// terminal outcome. Retry policy belongs to callers.
type Client struct {
	settings     SettingSource
	logs         CallLogStore
	httpClient   *http.Client
	maxBodyBytes int
}

type Option func(*Client)

// WithHTTPClient overrides the transport, mainly for tests. The per-call
// timeout still comes from the runtime setting via context deadline.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithMaxBodyBytes(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

func NewClient(settings SettingSource, logs CallLogStore, opts ...Option) *Client {
	c := &Client{
		settings:     settings,
		logs:         logs,
		httpClient:   &http.Client{},
		maxBodyBytes: 65536,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is one logical operation against the fetcher API.
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     map[string]string
	Body      interface{}
}

// Do performs the call-and-log primitive. On success it returns the
// decoded JSON object payload.
func (c *Client) Do(ctx context.Context, req Request) (map[string]interface{}, error) {
	if req.Operation == "" || req.Path == "" {
		return nil, errors.New("igapi: operation and path are required")
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	setting, err := c.settings.Current(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return nil, &ConfigurationError{Reason: "no runtime setting record"}
		}
		return nil, fmt.Errorf("igapi: load setting: %w", err)
	}
	if !setting.Configured() {
		return nil, &ConfigurationError{Reason: "base_url or api_key is empty"}
	}

	target, err := joinURL(setting.BaseURL, req.Path, req.Query)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("igapi: encode request body: %w", err)
		}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + setting.APIKey,
		"Content-Type":  "application/json",
	}
	for k, v := range setting.ExtraHeaders {
		headers[k] = v
	}

	entry := &model.APICallLog{
		ID:             uuid.New().String(),
		Operation:      req.Operation,
		Method:         req.Method,
		URL:            target,
		RequestHeaders: redactHeaders(headers),
		RequestParams:  req.Query,
		RequestBody:    capBody(bodyBytes, c.maxBodyBytes),
		Outcome:        model.APICallPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.logs.Insert(ctx, entry); err != nil {
		// Logging is part of the contract; an unlogged call must not
		// be issued.
		return nil, fmt.Errorf("igapi: create call log: %w", err)
	}

	timeout := setting.Timeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if bodyBytes != nil {
		reqBody = bytes.NewReader(bodyBytes)
	}
	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, target, reqBody)
	if err != nil {
		c.finalize(entry, model.APICallError, 0, nil, "", 0)
		return nil, &ConnectionError{URL: target, Cause: err}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			c.finalize(entry, model.APICallTimeout, 0, nil, "", duration)
			return nil, &TimeoutError{URL: target, Timeout: timeout}
		}
		c.finalize(entry, model.APICallError, 0, nil, "", duration)
		return nil, &ConnectionError{URL: target, Cause: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			c.finalize(entry, model.APICallTimeout, resp.StatusCode, resp.Header, "", time.Since(start))
			return nil, &TimeoutError{URL: target, Timeout: timeout}
		}
		c.finalize(entry, model.APICallError, resp.StatusCode, resp.Header, "", time.Since(start))
		return nil, &ConnectionError{URL: target, Cause: err}
	}
	duration = time.Since(start)
	captured := capBody(respBytes, c.maxBodyBytes)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.finalize(entry, model.APICallError, resp.StatusCode, resp.Header, captured, duration)
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(respBytes),
			Body:       captured,
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(respBytes, &payload); err != nil {
		c.finalize(entry, model.APICallError, resp.StatusCode, resp.Header, captured, duration)
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Body:       captured,
		}
	}
	if msg, failed := envelopeFailure(payload); failed {
		c.finalize(entry, model.APICallError, resp.StatusCode, resp.Header, captured, duration)
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Body:       captured,
		}
	}

	c.finalize(entry, model.APICallSuccess, resp.StatusCode, resp.Header, captured, duration)
	return payload, nil
}

func (c *Client) finalize(entry *model.APICallLog, outcome model.APICallOutcome, status int, header http.Header, body string, duration time.Duration) {
	now := time.Now().UTC()
	entry.Outcome = outcome
	entry.ResponseStatus = status
	entry.ResponseHeaders = flattenHeader(header)
	entry.ResponseBody = body
	entry.DurationMs = duration.Milliseconds()
	entry.FinishedAt = &now

	metrics.APICallsTotal.WithLabelValues(entry.Operation, string(outcome)).Inc()
	metrics.APICallDuration.WithLabelValues(entry.Operation).Observe(duration.Seconds())

	// Finalize failure must not mask the call result.
	if err := c.logs.Finalize(context.Background(), entry); err != nil {
		logger.Warn("failed to finalize api call log",
			"log_id", entry.ID, "operation", entry.Operation, "error", err.Error())
	}
}

func joinURL(base, path string, query map[string]string) (string, error) {
	parsed, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		values := url.Values{}
		for k, v := range query {
			values.Set(k, v)
		}
		parsed.RawQuery = values.Encode()
	}
	return parsed.String(), nil
}

func capBody(b []byte, limit int) string {
	if len(b) == 0 {
		return ""
	}
	if limit > 0 && len(b) > limit {
		return string(b[:limit])
	}
	return string(b)
}

func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		switch strings.ToLower(k) {
		case "authorization", "x-api-key", "x-api-secret", "cookie":
			out[k] = "***"
		default:
			out[k] = v
		}
	}
	return out
}

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return redactHeaders(out)
}

func extractErrorMessage(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"message", "errorMessage", "error"} {
		if msg, ok := payload[key].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}

// envelopeFailure detects API-level failures delivered with a 2xx status.
// The upstream envelope carries a status indicator that is "ok" on
// success and "fail"/"error" otherwise.
func envelopeFailure(payload map[string]interface{}) (string, bool) {
	status, ok := payload["status"].(string)
	if !ok {
		return "", false
	}
	switch strings.ToLower(status) {
	case "fail", "error":
		msg := extractMessageField(payload)
		if msg == "" {
			msg = "api reported failure status"
		}
		return msg, true
	default:
		return "", false
	}
}

func extractMessageField(payload map[string]interface{}) string {
	for _, key := range []string{"message", "errorMessage"} {
		if msg, ok := payload[key].(string); ok {
			return msg
		}
	}
	return ""
}
