package model

import (
	"time"
)

// APICallOutcome is the lifecycle state of one outbound call record.
// Pending is transient; the other three are terminal.
type APICallOutcome string

const (
	APICallPending APICallOutcome = "pending"
	APICallSuccess APICallOutcome = "success"
	APICallError   APICallOutcome = "error"
	APICallTimeout APICallOutcome = "timeout"
)

// APICallLog is the audit record of one outbound call to the fetcher API.
// It is created in pending state before the request is issued, finalized
// exactly once, and never mutated afterward.
type APICallLog struct {
	ID              string            `json:"id"`
	Operation       string            `json:"operation"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	RequestParams   map[string]string `json:"request_params,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	ResponseStatus  int               `json:"response_status,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	DurationMs      int64             `json:"duration_ms"`
	Outcome         APICallOutcome    `json:"outcome"`
	CreatedAt       time.Time         `json:"created_at"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}
