package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FetcherSetting is the runtime-mutable configuration for the external
// data-fetching service. Exactly one record is live at any time; it is
// read fresh on every outbound call so credential rotation takes effect
// without a restart.
type FetcherSetting struct {
	BaseURL        string            `json:"base_url"`
	APIKey         string            `json:"api_key"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	ExtraHeaders   map[string]string `json:"extra_headers,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (s *FetcherSetting) Validate() error {
	base := strings.TrimSpace(s.BaseURL)
	if base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("base_url must be an absolute URL")
		}
	}
	if s.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	return nil
}

// Configured reports whether the record carries enough to issue a call.
func (s *FetcherSetting) Configured() bool {
	return s != nil &&
		strings.TrimSpace(s.BaseURL) != "" &&
		strings.TrimSpace(s.APIKey) != ""
}

func (s *FetcherSetting) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Redacted returns a copy safe for API responses and logs.
func (s *FetcherSetting) Redacted() FetcherSetting {
	out := *s
	if out.APIKey != "" {
		out.APIKey = "***"
	}
	return out
}
