package igapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// FlexID tolerates the upstream API switching between numeric and string
// identifiers across endpoint versions.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string {
	return string(f)
}

type EdgeCount struct {
	Count int `json:"count"`
}

// ProfilePayload is the primary-content object of a profile fetch.
// Counts arrive in edge wrappers on the v1-style endpoints.
type ProfilePayload struct {
	ID              FlexID    `json:"id"`
	Username        string    `json:"username"`
	FullName        string    `json:"full_name"`
	Biography       string    `json:"biography"`
	IsPrivate       bool      `json:"is_private"`
	IsVerified      bool      `json:"is_verified"`
	ProfilePicURLHD string    `json:"profile_pic_url_hd"`
	ProfilePicURL   string    `json:"profile_pic_url"`
	TimelineMedia   EdgeCount `json:"edge_owner_to_timeline_media"`
	FollowedBy      EdgeCount `json:"edge_followed_by"`
	Follow          EdgeCount `json:"edge_follow"`
}

// BestPictureURL prefers the HD variant when the API provides one.
func (p *ProfilePayload) BestPictureURL() string {
	if p.ProfilePicURLHD != "" {
		return p.ProfilePicURLHD
	}
	return p.ProfilePicURL
}

type StoryItem struct {
	ID         FlexID `json:"pk"`
	MediaType  int    `json:"media_type"`
	ImageURL   string `json:"image_url"`
	VideoURL   string `json:"video_url"`
	TakenAt    int64  `json:"taken_at"`
	ExpiringAt int64  `json:"expiring_at"`
}

type PostItem struct {
	ID           FlexID `json:"pk"`
	ThumbnailURL string `json:"display_uri"`
	TakenAt      int64  `json:"taken_at"`
}

// GetProfileByUsername fetches profile info for a username.
func (c *Client) GetProfileByUsername(ctx context.Context, username string) (*ProfilePayload, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ConfigurationError{Reason: "username is required"}
	}
	payload, err := c.Do(ctx, Request{
		Operation: "get_profile",
		Method:    http.MethodGet,
		Path:      "/profile",
		Query:     map[string]string{"username": username},
	})
	if err != nil {
		return nil, err
	}
	return decodeProfile(payload)
}

// GetProfileByUserID is the fallback lookup when a username fetch fails
// but the numeric Instagram ID is known.
func (c *Client) GetProfileByUserID(ctx context.Context, userID string) (*ProfilePayload, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &ConfigurationError{Reason: "user_id is required"}
	}
	payload, err := c.Do(ctx, Request{
		Operation: "get_profile_by_id",
		Method:    http.MethodGet,
		Path:      "/profile/by-id",
		Query:     map[string]string{"user_id": userID},
	})
	if err != nil {
		return nil, err
	}
	return decodeProfile(payload)
}

// GetStoriesByUsername fetches the active story items for a username.
func (c *Client) GetStoriesByUsername(ctx context.Context, username string) ([]StoryItem, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ConfigurationError{Reason: "username is required"}
	}
	payload, err := c.Do(ctx, Request{
		Operation: "get_stories",
		Method:    http.MethodGet,
		Path:      "/stories",
		Query:     map[string]string{"username": username},
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []StoryItem `json:"items"`
	}
	if err := decodeContent(payload, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetPostsByUsername fetches recent timeline posts for a username.
func (c *Client) GetPostsByUsername(ctx context.Context, username string) ([]PostItem, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ConfigurationError{Reason: "username is required"}
	}
	payload, err := c.Do(ctx, Request{
		Operation: "get_posts",
		Method:    http.MethodGet,
		Path:      "/posts",
		Query:     map[string]string{"username": username},
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []PostItem `json:"items"`
	}
	if err := decodeContent(payload, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CheckConnection verifies the configured service is reachable.
func (c *Client) CheckConnection(ctx context.Context) error {
	_, err := c.Do(ctx, Request{
		Operation: "health_check",
		Method:    http.MethodGet,
		Path:      "/health/check",
	})
	return err
}

func decodeProfile(payload map[string]interface{}) (*ProfilePayload, error) {
	var profile ProfilePayload
	if err := decodeContent(payload, &profile); err != nil {
		return nil, err
	}
	if profile.Username == "" {
		return nil, &ResponseError{Message: "response is missing the profile content"}
	}
	return &profile, nil
}

// decodeContent locates the primary-content object and decodes it into
// out. Endpoint versions differ in nesting: some wrap the content under
// "data", one wraps it under "data.user", and the flat form carries it
// at the top level.
func decodeContent(payload map[string]interface{}, out interface{}) error {
	content := payload
	if data, ok := payload["data"].(map[string]interface{}); ok {
		content = data
		if user, ok := data["user"].(map[string]interface{}); ok {
			content = user
		} else if inner, ok := data["data"].(map[string]interface{}); ok {
			if user, ok := inner["user"].(map[string]interface{}); ok {
				content = user
			} else {
				content = inner
			}
		}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("igapi: re-encode content: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ResponseError{Message: "unexpected content shape: " + err.Error()}
	}
	return nil
}
