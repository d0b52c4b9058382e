package model

import (
	"encoding/json"
	"time"
)

// Profile is an archived Instagram profile. The picture path and hash
// pair is only ever written together: the hash is the fingerprint of the
// bytes currently stored at the path.
type Profile struct {
	ID          string `json:"id"`
	InstagramID string `json:"instagram_id,omitempty"`
	Username    string `json:"username"`
	FullName    string `json:"full_name,omitempty"`
	Biography   string `json:"biography,omitempty"`
	IsPrivate   bool   `json:"is_private"`
	IsVerified  bool   `json:"is_verified"`

	MediaCount     int `json:"media_count"`
	FollowerCount  int `json:"follower_count"`
	FollowingCount int `json:"following_count"`

	OriginalProfilePictureURL string `json:"original_profile_picture_url,omitempty"`
	ProfilePicturePath        string `json:"profile_picture_path,omitempty"`
	ProfilePictureHash        string `json:"profile_picture_hash,omitempty"`

	AllowAutoUpdateProfile bool `json:"allow_auto_update_profile"`
	AllowAutoUpdateStories bool `json:"allow_auto_update_stories"`

	RawAPIData json.RawMessage `json:"raw_api_data,omitempty"`

	APIUpdatedAt *time.Time `json:"api_updated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
