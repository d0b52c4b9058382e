// Package service holds the business layer between HTTP handlers and
// the repositories.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/gramvault/gramvault/internal/igapi"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/pkg/apperrors"
	"github.com/gramvault/gramvault/internal/pkg/logger"
	"github.com/gramvault/gramvault/internal/queue"
	"github.com/gramvault/gramvault/internal/refresher"
	"github.com/gramvault/gramvault/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)

// ProfileRepo is the persistence surface the service needs.
type ProfileRepo interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	GetByUsername(ctx context.Context, username string) (*model.Profile, error)
	List(ctx context.Context, limit, offset int, search string) ([]*model.Profile, error)
	Create(ctx context.Context, p *model.Profile) error
	Update(ctx context.Context, p *model.Profile) error
	Delete(ctx context.Context, id string) error
}

// ProfileFetcher is the upstream API surface used during sync and
// media listing.
type ProfileFetcher interface {
	GetProfileByUsername(ctx context.Context, username string) (*igapi.ProfilePayload, error)
	GetProfileByUserID(ctx context.Context, userID string) (*igapi.ProfilePayload, error)
	GetStoriesByUsername(ctx context.Context, username string) ([]igapi.StoryItem, error)
	GetPostsByUsername(ctx context.Context, username string) ([]igapi.PostItem, error)
}

// RefreshRunner executes an inline picture refresh.
type RefreshRunner interface {
	Refresh(ctx context.Context, profileID string, force bool) (refresher.Outcome, error)
}

// ProfileService coordinates profile CRUD, upstream sync, and refresh
// dispatch.
type ProfileService struct {
	repo      ProfileRepo
	api       ProfileFetcher
	refreshes queue.Sink
	runner    RefreshRunner
}

func NewProfileService(repo ProfileRepo, api ProfileFetcher, refreshes queue.Sink, runner RefreshRunner) *ProfileService {
	return &ProfileService{repo: repo, api: api, refreshes: refreshes, runner: runner}
}

// CreateProfileInput carries the caller-supplied fields for a new profile.
type CreateProfileInput struct {
	Username                  string `json:"username"`
	InstagramID               string `json:"instagram_id"`
	FullName                  string `json:"full_name"`
	OriginalProfilePictureURL string `json:"original_profile_picture_url"`
	AllowAutoUpdateProfile    bool   `json:"allow_auto_update_profile"`
	AllowAutoUpdateStories    bool   `json:"allow_auto_update_stories"`
}

// UpdateProfileInput uses pointers so absent fields are left untouched.
type UpdateProfileInput struct {
	Username                  *string `json:"username"`
	FullName                  *string `json:"full_name"`
	Biography                 *string `json:"biography"`
	OriginalProfilePictureURL *string `json:"original_profile_picture_url"`
	AllowAutoUpdateProfile    *bool   `json:"allow_auto_update_profile"`
	AllowAutoUpdateStories    *bool   `json:"allow_auto_update_stories"`
}

func (s *ProfileService) Create(ctx context.Context, input CreateProfileInput) (*model.Profile, error) {
	if !usernamePattern.MatchString(input.Username) {
		return nil, apperrors.NewInvalidRequest("username must be 1-30 characters of letters, digits, dots or underscores")
	}
	p := &model.Profile{
		ID:                        uuid.NewString(),
		Username:                  input.Username,
		InstagramID:               input.InstagramID,
		FullName:                  input.FullName,
		OriginalProfilePictureURL: input.OriginalProfilePictureURL,
		AllowAutoUpdateProfile:    input.AllowAutoUpdateProfile,
		AllowAutoUpdateStories:    input.AllowAutoUpdateStories,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, apperrors.New(apperrors.ErrConflict, "username already archived", err)
		}
		return nil, apperrors.Wrap(err)
	}
	return p, nil
}

func (s *ProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperrors.NewNotFound("profile not found")
		}
		return nil, apperrors.Wrap(err)
	}
	return p, nil
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	p, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperrors.NewNotFound("profile not found")
		}
		return nil, apperrors.Wrap(err)
	}
	return p, nil
}

func (s *ProfileService) List(ctx context.Context, limit, offset int, search string) ([]*model.Profile, error) {
	profiles, err := s.repo.List(ctx, limit, offset, search)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return profiles, nil
}

func (s *ProfileService) Update(ctx context.Context, id string, input UpdateProfileInput) (*model.Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Username != nil {
		if !usernamePattern.MatchString(*input.Username) {
			return nil, apperrors.NewInvalidRequest("username must be 1-30 characters of letters, digits, dots or underscores")
		}
		p.Username = *input.Username
	}
	if input.FullName != nil {
		p.FullName = *input.FullName
	}
	if input.Biography != nil {
		p.Biography = *input.Biography
	}
	if input.OriginalProfilePictureURL != nil {
		p.OriginalProfilePictureURL = *input.OriginalProfilePictureURL
	}
	if input.AllowAutoUpdateProfile != nil {
		p.AllowAutoUpdateProfile = *input.AllowAutoUpdateProfile
	}
	if input.AllowAutoUpdateStories != nil {
		p.AllowAutoUpdateStories = *input.AllowAutoUpdateStories
	}
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, apperrors.New(apperrors.ErrConflict, "username already archived", err)
		}
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperrors.NewNotFound("profile not found")
		}
		return nil, apperrors.Wrap(err)
	}
	return p, nil
}

func (s *ProfileService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return apperrors.NewNotFound("profile not found")
		}
		return apperrors.Wrap(err)
	}
	return nil
}

// SyncFromAPI pulls the current upstream state of a profile and stores
// it. The username lookup comes first; when it fails and an Instagram id
// is on file, the id lookup is the fallback (usernames change, ids do
// not).
func (s *ProfileService) SyncFromAPI(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, fetchErr := s.api.GetProfileByUsername(ctx, p.Username)
	if fetchErr != nil && p.InstagramID != "" {
		logger.Warn("username lookup failed, retrying by instagram id",
			"profile_id", p.ID, "username", p.Username, "error", fetchErr)
		payload, fetchErr = s.api.GetProfileByUserID(ctx, p.InstagramID)
	}
	if fetchErr != nil {
		return nil, mapUpstreamError(fetchErr)
	}

	applyPayload(p, payload)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, apperrors.Wrap(err)
	}
	return p, nil
}

func applyPayload(p *model.Profile, payload *igapi.ProfilePayload) {
	p.InstagramID = payload.ID.String()
	p.Username = payload.Username
	p.FullName = payload.FullName
	p.Biography = payload.Biography
	p.IsPrivate = payload.IsPrivate
	p.IsVerified = payload.IsVerified
	p.MediaCount = payload.TimelineMedia.Count
	p.FollowerCount = payload.FollowedBy.Count
	p.FollowingCount = payload.Follow.Count
	if url := payload.BestPictureURL(); url != "" {
		p.OriginalProfilePictureURL = url
	}
	if raw, err := json.Marshal(payload); err == nil {
		p.RawAPIData = raw
	}
	now := time.Now().UTC()
	p.APIUpdatedAt = &now
}

// Stories lists the profile's current stories from the upstream API.
// Nothing is persisted; this is a read-through.
func (s *ProfileService) Stories(ctx context.Context, id string) ([]igapi.StoryItem, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.api.GetStoriesByUsername(ctx, p.Username)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return items, nil
}

// Posts lists the profile's recent posts from the upstream API.
func (s *ProfileService) Posts(ctx context.Context, id string) ([]igapi.PostItem, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.api.GetPostsByUsername(ctx, p.Username)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return items, nil
}

// RequestRefresh queues a background picture refresh.
func (s *ProfileService) RequestRefresh(ctx context.Context, id string, force bool) error {
	if s.refreshes == nil {
		return apperrors.New(apperrors.ErrUnavailable, "refresh queue is not available", nil)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	job := queue.Job{ProfileID: id, Force: force, EnqueuedAt: time.Now().UTC()}
	if err := s.refreshes.Enqueue(ctx, job); err != nil {
		return apperrors.New(apperrors.ErrUnavailable, "could not enqueue refresh", err)
	}
	return nil
}

// RefreshNow runs the refresh inline and reports its outcome.
func (s *ProfileService) RefreshNow(ctx context.Context, id string, force bool) (refresher.Outcome, error) {
	if s.runner == nil {
		return refresher.OutcomeFailed, apperrors.New(apperrors.ErrUnavailable, "inline refresh is not available", nil)
	}
	return s.runner.Refresh(ctx, id, force)
}

func mapUpstreamError(err error) error {
	var cfgErr *igapi.ConfigurationError
	if errors.As(err, &cfgErr) {
		return apperrors.New(apperrors.ErrNotConfigured, cfgErr.Error(), err)
	}
	var respErr *igapi.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return apperrors.NewNotFound("profile not found upstream")
	}
	return apperrors.New(apperrors.ErrUpstream, "upstream profile fetch failed", err)
}
