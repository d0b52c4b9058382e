package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramvault/gramvault/internal/igapi"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/pkg/apperrors"
	"github.com/gramvault/gramvault/internal/queue"
	"github.com/gramvault/gramvault/internal/repository"
)

type memRepo struct {
	byID   map[string]*model.Profile
	byName map[string]*model.Profile
}

func newMemRepo(profiles ...*model.Profile) *memRepo {
	r := &memRepo{byID: map[string]*model.Profile{}, byName: map[string]*model.Profile{}}
	for _, p := range profiles {
		r.byID[p.ID] = p
		r.byName[p.Username] = p
	}
	return r
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memRepo) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	p, ok := r.byName[username]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memRepo) List(ctx context.Context, limit, offset int, search string) ([]*model.Profile, error) {
	out := []*model.Profile{}
	for _, p := range r.byID {
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memRepo) Create(ctx context.Context, p *model.Profile) error {
	if _, exists := r.byName[p.Username]; exists {
		return repository.ErrUsernameTaken
	}
	copied := *p
	r.byID[p.ID] = &copied
	r.byName[p.Username] = &copied
	return nil
}

func (r *memRepo) Update(ctx context.Context, p *model.Profile) error {
	old, ok := r.byID[p.ID]
	if !ok {
		return repository.ErrProfileNotFound
	}
	delete(r.byName, old.Username)
	copied := *p
	r.byID[p.ID] = &copied
	r.byName[p.Username] = &copied
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	p, ok := r.byID[id]
	if !ok {
		return repository.ErrProfileNotFound
	}
	delete(r.byName, p.Username)
	delete(r.byID, id)
	return nil
}

type fakeAPI struct {
	byUsernameCalls int
	byIDCalls       int
	byUsernameErr   error
	byIDErr         error
	payload         *igapi.ProfilePayload
	stories         []igapi.StoryItem
	storiesErr      error
}

func (f *fakeAPI) GetProfileByUsername(ctx context.Context, username string) (*igapi.ProfilePayload, error) {
	f.byUsernameCalls++
	if f.byUsernameErr != nil {
		return nil, f.byUsernameErr
	}
	return f.payload, nil
}

func (f *fakeAPI) GetProfileByUserID(ctx context.Context, userID string) (*igapi.ProfilePayload, error) {
	f.byIDCalls++
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.payload, nil
}

func (f *fakeAPI) GetStoriesByUsername(ctx context.Context, username string) ([]igapi.StoryItem, error) {
	return f.stories, f.storiesErr
}

func (f *fakeAPI) GetPostsByUsername(ctx context.Context, username string) ([]igapi.PostItem, error) {
	return nil, nil
}

type captureSink struct {
	jobs []queue.Job
	err  error
}

func (s *captureSink) Enqueue(ctx context.Context, job queue.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func samplePayload() *igapi.ProfilePayload {
	return &igapi.ProfilePayload{
		ID:              igapi.FlexID("998877"),
		Username:        "alice",
		FullName:        "Alice A.",
		Biography:       "hi",
		IsVerified:      true,
		ProfilePicURLHD: "https://cdn.example.test/alice_hd.jpg",
		TimelineMedia:   igapi.EdgeCount{Count: 42},
		FollowedBy:      igapi.EdgeCount{Count: 1000},
		Follow:          igapi.EdgeCount{Count: 150},
	}
}

func TestCreateValidatesUsername(t *testing.T) {
	svc := NewProfileService(newMemRepo(), &fakeAPI{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateProfileInput{Username: "has spaces"})
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrInvalidRequest, appErr.Type)

	p, err := svc.Create(context.Background(), CreateProfileInput{Username: "alice.a_1"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
}

func TestCreateDuplicateUsernameConflicts(t *testing.T) {
	svc := NewProfileService(newMemRepo(), &fakeAPI{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateProfileInput{Username: "alice"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateProfileInput{Username: "alice"})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrConflict, appErr.Type)
}

func TestSyncFromAPIUsernameFirst(t *testing.T) {
	repo := newMemRepo(&model.Profile{ID: "p1", Username: "alice", InstagramID: "998877"})
	api := &fakeAPI{payload: samplePayload()}
	svc := NewProfileService(repo, api, nil, nil)

	p, err := svc.SyncFromAPI(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, 1, api.byUsernameCalls)
	assert.Equal(t, 0, api.byIDCalls, "id fallback must not run when the username lookup works")
	assert.Equal(t, 42, p.MediaCount)
	assert.Equal(t, 1000, p.FollowerCount)
	assert.Equal(t, 150, p.FollowingCount)
	assert.Equal(t, "https://cdn.example.test/alice_hd.jpg", p.OriginalProfilePictureURL)
	assert.NotNil(t, p.APIUpdatedAt)
	assert.NotEmpty(t, p.RawAPIData)
}

func TestSyncFromAPIFallsBackToInstagramID(t *testing.T) {
	repo := newMemRepo(&model.Profile{ID: "p1", Username: "old_name", InstagramID: "998877"})
	api := &fakeAPI{
		byUsernameErr: &igapi.ResponseError{StatusCode: 404, Message: "User not found"},
		payload:       samplePayload(),
	}
	svc := NewProfileService(repo, api, nil, nil)

	p, err := svc.SyncFromAPI(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, 1, api.byUsernameCalls)
	assert.Equal(t, 1, api.byIDCalls)
	assert.Equal(t, "alice", p.Username, "username renames follow the upstream record")
}

func TestSyncFromAPINoFallbackWithoutInstagramID(t *testing.T) {
	repo := newMemRepo(&model.Profile{ID: "p1", Username: "alice"})
	api := &fakeAPI{byUsernameErr: &igapi.ResponseError{StatusCode: 404, Message: "User not found"}}
	svc := NewProfileService(repo, api, nil, nil)

	_, err := svc.SyncFromAPI(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, 0, api.byIDCalls)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrNotFound, appErr.Type)
}

func TestSyncFromAPIMapsConfigurationError(t *testing.T) {
	repo := newMemRepo(&model.Profile{ID: "p1", Username: "alice"})
	api := &fakeAPI{byUsernameErr: &igapi.ConfigurationError{Reason: "missing api key"}}
	svc := NewProfileService(repo, api, nil, nil)

	_, err := svc.SyncFromAPI(context.Background(), "p1")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrNotConfigured, appErr.Type)
}

func TestRequestRefreshEnqueuesJob(t *testing.T) {
	repo := newMemRepo(&model.Profile{ID: "p1", Username: "alice"})
	sink := &captureSink{}
	svc := NewProfileService(repo, &fakeAPI{}, sink, nil)

	require.NoError(t, svc.RequestRefresh(context.Background(), "p1", true))
	require.Len(t, sink.jobs, 1)
	assert.Equal(t, "p1", sink.jobs[0].ProfileID)
	assert.True(t, sink.jobs[0].Force)
}

func TestRequestRefreshUnknownProfile(t *testing.T) {
	svc := NewProfileService(newMemRepo(), &fakeAPI{}, &captureSink{}, nil)

	err := svc.RequestRefresh(context.Background(), "ghost", false)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrNotFound, appErr.Type)
}

func TestRequestRefreshWithoutQueue(t *testing.T) {
	repo := newMemRepo(&model.Profile{ID: "p1", Username: "alice"})
	svc := NewProfileService(repo, &fakeAPI{}, nil, nil)

	err := svc.RequestRefresh(context.Background(), "p1", false)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrUnavailable, appErr.Type)
}

func TestStoriesReadThrough(t *testing.T) {
	repo := newMemRepo(&model.Profile{ID: "p1", Username: "alice"})
	api := &fakeAPI{stories: []igapi.StoryItem{{ID: igapi.FlexID("s1")}}}
	svc := NewProfileService(repo, api, nil, nil)

	items, err := svc.Stories(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s1", items[0].ID.String())
}

func TestStoriesMapsUpstreamError(t *testing.T) {
	repo := newMemRepo(&model.Profile{ID: "p1", Username: "alice"})
	api := &fakeAPI{storiesErr: &igapi.ResponseError{StatusCode: 503, Message: "down"}}
	svc := NewProfileService(repo, api, nil, nil)

	_, err := svc.Stories(context.Background(), "p1")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrUpstream, appErr.Type)
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	repo := newMemRepo(&model.Profile{ID: "p1", Username: "alice", FullName: "Alice"})
	svc := NewProfileService(repo, &fakeAPI{}, nil, nil)

	bio := "new bio"
	auto := true
	p, err := svc.Update(context.Background(), "p1", UpdateProfileInput{
		Biography:              &bio,
		AllowAutoUpdateProfile: &auto,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.FullName, "untouched field survives")
	assert.Equal(t, "new bio", p.Biography)
	assert.True(t, p.AllowAutoUpdateProfile)
}
