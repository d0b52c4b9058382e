package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramvault/gramvault/internal/igapi"
	"github.com/gramvault/gramvault/internal/middleware"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/queue"
	"github.com/gramvault/gramvault/internal/repository"
	"github.com/gramvault/gramvault/internal/service"
)

type stubRepo struct {
	profiles map[string]*model.Profile
}

func newStubRepo(profiles ...*model.Profile) *stubRepo {
	r := &stubRepo{profiles: map[string]*model.Profile{}}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *stubRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p, nil
}

func (r *stubRepo) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	for _, p := range r.profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return nil, repository.ErrProfileNotFound
}

func (r *stubRepo) List(ctx context.Context, limit, offset int, search string) ([]*model.Profile, error) {
	out := []*model.Profile{}
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (r *stubRepo) Create(ctx context.Context, p *model.Profile) error {
	for _, existing := range r.profiles {
		if existing.Username == p.Username {
			return repository.ErrUsernameTaken
		}
	}
	r.profiles[p.ID] = p
	return nil
}

func (r *stubRepo) Update(ctx context.Context, p *model.Profile) error {
	if _, ok := r.profiles[p.ID]; !ok {
		return repository.ErrProfileNotFound
	}
	r.profiles[p.ID] = p
	return nil
}

func (r *stubRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.profiles[id]; !ok {
		return repository.ErrProfileNotFound
	}
	delete(r.profiles, id)
	return nil
}

type stubAPI struct{}

func (stubAPI) GetProfileByUsername(ctx context.Context, username string) (*igapi.ProfilePayload, error) {
	return &igapi.ProfilePayload{ID: igapi.FlexID("1"), Username: username}, nil
}

func (stubAPI) GetProfileByUserID(ctx context.Context, userID string) (*igapi.ProfilePayload, error) {
	return &igapi.ProfilePayload{ID: igapi.FlexID(userID), Username: "someone"}, nil
}

func (stubAPI) GetStoriesByUsername(ctx context.Context, username string) ([]igapi.StoryItem, error) {
	return []igapi.StoryItem{}, nil
}

func (stubAPI) GetPostsByUsername(ctx context.Context, username string) ([]igapi.PostItem, error) {
	return []igapi.PostItem{}, nil
}

type stubSink struct {
	jobs []queue.Job
}

func (s *stubSink) Enqueue(ctx context.Context, job queue.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

func profileRouter(repo *stubRepo, sink queue.Sink) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewProfileService(repo, stubAPI{}, sink, nil)
	h := NewProfileHandler(svc)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/v1/profiles", h.List)
	r.POST("/v1/profiles", h.Create)
	r.GET("/v1/profiles/:id", h.Get)
	r.PATCH("/v1/profiles/:id", h.Update)
	r.DELETE("/v1/profiles/:id", h.Delete)
	r.POST("/v1/profiles/:id/sync", h.Sync)
	r.POST("/v1/profiles/:id/refresh", h.Refresh)
	return r
}

func TestCreateProfileEndpoint(t *testing.T) {
	r := profileRouter(newStubRepo(), &stubSink{})

	body, _ := json.Marshal(map[string]any{"username": "alice"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/profiles", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.Username)
	assert.NotEmpty(t, created.ID)
}

func TestCreateProfileRejectsBadUsername(t *testing.T) {
	r := profileRouter(newStubRepo(), &stubSink{})

	body, _ := json.Marshal(map[string]any{"username": "not a username"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/profiles", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProfileNotFound(t *testing.T) {
	r := profileRouter(newStubRepo(), &stubSink{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/profiles/ghost", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshQueuesJob(t *testing.T) {
	repo := newStubRepo(&model.Profile{ID: "p1", Username: "alice"})
	sink := &stubSink{}
	r := profileRouter(repo, sink)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/profiles/p1/refresh?force=true", nil))

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, sink.jobs, 1)
	assert.True(t, sink.jobs[0].Force)
}

func TestSyncEndpointUpdatesProfile(t *testing.T) {
	repo := newStubRepo(&model.Profile{ID: "p1", Username: "alice"})
	r := profileRouter(repo, &stubSink{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/profiles/p1/sync", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated model.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "1", updated.InstagramID)
	assert.NotNil(t, updated.APIUpdatedAt)
}

func TestDeleteProfileEndpoint(t *testing.T) {
	repo := newStubRepo(&model.Profile{ID: "p1", Username: "alice"})
	r := profileRouter(repo, &stubSink{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/profiles/p1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/profiles/p1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
