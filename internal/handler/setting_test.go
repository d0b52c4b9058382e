package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramvault/gramvault/internal/middleware"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/repository"
)

type stubSettingStore struct {
	setting *model.FetcherSetting
	sets    int
}

func (s *stubSettingStore) Current(ctx context.Context) (*model.FetcherSetting, error) {
	if s.setting == nil {
		return nil, repository.ErrSettingNotFound
	}
	return s.setting, nil
}

func (s *stubSettingStore) Set(ctx context.Context, setting *model.FetcherSetting) error {
	s.setting = setting
	s.sets++
	return nil
}

type stubChecker struct {
	err error
}

func (s stubChecker) CheckConnection(ctx context.Context) error { return s.err }

func settingRouter(store SettingStore, checker ConnectionChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSettingHandler(store, checker)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/admin/setting", h.Get)
	r.PUT("/admin/setting", h.Put)
	r.POST("/admin/setting/check", h.CheckConnection)
	return r
}

func TestGetSettingRedactsAPIKey(t *testing.T) {
	store := &stubSettingStore{setting: &model.FetcherSetting{
		BaseURL: "https://fetcher.example.test",
		APIKey:  "super-secret-key",
	}}
	r := settingRouter(store, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/setting", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "super-secret-key")
	assert.Contains(t, body, "https://fetcher.example.test")
}

func TestGetSettingNotConfigured(t *testing.T) {
	r := settingRouter(&stubSettingStore{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/setting", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
}

func TestPutSettingValidates(t *testing.T) {
	store := &stubSettingStore{}
	r := settingRouter(store, nil)

	body, _ := json.Marshal(map[string]any{"base_url": "relative/path", "timeout_seconds": -5})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/admin/setting", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.sets)

	body, _ = json.Marshal(map[string]any{
		"base_url":        "https://fetcher.example.test",
		"api_key":         "k1",
		"timeout_seconds": 15,
	})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/admin/setting", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, store.sets)
}

func TestCheckConnectionReportsFailure(t *testing.T) {
	store := &stubSettingStore{setting: &model.FetcherSetting{BaseURL: "https://x", APIKey: "k"}}
	r := settingRouter(store, stubChecker{err: errors.New("upstream down")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/setting/check", nil))

	require.Equal(t, http.StatusOK, w.Code)
	if !strings.Contains(w.Body.String(), `"ok":false`) {
		t.Fatalf("expected ok=false, got %s", w.Body.String())
	}
}
