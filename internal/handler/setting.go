package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/pkg/apperrors"
	"github.com/gramvault/gramvault/internal/repository"
)

// SettingStore is the singleton fetcher-setting persistence surface.
type SettingStore interface {
	Current(ctx context.Context) (*model.FetcherSetting, error)
	Set(ctx context.Context, s *model.FetcherSetting) error
}

// ConnectionChecker probes the upstream API with the live credentials.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

type SettingHandler struct {
	store   SettingStore
	checker ConnectionChecker
}

func NewSettingHandler(store SettingStore, checker ConnectionChecker) *SettingHandler {
	return &SettingHandler{store: store, checker: checker}
}

// Get returns the live setting with the API key masked.
func (h *SettingHandler) Get(c *gin.Context) {
	setting, err := h.store.Current(c.Request.Context())
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			c.Error(apperrors.New(apperrors.ErrNotConfigured, "fetcher is not configured", err))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, setting.Redacted())
}

// Put replaces the setting. The new values take effect on the next
// outbound call; nothing is cached.
func (h *SettingHandler) Put(c *gin.Context) {
	var setting model.FetcherSetting
	if err := c.ShouldBindJSON(&setting); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := setting.Validate(); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.store.Set(c.Request.Context(), &setting); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, setting.Redacted())
}

// CheckConnection performs a logged round trip against the upstream API.
func (h *SettingHandler) CheckConnection(c *gin.Context) {
	if h.checker == nil {
		c.Error(apperrors.New(apperrors.ErrUnavailable, "connection check is not available", nil))
		return
	}
	if err := h.checker.CheckConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
