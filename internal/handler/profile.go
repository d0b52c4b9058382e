package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gramvault/gramvault/internal/service"
)

type ProfileHandler struct {
	svc *service.ProfileService
}

func NewProfileHandler(svc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) List(c *gin.Context) {
	limit := 100
	offset := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			offset = parsed
		}
	}

	profiles, err := h.svc.List(c.Request.Context(), limit, offset, c.Query("search"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles, "count": len(profiles)})
}

func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) GetByUsername(c *gin.Context) {
	profile, err := h.svc.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) Create(c *gin.Context) {
	var input service.CreateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := h.svc.Create(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var input service.UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := h.svc.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sync pulls the profile's current upstream state and stores it.
func (h *ProfileHandler) Sync(c *gin.Context) {
	profile, err := h.svc.SyncFromAPI(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Stories lists the profile's current upstream stories.
func (h *ProfileHandler) Stories(c *gin.Context) {
	items, err := h.svc.Stories(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": items, "count": len(items)})
}

// Posts lists the profile's recent upstream posts.
func (h *ProfileHandler) Posts(c *gin.Context) {
	items, err := h.svc.Posts(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": items, "count": len(items)})
}

// Refresh dispatches a profile picture refresh. The default is
// asynchronous via the queue; ?mode=sync runs it inline and reports the
// outcome.
func (h *ProfileHandler) Refresh(c *gin.Context) {
	id := c.Param("id")
	force := c.Query("force") == "true"

	if c.Query("mode") == "sync" {
		outcome, err := h.svc.RefreshNow(c.Request.Context(), id, force)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"outcome": string(outcome), "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"outcome": string(outcome)})
		return
	}

	if err := h.svc.RequestRefresh(c.Request.Context(), id, force); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
