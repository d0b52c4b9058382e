package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/pkg/apperrors"
	"github.com/gramvault/gramvault/internal/repository"
)

// APILogStore is the read side of the call log.
type APILogStore interface {
	List(ctx context.Context, filter repository.APILogFilter) ([]*model.APICallLog, error)
}

type APILogHandler struct {
	store APILogStore
}

func NewAPILogHandler(store APILogStore) *APILogHandler {
	return &APILogHandler{store: store}
}

// List returns call log entries, newest first. Filters: operation,
// outcome, from, to (RFC 3339), limit.
func (h *APILogHandler) List(c *gin.Context) {
	filter := repository.APILogFilter{
		Operation: c.Query("operation"),
		Outcome:   c.Query("outcome"),
	}
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Limit = parsed
		}
	}
	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
		filter.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
		filter.To = &ts
	}

	entries, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries, "count": len(entries)})
}
