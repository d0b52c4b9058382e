package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/payments"
	"github.com/gramvault/gramvault/internal/pkg/apperrors"
	"github.com/gramvault/gramvault/internal/repository"
)

// PaymentStore is the payment persistence surface.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByReference(ctx context.Context, reference string) (*model.Payment, error)
	List(ctx context.Context, limit int) ([]*model.Payment, error)
	UpdateStatus(ctx context.Context, reference string, status model.PaymentStatus) error
}

type PaymentHandler struct {
	registry        *payments.Registry
	store           PaymentStore
	defaultProvider string
	currency        string
}

func NewPaymentHandler(registry *payments.Registry, store PaymentStore, defaultProvider, currency string) *PaymentHandler {
	return &PaymentHandler{
		registry:        registry,
		store:           store,
		defaultProvider: defaultProvider,
		currency:        currency,
	}
}

func (h *PaymentHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.registry.Providers()})
}

type createPaymentRequest struct {
	Provider    string          `json:"provider"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ProfileID   string          `json:"profile_id"`
	Kind        string          `json:"kind"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description"`
}

func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Provider == "" {
		req.Provider = h.defaultProvider
	}
	if req.Currency == "" {
		req.Currency = h.currency
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		c.Error(apperrors.NewInvalidRequest("amount must be positive"))
		return
	}

	gateway, err := h.registry.Get(req.Provider)
	if err != nil {
		var unknown *payments.UnknownProviderError
		if errors.As(err, &unknown) {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}

	reference := uuid.NewString()
	session, err := gateway.CreateCheckoutSession(c.Request.Context(), payments.CheckoutRequest{
		Reference:   reference,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		CustomerID:  req.ProfileID,
	})
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrUpstream, "checkout session failed", err))
		return
	}

	payment := &model.Payment{
		ID:        uuid.NewString(),
		Provider:  gateway.Name(),
		Reference: session.ProviderRef,
		ProfileID: req.ProfileID,
		Kind:      req.Kind,
		Quantity:  req.Quantity,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Status:    session.Status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.store.Create(c.Request.Context(), payment); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment":      payment,
		"redirect_url": session.RedirectURL,
	})
}

func (h *PaymentHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	records, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": records, "count": len(records)})
}

func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.store.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			c.Error(apperrors.NewNotFound("payment not found"))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, payment)
}

// SyncStatus re-reads the provider-side status and stores it.
func (h *PaymentHandler) SyncStatus(c *gin.Context) {
	reference := c.Param("reference")
	payment, err := h.store.GetByReference(c.Request.Context(), reference)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			c.Error(apperrors.NewNotFound("payment not found"))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}

	gateway, err := h.registry.Get(payment.Provider)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	status, err := gateway.RetrievePaymentStatus(c.Request.Context(), payment.Reference)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrUpstream, "status lookup failed", err))
		return
	}
	if status != payment.Status {
		if err := h.store.UpdateStatus(c.Request.Context(), reference, status); err != nil {
			c.Error(apperrors.Wrap(err))
			return
		}
		payment.Status = status
	}
	c.JSON(http.StatusOK, payment)
}
