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

	"github.com/gramvault/gramvault/internal/middleware"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/payments"
	"github.com/gramvault/gramvault/internal/repository"
)

type stubPaymentStore struct {
	byRef map[string]*model.Payment
}

func newStubPaymentStore() *stubPaymentStore {
	return &stubPaymentStore{byRef: map[string]*model.Payment{}}
}

func (s *stubPaymentStore) Create(ctx context.Context, p *model.Payment) error {
	s.byRef[p.Reference] = p
	return nil
}

func (s *stubPaymentStore) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	p, ok := s.byRef[reference]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	return p, nil
}

func (s *stubPaymentStore) List(ctx context.Context, limit int) ([]*model.Payment, error) {
	out := []*model.Payment{}
	for _, p := range s.byRef {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubPaymentStore) UpdateStatus(ctx context.Context, reference string, status model.PaymentStatus) error {
	p, ok := s.byRef[reference]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	p.Status = status
	return nil
}

func paymentRouter(store PaymentStore, gateway *payments.ManualGateway) *gin.Engine {
	gin.SetMode(gin.TestMode)
	registry := payments.NewRegistry()
	if gateway != nil {
		_ = registry.Register(gateway)
	}
	h := NewPaymentHandler(registry, store, "manual", "USD")

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/admin/payments/providers", h.Providers)
	r.POST("/admin/payments", h.Create)
	r.GET("/admin/payments", h.List)
	r.GET("/admin/payments/:reference", h.Get)
	r.POST("/admin/payments/:reference/sync", h.SyncStatus)
	return r
}

func TestCreatePaymentWithDefaults(t *testing.T) {
	store := newStubPaymentStore()
	r := paymentRouter(store, payments.NewManualGateway("s"))

	body, _ := json.Marshal(map[string]any{"amount": "9.99", "kind": "archive"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/payments", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Payment model.Payment `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "manual", resp.Payment.Provider)
	assert.Equal(t, "USD", resp.Payment.Currency)
	assert.Equal(t, model.PaymentCreated, resp.Payment.Status)
	assert.Len(t, store.byRef, 1)
}

func TestCreatePaymentUnknownProvider(t *testing.T) {
	r := paymentRouter(newStubPaymentStore(), payments.NewManualGateway("s"))

	body, _ := json.Marshal(map[string]any{"amount": "5", "provider": "stripe"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/payments", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestCreatePaymentRejectsNonPositiveAmount(t *testing.T) {
	r := paymentRouter(newStubPaymentStore(), payments.NewManualGateway("s"))

	body, _ := json.Marshal(map[string]any{"amount": "0"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/payments", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncStatusReflectsProvider(t *testing.T) {
	store := newStubPaymentStore()
	gateway := payments.NewManualGateway("s")
	r := paymentRouter(store, gateway)

	body, _ := json.Marshal(map[string]any{"amount": "3.50"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/payments", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	var ref string
	for k := range store.byRef {
		ref = k
	}
	require.NoError(t, gateway.MarkPaid(ref))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/payments/"+ref+"/sync", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payment model.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, model.PaymentPaid, payment.Status)
}

func TestProvidersEndpoint(t *testing.T) {
	r := paymentRouter(newStubPaymentStore(), payments.NewManualGateway("s"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/payments/providers", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "manual")
}
