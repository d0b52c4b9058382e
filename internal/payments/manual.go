package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gramvault/gramvault/internal/model"
)

// ManualGateway records payments settled out of band (bank transfer,
// cash). Sessions live in memory and are marked paid by an operator
// through the admin API rather than by a provider callback.
type ManualGateway struct {
	secret []byte

	mu       sync.Mutex
	sessions map[string]model.PaymentStatus
}

func NewManualGateway(webhookSecret string) *ManualGateway {
	return &ManualGateway{
		secret:   []byte(webhookSecret),
		sessions: map[string]model.PaymentStatus{},
	}
}

func (g *ManualGateway) Name() string { return "manual" }

func (g *ManualGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Reference == "" {
		return nil, errors.New("payments: checkout requires a reference")
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return nil, fmt.Errorf("payments: invalid amount %s", req.Amount)
	}
	providerRef := "manual_" + uuid.NewString()
	g.mu.Lock()
	g.sessions[providerRef] = model.PaymentCreated
	g.mu.Unlock()
	return &CheckoutSession{
		Reference:   req.Reference,
		ProviderRef: providerRef,
		Status:      model.PaymentCreated,
	}, nil
}

func (g *ManualGateway) RetrievePaymentStatus(ctx context.Context, providerRef string) (model.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.sessions[providerRef]
	if !ok {
		return "", fmt.Errorf("payments: unknown session %q", providerRef)
	}
	return status, nil
}

// MarkPaid settles a session; used by the operator flow.
func (g *ManualGateway) MarkPaid(providerRef string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[providerRef]; !ok {
		return fmt.Errorf("payments: unknown session %q", providerRef)
	}
	g.sessions[providerRef] = model.PaymentPaid
	return nil
}

func (g *ManualGateway) ValidateWebhookSignature(payload []byte, signature string) error {
	if len(g.secret) == 0 {
		return errors.New("payments: webhook secret not configured")
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return errors.New("payments: webhook signature mismatch")
	}
	return nil
}
