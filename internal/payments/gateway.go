// Package payments defines the payment gateway abstraction and the
// provider registry. Gateways are registered explicitly at startup;
// looking up a provider that was never registered is an error, not a
// silent fallback.
package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gramvault/gramvault/internal/model"
)

// CheckoutRequest describes a payment to initiate.
type CheckoutRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	CustomerID  string
}

// CheckoutSession is the provider-side session handed back to the caller.
type CheckoutSession struct {
	Reference   string
	ProviderRef string
	RedirectURL string
	Status      model.PaymentStatus
}

// Gateway is implemented by each payment provider.
type Gateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrievePaymentStatus(ctx context.Context, providerRef string) (model.PaymentStatus, error)
	ValidateWebhookSignature(payload []byte, signature string) error
}

// UnknownProviderError reports a lookup for a provider that was never
// registered.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("payments: unknown provider %q", e.Provider)
}
