package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "created"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment records one checkout initiated through a gateway provider.
// Reference is the provider-issued identifier for the session.
type Payment struct {
	ID        string          `json:"id"`
	Provider  string          `json:"provider"`
	Reference string          `json:"reference"`
	ProfileID string          `json:"profile_id,omitempty"`
	Kind      string          `json:"kind"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    PaymentStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
