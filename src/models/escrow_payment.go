package models

import (
	"math"
	"time"

	"fundi/src/types"

	"github.com/google/uuid"
)

// EscrowPayment tracks a client payment held by the platform until the
// service completes or a dispute resolves.
type EscrowPayment struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID uint `gorm:"index" json:"booking_id,omitempty"`

	// Gateway correlation. CheckoutRequestID dedupes webhook replays; the
	// receipt number is unique once issued but absent until payment lands.
	CheckoutRequestID  string  `gorm:"uniqueIndex" json:"checkout_request_id,omitempty"`
	MpesaReceiptNumber *string `gorm:"uniqueIndex" json:"mpesa_receipt_number,omitempty"`

	Amount     float64 `json:"amount,omitempty"`
	PayerPhone string  `json:"payer_phone,omitempty"`
	Currency   string  `gorm:"default:'KES'" json:"currency,omitempty"`

	Status types.EscrowStatus `gorm:"default:'pending'" json:"status,omitempty"`

	CommissionRate   float64 `gorm:"default:0.1" json:"commission_rate,omitempty"`
	CommissionAmount float64 `json:"commission_amount,omitempty"`
	ProviderAmount   float64 `json:"provider_amount,omitempty"`

	DisputeReason     *string    `json:"dispute_reason,omitempty"`
	DisputedAt        *time.Time `json:"disputed_at,omitempty"`
	DisputeResolution *string    `json:"dispute_resolution,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`

	ReleasedAt    *time.Time `json:"released_at,omitempty"`
	ReleaseMethod *string    `json:"release_method,omitempty"`
	PayoutID      *uuid.UUID `gorm:"type:uuid" json:"payout_id,omitempty"`

	Events []*EscrowEvent `json:"events,omitempty"`

	types.Timestamps
}

// Recompute re-derives the commission split. Every mutation of Amount or
// CommissionRate must call this before the write persists; the invariant is
// CommissionAmount + ProviderAmount == Amount at all times.
func (e *EscrowPayment) Recompute() {
	e.CommissionAmount = math.Round(e.Amount * e.CommissionRate)
	e.ProviderAmount = e.Amount - e.CommissionAmount
}

// EscrowEvent is the append-only audit log for an escrow payment.
type EscrowEvent struct {
	ID              uint        `gorm:"primarykey" json:"id"`
	EscrowPaymentID uuid.UUID   `gorm:"type:uuid;index" json:"escrow_payment_id,omitempty"`
	Type            string      `json:"type,omitempty"`
	Actor           string      `json:"actor,omitempty"`
	Data            types.JSONB `gorm:"type:jsonb" json:"data,omitempty"`
	CreatedAt       time.Time   `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
}
