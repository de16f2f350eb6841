package models

import (
	"time"

	"fundi/src/types"

	"github.com/google/uuid"
)

// Payout is the commission-deducted transfer of escrowed funds to the
// provider. At most one exists per booking, enforced by the unique index
// on booking_id rather than a read-then-write check.
type Payout struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID  uint `gorm:"uniqueIndex" json:"booking_id,omitempty"`
	ProviderID uint `gorm:"index" json:"provider_id,omitempty"`
	ClientID   uint `json:"client_id,omitempty"`

	TotalAmount      float64 `json:"total_amount,omitempty"`
	CommissionRate   float64 `gorm:"default:30" json:"commission_rate,omitempty"`
	CommissionAmount float64 `json:"commission_amount,omitempty"`
	PayoutAmount     float64 `json:"payout_amount,omitempty"`
	Currency         string  `gorm:"default:'KES'" json:"currency,omitempty"`

	Status types.PayoutStatus `gorm:"default:'pending'" json:"status,omitempty"`

	TransferID        *string `json:"transfer_id,omitempty"`
	TransferReference string  `json:"transfer_reference,omitempty"`

	// ScheduledFor is fixed at creation as ServiceCompletedAt plus the
	// settlement delay and never drifts afterwards.
	ServiceCompletedAt time.Time  `json:"service_completed_at,omitempty"`
	ScheduledFor       time.Time  `gorm:"index" json:"scheduled_for,omitempty"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	FailedAt           *time.Time `json:"failed_at,omitempty"`

	FailureReason *string    `json:"failure_reason,omitempty"`
	AttemptCount  uint       `gorm:"default:0" json:"attempt_count,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	Notes         string     `json:"notes,omitempty"`

	Booking  *Booking  `gorm:"foreignKey:booking_id" json:"-"`
	Provider *Provider `gorm:"foreignKey:provider_id" json:"provider,omitempty"`

	types.Timestamps
}
