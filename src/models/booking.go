package models

import (
	"time"

	"fundi/src/types"

	"github.com/google/uuid"
)

type Booking struct {
	ID            uint   `gorm:"primarykey" json:"id"`
	BookingNumber string `gorm:"uniqueIndex" json:"booking_number,omitempty"`
	ClientID      uint   `gorm:"index" json:"client_id,omitempty"`

	// Polymorphic service reference: ServiceType selects the catalog the
	// ServiceID points at. Resolved through utils.ResolveServiceRef, never
	// by runtime field-name dispatch.
	ServiceID   uint              `json:"service_id,omitempty"`
	ServiceType types.ServiceType `gorm:"default:'catalog'" json:"service_type,omitempty"`
	Category    string            `gorm:"index" json:"category,omitempty"`

	Status types.BookingStatus `gorm:"default:'pending'" json:"status,omitempty"`

	ScheduledDate time.Time  `json:"scheduled_date,omitempty"`
	WindowEnd     *time.Time `json:"window_end,omitempty"`
	Location      string     `json:"location,omitempty"`
	Latitude      float64    `json:"latitude,omitempty"`
	Longitude     float64    `json:"longitude,omitempty"`

	ProvidersNeeded   uint8 `gorm:"default:1" json:"providers_needed,omitempty"`
	ProvidersAssigned uint8 `gorm:"default:0" json:"providers_assigned,omitempty"`

	BaseAmount        float64 `json:"base_amount,omitempty"`
	AdditionalCharges float64 `json:"additional_charges,omitempty"`
	DiscountAmount    float64 `json:"discount_amount,omitempty"`
	TotalAmount       float64 `json:"total_amount,omitempty"`
	Currency          string  `gorm:"default:'KES'" json:"currency,omitempty"`
	DiscountCode      *string `json:"discount_code,omitempty"`

	EscrowPaymentID *uuid.UUID `gorm:"type:uuid" json:"escrow_payment_id,omitempty"`

	CompletionStart *time.Time `json:"completion_start,omitempty"`
	CompletionEnd   *time.Time `json:"completion_end,omitempty"`
	WorkDescription *string    `json:"work_description,omitempty"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancelledBy        *string    `json:"cancelled_by,omitempty"`
	RefundEligible     bool       `json:"refund_eligible,omitempty"`
	RefundPercentage   uint8      `json:"refund_percentage,omitempty"`
	RefundAmount       float64    `json:"refund_amount,omitempty"`

	Rating *uint8  `json:"rating,omitempty"`
	Review *string `json:"review,omitempty"`

	CommunicationLog types.JSONBArray `gorm:"type:jsonb" json:"communication_log,omitempty"`

	Client    *User                   `gorm:"foreignKey:client_id" json:"client,omitempty"`
	Providers []*BookingProvider      `json:"providers,omitempty"`
	Timeline  []*BookingTimelineEntry `json:"timeline,omitempty"`

	types.Timestamps
}

// BookingProvider is one filled provider slot on a booking.
type BookingProvider struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	BookingID  uint      `gorm:"index:idx_booking_provider,unique" json:"booking_id,omitempty"`
	ProviderID uint      `gorm:"index:idx_booking_provider,unique" json:"provider_id,omitempty"`
	ServiceID  *uint     `json:"service_id,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	AssignedAt time.Time `json:"assigned_at,omitempty"`

	Provider *Provider `gorm:"foreignKey:provider_id" json:"provider,omitempty"`

	types.Timestamps
}

// BookingTimelineEntry is append-only. Every status transition writes one in
// the same transaction as the status change itself.
type BookingTimelineEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	BookingID uint      `gorm:"index" json:"booking_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
}
