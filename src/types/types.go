package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBArray []any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONBArray) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type BookingStatus string

const (
	BOOKING_PENDING     BookingStatus = "pending"
	BOOKING_CONFIRMED   BookingStatus = "confirmed"
	BOOKING_IN_PROGRESS BookingStatus = "in-progress"
	BOOKING_COMPLETED   BookingStatus = "completed"
	BOOKING_CANCELED    BookingStatus = "cancelled"
	BOOKING_DISPUTED    BookingStatus = "disputed"
)

type EscrowStatus string

const (
	ESCROW_PENDING   EscrowStatus = "pending"
	ESCROW_COMPLETED EscrowStatus = "completed"
	ESCROW_DISPUTED  EscrowStatus = "disputed"
	ESCROW_RELEASED  EscrowStatus = "released"
	ESCROW_FAILED    EscrowStatus = "failed"
	ESCROW_CANCELED  EscrowStatus = "cancelled"
)

type PayoutStatus string

const (
	PAYOUT_AWAITING_PAYMENT PayoutStatus = "awaiting_payment"
	PAYOUT_PENDING          PayoutStatus = "pending"
	PAYOUT_READY            PayoutStatus = "ready"
	PAYOUT_PROCESSING       PayoutStatus = "processing"
	PAYOUT_COMPLETED        PayoutStatus = "completed"
	PAYOUT_FAILED           PayoutStatus = "failed"
	PAYOUT_CANCELED         PayoutStatus = "cancelled"
)

// ServiceType discriminates which catalog a booking's service reference
// points at: the platform catalog or a provider-owned listing.
type ServiceType string

const (
	SERVICE_CATALOG  ServiceType = "catalog"
	SERVICE_PROVIDER ServiceType = "provider"
)

type DiscountType string

const (
	DISCOUNT_PERCENTAGE DiscountType = "percentage"
	DISCOUNT_FIXED      DiscountType = "fixed"
)

type UserRole string

const (
	ROLE_CLIENT   UserRole = "client"
	ROLE_PROVIDER UserRole = "provider"
	ROLE_ADMIN    UserRole = "admin"
)

// PaymentCallback is the normalized shape of an inbound payment gateway
// callback (M-Pesa STK push result).
type PaymentCallback struct {
	CheckoutRequestID string
	ReceiptNumber     string
	Amount            float64
	Phone             string
	ResultCode        int64
	ResultDesc        string
}

// TransferCallback is the normalized shape of a transfer gateway (B2C)
// result callback.
type TransferCallback struct {
	TransferID    string
	ResultCode    int64
	ResultDesc    string
	FailureReason string
}

type CreateBookingRequestBody struct {
	ServiceID       uint    `json:"service_id" binding:"required"`
	ServiceType     string  `json:"service_type" binding:"required,oneof=catalog provider"`
	ScheduledDate   string  `json:"scheduled_date" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	WindowEnd       *string `json:"window_end,omitempty" binding:"omitempty,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	Location        string  `json:"location" binding:"required"`
	Latitude        float64 `json:"latitude,omitempty"`
	Longitude       float64 `json:"longitude,omitempty"`
	ProvidersNeeded uint8   `json:"providers_needed,omitempty"`
	AdditionalNotes string  `json:"notes,omitempty"`
	DiscountCode    *string `json:"discount_code,omitempty"`
}

type TransitionBookingRequestBody struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note,omitempty"`
}

type CancelBookingRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type AssignProviderRequestBody struct {
	ProviderID uint   `json:"provider_id" binding:"required"`
	ServiceID  *uint  `json:"service_id,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type UnassignProviderRequestBody struct {
	ProviderID *uint `json:"provider_id,omitempty"`
}

type InitiateChargeRequestBody struct {
	BookingID uint   `json:"booking_id" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
}

type DisputeEscrowRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type ResolveEscrowRequestBody struct {
	Resolution string `json:"resolution" binding:"required"`
	Outcome    string `json:"outcome" binding:"required,oneof=completed failed"`
}

type ReleaseEscrowRequestBody struct {
	Rating *uint8  `json:"rating,omitempty" binding:"omitempty,min=1,max=5"`
	Review *string `json:"review,omitempty"`
	Method string  `json:"method,omitempty"`
}

type UpdateEscrowAmountRequestBody struct {
	Amount         *float64 `json:"amount,omitempty"`
	CommissionRate *float64 `json:"commission_rate,omitempty"`
}

type RetryPayoutRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type CancelPayoutRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type CreateDiscountCodeRequestBody struct {
	Code           string   `json:"code" binding:"required"`
	Type           string   `json:"type" binding:"required,oneof=percentage fixed"`
	Value          float64  `json:"value" binding:"required,gt=0"`
	MinOrderAmount float64  `json:"min_order_amount,omitempty"`
	MaxDiscount    *float64 `json:"max_discount,omitempty"`
	ValidFrom      string   `json:"valid_from" binding:"required" time_format:"2006-01-02 15:04:05 -07:00"`
	ValidUntil     string   `json:"valid_until" binding:"required" time_format:"2006-01-02 15:04:05 -07:00"`
	UsageLimit     uint     `json:"usage_limit,omitempty"`
	PerUserLimit   uint     `json:"per_user_limit,omitempty"`
	Categories     []string `json:"categories,omitempty"`
}

type VerifyPhoneRequestBody struct {
	Code string `json:"code" binding:"required,len=6"`
}

type ValidateDiscountRequestBody struct {
	Code        string  `json:"code" binding:"required"`
	OrderAmount float64 `json:"order_amount" binding:"required,gt=0"`
	Category    string  `json:"category,omitempty"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type PayoutURIParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type Claims struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

type Handler func(payload string)
