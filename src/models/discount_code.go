package models

import (
	"time"

	"fundi/src/types"
)

type DiscountCode struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Code string `gorm:"uniqueIndex" json:"code,omitempty"`

	Type  types.DiscountType `json:"type,omitempty"`
	Value float64            `json:"value,omitempty"`

	MinOrderAmount float64  `json:"min_order_amount,omitempty"`
	MaxDiscount    *float64 `json:"max_discount,omitempty"`

	ValidFrom  time.Time `json:"valid_from,omitempty"`
	ValidUntil time.Time `json:"valid_until,omitempty"`
	Active     bool      `gorm:"default:true" json:"active,omitempty"`

	// Zero limits mean unlimited. Counters only move through
	// common.RedeemDiscount, one increment per successful redemption.
	UsageLimit   uint `gorm:"default:0" json:"usage_limit,omitempty"`
	UsedCount    uint `gorm:"default:0" json:"used_count,omitempty"`
	PerUserLimit uint `gorm:"default:0" json:"per_user_limit,omitempty"`

	Categories types.JSONBArray `gorm:"type:jsonb" json:"categories,omitempty"`

	types.Timestamps
}

// DiscountRedemption records one successful use of a code by a user.
type DiscountRedemption struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	DiscountCodeID uint      `gorm:"index" json:"discount_code_id,omitempty"`
	UserID         uint      `gorm:"index" json:"user_id,omitempty"`
	BookingID      *uint     `json:"booking_id,omitempty"`
	OrderAmount    float64   `json:"order_amount,omitempty"`
	DiscountGiven  float64   `json:"discount_given,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
}
