package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fundi/src/models"
	"fundi/src/types"
	"fundi/src/utils"

	"gorm.io/gorm"
)

var (
	ErrDiscountNotFound  = errors.New("discount code not found or inactive")
	ErrDiscountExpired   = errors.New("discount code is outside its validity window")
	ErrDiscountExhausted = errors.New("discount code usage limit reached")
	ErrDiscountMinOrder  = errors.New("order amount below the code's minimum")
	ErrDiscountCategory  = errors.New("discount code does not apply to this category")
	ErrDiscountUserLimit = errors.New("per-user redemption limit reached")
)

// NormalizeDiscountCode folds a user-entered code to its canonical form.
// Codes are stored and looked up uppercase so "save10" and "SAVE10" are the
// same code.
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckDiscountCode applies the static eligibility rules. Counter checks are
// advisory here; RedeemDiscount re-verifies them under the transaction.
func CheckDiscountCode(dc *models.DiscountCode, orderAmount float64, category string, now time.Time) error {
	if !dc.Active {
		return ErrDiscountNotFound
	}
	if now.Before(dc.ValidFrom) || now.After(dc.ValidUntil) {
		return ErrDiscountExpired
	}
	if dc.UsageLimit > 0 && dc.UsedCount >= dc.UsageLimit {
		return ErrDiscountExhausted
	}
	if orderAmount < dc.MinOrderAmount {
		return ErrDiscountMinOrder
	}
	if len(dc.Categories) > 0 && category != "" {
		found := false
		for _, c := range dc.Categories {
			if s, ok := c.(string); ok && s == category {
				found = true
				break
			}
		}
		if !found {
			return ErrDiscountCategory
		}
	}
	return nil
}

// CalculateDiscount returns the discount for an order, capped by the code's
// maximum and never exceeding the order itself.
func CalculateDiscount(dc *models.DiscountCode, orderAmount float64) float64 {
	var discount float64
	switch dc.Type {
	case types.DISCOUNT_PERCENTAGE:
		discount = orderAmount * dc.Value / 100
	case types.DISCOUNT_FIXED:
		discount = dc.Value
	}
	if dc.MaxDiscount != nil && discount > *dc.MaxDiscount {
		discount = *dc.MaxDiscount
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	return utils.RoundKES(discount)
}

// ValidateDiscount checks a code against an order without consuming it and
// returns the discount it would grant.
func ValidateDiscount(db *gorm.DB, code string, orderAmount float64, category string) (*models.DiscountCode, float64, error) {
	var dc models.DiscountCode
	if err := db.
		Model(&models.DiscountCode{}).
		Where("code = ?", NormalizeDiscountCode(code)).
		First(&dc).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrDiscountNotFound
		}
		return nil, 0, err
	}
	if err := CheckDiscountCode(&dc, orderAmount, category, time.Now().UTC()); err != nil {
		return nil, 0, err
	}
	return &dc, CalculateDiscount(&dc, orderAmount), nil
}

// RedeemDiscount consumes one use of a code for a user. The usage counter
// increment is a compare-and-swap against the limit, so two racing
// redemptions cannot push a code past its cap, and the redemption row lands
// in the same transaction as the increment.
func RedeemDiscount(tx *gorm.DB, code string, userID uint, bookingID *uint, orderAmount float64, category string) (float64, error) {
	var dc models.DiscountCode
	if err := tx.
		Model(&models.DiscountCode{}).
		Where("code = ?", NormalizeDiscountCode(code)).
		First(&dc).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrDiscountNotFound
		}
		return 0, err
	}
	if err := CheckDiscountCode(&dc, orderAmount, category, time.Now().UTC()); err != nil {
		return 0, err
	}

	if dc.PerUserLimit > 0 {
		var used int64
		if err := tx.
			Model(&models.DiscountRedemption{}).
			Where(&models.DiscountRedemption{DiscountCodeID: dc.ID, UserID: userID}).
			Count(&used).
			Error; err != nil {
			return 0, err
		}
		if used >= int64(dc.PerUserLimit) {
			return 0, ErrDiscountUserLimit
		}
	}

	q := tx.
		Model(&models.DiscountCode{}).
		Where("id = ?", dc.ID)
	if dc.UsageLimit > 0 {
		q = q.Where("used_count < usage_limit")
	}
	res := q.Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrDiscountExhausted
	}

	discount := CalculateDiscount(&dc, orderAmount)
	if err := tx.Create(&models.DiscountRedemption{
		DiscountCodeID: dc.ID,
		UserID:         userID,
		BookingID:      bookingID,
		OrderAmount:    orderAmount,
		DiscountGiven:  discount,
	}).Error; err != nil {
		return 0, err
	}
	return discount, nil
}

// CreateDiscountCode registers a new code from an admin request.
func CreateDiscountCode(db *gorm.DB, body *types.CreateDiscountCodeRequestBody) (*models.DiscountCode, error) {
	validFrom, err := time.Parse("2006-01-02 15:04:05 -07:00", body.ValidFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid valid_from: %w", err)
	}
	validUntil, err := time.Parse("2006-01-02 15:04:05 -07:00", body.ValidUntil)
	if err != nil {
		return nil, fmt.Errorf("invalid valid_until: %w", err)
	}
	cats := make(types.JSONBArray, 0, len(body.Categories))
	for _, c := range body.Categories {
		cats = append(cats, c)
	}
	dc := models.DiscountCode{
		Code:           NormalizeDiscountCode(body.Code),
		Type:           types.DiscountType(body.Type),
		Value:          body.Value,
		MinOrderAmount: body.MinOrderAmount,
		MaxDiscount:    body.MaxDiscount,
		ValidFrom:      validFrom,
		ValidUntil:     validUntil,
		Active:         true,
		UsageLimit:     body.UsageLimit,
		PerUserLimit:   body.PerUserLimit,
		Categories:     cats,
	}
	if err := db.Create(&dc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("discount code %s already exists", body.Code)
		}
		return nil, err
	}
	return &dc, nil
}
