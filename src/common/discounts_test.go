package common

import (
	"testing"
	"time"

	"fundi/src/models"
	"fundi/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func activeCode() models.DiscountCode {
	now := time.Now().UTC()
	return models.DiscountCode{
		ID:         1,
		Code:       "KARIBU10",
		Type:       types.DISCOUNT_PERCENTAGE,
		Value:      10,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
		Active:     true,
	}
}

func TestNormalizeDiscountCode(t *testing.T) {
	assert.Equal(t, "KARIBU10", NormalizeDiscountCode("karibu10"))
	assert.Equal(t, "KARIBU10", NormalizeDiscountCode("  Karibu10 "))
	assert.Equal(t, "KARIBU10", NormalizeDiscountCode("KARIBU10"))
}

func TestValidateDiscountLooksUpCanonicalCode(t *testing.T) {
	gormDB, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM "discount_codes"`).
		WithArgs("KARIBU10", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "type", "value", "valid_from", "valid_until", "active"}).
			AddRow(1, "KARIBU10", "percentage", 10.0, now.Add(-time.Hour), now.Add(time.Hour), true))

	dc, discount, err := ValidateDiscount(gormDB, "karibu10", 1000, "")
	assert.NoError(t, err)
	assert.Equal(t, "KARIBU10", dc.Code)
	assert.Equal(t, float64(100), discount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDiscountCode(t *testing.T) {
	now := time.Now().UTC()

	dc := activeCode()
	assert.NoError(t, CheckDiscountCode(&dc, 500, "", now))

	dc = activeCode()
	dc.Active = false
	assert.ErrorIs(t, CheckDiscountCode(&dc, 500, "", now), ErrDiscountNotFound)

	dc = activeCode()
	dc.ValidUntil = now.Add(-time.Minute)
	assert.ErrorIs(t, CheckDiscountCode(&dc, 500, "", now), ErrDiscountExpired)

	dc = activeCode()
	dc.UsageLimit = 5
	dc.UsedCount = 5
	assert.ErrorIs(t, CheckDiscountCode(&dc, 500, "", now), ErrDiscountExhausted)

	dc = activeCode()
	dc.MinOrderAmount = 1000
	assert.ErrorIs(t, CheckDiscountCode(&dc, 500, "", now), ErrDiscountMinOrder)

	dc = activeCode()
	dc.Categories = types.JSONBArray{"plumbing"}
	assert.ErrorIs(t, CheckDiscountCode(&dc, 500, "cleaning", now), ErrDiscountCategory)
	assert.NoError(t, CheckDiscountCode(&dc, 500, "plumbing", now))
}

func TestCalculateDiscount(t *testing.T) {
	dc := activeCode()
	assert.Equal(t, float64(100), CalculateDiscount(&dc, 1000))

	ceiling := 50.0
	dc.MaxDiscount = &ceiling
	assert.Equal(t, float64(50), CalculateDiscount(&dc, 1000))

	fixed := models.DiscountCode{Type: types.DISCOUNT_FIXED, Value: 300}
	assert.Equal(t, float64(300), CalculateDiscount(&fixed, 1000))
	assert.Equal(t, float64(200), CalculateDiscount(&fixed, 200))
}

func TestRedeemDiscountPerUserLimit(t *testing.T) {
	gormDB, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM "discount_codes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "type", "value", "valid_from", "valid_until", "active", "usage_limit", "used_count", "per_user_limit"}).
			AddRow(1, "KARIBU10", "percentage", 10.0, now.Add(-time.Hour), now.Add(time.Hour), true, 10, 1, 1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "discount_redemptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := RedeemDiscount(gormDB, "KARIBU10", 7, nil, 1000, "")
	assert.ErrorIs(t, err, ErrDiscountUserLimit)
}

func TestRedeemDiscountUsageRace(t *testing.T) {
	gormDB, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM "discount_codes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "type", "value", "valid_from", "valid_until", "active", "usage_limit", "used_count", "per_user_limit"}).
			AddRow(1, "KARIBU10", "percentage", 10.0, now.Add(-time.Hour), now.Add(time.Hour), true, 1, 0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "discount_codes"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := RedeemDiscount(gormDB, "KARIBU10", 7, nil, 1000, "")
	assert.ErrorIs(t, err, ErrDiscountExhausted)
}

func TestRedeemDiscountSuccess(t *testing.T) {
	gormDB, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM "discount_codes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "type", "value", "valid_from", "valid_until", "active", "usage_limit", "used_count", "per_user_limit"}).
			AddRow(1, "KARIBU10", "percentage", 10.0, now.Add(-time.Hour), now.Add(time.Hour), true, 1, 0, 1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "discount_redemptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "discount_codes"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "discount_redemptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	discount, err := RedeemDiscount(gormDB, "KARIBU10", 7, nil, 1000, "")
	assert.NoError(t, err)
	assert.Equal(t, float64(100), discount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
