package common

import (
	"testing"
	"time"

	"fundi/src/config"
	"fundi/src/types"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionBooking(t *testing.T) {
	allowed := []struct {
		from types.BookingStatus
		to   types.BookingStatus
	}{
		{types.BOOKING_PENDING, types.BOOKING_CONFIRMED},
		{types.BOOKING_PENDING, types.BOOKING_CANCELED},
		{types.BOOKING_CONFIRMED, types.BOOKING_IN_PROGRESS},
		{types.BOOKING_CONFIRMED, types.BOOKING_PENDING},
		{types.BOOKING_IN_PROGRESS, types.BOOKING_COMPLETED},
		{types.BOOKING_IN_PROGRESS, types.BOOKING_DISPUTED},
		{types.BOOKING_DISPUTED, types.BOOKING_COMPLETED},
		{types.BOOKING_DISPUTED, types.BOOKING_CANCELED},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransitionBooking(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from types.BookingStatus
		to   types.BookingStatus
	}{
		{types.BOOKING_PENDING, types.BOOKING_IN_PROGRESS},
		{types.BOOKING_PENDING, types.BOOKING_COMPLETED},
		{types.BOOKING_CONFIRMED, types.BOOKING_COMPLETED},
		{types.BOOKING_COMPLETED, types.BOOKING_PENDING},
		{types.BOOKING_COMPLETED, types.BOOKING_CANCELED},
		{types.BOOKING_CANCELED, types.BOOKING_PENDING},
		{types.BOOKING_CANCELED, types.BOOKING_CONFIRMED},
		{types.BOOKING_DISPUTED, types.BOOKING_IN_PROGRESS},
	}
	for _, tc := range denied {
		assert.False(t, CanTransitionBooking(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestResolveRefund(t *testing.T) {
	tiers := []config.RefundTier{
		{MinLead: 24 * time.Hour, Percent: 100},
		{MinLead: 6 * time.Hour, Percent: 50},
		{MinLead: 0, Percent: 0},
	}

	eligible, pct := ResolveRefund(tiers, 48*time.Hour)
	assert.True(t, eligible)
	assert.Equal(t, uint8(100), pct)

	eligible, pct = ResolveRefund(tiers, 24*time.Hour)
	assert.True(t, eligible)
	assert.Equal(t, uint8(100), pct)

	eligible, pct = ResolveRefund(tiers, 12*time.Hour)
	assert.True(t, eligible)
	assert.Equal(t, uint8(50), pct)

	eligible, pct = ResolveRefund(tiers, 1*time.Hour)
	assert.False(t, eligible)
	assert.Equal(t, uint8(0), pct)

	eligible, pct = ResolveRefund(nil, 100*time.Hour)
	assert.False(t, eligible)
	assert.Equal(t, uint8(0), pct)
}

func TestResolveRefundPastStart(t *testing.T) {
	tiers := []config.RefundTier{
		{MinLead: 24 * time.Hour, Percent: 100},
		{MinLead: 0, Percent: 0},
	}
	eligible, pct := ResolveRefund(tiers, -2*time.Hour)
	assert.False(t, eligible)
	assert.Equal(t, uint8(0), pct)
}
