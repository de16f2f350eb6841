package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettlementDelayDefault(t *testing.T) {
	t.Setenv("PAYOUT_SETTLEMENT_DELAY", "")
	assert.Equal(t, time.Hour, SettlementDelay())

	t.Setenv("PAYOUT_SETTLEMENT_DELAY", "45m")
	assert.Equal(t, 45*time.Minute, SettlementDelay())

	t.Setenv("PAYOUT_SETTLEMENT_DELAY", "not-a-duration")
	assert.Equal(t, time.Hour, SettlementDelay())
}

func TestRefundTiersDefault(t *testing.T) {
	t.Setenv("REFUND_TIERS", "")
	tiers := RefundTiers()
	assert.Len(t, tiers, 3)
	assert.Equal(t, 24*time.Hour, tiers[0].MinLead)
	assert.Equal(t, uint8(100), tiers[0].Percent)
	assert.Equal(t, 6*time.Hour, tiers[1].MinLead)
	assert.Equal(t, uint8(50), tiers[1].Percent)
	assert.Equal(t, time.Duration(0), tiers[2].MinLead)
	assert.Equal(t, uint8(0), tiers[2].Percent)
}

func TestRefundTiersCustom(t *testing.T) {
	t.Setenv("REFUND_TIERS", "48h:100, 12h:75,bogus,1h:abc,0h:25")
	tiers := RefundTiers()
	assert.Len(t, tiers, 3)
	assert.Equal(t, uint8(100), tiers[0].Percent)
	assert.Equal(t, 12*time.Hour, tiers[1].MinLead)
	assert.Equal(t, uint8(75), tiers[1].Percent)
	assert.Equal(t, uint8(25), tiers[2].Percent)
}

func TestCommissionDefaults(t *testing.T) {
	t.Setenv("ESCROW_COMMISSION_RATE", "")
	t.Setenv("PAYOUT_COMMISSION_PERCENT", "")
	assert.Equal(t, 0.10, EscrowCommissionRate())
	assert.Equal(t, float64(30), PayoutCommissionPercent())

	t.Setenv("ESCROW_COMMISSION_RATE", "0.15")
	assert.Equal(t, 0.15, EscrowCommissionRate())
}
