package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

var API_ENV = os.Getenv("API_ENV")

// SettlementDelay is the fixed buffer between service completion and payout
// eligibility (fraud/dispute window).
func SettlementDelay() time.Duration {
	v := os.Getenv("PAYOUT_SETTLEMENT_DELAY")
	if v == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid PAYOUT_SETTLEMENT_DELAY %q, using default: %s\n", v, err.Error())
		return time.Hour
	}
	return d
}

// EscrowCommissionRate is the platform cut on escrow payments, as a fraction.
func EscrowCommissionRate() float64 {
	return envFloat("ESCROW_COMMISSION_RATE", 0.10)
}

// PayoutCommissionPercent is the platform cut on provider payouts, in percent.
func PayoutCommissionPercent() float64 {
	return envFloat("PAYOUT_COMMISSION_PERCENT", 30)
}

func MaxPayoutAttempts() uint {
	return uint(envFloat("PAYOUT_MAX_ATTEMPTS", 3))
}

func GatewayTimeout() time.Duration {
	v := os.Getenv("GATEWAY_TIMEOUT")
	if v == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SweepInterval is how often the settlement sweep promotes and processes
// due payouts.
func SweepInterval() time.Duration {
	v := os.Getenv("PAYOUT_SWEEP_INTERVAL")
	if v == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return time.Minute
	}
	return d
}

// RefundTier maps a minimum lead time before the scheduled start to the
// refund percentage a cancelling client is entitled to.
type RefundTier struct {
	MinLead time.Duration
	Percent uint8
}

// RefundTiers parses the cancellation refund schedule from REFUND_TIERS,
// formatted as "24h:100,6h:50,0h:0". Tiers are returned sorted as given;
// ResolveRefund picks the first tier whose lead time is satisfied.
func RefundTiers() []RefundTier {
	v := os.Getenv("REFUND_TIERS")
	if v == "" {
		v = "24h:100,6h:50,0h:0"
	}
	var tiers []RefundTier
	for _, part := range strings.Split(v, ",") {
		pieces := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pieces) != 2 {
			log.Printf("Skipping malformed refund tier %q\n", part)
			continue
		}
		lead, err := time.ParseDuration(pieces[0])
		if err != nil {
			log.Printf("Skipping refund tier with bad duration %q: %s\n", part, err.Error())
			continue
		}
		pct, err := strconv.Atoi(pieces[1])
		if err != nil || pct < 0 || pct > 100 {
			log.Printf("Skipping refund tier with bad percentage %q\n", part)
			continue
		}
		tiers = append(tiers, RefundTier{MinLead: lead, Percent: uint8(pct)})
	}
	return tiers
}

// ScoreWeights returns the (rating, completedJobs) weights used to rank
// assignment candidates. Policy knobs, not business logic.
func ScoreWeights() (float64, float64) {
	return envFloat("ASSIGN_WEIGHT_RATING", 10), envFloat("ASSIGN_WEIGHT_JOBS", 1)
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s %q, using default %v: %s\n", key, v, def, err.Error())
		return def
	}
	return f
}
