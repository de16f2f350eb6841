package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fundi/src/config"
	"fundi/src/lib"
	"fundi/src/models"
	"fundi/src/types"
	"fundi/src/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// PayoutsDueTopic carries one-shot settlement reminders from the scheduler
// back into the worker that promotes and processes due payouts.
const PayoutsDueTopic = "payouts-due"

func payoutClaimKey(id uuid.UUID) string {
	return fmt.Sprintf("payout:claim:%s", id)
}

// CreatePayoutForBooking computes the commission split and fixes the
// settlement schedule at creation time. The unique index on booking_id is
// the duplicate guard; a second completion of the same booking surfaces
// ErrDuplicatePayout instead of a second transfer.
func CreatePayoutForBooking(tx *gorm.DB, booking *models.Booking, now time.Time) (*models.Payout, error) {
	rate := config.PayoutCommissionPercent()
	commission := utils.RoundKES(booking.TotalAmount * rate / 100)

	var slot models.BookingProvider
	if err := tx.
		Model(&models.BookingProvider{}).
		Where("booking_id = ?", booking.ID).
		Order("assigned_at asc").
		First(&slot).
		Error; err != nil {
		return nil, fmt.Errorf("%w: booking has no assigned provider", types.ErrInvalidState)
	}

	status := types.PAYOUT_AWAITING_PAYMENT
	if booking.EscrowPaymentID != nil {
		var escrow models.EscrowPayment
		if err := tx.
			Model(&models.EscrowPayment{}).
			Where("id = ?", *booking.EscrowPaymentID).
			First(&escrow).
			Error; err != nil {
			return nil, err
		}
		if escrow.Status == types.ESCROW_RELEASED {
			status = types.PAYOUT_PENDING
		}
	}

	payout := models.Payout{
		BookingID:          booking.ID,
		ProviderID:         slot.ProviderID,
		ClientID:           booking.ClientID,
		TotalAmount:        booking.TotalAmount,
		CommissionRate:     rate,
		CommissionAmount:   commission,
		PayoutAmount:       booking.TotalAmount - commission,
		Status:             status,
		ServiceCompletedAt: now,
		ScheduledFor:       now.Add(config.SettlementDelay()),
	}
	if err := tx.Create(&payout).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, types.ErrDuplicatePayout
		}
		return nil, err
	}

	if sid, err := lib.NewScheduledJob(payout.ScheduledFor, map[string]string{
		"name":     fmt.Sprintf("payout_%s", payout.ID),
		"clientId": "payouts",
		"topic":    utils.WithSuffix(PayoutsDueTopic),
	}, types.JSONB{"payout_id": payout.ID.String()}); err != nil {
		log.Printf("[payouts] Error scheduling settlement job for %s: %s\n", payout.ID, err.Error())
	} else {
		log.Printf("[payouts] Settlement job %s scheduled for %s\n", sid, payout.ScheduledFor)
	}
	return &payout, nil
}

// IsPayoutReady reports whether the settlement delay has elapsed. Pure
// query, the sweep and the tests both rely on it having no side effects.
func IsPayoutReady(p *models.Payout, now time.Time) bool {
	return p.Status == types.PAYOUT_PENDING && !now.Before(p.ScheduledFor)
}

// MarkReady promotes pending to ready once due. Not-yet-due or already
// promoted rows are a no-op so the sweep can call this blindly.
func MarkReady(db *gorm.DB, payoutID uuid.UUID) error {
	return db.
		Model(&models.Payout{}).
		Where("id = ? AND status = ? AND scheduled_for <= ?", payoutID, types.PAYOUT_PENDING, time.Now().UTC()).
		Update("status", types.PAYOUT_READY).
		Error
}

// ProcessPayout drives one transfer attempt. The redis claim plus the CAS on
// ready->processing guarantee at most one outbound gateway call per payout
// no matter how many sweeps, webhooks and operators race on it.
func ProcessPayout(db *gorm.DB, rdb *redis.Client, gw lib.TransferGateway, payoutID uuid.UUID) error {
	ctx := context.Background()
	ok, err := lib.AcquireClaim(ctx, rdb, payoutClaimKey(payoutID), config.GatewayTimeout()+time.Minute)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrAlreadyProcessing
	}
	defer lib.ReleaseClaim(ctx, rdb, payoutClaimKey(payoutID))

	now := time.Now().UTC()
	res := db.
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, types.PAYOUT_READY).
		Updates(map[string]any{
			"status":          types.PAYOUT_PROCESSING,
			"processed_at":    now,
			"last_attempt_at": now,
			"attempt_count":   gorm.Expr("attempt_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current models.Payout
		if err := db.Model(&models.Payout{}).Where("id = ?", payoutID).First(&current).Error; err != nil {
			return err
		}
		if current.Status == types.PAYOUT_PROCESSING {
			return types.ErrAlreadyProcessing
		}
		return fmt.Errorf("%w: payout is %s", types.ErrInvalidState, current.Status)
	}

	var payout models.Payout
	if err := db.
		Model(&models.Payout{}).
		Preload("Provider.User").
		Where("id = ?", payoutID).
		First(&payout).
		Error; err != nil {
		return err
	}
	if payout.Provider == nil || payout.Provider.User == nil {
		return markPayoutFailed(db, payoutID, "provider has no payout destination")
	}
	recipient, err := utils.FormatPhone(payout.Provider.User.Phone)
	if err != nil {
		return markPayoutFailed(db, payoutID, err.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, config.GatewayTimeout())
	defer cancel()
	transferID, err := gw.InitiateTransfer(callCtx, recipient, payout.PayoutAmount, payout.ID.String())
	if err == nil {
		return completePayout(db, payoutID, transferID)
	}
	if errors.Is(err, types.ErrGatewayTimeout) {
		return reconcilePayout(db, gw, &payout)
	}
	if ferr := markPayoutFailed(db, payoutID, err.Error()); ferr != nil {
		return ferr
	}
	return err
}

// reconcilePayout resolves an unknown-outcome transfer by querying the
// gateway with our own reference. A transfer that may have gone out is never
// re-fired; an inconclusive answer parks the payout in processing for the
// result callback to settle.
func reconcilePayout(db *gorm.DB, gw lib.TransferGateway, payout *models.Payout) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.GatewayTimeout())
	defer cancel()
	status, err := gw.QueryTransfer(ctx, payout.ID.String())
	if err != nil {
		log.Printf("[payouts] Reconciliation query for %s failed: %s\n", payout.ID, err.Error())
		return noteAwaitingCallback(db, payout.ID)
	}
	switch status {
	case lib.TransferStatusCompleted:
		return completePayout(db, payout.ID, "")
	case lib.TransferStatusFailed:
		return markPayoutFailed(db, payout.ID, "transfer rejected on reconciliation")
	default:
		return noteAwaitingCallback(db, payout.ID)
	}
}

func noteAwaitingCallback(db *gorm.DB, payoutID uuid.UUID) error {
	if err := db.
		Model(&models.Payout{}).
		Where("id = ?", payoutID).
		Update("notes", "transfer outcome unknown, awaiting gateway callback").
		Error; err != nil {
		return err
	}
	return types.ErrGatewayTimeout
}

func completePayout(db *gorm.DB, payoutID uuid.UUID, transferID string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":       types.PAYOUT_COMPLETED,
		"completed_at": now,
	}
	if transferID != "" {
		updates["transfer_id"] = transferID
	}
	res := db.
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, types.PAYOUT_PROCESSING).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("[payouts] Completion for %s skipped, payout no longer processing\n", payoutID)
		return nil
	}
	EmitDomainEvent(EventPayoutCompleted, types.JSONB{"payout_id": payoutID.String()})
	return nil
}

func markPayoutFailed(db *gorm.DB, payoutID uuid.UUID, reason string) error {
	now := time.Now().UTC()
	res := db.
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, types.PAYOUT_PROCESSING).
		Updates(map[string]any{
			"status":         types.PAYOUT_FAILED,
			"failed_at":      now,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("[payouts] Failure for %s skipped, payout no longer processing\n", payoutID)
		return nil
	}
	EmitDomainEvent(EventPayoutFailed, types.JSONB{
		"payout_id": payoutID.String(),
		"reason":    reason,
	})
	return nil
}

// FinalizeTransfer applies the gateway's asynchronous transfer result. It
// matches by either the gateway's transfer id or our reference, and is a
// no-op on replay because only a processing payout accepts a result.
func FinalizeTransfer(db *gorm.DB, cb types.TransferCallback) error {
	var payout models.Payout
	q := db.Model(&models.Payout{})
	if id, err := uuid.Parse(cb.TransferID); err == nil {
		q = q.Where("id = ? OR transfer_id = ?", id, cb.TransferID)
	} else {
		q = q.Where("transfer_id = ?", cb.TransferID)
	}
	if err := q.First(&payout).Error; err != nil {
		return err
	}
	if cb.ResultCode == 0 {
		return completePayout(db, payout.ID, cb.TransferID)
	}
	reason := cb.FailureReason
	if reason == "" {
		reason = cb.ResultDesc
	}
	return markPayoutFailed(db, payout.ID, reason)
}

// RetryPayout returns a failed payout to the queue. Attempt history is
// preserved; the sweep applies the attempt cap, operators override it here.
func RetryPayout(db *gorm.DB, payoutID uuid.UUID, reason string) error {
	res := db.
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, types.PAYOUT_FAILED).
		Updates(map[string]any{
			"status": types.PAYOUT_READY,
			"notes":  fmt.Sprintf("retry: %s", reason),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: only failed payouts can be retried", types.ErrInvalidState)
	}
	return nil
}

// CancelPayout withdraws a payout from settlement. A payout mid-transfer
// cannot be cancelled, the outcome of the outbound call must land first.
func CancelPayout(db *gorm.DB, rdb *redis.Client, payoutID uuid.UUID, reason string) error {
	if lib.ClaimHeld(context.Background(), rdb, payoutClaimKey(payoutID)) {
		return types.ErrAlreadyProcessing
	}
	res := db.
		Model(&models.Payout{}).
		Where("id = ? AND status IN ?", payoutID, []string{
			string(types.PAYOUT_AWAITING_PAYMENT),
			string(types.PAYOUT_PENDING),
			string(types.PAYOUT_READY),
			string(types.PAYOUT_FAILED),
		}).
		Updates(map[string]any{
			"status": types.PAYOUT_CANCELED,
			"notes":  fmt.Sprintf("cancelled: %s", reason),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current models.Payout
		if err := db.Model(&models.Payout{}).Where("id = ?", payoutID).First(&current).Error; err != nil {
			return err
		}
		if current.Status == types.PAYOUT_PROCESSING {
			return types.ErrAlreadyProcessing
		}
		return fmt.Errorf("%w: payout is %s", types.ErrInvalidState, current.Status)
	}
	return nil
}

// RunSettlementSweep is the periodic safety net behind the one-shot
// schedules: it promotes every due pending payout and processes whatever is
// ready, skipping rows that have exhausted their attempts.
func RunSettlementSweep(db *gorm.DB, rdb *redis.Client, gw lib.TransferGateway) {
	now := time.Now().UTC()
	var due []models.Payout
	if err := db.
		Model(&models.Payout{}).
		Where("status = ? AND scheduled_for <= ?", types.PAYOUT_PENDING, now).
		Find(&due).
		Error; err != nil {
		log.Printf("[payouts] Sweep query failed: %s\n", err.Error())
		return
	}
	for _, p := range due {
		if err := MarkReady(db, p.ID); err != nil {
			log.Printf("[payouts] Error promoting %s: %s\n", p.ID, err.Error())
		}
	}

	maxAttempts := config.MaxPayoutAttempts()
	var ready []models.Payout
	if err := db.
		Model(&models.Payout{}).
		Where("status = ?", types.PAYOUT_READY).
		Find(&ready).
		Error; err != nil {
		log.Printf("[payouts] Sweep query failed: %s\n", err.Error())
		return
	}
	for _, p := range ready {
		if p.AttemptCount >= maxAttempts {
			log.Printf("[payouts] Skipping %s, attempts exhausted (%d)\n", p.ID, p.AttemptCount)
			continue
		}
		if err := ProcessPayout(db, rdb, gw, p.ID); err != nil {
			if errors.Is(err, types.ErrAlreadyProcessing) {
				continue
			}
			log.Printf("[payouts] Error processing %s: %s\n", p.ID, err.Error())
		}
	}
}
