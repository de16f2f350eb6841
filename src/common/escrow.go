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
	"gorm.io/gorm"
)

func appendEscrowEvent(tx *gorm.DB, escrowID uuid.UUID, eventType, actor string, data types.JSONB) error {
	return tx.Create(&models.EscrowEvent{
		EscrowPaymentID: escrowID,
		Type:            eventType,
		Actor:           actor,
		Data:            data,
	}).Error
}

// CreateEscrowForBooking initiates an STK charge for the booking total and
// records the pending escrow row correlated by CheckoutRequestID. The
// gateway call happens before the insert so a rejected charge leaves no
// orphan row behind.
func CreateEscrowForBooking(db *gorm.DB, gw lib.PaymentGateway, bookingID uint, phone, actor string) (*models.EscrowPayment, error) {
	var booking models.Booking
	if err := db.
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		First(&booking).
		Error; err != nil {
		return nil, err
	}
	if booking.Status != types.BOOKING_PENDING && booking.Status != types.BOOKING_CONFIRMED {
		return nil, fmt.Errorf("%w: booking is %s", types.ErrInvalidState, booking.Status)
	}
	if booking.EscrowPaymentID != nil {
		return nil, fmt.Errorf("%w: booking already has an escrow payment", types.ErrInvalidState)
	}

	msisdn, err := utils.FormatPhone(phone)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.GatewayTimeout())
	defer cancel()
	checkoutID, err := gw.InitiateCharge(ctx, msisdn, booking.TotalAmount, booking.BookingNumber)
	if err != nil {
		return nil, err
	}

	escrow := models.EscrowPayment{
		BookingID:         bookingID,
		CheckoutRequestID: checkoutID,
		Amount:            booking.TotalAmount,
		PayerPhone:        msisdn,
		Status:            types.ESCROW_PENDING,
		CommissionRate:    config.EscrowCommissionRate(),
	}
	escrow.Recompute()

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&escrow).Error; err != nil {
			return err
		}
		// Conditional back-link. A racing charge that slipped past the
		// guard above loses here and its row is rolled back, so a booking
		// never ends up paid for twice.
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND escrow_payment_id IS NULL", bookingID).
			Update("escrow_payment_id", escrow.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: booking already has an escrow payment", types.ErrInvalidState)
		}
		return appendEscrowEvent(tx, escrow.ID, "charge_initiated", actor, types.JSONB{
			"checkout_request_id": checkoutID,
			"amount":              escrow.Amount,
			"phone":               msisdn,
		})
	})
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

// RecordInboundPayment applies a normalized gateway callback. Replays with
// the same checkout request id find the row already out of pending and
// return it unchanged, so webhook retries are harmless.
func RecordInboundPayment(db *gorm.DB, cb types.PaymentCallback) (*models.EscrowPayment, error) {
	var escrow models.EscrowPayment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.EscrowPayment{}).
			Where("checkout_request_id = ?", cb.CheckoutRequestID).
			First(&escrow).
			Error; err != nil {
			return err
		}
		if escrow.Status != types.ESCROW_PENDING {
			log.Printf("[escrow] Replayed callback for %s ignored, status is %s\n", cb.CheckoutRequestID, escrow.Status)
			return nil
		}

		if cb.ResultCode != 0 {
			res := tx.
				Model(&models.EscrowPayment{}).
				Where("id = ? AND status = ?", escrow.ID, types.ESCROW_PENDING).
				Update("status", types.ESCROW_FAILED)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			escrow.Status = types.ESCROW_FAILED
			return appendEscrowEvent(tx, escrow.ID, "payment_failed", "gateway", types.JSONB{
				"result_code": cb.ResultCode,
				"result_desc": cb.ResultDesc,
			})
		}

		if cb.Amount > 0 {
			escrow.Amount = cb.Amount
		}
		escrow.Recompute()
		res := tx.
			Model(&models.EscrowPayment{}).
			Where("id = ? AND status = ?", escrow.ID, types.ESCROW_PENDING).
			Updates(map[string]any{
				"status":               types.ESCROW_COMPLETED,
				"mpesa_receipt_number": cb.ReceiptNumber,
				"amount":               escrow.Amount,
				"commission_amount":    escrow.CommissionAmount,
				"provider_amount":      escrow.ProviderAmount,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		escrow.Status = types.ESCROW_COMPLETED
		escrow.MpesaReceiptNumber = &cb.ReceiptNumber
		return appendEscrowEvent(tx, escrow.ID, "payment_received", "gateway", types.JSONB{
			"receipt_number": cb.ReceiptNumber,
			"amount":         escrow.Amount,
		})
	})
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

// OpenDispute freezes a completed escrow payment pending resolution.
func OpenDispute(db *gorm.DB, escrowID uuid.UUID, reason, actor string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.
			Model(&models.EscrowPayment{}).
			Where("id = ? AND status = ?", escrowID, types.ESCROW_COMPLETED).
			Updates(map[string]any{
				"status":         types.ESCROW_DISPUTED,
				"dispute_reason": reason,
				"disputed_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: escrow must be completed to dispute", types.ErrInvalidState)
		}
		return appendEscrowEvent(tx, escrowID, "dispute_opened", actor, types.JSONB{"reason": reason})
	})
	if err != nil {
		return err
	}
	EmitDomainEvent(EventDisputeOpened, types.JSONB{
		"escrow_payment_id": escrowID.String(),
		"reason":            reason,
	})
	return nil
}

// ResolveDispute settles a dispute either back to completed, freeing the
// funds for release, or to failed.
func ResolveDispute(db *gorm.DB, escrowID uuid.UUID, resolution, outcome, actor string) error {
	to := types.ESCROW_COMPLETED
	if outcome == string(types.ESCROW_FAILED) {
		to = types.ESCROW_FAILED
	}
	return db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.
			Model(&models.EscrowPayment{}).
			Where("id = ? AND status = ?", escrowID, types.ESCROW_DISPUTED).
			Updates(map[string]any{
				"status":             to,
				"dispute_resolution": resolution,
				"resolved_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: escrow is not disputed", types.ErrInvalidState)
		}
		return appendEscrowEvent(tx, escrowID, "dispute_resolved", actor, types.JSONB{
			"resolution": resolution,
			"outcome":    string(to),
		})
	})
}

// ReleaseEscrow moves completed funds to released and promotes the booking's
// payout out of awaiting_payment so the settlement sweep can pick it up.
func ReleaseEscrow(db *gorm.DB, escrowID uuid.UUID, body types.ReleaseEscrowRequestBody, actor string) error {
	var bookingID uint
	err := db.Transaction(func(tx *gorm.DB) error {
		var escrow models.EscrowPayment
		if err := tx.
			Model(&models.EscrowPayment{}).
			Where("id = ?", escrowID).
			First(&escrow).
			Error; err != nil {
			return err
		}
		bookingID = escrow.BookingID

		method := body.Method
		if method == "" {
			method = "standard"
		}
		now := time.Now().UTC()
		res := tx.
			Model(&models.EscrowPayment{}).
			Where("id = ? AND status = ?", escrowID, types.ESCROW_COMPLETED).
			Updates(map[string]any{
				"status":         types.ESCROW_RELEASED,
				"released_at":    now,
				"release_method": method,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: escrow must be completed to release", types.ErrInvalidState)
		}

		if body.Rating != nil || body.Review != nil {
			updates := map[string]any{}
			if body.Rating != nil {
				updates["rating"] = *body.Rating
			}
			if body.Review != nil {
				updates["review"] = *body.Review
			}
			if err := tx.
				Model(&models.Booking{}).
				Where("id = ?", escrow.BookingID).
				Updates(updates).
				Error; err != nil {
				return err
			}
		}

		var payout models.Payout
		err := tx.
			Model(&models.Payout{}).
			Where("booking_id = ?", escrow.BookingID).
			First(&payout).
			Error
		if err == nil {
			if err := tx.
				Model(&models.Payout{}).
				Where("id = ? AND status = ?", payout.ID, types.PAYOUT_AWAITING_PAYMENT).
				Update("status", types.PAYOUT_PENDING).
				Error; err != nil {
				return err
			}
			if err := tx.
				Model(&models.EscrowPayment{}).
				Where("id = ?", escrowID).
				Update("payout_id", payout.ID).
				Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return appendEscrowEvent(tx, escrowID, "released", actor, types.JSONB{"method": method})
	})
	if err != nil {
		return err
	}
	EmitDomainEvent(EventPaymentReleased, types.JSONB{
		"escrow_payment_id": escrowID.String(),
		"booking_id":        bookingID,
	})
	return nil
}

// UpdateEscrowAmount adjusts the held amount or the commission rate. The
// split is re-derived in the same write so the row never persists with a
// stale commission breakdown.
func UpdateEscrowAmount(db *gorm.DB, escrowID uuid.UUID, amount, rate *float64, actor string) (*models.EscrowPayment, error) {
	var escrow models.EscrowPayment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.EscrowPayment{}).
			Where("id = ?", escrowID).
			First(&escrow).
			Error; err != nil {
			return err
		}
		if escrow.Status == types.ESCROW_RELEASED || escrow.Status == types.ESCROW_CANCELED {
			return fmt.Errorf("%w: escrow is %s", types.ErrInvalidState, escrow.Status)
		}
		if amount != nil {
			escrow.Amount = *amount
		}
		if rate != nil {
			escrow.CommissionRate = *rate
		}
		escrow.Recompute()
		if err := tx.
			Model(&models.EscrowPayment{}).
			Where("id = ?", escrowID).
			Updates(map[string]any{
				"amount":            escrow.Amount,
				"commission_rate":   escrow.CommissionRate,
				"commission_amount": escrow.CommissionAmount,
				"provider_amount":   escrow.ProviderAmount,
			}).
			Error; err != nil {
			return err
		}
		return appendEscrowEvent(tx, escrowID, "amount_updated", actor, types.JSONB{
			"amount":          escrow.Amount,
			"commission_rate": escrow.CommissionRate,
		})
	})
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

// refundEscrowOnCancellation closes out the escrow row when its booking is
// cancelled. Funds still in flight are simply cancelled; captured funds get
// a refund event carrying the policy outcome for the finance follow-up.
func refundEscrowOnCancellation(tx *gorm.DB, escrowID uuid.UUID, eligible bool, refundAmount float64, actor string) error {
	res := tx.
		Model(&models.EscrowPayment{}).
		Where("id = ? AND status IN ?", escrowID, []string{
			string(types.ESCROW_PENDING),
			string(types.ESCROW_COMPLETED),
		}).
		Update("status", types.ESCROW_CANCELED)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("[escrow] Cancellation for %s skipped, escrow already settled\n", escrowID)
		return nil
	}
	return appendEscrowEvent(tx, escrowID, "cancelled", actor, types.JSONB{
		"refund_eligible": eligible,
		"refund_amount":   refundAmount,
	})
}
