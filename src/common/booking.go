package common

import (
	"errors"
	"fmt"
	"log"
	"time"

	"fundi/src/config"
	"fundi/src/models"
	"fundi/src/types"
	"fundi/src/utils"

	"gorm.io/gorm"
)

// bookingTransitions is the reachability table for booking statuses. Any
// non-terminal status may additionally move to cancelled or disputed.
var bookingTransitions = map[types.BookingStatus][]types.BookingStatus{
	types.BOOKING_PENDING:     {types.BOOKING_CONFIRMED, types.BOOKING_CANCELED, types.BOOKING_DISPUTED},
	types.BOOKING_CONFIRMED:   {types.BOOKING_IN_PROGRESS, types.BOOKING_PENDING, types.BOOKING_CANCELED, types.BOOKING_DISPUTED},
	types.BOOKING_IN_PROGRESS: {types.BOOKING_COMPLETED, types.BOOKING_CANCELED, types.BOOKING_DISPUTED},
	types.BOOKING_DISPUTED:    {types.BOOKING_COMPLETED, types.BOOKING_CANCELED},
	types.BOOKING_COMPLETED:   {},
	types.BOOKING_CANCELED:    {},
}

func CanTransitionBooking(from, to types.BookingStatus) bool {
	for _, s := range bookingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionBooking moves a booking from one status to another with
// compare-and-swap semantics: the update is keyed on the observed status and
// fails instead of clobbering when another actor got there first. The
// timeline entry persists in the same transaction as the status write.
func TransitionBooking(tx *gorm.DB, bookingID uint, from, to types.BookingStatus, actor, note string) error {
	if !CanTransitionBooking(from, to) {
		return fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, from, to)
	}
	res := tx.
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: booking %d is no longer %s", types.ErrInvalidTransition, bookingID, from)
	}
	entry := models.BookingTimelineEntry{
		BookingID: bookingID,
		Status:    string(to),
		Actor:     actor,
		Note:      note,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	if to == types.BOOKING_IN_PROGRESS {
		now := time.Now().UTC()
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ? AND completion_start IS NULL", bookingID).
			Update("completion_start", now).
			Error; err != nil {
			return err
		}
	}
	return nil
}

// ChangeBookingStatus is the transactional entry point used by handlers: it
// loads the current status, applies the transition and runs completion side
// effects.
func ChangeBookingStatus(db *gorm.DB, bookingID uint, to types.BookingStatus, actor, note string) error {
	var confirmed bool
	err := db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			First(&booking).
			Error; err != nil {
			return err
		}
		if err := TransitionBooking(tx, bookingID, booking.Status, to, actor, note); err != nil {
			return err
		}
		if to == types.BOOKING_COMPLETED {
			if err := completeBooking(tx, &booking, actor); err != nil {
				return err
			}
		}
		confirmed = to == types.BOOKING_CONFIRMED
		return nil
	})
	if err != nil {
		return err
	}
	if confirmed {
		EmitDomainEvent(EventBookingConfirmed, types.JSONB{"booking_id": bookingID})
	}
	return nil
}

// completeBooking stamps completion details and creates the payout. Creation
// is idempotent: the unique index on payouts.booking_id makes a duplicate
// completion a no-op rather than a second payout.
func completeBooking(tx *gorm.DB, booking *models.Booking, actor string) error {
	now := time.Now().UTC()
	if err := tx.
		Model(&models.Booking{}).
		Where("id = ? AND completion_end IS NULL", booking.ID).
		Update("completion_end", now).
		Error; err != nil {
		return err
	}
	if _, err := CreatePayoutForBooking(tx, booking, now); err != nil {
		if errors.Is(err, types.ErrDuplicatePayout) {
			log.Printf("[booking] Payout already exists for booking %d, skipping\n", booking.ID)
			return nil
		}
		return err
	}
	return nil
}

// ResolveRefund applies the configured cancellation policy: the first tier
// whose minimum lead time is satisfied wins. An empty policy means no refund.
func ResolveRefund(tiers []config.RefundTier, timeToStart time.Duration) (bool, uint8) {
	for _, t := range tiers {
		if timeToStart >= t.MinLead {
			return t.Percent > 0, t.Percent
		}
	}
	return false, 0
}

// CancelBooking cancels from any non-terminal status, records the
// cancellation sub-record with refund eligibility computed from policy, and
// pushes the refund decision into the escrow tracker.
func CancelBooking(db *gorm.DB, bookingID uint, reason, actor string) error {
	var refundAmount float64
	err := db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			First(&booking).
			Error; err != nil {
			return err
		}
		if err := TransitionBooking(tx, bookingID, booking.Status, types.BOOKING_CANCELED, actor, reason); err != nil {
			return err
		}

		now := time.Now().UTC()
		eligible, pct := ResolveRefund(config.RefundTiers(), booking.ScheduledDate.Sub(now))
		refundAmount = utils.RoundKES(booking.TotalAmount * float64(pct) / 100)
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			Updates(map[string]any{
				"cancelled_at":        now,
				"cancellation_reason": reason,
				"cancelled_by":        actor,
				"refund_eligible":     eligible,
				"refund_percentage":   pct,
				"refund_amount":       refundAmount,
			}).
			Error; err != nil {
			return err
		}

		if booking.EscrowPaymentID != nil {
			if err := refundEscrowOnCancellation(tx, *booking.EscrowPaymentID, eligible, refundAmount, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	EmitDomainEvent(EventBookingCanceled, types.JSONB{
		"booking_id":    bookingID,
		"reason":        reason,
		"refund_amount": refundAmount,
	})
	return nil
}

// AppendCommunication appends one entry to the booking's append-only
// communication log.
func AppendCommunication(db *gorm.DB, bookingID uint, actor, message string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			First(&booking).
			Error; err != nil {
			return err
		}
		entry := types.JSONB{
			"actor":   actor,
			"message": message,
			"at":      time.Now().UTC().Format(time.RFC3339),
		}
		logEntries := append(booking.CommunicationLog, entry)
		return tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			Update("communication_log", logEntries).
			Error
	})
}
