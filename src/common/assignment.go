package common

import (
	"fmt"
	"sort"
	"time"

	"fundi/src/config"
	"fundi/src/models"
	"fundi/src/types"
	"fundi/src/utils"

	"gorm.io/gorm"
)

// Candidate is a provider considered for a booking slot, with a
// deterministic score so ranking is reproducible and testable.
type Candidate struct {
	Provider       *models.Provider `json:"provider"`
	Score          float64          `json:"score"`
	Matching       bool             `json:"matching"`
	ConflictReason string           `json:"conflict_reason,omitempty"`
}

const (
	ConflictScheduleOverlap = "schedule overlap"
	ConflictUnavailable     = "marked unavailable"
)

// ScoreCandidate ranks by weighted rating and completed-job count. Weights
// are policy configuration, not fixed business logic.
func ScoreCandidate(p *models.Provider, ratingWeight, jobsWeight float64) float64 {
	return p.Rating*ratingWeight + float64(p.CompletedJobs)*jobsWeight
}

// PartitionCandidates splits providers into category matches and the rest,
// annotating each with score and any availability conflict. busy maps
// provider id to true when the provider has an overlapping active booking.
func PartitionCandidates(providers []*models.Provider, category string, busy map[uint]bool) ([]Candidate, []Candidate) {
	ratingWeight, jobsWeight := config.ScoreWeights()
	var matching, other []Candidate
	for _, p := range providers {
		c := Candidate{
			Provider: p,
			Score:    ScoreCandidate(p, ratingWeight, jobsWeight),
			Matching: p.Category == category,
		}
		if busy[p.ID] {
			c.ConflictReason = ConflictScheduleOverlap
		} else if !p.Available {
			c.ConflictReason = ConflictUnavailable
		}
		if c.Matching {
			matching = append(matching, c)
		} else {
			other = append(other, c)
		}
	}
	sortCandidates(matching)
	sortCandidates(other)
	return matching, other
}

func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Provider.ID < cs[j].Provider.ID
	})
}

// ListCandidates returns scored candidates for a booking, partitioned into
// category matches and otherwise-free providers.
func ListCandidates(db *gorm.DB, bookingID uint) (matching []Candidate, other []Candidate, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			First(&booking).
			Error; err != nil {
			return err
		}
		var providers []*models.Provider
		if err := tx.
			Model(&models.Provider{}).
			Preload("User").
			Where(&models.Provider{Verified: true}).
			Find(&providers).
			Error; err != nil {
			return err
		}
		busy, err := busyProviders(tx, &booking)
		if err != nil {
			return err
		}
		matching, other = PartitionCandidates(providers, booking.Category, busy)
		return nil
	})
	return matching, other, err
}

// busyProviders collects providers with a non-cancelled booking overlapping
// the requested window.
func busyProviders(tx *gorm.DB, booking *models.Booking) (map[uint]bool, error) {
	type row struct {
		ProviderID    uint
		ScheduledDate time.Time
		WindowEnd     *time.Time
	}
	var rows []row
	if err := tx.
		Model(&models.BookingProvider{}).
		Select("booking_providers.provider_id", "bookings.scheduled_date", "bookings.window_end").
		Joins("JOIN bookings ON bookings.id = booking_providers.booking_id").
		Where("bookings.id <> ? AND bookings.status NOT IN ?", booking.ID, []string{
			string(types.BOOKING_CANCELED),
			string(types.BOOKING_COMPLETED),
		}).
		Scan(&rows).
		Error; err != nil {
		return nil, err
	}
	busy := make(map[uint]bool)
	for _, r := range rows {
		if utils.WindowsOverlap(booking.ScheduledDate, booking.WindowEnd, r.ScheduledDate, r.WindowEnd) {
			busy[r.ProviderID] = true
		}
	}
	return busy, nil
}

// AssignProvider fills one slot. The slot counter increment is guarded by a
// compare-and-swap on providers_needed so two racing assignments cannot
// overfill a booking. Filling the last slot confirms the booking.
func AssignProvider(db *gorm.DB, bookingID, providerID uint, serviceID *uint, notes, actor string) error {
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
		if booking.Status != types.BOOKING_PENDING && booking.Status != types.BOOKING_CONFIRMED {
			return fmt.Errorf("%w: booking is %s", types.ErrInvalidState, booking.Status)
		}

		var existing int64
		if err := tx.
			Model(&models.BookingProvider{}).
			Where(&models.BookingProvider{BookingID: bookingID, ProviderID: providerID}).
			Count(&existing).
			Error; err != nil {
			return err
		}
		if existing > 0 {
			return types.ErrAlreadyAssigned
		}

		busy, err := busyProviders(tx, &booking)
		if err != nil {
			return err
		}
		if busy[providerID] {
			return types.ErrScheduleConflict
		}

		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND providers_assigned < providers_needed", bookingID).
			Update("providers_assigned", gorm.Expr("providers_assigned + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrSlotsFull
		}

		slot := models.BookingProvider{
			BookingID:  bookingID,
			ProviderID: providerID,
			ServiceID:  serviceID,
			Notes:      notes,
			AssignedAt: time.Now().UTC(),
		}
		if err := tx.Create(&slot).Error; err != nil {
			return err
		}

		// Re-read the counter after the increment. The value loaded at
		// the top of the transaction can be stale under concurrent
		// assignments, and the last slot must confirm exactly once.
		var assigned int64
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			Select("providers_assigned").
			Scan(&assigned).
			Error; err != nil {
			return err
		}

		nowFull := assigned >= int64(booking.ProvidersNeeded)
		if nowFull && booking.Status == types.BOOKING_PENDING {
			note := fmt.Sprintf("all %d provider slots filled", booking.ProvidersNeeded)
			if err := TransitionBooking(tx, bookingID, types.BOOKING_PENDING, types.BOOKING_CONFIRMED, actor, note); err != nil {
				return err
			}
			confirmed = true
		}
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

// UnassignProvider removes one provider, or every provider when providerID
// is nil. A confirmed booking dropping below its required slot count reverts
// to pending.
func UnassignProvider(db *gorm.DB, bookingID uint, providerID *uint, actor string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			First(&booking).
			Error; err != nil {
			return err
		}

		q := tx.Where("booking_id = ?", bookingID)
		if providerID != nil {
			q = q.Where("provider_id = ?", *providerID)
		}
		res := q.Delete(&models.BookingProvider{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: provider is not assigned to booking %d", types.ErrInvalidState, bookingID)
		}

		if err := tx.
			Model(&models.Booking{}).
			Where("id = ? AND providers_assigned >= ?", bookingID, res.RowsAffected).
			Update("providers_assigned", gorm.Expr("providers_assigned - ?", res.RowsAffected)).
			Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			Select("providers_assigned").
			Scan(&remaining).
			Error; err != nil {
			return err
		}
		if booking.Status == types.BOOKING_CONFIRMED && remaining < int64(booking.ProvidersNeeded) {
			note := "provider removed, slots no longer filled"
			if err := TransitionBooking(tx, bookingID, types.BOOKING_CONFIRMED, types.BOOKING_PENDING, actor, note); err != nil {
				return err
			}
		}
		return nil
	})
}
