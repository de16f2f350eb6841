package utils

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"fundi/src/models"
	"fundi/src/types"

	"gorm.io/gorm"
)

// RoundKES rounds to the nearest whole shilling. M-Pesa moves whole-shilling
// amounts only.
func RoundKES(amount float64) float64 {
	return math.Round(amount)
}

// GenerateBookingNumber issues a human-readable booking reference,
// e.g. BK-20250829-483920. Uniqueness is still enforced by the db index.
func GenerateBookingNumber(now time.Time) string {
	return fmt.Sprintf("BK-%s-%06d", now.UTC().Format("20060102"), rand.Intn(1000000))
}

// WithSuffix appends the environment suffix to queue/topic names so local
// and production infrastructure never share queues.
func WithSuffix(name string) string {
	suffix := os.Getenv("QUEUE_SUFFIX")
	if suffix == "" {
		return name
	}
	return fmt.Sprintf("%s-%s", name, suffix)
}

// WindowsOverlap reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// A nil end means an open-ended window of the default service duration.
func WindowsOverlap(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	const defaultDuration = 2 * time.Hour
	ae := aStart.Add(defaultDuration)
	if aEnd != nil {
		ae = *aEnd
	}
	be := bStart.Add(defaultDuration)
	if bEnd != nil {
		be = *bEnd
	}
	return aStart.Before(be) && bStart.Before(ae)
}

// FormatPhone normalizes a Kenyan MSISDN to the 2547XXXXXXXX form the
// gateway expects.
func FormatPhone(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") {
		p = "254" + p[1:]
	}
	if !strings.HasPrefix(p, "254") || len(p) != 12 {
		return "", fmt.Errorf("invalid phone number: %s", phone)
	}
	return p, nil
}

// ResolvedService is the common view over both service catalogs.
type ResolvedService struct {
	Name     string
	Category string
	Price    float64
	Currency string
}

// ResolveServiceRef looks up a booking's polymorphic service reference in
// the catalog selected by serviceType.
func ResolveServiceRef(tx *gorm.DB, serviceType types.ServiceType, serviceID uint) (*ResolvedService, error) {
	switch serviceType {
	case types.SERVICE_CATALOG:
		var svc models.Service
		if err := tx.
			Model(&models.Service{}).
			Where("id = ?", serviceID).
			First(&svc).
			Error; err != nil {
			return nil, err
		}
		return &ResolvedService{Name: svc.Name, Category: svc.Category, Price: svc.BasePrice, Currency: svc.Currency}, nil
	case types.SERVICE_PROVIDER:
		var svc models.ProviderService
		if err := tx.
			Model(&models.ProviderService{}).
			Where("id = ?", serviceID).
			First(&svc).
			Error; err != nil {
			return nil, err
		}
		return &ResolvedService{Name: svc.Name, Category: svc.Category, Price: svc.Price, Currency: svc.Currency}, nil
	default:
		return nil, errors.New("unknown service type")
	}
}

func GetOwnBookings(tx *gorm.DB, clientID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := tx.
		Model(&models.Booking{}).
		Where(&models.Booking{ClientID: clientID}).
		Preload("Providers").
		Preload("Providers.Provider").
		Order("created_at DESC").
		Limit(100).
		Find(&bookings).
		Error
	return bookings, err
}

func GetProviderBookings(tx *gorm.DB, providerID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := tx.
		Model(&models.Booking{}).
		Joins("JOIN booking_providers bp ON bp.booking_id = bookings.id").
		Where("bp.provider_id = ?", providerID).
		Order("bookings.scheduled_date DESC").
		Limit(100).
		Find(&bookings).
		Error
	return bookings, err
}
