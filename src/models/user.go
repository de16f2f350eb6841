package models

import "fundi/src/types"

type User struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	Name          string         `json:"name,omitempty"`
	Email         string         `gorm:"uniqueIndex" json:"email,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	PhoneVerified bool           `gorm:"default:false" json:"phone_verified,omitempty"`
	Role          types.UserRole `gorm:"default:'client'" json:"role,omitempty"`

	Bookings []*Booking `gorm:"foreignKey:client_id" json:"bookings,omitempty"`

	types.Timestamps
}
