package models

import "fundi/src/types"

// Provider is the service-provider profile attached to a user account.
// Rating and CompletedJobs feed candidate scoring during assignment.
type Provider struct {
	ID            uint    `gorm:"primarykey" json:"id"`
	UserID        uint    `gorm:"index" json:"user_id,omitempty"`
	Category      string  `gorm:"index" json:"category,omitempty"`
	Rating        float64 `gorm:"default:0" json:"rating,omitempty"`
	RatingCount   uint    `gorm:"default:0" json:"rating_count,omitempty"`
	CompletedJobs uint    `gorm:"default:0" json:"completed_jobs,omitempty"`
	Verified      bool    `gorm:"default:false" json:"verified,omitempty"`
	Available     bool    `gorm:"default:true" json:"available,omitempty"`

	User     *User              `gorm:"foreignKey:user_id" json:"user,omitempty"`
	Services []*ProviderService `json:"services,omitempty"`

	types.Timestamps
}
