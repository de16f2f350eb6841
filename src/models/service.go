package models

import "fundi/src/types"

// Service is an entry in the platform's own catalog.
type Service struct {
	ID        uint    `gorm:"primarykey" json:"id"`
	Name      string  `json:"name,omitempty"`
	Slug      string  `gorm:"uniqueIndex" json:"slug,omitempty"`
	Category  string  `gorm:"index" json:"category,omitempty"`
	BasePrice float64 `json:"base_price,omitempty"`
	Currency  string  `gorm:"default:'KES'" json:"currency,omitempty"`

	types.Timestamps
}

// ProviderService is a provider-owned listing, priced by the provider.
type ProviderService struct {
	ID         uint    `gorm:"primarykey" json:"id"`
	ProviderID uint    `gorm:"index" json:"provider_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Slug       string  `json:"slug,omitempty"`
	Category   string  `gorm:"index" json:"category,omitempty"`
	Price      float64 `json:"price,omitempty"`
	Currency   string  `gorm:"default:'KES'" json:"currency,omitempty"`

	Provider *Provider `gorm:"foreignKey:provider_id" json:"provider,omitempty"`

	types.Timestamps
}
