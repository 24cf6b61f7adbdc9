package models

import "time"

// ModelConfig holds the price sheet and classification of a model name.
type ModelConfig struct {
	Model string `gorm:"type:varchar(255);primaryKey"` // Requested model name.
	Owner string `gorm:"type:varchar(64)"`             // Model vendor.
	Type  Mode   `gorm:"not null;default:0"`           // Model mode, used for timeout lookup.

	Price Price `gorm:"embedded;embeddedPrefix:price_"` // Price sheet.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
