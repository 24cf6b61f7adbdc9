package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// ChannelStatus marks whether a channel may serve traffic.
type ChannelStatus int

// ChannelStatus values.
const (
	// ChannelStatusEnabled allows the channel to be selected.
	ChannelStatusEnabled ChannelStatus = 1
	// ChannelStatusDisabled excludes the channel from selection.
	ChannelStatusDisabled ChannelStatus = 2
)

// Channel is a configured upstream provider endpoint.
type Channel struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name    string        `gorm:"type:varchar(255);not null;uniqueIndex"` // Display name.
	Type    int           `gorm:"not null;default:0"`                     // Provider type.
	Status  ChannelStatus `gorm:"not null;default:1;index"`               // Enabled/disabled.
	BaseURL string        `gorm:"type:text;not null"`                     // Upstream base URL.
	Key     string        `gorm:"type:text"`                              // Bearer credential.

	Models       datatypes.JSONSlice[string]           `gorm:"type:json"` // Directly supported model names.
	ModelMapping datatypes.JSONType[map[string]string] `gorm:"type:json"` // Requested model -> upstream model.
	Sets         datatypes.JSONSlice[string]           `gorm:"type:json"` // Named sets this channel belongs to.

	Priority int64 `gorm:"not null;default:0;index"` // Higher relays first.

	UsedAmount   float64 `gorm:"not null;default:0"` // Running charged amount.
	RequestCount int64   `gorm:"not null;default:0"` // Running request count.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Enabled reports whether the channel may be selected.
func (c *Channel) Enabled() bool {
	return c != nil && c.Status == ChannelStatusEnabled
}

// SupportsModel reports whether the channel serves model directly or through its mapping table.
func (c *Channel) SupportsModel(model string) bool {
	if c == nil || model == "" {
		return false
	}
	if slices.Contains([]string(c.Models), model) {
		return true
	}
	_, ok := c.ModelMapping.Data()[model]
	return ok
}

// MappedModel returns the upstream model name for a requested model.
func (c *Channel) MappedModel(model string) string {
	if c == nil {
		return model
	}
	if mapped, ok := c.ModelMapping.Data()[model]; ok && mapped != "" {
		return mapped
	}
	return model
}
