package models

import (
	"time"

	"gorm.io/datatypes"
)

// GroupStatus marks whether a group may issue requests.
type GroupStatus int

// GroupStatus values.
const (
	// GroupStatusEnabled allows requests.
	GroupStatusEnabled GroupStatus = 1
	// GroupStatusDisabled rejects requests.
	GroupStatusDisabled GroupStatus = 2
)

// Group is a billing namespace that owns tokens and a prepaid balance.
type Group struct {
	ID string `gorm:"type:varchar(64);primaryKey"` // Namespace identifier.

	Status   GroupStatus `gorm:"not null;default:1"` // Enabled/disabled.
	RPMRatio float64     `gorm:"not null;default:0"` // Per-minute rate ratio.
	TPMRatio float64     `gorm:"not null;default:0"` // Per-token rate ratio.

	AvailableSets datatypes.JSONSlice[string] `gorm:"type:json"` // Allowed channel sets; empty means unrestricted.

	UsedAmount   float64 `gorm:"not null;default:0"` // Cumulative charged amount.
	RequestCount int64   `gorm:"not null;default:0"` // Cumulative request count.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Enabled reports whether the group may issue requests.
func (g *Group) Enabled() bool {
	return g != nil && g.Status == GroupStatusEnabled
}
