package models

import "time"

// TokenStatus marks whether a token may authenticate.
type TokenStatus int

// TokenStatus values.
const (
	// TokenStatusEnabled allows authentication.
	TokenStatusEnabled TokenStatus = 1
	// TokenStatusDisabled rejects authentication.
	TokenStatusDisabled TokenStatus = 2
)

// Token identifies a caller within a group.
type Token struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID string `gorm:"type:varchar(64);not null;index"`        // Owning group.
	Name    string `gorm:"type:varchar(255);not null"`             // Display name, used as billing app name.
	Key     string `gorm:"type:varchar(128);not null;uniqueIndex"` // Secret key presented by clients.

	Status    TokenStatus `gorm:"not null;default:1"` // Enabled/disabled.
	ExpiredAt *time.Time  // Optional expiration timestamp.

	UsedAmount   float64 `gorm:"not null;default:0"` // Cumulative charged amount.
	RequestCount int64   `gorm:"not null;default:0"` // Cumulative request count.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Usable reports whether the token is enabled and not expired at now.
func (t *Token) Usable(now time.Time) bool {
	if t == nil || t.Status != TokenStatusEnabled {
		return false
	}
	if t.ExpiredAt != nil && !t.ExpiredAt.IsZero() && !now.Before(*t.ExpiredAt) {
		return false
	}
	return true
}
