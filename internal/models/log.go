package models

import "time"

// Log is one consumption record, written for successful and failed relays alike.
type Log struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RequestID string    `gorm:"type:varchar(64);index"` // Gateway request identifier.
	RequestAt time.Time `gorm:"not null;index"`         // Time the request entered the gateway.

	GroupID   string `gorm:"type:varchar(64);not null;index"` // Owning group.
	TokenID   uint64 `gorm:"index"`                           // Authenticating token.
	TokenName string `gorm:"type:varchar(255)"`               // Token display name.
	ChannelID uint64 `gorm:"index"`                           // Channel that answered, 0 when none.

	Model       string `gorm:"type:varchar(255);not null;index"` // Requested model name.
	ActualModel string `gorm:"type:varchar(255)"`                // Upstream model after mapping.
	Endpoint    string `gorm:"type:varchar(255)"`                // Request path.
	Mode        Mode   `gorm:"not null;default:0"`               // Endpoint mode.

	Code       int    `gorm:"not null;default:0;index"` // Final HTTP status code.
	RetryTimes int    `gorm:"not null;default:0"`       // Attempts beyond the first.
	Content    string `gorm:"type:text"`                // Error message for failed relays.
	IP         string `gorm:"type:varchar(64)"`         // Client address.

	Usage Usage `gorm:"embedded;embeddedPrefix:usage_"` // Token counters.
	Price Price `gorm:"embedded;embeddedPrefix:price_"` // Price sheet applied.

	UsedAmount float64 `gorm:"not null;default:0"` // Amount charged to the group.

	RequestBody  string `gorm:"type:text"` // Truncated request body, when detail logging applies.
	ResponseBody string `gorm:"type:text"` // Truncated response body, when detail logging applies.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
