package models

import (
	"encoding/json"
	"time"
)

// Option stores a runtime option overriding the file configuration.
type Option struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"` // Option key, e.g. "retryTimes".
	Value     json.RawMessage `gorm:"type:jsonb"`                   // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime"`      // Last update timestamp.
}
