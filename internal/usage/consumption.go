// Package usage settles relayed requests: it prices them, charges the group balance, and
// records a consumption log, off the request path.
package usage

import (
	"context"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
)

// RequestMeta identifies the request a consumption belongs to.
type RequestMeta struct {
	RequestID   string
	RequestAt   time.Time
	Group       *models.Group
	Token       *models.Token
	ChannelID   uint64
	Model       string // Requested model.
	ActualModel string // Upstream model after mapping.
	Endpoint    string
	Mode        models.Mode
	IP          string

	RequestBody  []byte
	ResponseBody []byte
}

// GroupID returns the group id, or "" when unknown.
func (m *RequestMeta) GroupID() string {
	if m == nil || m.Group == nil {
		return ""
	}
	return m.Group.ID
}

// TokenName returns the token name used as the billing app name.
func (m *RequestMeta) TokenName() string {
	if m == nil || m.Token == nil {
		return ""
	}
	return m.Token.Name
}

// Consumption is what the log sink receives for one settled request.
type Consumption struct {
	Meta       RequestMeta
	Usage      models.Usage
	Price      models.Price
	Amount     float64 // Charged amount, or the computed amount when the charge failed.
	StatusCode int
	RetryTimes int
	Success    bool
	Content    string // Error message for failed relays.
}

// LogSink persists consumptions.
type LogSink interface {
	RecordConsumption(ctx context.Context, c Consumption) error
}
