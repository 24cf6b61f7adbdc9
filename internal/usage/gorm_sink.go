package usage

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/mono-ai/aiproxy/internal/settings"
	"gorm.io/gorm"
)

// GormLogSink writes consumption logs and bumps group, token and channel counters in one transaction.
type GormLogSink struct {
	db       *gorm.DB
	settings *settings.Holder
}

var _ LogSink = (*GormLogSink)(nil)

// NewGormLogSink constructs a GormLogSink backed by GORM.
func NewGormLogSink(db *gorm.DB, holder *settings.Holder) *GormLogSink {
	return &GormLogSink{db: db, settings: holder}
}

// RecordConsumption implements LogSink.
func (s *GormLogSink) RecordConsumption(ctx context.Context, c Consumption) error {
	if s == nil || s.db == nil {
		return errors.New("usage: nil log sink")
	}
	opts := s.settings.Load()

	row := models.Log{
		RequestID:   c.Meta.RequestID,
		RequestAt:   normalizeTime(c.Meta.RequestAt),
		GroupID:     c.Meta.GroupID(),
		TokenName:   c.Meta.TokenName(),
		ChannelID:   c.Meta.ChannelID,
		Model:       strings.TrimSpace(c.Meta.Model),
		ActualModel: strings.TrimSpace(c.Meta.ActualModel),
		Endpoint:    c.Meta.Endpoint,
		Mode:        c.Meta.Mode,
		Code:        c.StatusCode,
		RetryTimes:  c.RetryTimes,
		Content:     c.Content,
		IP:          c.Meta.IP,
		Usage:       c.Usage,
		Price:       c.Price,
		UsedAmount:  c.Amount,
	}
	if c.Meta.Token != nil {
		row.TokenID = c.Meta.Token.ID
	}
	if !c.Success || opts.SaveAllLogDetail {
		row.RequestBody = truncateBody(c.Meta.RequestBody, opts.LogDetailBodyMaxSize)
		row.ResponseBody = truncateBody(c.Meta.ResponseBody, opts.LogDetailBodyMaxSize)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return errCreate
		}
		counters := map[string]any{
			"used_amount":   gorm.Expr("used_amount + ?", c.Amount),
			"request_count": gorm.Expr("request_count + ?", 1),
		}
		if row.GroupID != "" {
			if errUpdate := tx.Model(&models.Group{}).Where("id = ?", row.GroupID).Updates(counters).Error; errUpdate != nil {
				return errUpdate
			}
		}
		if row.TokenID != 0 {
			if errUpdate := tx.Model(&models.Token{}).Where("id = ?", row.TokenID).Updates(counters).Error; errUpdate != nil {
				return errUpdate
			}
		}
		if row.ChannelID != 0 {
			if errUpdate := tx.Model(&models.Channel{}).Where("id = ?", row.ChannelID).Updates(counters).Error; errUpdate != nil {
				return errUpdate
			}
		}
		return nil
	})
}

// truncateBody cuts body to at most limit bytes without splitting a UTF-8 sequence.
func truncateBody(body []byte, limit int) string {
	if len(body) == 0 || limit <= 0 {
		return ""
	}
	if len(body) <= limit {
		return string(body)
	}
	cut := body[:limit]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut)
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
