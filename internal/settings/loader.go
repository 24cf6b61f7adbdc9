package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultReloadInterval is how often StartReloader refreshes options.
const DefaultReloadInterval = 30 * time.Second

// Refresh reloads the options table, applies it over base, and publishes the result.
// Rows that fail to parse keep the base value and are logged.
func Refresh(ctx context.Context, db *gorm.DB, holder *Holder, base Options) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	if holder == nil {
		return errors.New("settings: nil holder")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Option
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = row.Value
	}

	next, errs := Apply(base, values)
	for _, errApply := range errs {
		log.WithError(errApply).Warn("settings: ignore invalid option")
	}
	holder.Store(next)
	return nil
}

// Apply overlays raw option values on base. Unknown keys are ignored.
func Apply(base Options, values map[string]json.RawMessage) (Options, []error) {
	out := base.clone()
	var errs []error

	if raw, ok := values[RetryTimesKey]; ok {
		if v, errParse := parseInt(raw); errParse != nil || v < 0 {
			errs = append(errs, optionError(RetryTimesKey, raw, errParse))
		} else {
			out.RetryTimes = v
		}
	}
	if raw, ok := values[DefaultTimeoutSecondsKey]; ok {
		if v, errParse := parseInt(raw); errParse != nil || v <= 0 {
			errs = append(errs, optionError(DefaultTimeoutSecondsKey, raw, errParse))
		} else {
			out.DefaultTimeout = time.Duration(v) * time.Second
		}
	}
	if raw, ok := values[TimeoutWithModelTypeKey]; ok {
		if v, errParse := parseTimeouts(raw); errParse != nil {
			errs = append(errs, optionError(TimeoutWithModelTypeKey, raw, errParse))
		} else {
			out.TimeoutWithModelType = v
		}
	}
	if raw, ok := values[BillingEnabledKey]; ok {
		if v, errParse := parseBool(raw); errParse != nil {
			errs = append(errs, optionError(BillingEnabledKey, raw, errParse))
		} else {
			out.BillingEnabled = v
		}
	}
	if raw, ok := values[LogStorageHoursKey]; ok {
		if v, errParse := parseInt(raw); errParse != nil || v < 0 {
			errs = append(errs, optionError(LogStorageHoursKey, raw, errParse))
		} else {
			out.LogStorageHours = v
		}
	}
	if raw, ok := values[SaveAllLogDetailKey]; ok {
		if v, errParse := parseBool(raw); errParse != nil {
			errs = append(errs, optionError(SaveAllLogDetailKey, raw, errParse))
		} else {
			out.SaveAllLogDetail = v
		}
	}
	if raw, ok := values[LogDetailBodyMaxSizeKey]; ok {
		if v, errParse := parseInt(raw); errParse != nil || v < 0 {
			errs = append(errs, optionError(LogDetailBodyMaxSizeKey, raw, errParse))
		} else {
			out.LogDetailBodyMaxSize = v
		}
	}
	return out, errs
}

// StartReloader refreshes options every interval in a background goroutine until ctx is done.
func StartReloader(ctx context.Context, db *gorm.DB, holder *Holder, base Options, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	go func() {
		for {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return
			case <-timer.C:
			}
			if errRefresh := Refresh(ctx, db, holder, base); errRefresh != nil {
				log.WithError(errRefresh).Warn("settings: refresh options failed")
			}
		}
	}()
	log.Infof("settings reloader started (interval=%s)", interval)
}

func optionError(key string, raw json.RawMessage, err error) error {
	if err == nil {
		err = errors.New("out of range")
	}
	return fmt.Errorf("option %s=%s: %w", key, string(raw), err)
}

// unquote accepts both JSON scalars and JSON strings holding a scalar ("3" and "\"3\"").
func unquote(raw json.RawMessage) string {
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func parseInt(raw json.RawMessage) (int, error) {
	return strconv.Atoi(unquote(raw))
}

func parseBool(raw json.RawMessage) (bool, error) {
	return strconv.ParseBool(unquote(raw))
}

func parseTimeouts(raw json.RawMessage) (map[models.Mode]time.Duration, error) {
	var seconds map[string]int64
	if errUnmarshal := json.Unmarshal([]byte(unquote(raw)), &seconds); errUnmarshal != nil {
		return nil, errUnmarshal
	}
	out := make(map[models.Mode]time.Duration, len(seconds))
	for key, value := range seconds {
		mode, errMode := strconv.Atoi(strings.TrimSpace(key))
		if errMode != nil {
			return nil, fmt.Errorf("mode %q: %w", key, errMode)
		}
		if value <= 0 {
			continue
		}
		out[models.Mode(mode)] = time.Duration(value) * time.Second
	}
	return out, nil
}
