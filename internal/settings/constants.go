package settings

import "time"

// Option keys stored in the options table and their defaults.
const (
	// RetryTimesKey is the number of retries after the first relay attempt.
	RetryTimesKey = "RetryTimes"
	// DefaultTimeoutSecondsKey is the relay timeout used when no per-mode timeout applies.
	DefaultTimeoutSecondsKey = "DefaultTimeoutSeconds"
	// TimeoutWithModelTypeKey maps a model mode to its relay timeout in seconds, e.g. {"1": 10}.
	TimeoutWithModelTypeKey = "TimeoutWithModelType"
	// BillingEnabledKey toggles balance checks and charging.
	BillingEnabledKey = "BillingEnabled"
	// LogStorageHoursKey is how long consumption logs are kept; 0 keeps them forever.
	LogStorageHoursKey = "LogStorageHours"
	// SaveAllLogDetailKey stores request/response bodies for successful requests too.
	SaveAllLogDetailKey = "SaveAllLogDetail"
	// LogDetailBodyMaxSizeKey caps stored request/response bodies in bytes.
	LogDetailBodyMaxSizeKey = "LogDetailBodyMaxSize"

	DefaultRetryTimes           = 3
	DefaultTimeout              = 60 * time.Second
	DefaultBillingEnabled       = true
	DefaultLogStorageHours      = 720
	DefaultSaveAllLogDetail     = false
	DefaultLogDetailBodyMaxSize = 10 << 10
)
