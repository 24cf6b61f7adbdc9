package settings

import (
	"maps"
	"sync/atomic"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
)

// Options is an immutable snapshot of runtime-tunable behaviour.
// Holders swap whole snapshots; a loaded snapshot is never mutated.
type Options struct {
	RetryTimes           int
	DefaultTimeout       time.Duration
	TimeoutWithModelType map[models.Mode]time.Duration
	BillingEnabled       bool
	LogStorageHours      int
	SaveAllLogDetail     bool
	LogDetailBodyMaxSize int
}

// Defaults returns the built-in option values.
func Defaults() Options {
	return Options{
		RetryTimes:           DefaultRetryTimes,
		DefaultTimeout:       DefaultTimeout,
		TimeoutWithModelType: map[models.Mode]time.Duration{},
		BillingEnabled:       DefaultBillingEnabled,
		LogStorageHours:      DefaultLogStorageHours,
		SaveAllLogDetail:     DefaultSaveAllLogDetail,
		LogDetailBodyMaxSize: DefaultLogDetailBodyMaxSize,
	}
}

func (o Options) clone() Options {
	out := o
	out.TimeoutWithModelType = maps.Clone(o.TimeoutWithModelType)
	if out.TimeoutWithModelType == nil {
		out.TimeoutWithModelType = map[models.Mode]time.Duration{}
	}
	return out
}

// Holder publishes the current Options snapshot.
type Holder struct {
	current atomic.Pointer[Options]
}

// NewHolder creates a holder publishing initial.
func NewHolder(initial Options) *Holder {
	h := &Holder{}
	h.Store(initial)
	return h
}

// Load returns the current snapshot. Callers must treat it as read-only.
func (h *Holder) Load() *Options {
	if h == nil {
		opts := Defaults()
		return &opts
	}
	if opts := h.current.Load(); opts != nil {
		return opts
	}
	opts := Defaults()
	return &opts
}

// Store publishes a copy of opts as the current snapshot.
func (h *Holder) Store(opts Options) {
	next := opts.clone()
	h.current.Store(&next)
}
