package relay

import (
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/mono-ai/aiproxy/internal/settings"
)

// TimeoutPolicy picks the per-attempt deadline for a model mode.
type TimeoutPolicy struct {
	Default time.Duration
	ByMode  map[models.Mode]time.Duration
}

// TimeoutPolicyFrom builds a policy from an options snapshot.
func TimeoutPolicyFrom(opts *settings.Options) TimeoutPolicy {
	if opts == nil {
		return TimeoutPolicy{Default: settings.DefaultTimeout}
	}
	return TimeoutPolicy{Default: opts.DefaultTimeout, ByMode: opts.TimeoutWithModelType}
}

// For returns the timeout of mode, falling back to Default and then to settings.DefaultTimeout.
func (p TimeoutPolicy) For(mode models.Mode) time.Duration {
	if d, ok := p.ByMode[mode]; ok && d > 0 {
		return d
	}
	if p.Default > 0 {
		return p.Default
	}
	return settings.DefaultTimeout
}
