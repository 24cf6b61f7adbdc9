package balance

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
	log "github.com/sirupsen/logrus"
)

// Remote provider defaults.
const (
	DefaultCacheTTL                  = 3 * time.Minute
	DefaultCacheJitter               = 5 * time.Second
	DefaultFetchAttempts             = 3
	DefaultFetchRetryDelay           = time.Second
	DefaultNoRealNameUsedAmountLimit = 1.0
	RealNameVerifiedTTL              = 12 * time.Hour
	RealNameUnverifiedTTL            = time.Minute
)

// RemoteConfig configures RemoteProvider. Zero durations and counts take the defaults above;
// a negative jitter or retry delay disables it.
type RemoteConfig struct {
	// Cache holds balances and real-name flags; nil disables caching.
	Cache Cache

	CacheTTL        time.Duration
	CacheJitter     time.Duration
	FetchAttempts   int
	FetchRetryDelay time.Duration

	// CheckRealName enables the real-name gate for groups whose used amount exceeds
	// NoRealNameUsedAmountLimit.
	CheckRealName             bool
	NoRealNameUsedAmountLimit float64
}

// RemoteProvider fetches balances from the account service through a cache.
type RemoteProvider struct {
	service AccountService
	cfg     RemoteConfig
}

var _ Provider = (*RemoteProvider)(nil)

// NewRemoteProvider creates a provider backed by service.
func NewRemoteProvider(service AccountService, cfg RemoteConfig) *RemoteProvider {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheJitter == 0 {
		cfg.CacheJitter = DefaultCacheJitter
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = DefaultFetchAttempts
	}
	if cfg.FetchRetryDelay == 0 {
		cfg.FetchRetryDelay = DefaultFetchRetryDelay
	}
	return &RemoteProvider{service: service, cfg: cfg}
}

// GetRemainingBalance implements Provider. I/O failures are retried up to the configured
// attempt count; a real-name rejection returns immediately.
func (p *RemoteProvider) GetRemainingBalance(ctx context.Context, group *models.Group) (float64, Consumer, error) {
	if group == nil || group.ID == "" {
		return 0, nil, ErrInvalidGroup
	}

	var errs []error
	for attempt := 1; attempt <= p.cfg.FetchAttempts; attempt++ {
		entry, errFetch := p.fetch(ctx, group.ID)
		if errFetch == nil && p.cfg.CheckRealName && group.UsedAmount > p.cfg.NoRealNameUsedAmountLimit {
			verified, errRealName := p.checkRealName(ctx, entry.UserUID)
			switch {
			case errRealName != nil:
				errFetch = errRealName
			case !verified:
				return 0, nil, fmt.Errorf("%w: user %s used %.6f of %.6f", ErrRealNameLimitExceeded, entry.UserUID, group.UsedAmount, p.cfg.NoRealNameUsedAmountLimit)
			}
		}
		if errFetch == nil {
			consumer := &remoteConsumer{service: p.service, cache: p.cfg.Cache, group: group.ID, userUID: entry.UserUID}
			return ToFloat(entry.Balance), consumer, nil
		}

		log.WithError(errFetch).WithFields(log.Fields{
			"group":   group.ID,
			"attempt": attempt,
		}).Warn("balance: fetch attempt failed")
		errs = append(errs, errFetch)

		if attempt < p.cfg.FetchAttempts {
			if errWait := sleepContext(ctx, p.cfg.FetchRetryDelay); errWait != nil {
				errs = append(errs, errWait)
				return 0, nil, &FetchError{Group: group.ID, Attempts: attempt, Err: errors.Join(errs...)}
			}
		}
	}
	return 0, nil, &FetchError{Group: group.ID, Attempts: p.cfg.FetchAttempts, Err: errors.Join(errs...)}
}

func (p *RemoteProvider) fetch(ctx context.Context, group string) (Entry, error) {
	if p.cfg.Cache != nil {
		entry, ok, errGet := p.cfg.Cache.GetBalance(ctx, group)
		if errGet != nil {
			log.WithError(errGet).WithField("group", group).Warn("balance: cache read failed")
		} else if ok && entry.UserUID != "" {
			return entry, nil
		}
	}

	account, errAccount := p.service.GetAccount(ctx, group)
	if errAccount != nil {
		return Entry{}, errAccount
	}
	entry := Entry{UserUID: account.UserUID, Balance: account.Balance}

	if p.cfg.Cache != nil {
		if errSet := p.cfg.Cache.SetBalance(ctx, group, entry, p.jitteredTTL()); errSet != nil {
			log.WithError(errSet).WithField("group", group).Warn("balance: cache write failed")
		}
	}
	return entry, nil
}

func (p *RemoteProvider) jitteredTTL() time.Duration {
	if p.cfg.CacheJitter <= 0 {
		return p.cfg.CacheTTL
	}
	seconds := int64(p.cfg.CacheJitter / time.Second)
	jitter := time.Duration(rand.Int64N(2*seconds+1)-seconds) * time.Second
	return p.cfg.CacheTTL + jitter
}

func (p *RemoteProvider) checkRealName(ctx context.Context, userUID string) (bool, error) {
	if p.cfg.Cache != nil {
		verified, ok, errGet := p.cfg.Cache.GetRealName(ctx, userUID)
		if errGet != nil {
			log.WithError(errGet).WithField("user", userUID).Warn("balance: real name cache read failed")
		} else if ok {
			return verified, nil
		}
	}

	verified, errInfo := p.service.GetRealNameInfo(ctx, userUID)
	if errInfo != nil {
		return false, errInfo
	}

	if p.cfg.Cache != nil {
		ttl := RealNameUnverifiedTTL
		if verified {
			ttl = RealNameVerifiedTTL
		}
		if errSet := p.cfg.Cache.SetRealName(ctx, userUID, verified, ttl); errSet != nil {
			log.WithError(errSet).WithField("user", userUID).Warn("balance: real name cache write failed")
		}
	}
	return verified, nil
}

type remoteConsumer struct {
	service AccountService
	cache   Cache
	group   string
	userUID string
}

// PostConsume charges amount, rounded up to at least MinConsumeAmount scaled units.
// The cache decrement is advisory; only the remote charge decides success.
func (c *remoteConsumer) PostConsume(ctx context.Context, tokenName string, amount float64) (float64, error) {
	scaled := ToScaled(amount)
	if scaled < MinConsumeAmount {
		scaled = MinConsumeAmount
	}

	if c.cache != nil {
		if errDecrease := c.cache.DecreaseBalance(ctx, c.group, scaled); errDecrease != nil {
			log.WithError(errDecrease).WithFields(log.Fields{
				"group":  c.group,
				"amount": scaled,
			}).Warn("balance: cache decrease failed")
		}
	}

	errCharge := c.service.ChargeBilling(ctx, Charge{
		Namespace: c.group,
		AppType:   AppType,
		AppName:   tokenName,
		UserUID:   c.userUID,
		Amount:    scaled,
	})
	if errCharge != nil {
		return 0, &ChargeError{Group: c.group, UserUID: c.userUID, Amount: scaled, Err: errCharge}
	}
	return ToFloat(scaled), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
