// Package balance fetches and charges group balances held by the remote account service.
package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// PrecisionFactor scales float amounts into the account service's integer unit.
	PrecisionFactor int64 = 1_000_000
	// MinConsumeAmount is the smallest scaled amount a consumption charges.
	MinConsumeAmount int64 = 1
	// AppType tags charges posted by the gateway.
	AppType = "LLM-TOKEN"
)

var precision = decimal.NewFromInt(PrecisionFactor)

var (
	// ErrBalanceFetch marks a balance that could not be fetched after all attempts.
	ErrBalanceFetch = errors.New("balance: fetch failed")
	// ErrRealNameLimitExceeded marks an unverified user past the free usage threshold.
	ErrRealNameLimitExceeded = errors.New("balance: real name verification required")
	// ErrBillingPost marks a charge the account service did not record.
	ErrBillingPost = errors.New("balance: charge not recorded")
	// ErrInvalidGroup marks a missing group or group id.
	ErrInvalidGroup = errors.New("balance: group id is empty")
)

// Provider fetches a group's remaining balance together with a handle to charge it.
type Provider interface {
	GetRemainingBalance(ctx context.Context, group *models.Group) (float64, Consumer, error)
}

// Consumer charges the group and user bound at fetch time.
// PostConsume returns the amount actually charged.
type Consumer interface {
	PostConsume(ctx context.Context, tokenName string, amount float64) (float64, error)
}

// FetchError reports a balance fetch that failed on every attempt.
type FetchError struct {
	Group    string
	Attempts int
	Err      error // Errors of all attempts, joined.
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("balance: fetch for group %s failed after %d attempts: %v", e.Group, e.Attempts, e.Err)
}

// Unwrap returns the joined attempt errors.
func (e *FetchError) Unwrap() error { return e.Err }

// Is matches ErrBalanceFetch.
func (e *FetchError) Is(target error) bool { return target == ErrBalanceFetch }

// ChargeError reports a charge that was computed but not durably recorded.
type ChargeError struct {
	Group   string
	UserUID string
	Amount  int64 // Scaled amount.
	Err     error
}

func (e *ChargeError) Error() string {
	return fmt.Sprintf("balance: charge of %d for group %s (user %s) failed: %v", e.Amount, e.Group, e.UserUID, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ChargeError) Unwrap() error { return e.Err }

// Is matches ErrBillingPost.
func (e *ChargeError) Is(target error) bool { return target == ErrBillingPost }

// ToFloat converts a scaled integer into a float rounded half-up to six decimals.
func ToFloat(scaled int64) float64 {
	return decimal.NewFromInt(scaled).DivRound(precision, 6).InexactFloat64()
}

// ToScaled converts a float amount into the scaled integer unit, rounding up.
func ToScaled(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(precision).Ceil().IntPart()
}
