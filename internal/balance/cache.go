package balance

import (
	"context"
	"sync"
	"time"
)

// Entry is a cached group balance.
type Entry struct {
	UserUID string
	Balance int64 // Scaled balance.
}

// Cache stores group balances and real-name flags with TTL.
// Implementations must apply each mutation atomically per key.
type Cache interface {
	GetBalance(ctx context.Context, group string) (Entry, bool, error)
	SetBalance(ctx context.Context, group string, entry Entry, ttl time.Duration) error
	// DecreaseBalance subtracts amount from a cached balance; a missing entry is left missing.
	DecreaseBalance(ctx context.Context, group string, amount int64) error
	GetRealName(ctx context.Context, userUID string) (verified bool, found bool, err error)
	SetRealName(ctx context.Context, userUID string, verified bool, ttl time.Duration) error
}

type memoryBalance struct {
	entry     Entry
	expiresAt time.Time
}

type memoryRealName struct {
	verified  bool
	expiresAt time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu        sync.Mutex
	balances  map[string]memoryBalance
	realNames map[string]memoryRealName
	now       func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		balances:  make(map[string]memoryBalance),
		realNames: make(map[string]memoryRealName),
		now:       time.Now,
	}
}

// GetBalance implements Cache.
func (c *MemoryCache) GetBalance(_ context.Context, group string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.balances[group]
	if !ok {
		return Entry{}, false, nil
	}
	if !c.now().Before(item.expiresAt) {
		delete(c.balances, group)
		return Entry{}, false, nil
	}
	return item.entry, true, nil
}

// SetBalance implements Cache.
func (c *MemoryCache) SetBalance(_ context.Context, group string, entry Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[group] = memoryBalance{entry: entry, expiresAt: c.now().Add(ttl)}
	return nil
}

// DecreaseBalance implements Cache.
func (c *MemoryCache) DecreaseBalance(_ context.Context, group string, amount int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.balances[group]
	if !ok || !c.now().Before(item.expiresAt) {
		return nil
	}
	item.entry.Balance -= amount
	c.balances[group] = item
	return nil
}

// GetRealName implements Cache.
func (c *MemoryCache) GetRealName(_ context.Context, userUID string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.realNames[userUID]
	if !ok {
		return false, false, nil
	}
	if !c.now().Before(item.expiresAt) {
		delete(c.realNames, userUID)
		return false, false, nil
	}
	return item.verified, true, nil
}

// SetRealName implements Cache.
func (c *MemoryCache) SetRealName(_ context.Context, userUID string, verified bool, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.realNames[userUID] = memoryRealName{verified: verified, expiresAt: c.now().Add(ttl)}
	return nil
}
