package balance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisCache is a Cache backed by Redis hashes, shared across gateway instances.
type RedisCache struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ Cache = (*RedisCache)(nil)

// RedisOption configures RedisCache.
type RedisOption func(*RedisCache)

// WithKeyPrefix sets the Redis key prefix (default "sealos").
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisCache) { c.keyPrefix = prefix }
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client goredis.Cmdable, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client:    client,
		keyPrefix: "sealos",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) balanceKey(group string) string {
	return fmt.Sprintf("%s:balance:%s", c.keyPrefix, group)
}

func (c *RedisCache) realNameKey(userUID string) string {
	return fmt.Sprintf("%s:realName:%s", c.keyPrefix, userUID)
}

// decreaseScript subtracts ARGV[1] from field b only when the entry exists.
// KEYS[1] = balance hash key
var decreaseScript = goredis.NewScript(`
local balance = redis.call('HGET', KEYS[1], 'b')
if balance then
  redis.call('HINCRBY', KEYS[1], 'b', -tonumber(ARGV[1]))
end
return redis.status_reply('OK')
`)

// GetBalance implements Cache.
func (c *RedisCache) GetBalance(ctx context.Context, group string) (Entry, bool, error) {
	fields, err := c.client.HGetAll(ctx, c.balanceKey(group)).Result()
	if err != nil {
		return Entry{}, false, err
	}
	userUID, okU := fields["u"]
	raw, okB := fields["b"]
	if !okU || !okB {
		return Entry{}, false, nil
	}
	balance, errParse := strconv.ParseInt(raw, 10, 64)
	if errParse != nil {
		return Entry{}, false, fmt.Errorf("balance: parse cached balance %q: %w", raw, errParse)
	}
	return Entry{UserUID: userUID, Balance: balance}, true, nil
}

// SetBalance implements Cache.
func (c *RedisCache) SetBalance(ctx context.Context, group string, entry Entry, ttl time.Duration) error {
	key := c.balanceKey(group)
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, "u", entry.UserUID, "b", entry.Balance)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// DecreaseBalance implements Cache.
func (c *RedisCache) DecreaseBalance(ctx context.Context, group string, amount int64) error {
	return decreaseScript.Run(ctx, c.client, []string{c.balanceKey(group)}, amount).Err()
}

// GetRealName implements Cache.
func (c *RedisCache) GetRealName(ctx context.Context, userUID string) (bool, bool, error) {
	raw, err := c.client.Get(ctx, c.realNameKey(userUID)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	verified, errParse := strconv.ParseBool(raw)
	if errParse != nil {
		return false, false, nil
	}
	return verified, true, nil
}

// SetRealName implements Cache.
func (c *RedisCache) SetRealName(ctx context.Context, userUID string, verified bool, ttl time.Duration) error {
	return c.client.Set(ctx, c.realNameKey(userUID), strconv.FormatBool(verified), ttl).Err()
}
