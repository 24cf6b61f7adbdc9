//go:build integration

package balance

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis not available at %s: %v", addr, err)
	}
	prefix := "test:" + t.Name()
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		_ = client.Close()
	})
	return NewRedisCache(client, WithKeyPrefix(prefix))
}

func TestRedisCacheBalance(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	if _, ok, err := cache.GetBalance(ctx, "ns-a"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := cache.SetBalance(ctx, "ns-a", Entry{UserUID: "user-1", Balance: 1000}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cache.DecreaseBalance(ctx, "ns-a", 2); err != nil {
				t.Errorf("decrease: %v", err)
			}
		}()
	}
	wg.Wait()

	entry, ok, err := cache.GetBalance(ctx, "ns-a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if entry.UserUID != "user-1" || entry.Balance != 900 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestRedisCacheDecreaseMissingKey(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()
	if err := cache.DecreaseBalance(ctx, "ns-missing", 5); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if _, ok, _ := cache.GetBalance(ctx, "ns-missing"); ok {
		t.Fatalf("decrease must not create an entry")
	}
}

func TestRedisCacheRealName(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()
	if err := cache.SetRealName(ctx, "user-1", true, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	verified, ok, err := cache.GetRealName(ctx, "user-1")
	if err != nil || !ok || !verified {
		t.Fatalf("verified=%v ok=%v err=%v", verified, ok, err)
	}
}
