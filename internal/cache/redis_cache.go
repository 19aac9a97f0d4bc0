package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisCheckoutReplayCache struct {
	client *redis.Client
}

func NewRedisCheckoutReplayCache(addr string, password string, db int) *RedisCheckoutReplayCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCheckoutReplayCache{client: client}
}

func (c *RedisCheckoutReplayCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCheckoutReplayCache) Close() error {
	return c.client.Close()
}

// Reserve uses SETNX, so exactly one of several concurrent callers wins the key.
func (c *RedisCheckoutReplayCache) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (Claim, bool, error) {
	payload, err := json.Marshal(Claim{Fingerprint: fingerprint})
	if err != nil {
		return Claim{}, false, err
	}

	// the holder can expire between SETNX and GET; one more SETNX settles it
	for attempt := 0; attempt < 2; attempt++ {
		won, err := c.client.SetNX(ctx, keyPrefix+key, payload, ttl).Result()
		if err != nil {
			return Claim{}, false, err
		}
		if won {
			return Claim{}, true, nil
		}

		val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Claim{}, false, err
		}
		var held Claim
		if err := json.Unmarshal(val, &held); err != nil {
			return Claim{}, false, err
		}
		return held, false, nil
	}
	return Claim{}, false, errors.New("idempotency key changed hands during reservation")
}

func (c *RedisCheckoutReplayCache) Complete(ctx context.Context, key string, claim Claim, ttl time.Duration) error {
	payload, err := json.Marshal(claim)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, payload, ttl).Err()
}

func (c *RedisCheckoutReplayCache) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, keyPrefix+key).Err()
}
