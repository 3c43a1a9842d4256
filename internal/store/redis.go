package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisKV backs the session bus with Redis so multiple gateway instances
// (and therefore any tab's return request, whichever instance serves it)
// share the same pending intents and capture locks.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an already-connected Redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// casScript swaps the value only while the key still holds the observed one.
// Running it server-side keeps the read-compare-write atomic across gateway
// instances.
var casScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
  return 1
end
return 0`)

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, sessionTTL).Err()
}

func (r *RedisKV) SetNX(ctx context.Context, key, value string) (bool, error) {
	return r.client.SetNX(ctx, key, value, sessionTTL).Result()
}

func (r *RedisKV) CompareAndSwap(ctx context.Context, key, old, value string) (bool, error) {
	res, err := casScript.Run(ctx, r.client, []string{key}, old, value, sessionTTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (r *RedisKV) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
