package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// capIncrScript increments a counter only while it is below the cap, so a
// denied request never mutates the window. The expiry is attached on first
// increment only; later calls must not extend the window.
var capIncrScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local cap = tonumber(ARGV[1])
if current >= cap then
  return {current, 0}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {current, 1}
`)

// Redis implements Counter on top of a shared Redis instance.
type Redis struct {
	client redis.UniversalClient
	owned  bool
}

// NewRedis connects to Redis and verifies the connection before returning.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{client: client, owned: true}, nil
}

// NewRedisFromClient wraps an existing client. Close becomes a no-op for the
// underlying connection.
func NewRedisFromClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) IncrementWithCap(ctx context.Context, key string, cap int64, ttl time.Duration) (int64, bool, error) {
	res, err := capIncrScript.Run(ctx, r.client, []string{key}, cap, ttl.Milliseconds()).Slice()
	if err != nil {
		return 0, false, fmt.Errorf("incr %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("incr %s: unexpected script reply", key)
	}

	count, _ := res[0].(int64)
	applied, _ := res[1].(int64)
	return count, applied == 1, nil
}

func (r *Redis) HIncrBy(ctx context.Context, key, field string, delta int64, ttl time.Duration) error {
	pipe := r.client.Pipeline()
	pipe.HIncrBy(ctx, key, field, delta)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hincrby %s %s: %w", key, field, err)
	}
	return nil
}

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return fields, nil
}

func (r *Redis) PushBounded(ctx context.Context, key, value string, cap int64, ttl time.Duration) error {
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, cap-1)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

func (r *Redis) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	entries, err := r.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	return entries, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r.owned {
		return r.client.Close()
	}
	return nil
}
