package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions configures the redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Retry    RetryConfig
	// KeyPrefix namespaces the per-browser hashes. Default: "pv:".
	KeyPrefix string
}

// Redis keeps one hash per browser. Every write renews the hash's expiry,
// so idle browsers age out on their own.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	retry  RetryConfig
	prefix string
	log    *zap.Logger
}

// OpenRedis connects to redis and checks the connection.
func OpenRedis(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*Redis, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis store: addr is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})
	r := NewRedis(rdb, opts, logger)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := withRetry(pingCtx, r.log, "ping", r.retry, func(ctx context.Context) (string, error) {
		return rdb.Ping(ctx).Result()
	}); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis store: ping: %w", err)
	}
	return r, nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, opts RedisOptions, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "pv:"
	}
	return &Redis{
		rdb:    rdb,
		ttl:    opts.TTL,
		retry:  opts.Retry,
		prefix: prefix,
		log:    logger.With(zap.String("driver", "redis")),
	}
}

func (r *Redis) hash(browser string) string { return r.prefix + browser }

func (r *Redis) Get(ctx context.Context, browser, key string) (string, bool, error) {
	v, err := withRetry(ctx, r.log, "get", r.retry, func(ctx context.Context) (string, error) {
		return r.rdb.HGet(ctx, r.hash(browser), key).Result()
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis store: get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, browser, key, value string) error {
	h := r.hash(browser)
	_, err := withRetry(ctx, r.log, "set", r.retry, func(ctx context.Context) ([]redis.Cmder, error) {
		return r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, h, key, value)
			if r.ttl > 0 {
				pipe.Expire(ctx, h, r.ttl)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("redis store: set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, browser string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := withRetry(ctx, r.log, "delete", r.retry, func(ctx context.Context) (int64, error) {
		return r.rdb.HDel(ctx, r.hash(browser), keys...).Result()
	})
	if err != nil {
		return fmt.Errorf("redis store: delete: %w", err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, browser, prefix string) ([]string, error) {
	all, err := withRetry(ctx, r.log, "keys", r.retry, func(ctx context.Context) ([]string, error) {
		return r.rdb.HKeys(ctx, r.hash(browser)).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("redis store: keys: %w", err)
	}
	var out []string
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
