// Package storage provides durable key/value backends for viewer sessions.
//
// Every backend namespaces its data by browser id, so one shared database
// serves many browsers the way each browser's local storage would. Scope
// binds a backend to one browser and yields a state.Store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/areumknits/patternview/internal/config"
	"github.com/areumknits/patternview/internal/state"
)

// Backend is a browser-namespaced key/value store.
type Backend interface {
	Get(ctx context.Context, browser, key string) (string, bool, error)
	Set(ctx context.Context, browser, key, value string) error
	Delete(ctx context.Context, browser string, keys ...string) error
	Keys(ctx context.Context, browser, prefix string) ([]string, error)
	Close() error
}

// ErrNoBrowser is returned when a scoped store has no browser id.
var ErrNoBrowser = errors.New("storage: browser id is required")

// Scope returns the store of one browser.
func Scope(b Backend, browser string) state.Store {
	return scoped{b: b, browser: browser}
}

type scoped struct {
	b       Backend
	browser string
}

func (s scoped) Get(ctx context.Context, key string) (string, bool, error) {
	if s.browser == "" {
		return "", false, ErrNoBrowser
	}
	return s.b.Get(ctx, s.browser, key)
}

func (s scoped) Set(ctx context.Context, key, value string) error {
	if s.browser == "" {
		return ErrNoBrowser
	}
	return s.b.Set(ctx, s.browser, key, value)
}

func (s scoped) Delete(ctx context.Context, keys ...string) error {
	if s.browser == "" {
		return ErrNoBrowser
	}
	return s.b.Delete(ctx, s.browser, keys...)
}

func (s scoped) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.browser == "" {
		return nil, ErrNoBrowser
	}
	return s.b.Keys(ctx, s.browser, prefix)
}

// Open builds the backend selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("storage")
	retry := RetryConfig{
		MaxRetries: cfg.GetRetryMaxRetries(),
		BaseDelay:  cfg.GetRetryBaseDelay(),
		MaxDelay:   cfg.GetRetryMaxDelay(),
		Multiplier: 2.0,
	}

	switch cfg.GetDriver() {
	case config.DriverMemory:
		return NewMemory(cfg.GetTTL()), nil
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.GetDSN(), cfg.GetTTL(), logger)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.GetDSN(), cfg.GetTTL(), retry, logger)
	case config.DriverRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.GetRedisPassword(),
			DB:       cfg.Redis.DB,
			TTL:      cfg.GetTTL(),
			Retry:    retry,
		}, logger)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}

// escapeLike escapes LIKE wildcards so a prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
