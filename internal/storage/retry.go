package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (default: 3)
	BaseDelay  time.Duration // Initial delay between retries (default: 100ms)
	MaxDelay   time.Duration // Maximum delay between retries (default: 5s)
	Multiplier float64       // Delay multiplier for exponential backoff (default: 2.0)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
	}
}

// RetryError reports an operation that failed on every attempt.
type RetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// withRetry runs fn until it succeeds, fails with a non-transient error, or
// runs out of attempts.
func withRetry[T any](ctx context.Context, log *zap.Logger, op string, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// Check context before each attempt
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Debug("succeeded after retry", zap.String("op", op), zap.Int("attempt", attempt+1))
			}
			return result, nil
		}

		lastErr = err
		if !shouldRetry(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxRetries {
			delay := calculateDelay(attempt, cfg)
			log.Warn("attempt failed, retrying",
				zap.String("op", op), zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay), zap.Error(err))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, &RetryError{Op: op, Attempts: cfg.MaxRetries + 1, Err: lastErr}
}

// shouldRetry determines if an error is transient
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Check for common transient error messages
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"eof",
		"too many connections",
		"loading", // redis still loading its dataset
		"try again",
	}
	for _, p := range transientPatterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// calculateDelay computes the delay for the given attempt using exponential backoff with jitter
func calculateDelay(attempt int, cfg RetryConfig) time.Duration {
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	// Exponential backoff: baseDelay * multiplier^attempt
	delay := float64(cfg.BaseDelay) * math.Pow(mult, float64(attempt))

	// Cap at max delay
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	// Add jitter: randomize between 80% and 120% of delay
	jitter := 0.8 + rand.Float64()*0.4
	delay *= jitter

	return time.Duration(delay)
}
