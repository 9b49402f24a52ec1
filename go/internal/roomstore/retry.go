package roomstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// RetryConfig controls the backoff applied to idempotent writes.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// DefaultRetryConfig returns the client write retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    3 * time.Second,
	}
}

// RetryObserver is told when a write starts failing and when it recovers.
type RetryObserver interface {
	WriteRetrying(op, key string, attempt int, err error)
	WriteRecovered(op, key string)
}

// Retrying wraps a Store and retries Set, Update and Delete with
// exponential backoff. Those writes carry absolute values, so applying one
// twice leaves the same document. Create, Read and Subscribe pass through.
type Retrying struct {
	Store
	config   RetryConfig
	clock    clockwork.Clock
	observer RetryObserver
}

// NewRetrying decorates inner. observer may be nil.
func NewRetrying(inner Store, cfg RetryConfig, clock clockwork.Clock, observer RetryObserver) *Retrying {
	return &Retrying{Store: inner, config: cfg, clock: clock, observer: observer}
}

func (r *Retrying) Set(ctx context.Context, key string, doc json.RawMessage) error {
	return r.do(ctx, "set", key, func() error { return r.Store.Set(ctx, key, doc) })
}

func (r *Retrying) Update(ctx context.Context, key string, patch Patch) error {
	return r.do(ctx, "update", key, func() error { return r.Store.Update(ctx, key, patch) })
}

func (r *Retrying) Delete(ctx context.Context, key string) error {
	return r.do(ctx, "delete", key, func() error { return r.Store.Delete(ctx, key) })
}

// permanent errors are answers from the store, not transport failures.
func permanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExists) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *Retrying) backoff(attempt int) time.Duration {
	d := r.config.BaseDelay << (attempt - 1)
	if d <= 0 || d > r.config.MaxDelay {
		return r.config.MaxDelay
	}
	return d
}

func (r *Retrying) do(ctx context.Context, op, key string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(r.backoff(attempt - 1)):
			}
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().Str("op", op).Str("key", key).Int("attempt", attempt).Msg("write succeeded after retry")
				if r.observer != nil {
					r.observer.WriteRecovered(op, key)
				}
			}
			return nil
		}
		if permanent(err) {
			return err
		}

		lastErr = err
		log.Warn().Err(err).Str("op", op).Str("key", key).Int("attempt", attempt).Msg("write failed, retrying")
		if r.observer != nil {
			r.observer.WriteRetrying(op, key, attempt, err)
		}
	}

	return fmt.Errorf("%s %s failed after %d attempts: %w", op, key, r.config.MaxAttempts, lastErr)
}
