// Package retry runs an operation again with exponential backoff until it
// succeeds, fails permanently, or runs out of attempts.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config controls the number of attempts and the wait between them
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// JitterFraction spreads each wait by up to +/- this share of it.
	JitterFraction float64

	OnRetry func(attempt int, err error, wait time.Duration)
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// WithAttempts returns a copy of cfg with n attempts, never fewer than one
func (cfg Config) WithAttempts(n int) Config {
	cfg.MaxAttempts = max(n, 1)
	return cfg
}

// Delay is the wait after the given failed attempt, before jitter
func (cfg Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	factor := max(cfg.BackoffMultiplier, 1)

	d := float64(cfg.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= factor
		if cfg.MaxBackoff > 0 && d >= float64(cfg.MaxBackoff) {
			return cfg.MaxBackoff
		}
	}
	if cfg.MaxBackoff > 0 && time.Duration(d) > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return time.Duration(d)
}

// IsRetryable reports whether err deserves another attempt
type IsRetryable func(error) bool

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so that no further attempt is made, whatever the
// IsRetryable function says
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do is DoWithResult for operations without a result
func Do(ctx context.Context, cfg Config, fn func() error, isRetryable IsRetryable) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	}, isRetryable)
	return err
}

// DoWithResult calls fn until it succeeds. A nil isRetryable retries every
// error that is not Permanent. The last error is returned unwrapped from
// Permanent.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error), isRetryable IsRetryable) (T, error) {
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return result, perm.err
		}
		if attempt >= attempts || (isRetryable != nil && !isRetryable(err)) {
			return result, err
		}

		wait := jitter(cfg.Delay(attempt), cfg.JitterFraction)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return result, serr
		}
	}
}

func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * fraction
	return max(time.Duration(float64(d)+(rand.Float64()*2-1)*spread), 0)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
