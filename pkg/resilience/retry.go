package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls exponential backoff. Zero values take defaults.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable reports whether a failure is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

func (c RetryConfig) retryable(err error) bool {
	return c.Retryable == nil || c.Retryable(err)
}

// Retry calls fn until it succeeds. It gives up early on a non-retryable
// error or when ctx is done, and otherwise after MaxAttempts calls.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		err := fn()
		switch {
		case err == nil:
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		case !cfg.retryable(err):
			logger.Warn("operation failed permanently", "attempt", attempt, "error", err)
			return err
		case attempt >= cfg.MaxAttempts:
			return fmt.Errorf("%s: gave up after %d attempts: %w", name, attempt, err)
		case ctx.Err() != nil:
			return fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}

		delay := computeDelay(attempt, cfg)
		logger.Warn("attempt failed", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "next_delay", delay, "error", err)
		if timer == nil {
			timer = time.NewTimer(delay)
		} else {
			timer.Reset(delay)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			return fmt.Errorf("%s: retry aborted during backoff: %w", name, ctx.Err())
		}
	}
}

// computeDelay returns the wait after the given 1-based attempt:
// InitialDelay * Multiplier^(attempt-1), jittered by ±JitterFraction and
// capped at MaxDelay.
func computeDelay(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	d *= 1 + cfg.JitterFraction*(2*rand.Float64()-1)
	switch {
	case d > float64(cfg.MaxDelay):
		return cfg.MaxDelay
	case d <= 0:
		return cfg.InitialDelay
	}
	return time.Duration(d)
}
