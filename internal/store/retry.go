package store

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls how transient store failures are retried. Delays
// grow by Multiplier per attempt, capped at MaxDelay, with ±20% jitter.
type RetryConfig struct {
	MaxRetries int // Attempts after the first
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
	}
}

// withRetry calls fn until it succeeds, returns an error shouldRetry
// rejects, or MaxRetries extra attempts have failed. The last error is
// returned.
func withRetry(ctx context.Context, log *zap.Logger, cfg RetryConfig, op string, fn func(context.Context) error) error {
	log = log.With(zap.String("op", op))

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		switch {
		case err == nil:
			if attempt > 0 {
				log.Info("store call recovered", zap.Int("retries", attempt))
			}
			return nil
		case !shouldRetry(err):
			return err
		case attempt == cfg.MaxRetries:
			log.Error("store call failed", zap.Int("attempts", attempt+1), zap.Error(err))
			return err
		}

		wait := calculateDelay(attempt, cfg)
		log.Warn("store call failed, retrying", zap.Int("attempt", attempt+1), zap.Duration("wait", wait), zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		attempt++
	}
}

// shouldRetry reports whether err may succeed on a later attempt. Unknown
// driver errors are assumed transient; missing rows and cancellation are not.
func shouldRetry(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if storeErr := (*Error)(nil); errors.As(err, &storeErr) {
		return storeErr.Retryable
	}
	return true
}

func calculateDelay(attempt int, cfg RetryConfig) time.Duration {
	base := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	capped := math.Min(base, float64(cfg.MaxDelay))
	return time.Duration(capped * (0.8 + 0.4*rand.Float64()))
}
