package backend

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go-insights-pipeline/internal/model"
)

// DefaultRetryConfig performs a single attempt
var DefaultRetryConfig = model.RetryConfig{
	MaxAttempts:       1,
	InitialDelay:      500 * time.Millisecond,
	MaxDelay:          10 * time.Second,
	BackoffMultiplier: 2.0,
}

// RetryPolicy decides whether and when a failed call is attempted again
type RetryPolicy struct {
	Config model.RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy fills zero fields of cfg from DefaultRetryConfig
func NewRetryPolicy(cfg model.RetryConfig) RetryPolicy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = DefaultRetryConfig.BackoffMultiplier
	}
	return RetryPolicy{Config: cfg, sleep: sleepContext}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Config.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts || !Retryable(err) {
			return err
		}
		if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
			return err
		}
	}
	return err
}

// Delay returns the wait before the attempt following attempt n, using
// exponential backoff capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	cfg := p.Config
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1)))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter {
		delay += time.Duration(float64(delay) * 0.1 * (rand.Float64() - 0.5))
	}
	return delay
}

// Retryable reports whether err is worth another attempt: transport
// failures, throttling and server errors are; client errors are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	var decodeErr *DecodeError
	return !errors.As(err, &decodeErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
