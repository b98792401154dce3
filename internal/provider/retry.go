package provider

import (
	"context"
	"time"

	"github.com/quantbots/industrymapapi/pkg/utils/zaplogger"
)

// RetryConfig bounds the per-page retry loop used when fetching constituents.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are configured
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
	}
}

// backoffDelay returns BaseDelay * 2^attempt, capped at MaxDelay
func (rc RetryConfig) backoffDelay(attempt int) time.Duration {
	delay := rc.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= rc.MaxDelay {
			return rc.MaxDelay
		}
	}
	if delay > rc.MaxDelay {
		return rc.MaxDelay
	}
	return delay
}

// FetchAllPages drains every page of one leaf's constituents from an adapter.
// Transient page failures are retried with exponential backoff up to
// rc.MaxRetries; other errors are returned as-is for the engine to classify.
func FetchAllPages(ctx context.Context, a Adapter, leafCode string, rc RetryConfig) ([]Constituent, error) {
	var all []Constituent

	for page := 1; ; page++ {
		constituents, hasMore, err := fetchPageWithRetry(ctx, a, leafCode, page, rc)
		if err != nil {
			return nil, err
		}
		all = append(all, constituents...)
		if !hasMore {
			break
		}
	}

	return all, nil
}

func fetchPageWithRetry(ctx context.Context, a Adapter, leafCode string, page int, rc RetryConfig) ([]Constituent, bool, error) {
	var lastErr error

	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, rc.backoffDelay(attempt-1)); err != nil {
				return nil, false, err
			}
			zaplogger.Debug("retrying provider page", zaplogger.Fields{
				"source":  a.Name(),
				"leaf":    leafCode,
				"page":    page,
				"attempt": attempt,
			})
		}

		constituents, hasMore, err := a.FetchConstituents(ctx, leafCode, page)
		if err == nil {
			return constituents, hasMore, nil
		}
		if !IsTransient(err) {
			return nil, false, err
		}
		lastErr = err
	}

	return nil, false, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
