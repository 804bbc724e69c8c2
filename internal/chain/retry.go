package chain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rewardhub/rewardhub/internal/logging"
)

// RetryPolicy holds configuration for retry with exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the delay after the first failed attempt.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases.
	Multiplier float64
}

// DefaultRetryPolicy returns the process-wide retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Delay returns the backoff delay after failed attempt k (0-indexed):
// min(InitialDelay * Multiplier^k, MaxDelay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// transientSignatures are the error message fragments that identify a fault as
// worth retrying. Connection-level faults plus two chain conditions that arise
// from concurrent submissions racing on nonce allocation.
var transientSignatures = []string{
	"econnreset",
	"econnrefused",
	"etimedout",
	"enotfound",
	"network error",
	"connection error",
	"socket hang up",
	"timeout",
	"nonce too low",
	"replacement fee too low",
}

// IsTransient reports whether the error matches a known transient-fault
// signature. Everything else is fatal and must propagate on first occurrence.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// RunWithRetry executes fn up to policy.MaxAttempts times, sleeping with
// exponential backoff between attempts. Non-transient errors propagate
// immediately. Exhausting the budget yields a composite error naming the
// operation, the attempt count and the last underlying failure.
//
// onRetry, if non-nil, is invoked once per retry (not per attempt) so callers
// can count absorbed failures.
func RunWithRetry[T any](ctx context.Context, policy RetryPolicy, operation string, fn func() (T, error), onRetry func()) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("operation succeeded after retry",
					logging.Operation(operation),
					"attempt", attempt+1)
			}
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			logging.Error("operation failed with non-retryable error",
				logging.Operation(operation),
				logging.Err(err))
			return zero, err
		}

		if attempt < policy.MaxAttempts-1 {
			delay := policy.Delay(attempt)
			logging.Warn("operation failed, retrying",
				logging.Operation(operation),
				logging.Err(err),
				"attempt", attempt+1,
				"max_attempts", policy.MaxAttempts,
				"delay", delay.String())
			if onRetry != nil {
				onRetry()
			}
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("%s canceled during retry: %w", operation, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	logging.Error("operation exhausted retry budget",
		logging.Operation(operation),
		"attempts", policy.MaxAttempts,
		logging.Err(lastErr))
	return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, policy.MaxAttempts, lastErr)
}
