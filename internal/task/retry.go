// Package task wraps a Loop run with the outer retry boundary: exponential
// backoff on transient provider/network errors, capped attempts, and a
// best-effort AgentFailed event on the final failure.
package task

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/aperturelabs/deepquery/internal/events"
	"github.com/aperturelabs/deepquery/internal/research"
)

// MaxRetries bounds additional attempts after the first, matching the
// original task's autoretry policy.
const MaxRetries = 2

// BackoffMax is the ceiling on exponential backoff between attempts.
const BackoffMax = 60 * time.Second

// backoffUnit scales backoffDelay; tests shrink it to avoid real waits.
var backoffUnit = time.Second

// RunWithRetry invokes fn up to MaxRetries+1 times, retrying only on
// transient errors (network errors, research.ProviderTransientError,
// research.ToolTransientError) with exponential backoff capped at
// BackoffMax. On the final failure it emits events.EventAgentFailed through
// bus, guarded so a publish panic never masks the original error. bus may
// be nil, in which case no event is emitted.
func RunWithRetry[T any](ctx context.Context, bus *events.Bus, phase string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		attempts++
		result, lastErr = fn(ctx)
		if lastErr == nil {
			return result, nil
		}
		if !isRetryable(lastErr) {
			break
		}
		if attempt == MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = MaxRetries + 1 // stop retrying
		case <-time.After(backoffDelay(attempt)):
		}
	}

	emitAgentFailed(bus, phase, attempts, MaxRetries, lastErr, isRetryable(lastErr))
	return result, lastErr
}

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * backoffUnit
	if d > BackoffMax {
		d = BackoffMax
	}
	return d
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var transientProvider *research.ProviderTransientError
	if errors.As(err, &transientProvider) {
		return true
	}
	var transientTool *research.ToolTransientError
	if errors.As(err, &transientTool) {
		return true
	}
	return false
}

// emitAgentFailed publishes an AgentFailed event, recovering from any panic
// in the publish path so a logging failure never masks the original error.
func emitAgentFailed(bus *events.Bus, phase string, attempt, maxRetry int, err error, retryable bool) {
	if bus == nil || err == nil {
		return
	}
	defer func() { _ = recover() }()

	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	bus.Publish(events.Event{
		Type: events.EventAgentFailed,
		Data: events.AgentFailedData{
			Phase:     phase,
			Attempt:   attempt,
			MaxRetry:  maxRetry,
			Err:       msg,
			Retryable: retryable,
		},
	})
}

// ErrPhaseFailed wraps a phase name into the final error for caller clarity.
func ErrPhaseFailed(phase string, err error) error {
	return fmt.Errorf("phase %s failed after retries: %w", phase, err)
}
