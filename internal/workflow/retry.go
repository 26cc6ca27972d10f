package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Starter is the subset of Engine needed to start runs.
type Starter interface {
	Start(targetID string, kind Kind, opts ...StartOption) (string, error)
}

// RetryPolicy controls StartWithRetry. Backoff grows linearly: attempt n
// waits n*Backoff.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is used by callers that have no configured policy.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Backoff: 200 * time.Millisecond}

// StartWithRetry calls s.Start, retrying only while the engine reports
// capacity exhaustion. Any other error, including AlreadyRunningError, is
// returned immediately.
func StartWithRetry(ctx context.Context, s Starter, targetID string, kind Kind, policy RetryPolicy, opts ...StartOption) (string, error) {
	attempts := max(policy.MaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		id, err := s.Start(targetID, kind, opts...)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrCapacityExceeded) {
			return "", err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(time.Duration(attempt) * policy.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("workflow: start %s on %q: %w", kind, targetID, ctx.Err())
		case <-timer.C:
		}
	}
	return "", fmt.Errorf("workflow: start %s on %q after %d attempts: %w", kind, targetID, attempts, lastErr)
}
