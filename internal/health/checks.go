package health

import (
	"context"
	"fmt"
	"time"
)

// ScanLoopCheck reports unhealthy when the last sweep is older than
// maxAge, or when no sweep happened yet.
func ScanLoopCheck(lastSweep func() time.Time, maxAge time.Duration) Check {
	return func(ctx context.Context) CheckResult {
		last := lastSweep()
		if last.IsZero() {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "scan loop has not swept yet",
			}
		}
		age := time.Since(last)
		details := map[string]any{
			"last_sweep": last,
			"age":        age.String(),
			"max_age":    maxAge.String(),
		}
		if age > maxAge {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "scan loop stalled",
				Details: details,
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: "scan loop running",
			Details: details,
		}
	}
}

// Queue is the part of an event queue the checks look at.
type Queue interface {
	Len() int
	Cap() int
}

// QueueCheck reports degraded while the queue is full, which means new
// events are being dropped because nobody drains it.
func QueueCheck(q Queue) Check {
	return func(ctx context.Context) CheckResult {
		depth, capacity := q.Len(), q.Cap()
		details := map[string]any{"depth": depth, "capacity": capacity}
		if depth >= capacity {
			return CheckResult{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("queue full (%d/%d), events are dropped", depth, capacity),
				Details: details,
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: "queue draining",
			Details: details,
		}
	}
}

// CustomCheck creates a check from a simple function.
func CustomCheck(fn func() error) Check {
	return func(ctx context.Context) CheckResult {
		if err := fn(); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "check failed",
				Error:   err.Error(),
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: "check passed",
		}
	}
}
