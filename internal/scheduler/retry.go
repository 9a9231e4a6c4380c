package scheduler

import (
	"fmt"
	"time"
)

// RetryError asks the scheduler to run a one-shot job again after Delay
type RetryError struct {
	Delay  time.Duration
	Reason string
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry in %v: %s", e.Delay, e.Reason)
}

// RetryAfter builds a RetryError. Handlers return it when the job cannot
// run yet but should not be dropped.
func RetryAfter(d time.Duration, reason string) error {
	return &RetryError{Delay: d, Reason: reason}
}
