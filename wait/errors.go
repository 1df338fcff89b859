package wait

import (
	"fmt"
	"time"
)

// TimeoutError reports that the startup deadline elapsed while the target
// was still not ready. Callers may retry the whole container start.
type TimeoutError struct {
	Strategy string
	Target   string
	Timeout  time.Duration
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s wait for container %s timed out after %s (deadline %s)",
		e.Strategy, e.Target, e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// PermanentError reports that the target can never become ready, for
// example because its process exited. It is surfaced immediately and not
// retried.
type PermanentError struct {
	Strategy string
	Target   string
	Reason   string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s wait for container %s failed permanently: %s",
		e.Strategy, e.Target, e.Reason)
}

// InfrastructureError reports that a probe could not observe the target at
// all — the engine became unreachable or the probe call itself broke.
// Distinct from TimeoutError so callers can back off differently.
type InfrastructureError struct {
	Strategy string
	Target   string
	Err      error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s wait for container %s: engine unreachable: %v",
		e.Strategy, e.Target, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}
