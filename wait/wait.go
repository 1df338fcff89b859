// Package wait turns "is this container ready" into a bounded poll loop.
//
// A Strategy classifies each probe of a running container as ready, not
// yet ready, or permanently failed; UntilReady drives the strategy against
// a Target under the strategy's own deadline. Probes that cannot even
// reach the engine surface as infrastructure errors, never as timeouts,
// so callers can apply different backoff policies to the two.
package wait

import (
	"context"
	"errors"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/sethvargo/go-retry"

	"github.com/p-arndt/tugboat/engine"
)

// Outcome is the three-way classification every probe must produce.
type Outcome int

const (
	// Waiting means the target is not ready yet; keep polling.
	Waiting Outcome = iota
	// Ready means the target can receive traffic.
	Ready
	// Failed means the target can never become ready; stop immediately.
	Failed
)

// Result carries a probe's classification plus, for Failed, the reason.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Target is the thing being polled: a running container's identity plus
// its resolved connection metadata. engine.Target implements it.
type Target interface {
	ID() string
	Host() string
	MappedPort(port nat.Port) (engine.HostPort, error)
	State(ctx context.Context) (engine.ContainerState, error)
	Logs(ctx context.Context) (string, error)
	Exec(ctx context.Context, cmd []string) (int, string, error)
}

// Strategy is one readiness condition. Probe must classify any observation
// into a Result; a non-nil error means the observation itself failed
// (engine unreachable, invalid configuration), not that the target is
// unready.
type Strategy interface {
	Name() string
	Timeout() time.Duration
	Interval() time.Duration
	Probe(ctx context.Context, target Target) (Result, error)
}

const (
	DefaultStartupTimeout = 60 * time.Second
	DefaultPollInterval   = 100 * time.Millisecond
)

// timing supplies the deadline and poll interval shared by all strategies.
type timing struct {
	timeout  time.Duration
	interval time.Duration
}

func (t timing) Timeout() time.Duration {
	if t.timeout == 0 {
		return DefaultStartupTimeout
	}
	return t.timeout
}

func (t timing) Interval() time.Duration {
	if t.interval == 0 {
		return DefaultPollInterval
	}
	return t.interval
}

var errNotYet = errors.New("not ready yet")

// UntilReady polls the strategy against the target until it reports ready,
// reports permanent failure, or the strategy's startup timeout elapses.
// A probe that is ready on the first poll returns without sleeping.
// Cancelling ctx aborts the wait with the context's error.
func UntilReady(ctx context.Context, target Target, strategy Strategy) error {
	start := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, strategy.Timeout())
	defer cancel()

	backoff := retry.NewConstant(strategy.Interval())
	err := retry.Do(waitCtx, backoff, func(probeCtx context.Context) error {
		res, probeErr := strategy.Probe(probeCtx, target)
		if probeErr != nil {
			if errors.Is(probeErr, engine.ErrPortNotExposed) {
				// Caller bug, not an engine fault. Fail fast unwrapped.
				return probeErr
			}
			return &InfrastructureError{
				Strategy: strategy.Name(),
				Target:   target.ID(),
				Err:      probeErr,
			}
		}
		switch res.Outcome {
		case Ready:
			return nil
		case Failed:
			return &PermanentError{
				Strategy: strategy.Name(),
				Target:   target.ID(),
				Reason:   res.Reason,
			}
		default:
			return retry.RetryableError(errNotYet)
		}
	})
	if err == nil {
		return nil
	}
	// Our own deadline fired; the caller's context is still live.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &TimeoutError{
			Strategy: strategy.Name(),
			Target:   target.ID(),
			Timeout:  strategy.Timeout(),
			Elapsed:  time.Since(start),
		}
	}
	return err
}
