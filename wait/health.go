package wait

import (
	"context"
	"fmt"
	"time"
)

// HealthStrategy defers readiness to the engine's own healthcheck status:
// healthy is ready, unhealthy is permanent failure, starting or absent is
// not yet ready.
type HealthStrategy struct {
	timing
}

func Health() *HealthStrategy {
	return &HealthStrategy{}
}

func (s *HealthStrategy) WithStartupTimeout(d time.Duration) *HealthStrategy {
	s.timeout = d
	return s
}

func (s *HealthStrategy) WithPollInterval(d time.Duration) *HealthStrategy {
	s.interval = d
	return s
}

func (s *HealthStrategy) Name() string {
	return "health"
}

func (s *HealthStrategy) Probe(ctx context.Context, target Target) (Result, error) {
	state, err := target.State(ctx)
	if err != nil {
		return Result{}, err
	}

	switch state.Health {
	case "healthy":
		return Result{Outcome: Ready}, nil
	case "unhealthy":
		return Result{Outcome: Failed, Reason: "healthcheck reported unhealthy"}, nil
	}

	if !state.Running {
		return Result{
			Outcome: Failed,
			Reason:  fmt.Sprintf("container exited with code %d before becoming healthy", state.ExitCode),
		}, nil
	}
	return Result{Outcome: Waiting}, nil
}
