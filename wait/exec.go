package wait

import (
	"context"
	"fmt"
	"time"
)

// ExecStrategy is ready once a command run inside the container exits
// with the expected code (default 0). A mismatched exit code counts as
// not-yet-ready unless FailOnMismatch is set.
type ExecStrategy struct {
	timing
	name       string
	cmd        []string
	expectExit int
	failFast   bool
}

// Exec builds a strategy running the given argv inside the container.
func Exec(cmd ...string) *ExecStrategy {
	return &ExecStrategy{name: "exec", cmd: cmd}
}

// Shell builds a strategy running a shell command string via /bin/sh -c.
func Shell(command string) *ExecStrategy {
	return &ExecStrategy{name: "shell", cmd: []string{"/bin/sh", "-c", command}}
}

// ExpectExitCode changes the exit code that counts as ready.
func (s *ExecStrategy) ExpectExitCode(code int) *ExecStrategy {
	s.expectExit = code
	return s
}

// FailOnMismatch makes any non-matching exit code a permanent failure.
func (s *ExecStrategy) FailOnMismatch() *ExecStrategy {
	s.failFast = true
	return s
}

func (s *ExecStrategy) WithStartupTimeout(d time.Duration) *ExecStrategy {
	s.timeout = d
	return s
}

func (s *ExecStrategy) WithPollInterval(d time.Duration) *ExecStrategy {
	s.interval = d
	return s
}

func (s *ExecStrategy) Name() string {
	return s.name
}

func (s *ExecStrategy) Probe(ctx context.Context, target Target) (Result, error) {
	state, err := target.State(ctx)
	if err != nil {
		return Result{}, err
	}
	if !state.Running {
		return Result{
			Outcome: Failed,
			Reason:  fmt.Sprintf("container exited with code %d, cannot exec", state.ExitCode),
		}, nil
	}

	code, _, err := target.Exec(ctx, s.cmd)
	if err != nil {
		return Result{}, err
	}
	if code == s.expectExit {
		return Result{Outcome: Ready}, nil
	}
	if s.failFast {
		return Result{
			Outcome: Failed,
			Reason:  fmt.Sprintf("command exited with %d, expected %d", code, s.expectExit),
		}, nil
	}
	return Result{Outcome: Waiting}, nil
}
