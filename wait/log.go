package wait

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// LogStrategy is ready once a regular expression matches the container's
// accumulated output a configured number of times.
type LogStrategy struct {
	timing
	pattern     *regexp.Regexp
	occurrences int
}

// Log builds a strategy waiting for the given pattern (a Go regular
// expression) to appear in the container output. Panics on an invalid
// pattern, mirroring regexp.MustCompile.
func Log(pattern string) *LogStrategy {
	return &LogStrategy{
		pattern:     regexp.MustCompile(pattern),
		occurrences: 1,
	}
}

// Occurrences requires the pattern to match at least n times.
func (s *LogStrategy) Occurrences(n int) *LogStrategy {
	if n > 0 {
		s.occurrences = n
	}
	return s
}

func (s *LogStrategy) WithStartupTimeout(d time.Duration) *LogStrategy {
	s.timeout = d
	return s
}

func (s *LogStrategy) WithPollInterval(d time.Duration) *LogStrategy {
	s.interval = d
	return s
}

func (s *LogStrategy) Name() string {
	return "log"
}

func (s *LogStrategy) Probe(ctx context.Context, target Target) (Result, error) {
	logs, err := target.Logs(ctx)
	if err != nil {
		return Result{}, err
	}

	matches := s.pattern.FindAllStringIndex(logs, s.occurrences)
	if len(matches) >= s.occurrences {
		return Result{Outcome: Ready}, nil
	}

	state, err := target.State(ctx)
	if err != nil {
		return Result{}, err
	}
	if !state.Running {
		return Result{
			Outcome: Failed,
			Reason: fmt.Sprintf("container exited with code %d before log pattern %q matched %d time(s)",
				state.ExitCode, s.pattern, s.occurrences),
		}, nil
	}
	return Result{Outcome: Waiting}, nil
}
