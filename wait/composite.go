package wait

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// AllStrategy combines strategies: the composite is ready only once every
// sub-strategy reports ready on the same poll. The composite's own startup
// timeout governs the wait; sub-strategy timeouts are ignored.
type AllStrategy struct {
	timing
	strategies []Strategy
}

func All(strategies ...Strategy) *AllStrategy {
	return &AllStrategy{strategies: strategies}
}

func (s *AllStrategy) WithStartupTimeout(d time.Duration) *AllStrategy {
	s.timeout = d
	return s
}

func (s *AllStrategy) WithPollInterval(d time.Duration) *AllStrategy {
	s.interval = d
	return s
}

func (s *AllStrategy) Name() string {
	names := make([]string, len(s.strategies))
	for i, sub := range s.strategies {
		names[i] = sub.Name()
	}
	return "all(" + strings.Join(names, ",") + ")"
}

func (s *AllStrategy) Probe(ctx context.Context, target Target) (Result, error) {
	results := make([]Result, len(s.strategies))

	g, probeCtx := errgroup.WithContext(ctx)
	for i, sub := range s.strategies {
		g.Go(func() error {
			res, err := sub.Probe(probeCtx, target)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	allReady := true
	for _, res := range results {
		switch res.Outcome {
		case Failed:
			return res, nil
		case Waiting:
			allReady = false
		}
	}
	if allReady {
		return Result{Outcome: Ready}, nil
	}
	return Result{Outcome: Waiting}, nil
}
