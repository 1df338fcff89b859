package wait

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/docker/go-connections/nat"
)

// HTTPStrategy is ready once a request to the configured path returns a
// status accepted by the predicate (default: any 2xx or 3xx). Connection
// errors count as not-yet-ready. A non-matching status keeps the poll
// going by default; FailOnStatus marks chosen codes as permanent failures
// instead.
type HTTPStrategy struct {
	timing
	port         nat.Port
	path         string
	statusOK     func(status int) bool
	failStatuses map[int]bool
}

// HTTP builds a strategy issuing GET requests against the given path on
// container port 80/tcp. Use WithPort for anything else.
func HTTP(path string) *HTTPStrategy {
	if path == "" {
		path = "/"
	}
	return &HTTPStrategy{
		port: "80/tcp",
		path: path,
		statusOK: func(status int) bool {
			return status >= 200 && status < 400
		},
		failStatuses: make(map[int]bool),
	}
}

// WithPort selects the container-internal port to probe.
func (s *HTTPStrategy) WithPort(port nat.Port) *HTTPStrategy {
	s.port = port
	return s
}

// WithStatus replaces the readiness predicate over response status codes.
func (s *HTTPStrategy) WithStatus(ok func(status int) bool) *HTTPStrategy {
	s.statusOK = ok
	return s
}

// FailOnStatus treats the given status codes as permanent failure rather
// than something to keep retrying.
func (s *HTTPStrategy) FailOnStatus(codes ...int) *HTTPStrategy {
	for _, code := range codes {
		s.failStatuses[code] = true
	}
	return s
}

func (s *HTTPStrategy) WithStartupTimeout(d time.Duration) *HTTPStrategy {
	s.timeout = d
	return s
}

func (s *HTTPStrategy) WithPollInterval(d time.Duration) *HTTPStrategy {
	s.interval = d
	return s
}

func (s *HTTPStrategy) Name() string {
	return "http"
}

func (s *HTTPStrategy) Probe(ctx context.Context, target Target) (Result, error) {
	state, err := target.State(ctx)
	if err != nil {
		return Result{}, err
	}
	if !state.Running {
		return Result{
			Outcome: Failed,
			Reason:  fmt.Sprintf("container exited with code %d before responding on %s", state.ExitCode, s.path),
		}, nil
	}

	hp, err := target.MappedPort(s.port)
	if err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("http://%s%s", hp, s.path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		// Listener not up yet, or mid-restart.
		return Result{Outcome: Waiting}, nil
	}
	resp.Body.Close()

	switch {
	case s.statusOK(resp.StatusCode):
		return Result{Outcome: Ready}, nil
	case s.failStatuses[resp.StatusCode]:
		return Result{
			Outcome: Failed,
			Reason:  fmt.Sprintf("%s returned status %d, configured as permanent", s.path, resp.StatusCode),
		}, nil
	default:
		return Result{Outcome: Waiting}, nil
	}
}
