package wait

import (
	"context"
	"net"
	"time"

	"github.com/docker/go-connections/nat"
)

// TCPStrategy is ready once a TCP connection succeeds to every listed
// container port's resolved host address. A refused connection counts as
// not-yet-ready: the process may still be starting its listener.
type TCPStrategy struct {
	timing
	ports []nat.Port
}

// TCP builds a strategy dialing each of the given container-internal
// ports (e.g. "5432/tcp").
func TCP(ports ...nat.Port) *TCPStrategy {
	return &TCPStrategy{ports: ports}
}

func (s *TCPStrategy) WithStartupTimeout(d time.Duration) *TCPStrategy {
	s.timeout = d
	return s
}

func (s *TCPStrategy) WithPollInterval(d time.Duration) *TCPStrategy {
	s.interval = d
	return s
}

func (s *TCPStrategy) Name() string {
	return "tcp"
}

func (s *TCPStrategy) Probe(ctx context.Context, target Target) (Result, error) {
	state, err := target.State(ctx)
	if err != nil {
		return Result{}, err
	}
	if !state.Running {
		return Result{
			Outcome: Failed,
			Reason:  "container exited before its ports became reachable",
		}, nil
	}

	var d net.Dialer
	for _, port := range s.ports {
		hp, err := target.MappedPort(port)
		if err != nil {
			return Result{}, err
		}
		conn, err := d.DialContext(ctx, "tcp", hp.String())
		if err != nil {
			return Result{Outcome: Waiting}, nil
		}
		conn.Close()
	}
	return Result{Outcome: Ready}, nil
}
