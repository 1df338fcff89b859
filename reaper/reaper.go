// Package reaper guarantees that every resource a session creates is
// eventually removed, even if the owning process crashes before any
// teardown runs.
//
// The guarantee comes from an out-of-process daemon (cmd/reaperd) running
// in its own container. The client registers a label filter over a
// persistent TCP connection and then simply holds the connection for the
// life of the process; the daemon deletes everything matching the filter
// as soon as the connection closes, which the operating system does for
// us on any kind of process death. No explicit "delete now" call exists,
// because depending on one is exactly the failure mode this package is
// for.
package reaper

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/sethvargo/go-retry"

	"github.com/p-arndt/tugboat/config"
	"github.com/p-arndt/tugboat/engine"
	"github.com/p-arndt/tugboat/labels"
	"github.com/p-arndt/tugboat/protocol"
)

// ContainerName is the well-known name of the daemon's container. All
// processes on a host race to create it and converge on the one instance.
const ContainerName = "tugboat-reaper"

// UnavailableError reports that the daemon could not be created or
// reached within the configured number of attempts. Fatal unless the
// caller explicitly disabled lifecycle management.
type UnavailableError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("reaper unreachable at %s after %d attempts: %v", e.Addr, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

type Reaper struct {
	engine Engine
	cfg    *config.Config
	logger *slog.Logger
	conn   net.Conn

	// dial is swapped out in tests.
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

func New(e Engine, cfg *config.Config, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var d net.Dialer
	return &Reaper{
		engine: e,
		cfg:    cfg,
		logger: logger.With(slog.String("logger", "reaper")),
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

// Register ensures the daemon is running, connects to it, and registers
// the filter. It returns only after the daemon has acknowledged, so by
// the time any resource is created its cleanup is already guaranteed.
// The connection stays open until the process exits or Close is called.
func (r *Reaper) Register(ctx context.Context, filter protocol.Filter) error {
	addr, err := r.ensure(ctx)
	if err != nil {
		return err
	}

	conn, err := r.connect(ctx, addr)
	if err != nil {
		return err
	}

	if err := register(ctx, conn, filter); err != nil {
		conn.Close()
		return fmt.Errorf("register filter with reaper: %w", err)
	}

	r.conn = conn
	r.logger.Info("cleanup registered", "addr", addr, "filter", filter.Encode())
	return nil
}

// Close drops the daemon connection, which triggers cleanup of everything
// the registered filter matches. Only tests and deliberate teardown paths
// call this; normal process death has the same effect.
func (r *Reaper) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// ensure finds the daemon container or creates and starts it, then
// resolves the host address of its listen port. Racing processes converge
// through create-or-attach: whoever loses the create race attaches to the
// winner's container.
func (r *Reaper) ensure(ctx context.Context) (string, error) {
	port := nat.Port(fmt.Sprintf("%d/tcp", r.cfg.ReaperPort))

	id, found, err := r.engine.FindContainer(ctx, ContainerName)
	if err != nil {
		return "", fmt.Errorf("find reaper container: %w", err)
	}

	if !found {
		mem, err := r.cfg.ReaperMemBytes()
		if err != nil {
			return "", err
		}
		id, err = r.engine.CreateContainer(ctx, engine.CreateOpts{
			Name:         ContainerName,
			Image:        r.cfg.ReaperImage,
			Labels:       map[string]string{labels.KeyManaged: labels.ManagedValue},
			ExposedPorts: []nat.Port{port},
			Binds:        []string{"/var/run/docker.sock:/var/run/docker.sock"},
			AutoRemove:   true,
			MemLimit:     mem,
		})
		if engine.IsNameConflict(err) {
			// Lost the race; attach to the winner.
			id, found, err = r.engine.FindContainer(ctx, ContainerName)
			if err != nil {
				return "", fmt.Errorf("find reaper container after conflict: %w", err)
			}
			if !found {
				return "", fmt.Errorf("reaper container vanished after create conflict")
			}
		} else if err != nil {
			return "", fmt.Errorf("create reaper container: %w", err)
		}
	}

	if err := r.engine.StartContainer(ctx, id); err != nil {
		return "", fmt.Errorf("start reaper container: %w", err)
	}

	bindings, err := r.engine.ResolveBindings(ctx, id, []nat.Port{port})
	if err != nil {
		return "", fmt.Errorf("resolve reaper port: %w", err)
	}
	return bindings[port].String(), nil
}

// connect dials the daemon with bounded backoff. The daemon needs a
// moment after container start before it listens, so the first attempts
// routinely fail.
func (r *Reaper) connect(ctx context.Context, addr string) (net.Conn, error) {
	var conn net.Conn

	backoff := retry.WithMaxRetries(uint64(r.cfg.ConnectAttempts-1), retry.NewFibonacci(r.cfg.ConnectDelay()))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := r.dial(ctx, addr)
		if err != nil {
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, &UnavailableError{Addr: addr, Attempts: r.cfg.ConnectAttempts, Err: err}
	}
	return conn, nil
}

// register performs the one protocol exchange: filter line out, ACK back.
func register(ctx context.Context, conn net.Conn, filter protocol.Filter) error {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	if _, err := fmt.Fprintf(conn, "%s\n", filter.Encode()); err != nil {
		return fmt.Errorf("send filter: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read acknowledgement: %w", err)
	}
	if strings.TrimSpace(line) != protocol.Ack {
		return fmt.Errorf("unexpected acknowledgement %q", strings.TrimSpace(line))
	}
	return nil
}
