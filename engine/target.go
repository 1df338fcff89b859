package engine

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
)

// Target is a started container frozen for readiness polling: its identity
// plus the host/port bindings resolved at construction time. It satisfies
// wait.Target.
type Target struct {
	client   *Client
	id       string
	host     string
	bindings map[nat.Port]HostPort
}

// NewTarget resolves the bindings for the given internal ports and returns
// an immutable polling target. The container must already be running.
func NewTarget(ctx context.Context, c *Client, containerID string, internalPorts []nat.Port) (*Target, error) {
	bindings, err := c.ResolveBindings(ctx, containerID, internalPorts)
	if err != nil {
		return nil, err
	}
	return &Target{
		client:   c,
		id:       containerID,
		host:     c.Host(),
		bindings: bindings,
	}, nil
}

func (t *Target) ID() string {
	return t.id
}

func (t *Target) Host() string {
	return t.host
}

// MappedPort returns the resolved host address for an internal port. Ports
// outside the set given to NewTarget fail with ErrPortNotExposed.
func (t *Target) MappedPort(port nat.Port) (HostPort, error) {
	hp, ok := t.bindings[port]
	if !ok {
		return HostPort{}, fmt.Errorf("port %s: %w", port, ErrPortNotExposed)
	}
	return hp, nil
}

func (t *Target) State(ctx context.Context) (ContainerState, error) {
	return t.client.State(ctx, t.id)
}

func (t *Target) Logs(ctx context.Context) (string, error) {
	return t.client.Logs(ctx, t.id)
}

func (t *Target) Exec(ctx context.Context, cmd []string) (int, string, error) {
	return t.client.Exec(ctx, t.id, cmd)
}
