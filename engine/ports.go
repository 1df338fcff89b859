package engine

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

// HostPort is the externally reachable address of one container port.
type HostPort struct {
	Host string
	Port int
}

func (h HostPort) String() string {
	return h.Host + ":" + strconv.Itoa(h.Port)
}

// ResolveBindings maps each requested container-internal port to its
// dynamically assigned host port. The container must be running; asking
// for a port that was never exposed fails with ErrPortNotExposed rather
// than returning a partial map.
func (c *Client) ResolveBindings(ctx context.Context, id string, internalPorts []nat.Port) (map[nat.Port]HostPort, error) {
	info, err := c.docker.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("container inspect: %w", err)
	}
	if !info.State.Running {
		return nil, fmt.Errorf("resolve bindings for %s: %w", shortID(id), ErrNotRunning)
	}
	return resolveBoundPorts(info, c.Host(), internalPorts)
}

// resolveBoundPorts extracts the host bindings from inspect output. Split
// out so it can be tested without a Docker daemon.
func resolveBoundPorts(info container.InspectResponse, host string, internalPorts []nat.Port) (map[nat.Port]HostPort, error) {
	result := make(map[nat.Port]HostPort, len(internalPorts))
	for _, p := range internalPorts {
		if info.NetworkSettings == nil {
			return nil, fmt.Errorf("port %s: %w", p, ErrPortNotExposed)
		}
		bindings, ok := info.NetworkSettings.Ports[p]
		if !ok {
			return nil, fmt.Errorf("port %s: %w", p, ErrPortNotExposed)
		}
		bound := false
		for _, b := range bindings {
			if b.HostPort == "" {
				continue
			}
			hostPort, err := strconv.Atoi(b.HostPort)
			if err != nil {
				return nil, fmt.Errorf("parse host port %q for %s: %w", b.HostPort, p, err)
			}
			result[p] = HostPort{Host: host, Port: hostPort}
			bound = true
			break
		}
		if !bound {
			return nil, fmt.Errorf("port %s has no host binding: %w", p, ErrPortNotExposed)
		}
	}
	return result, nil
}

// Host returns the hostname clients should dial to reach published ports.
// For local daemons (unix socket, npipe) that is localhost; for remote
// daemons it is the daemon's own host.
func (c *Client) Host() string {
	return hostFromDaemonURL(c.docker.DaemonHost())
}

func hostFromDaemonURL(daemonHost string) string {
	u, err := url.Parse(daemonHost)
	if err != nil {
		return "localhost"
	}
	switch u.Scheme {
	case "tcp", "http", "https":
		return u.Hostname()
	default:
		return "localhost"
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
