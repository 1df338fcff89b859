package reaper

import (
	"context"
	"time"

	"github.com/docker/go-connections/nat"

	"github.com/p-arndt/tugboat/engine"
)

// Engine is what the client side needs from the container engine to
// launch and reach the reaper daemon. engine.Client implements it.
type Engine interface {
	FindContainer(ctx context.Context, name string) (string, bool, error)
	CreateContainer(ctx context.Context, opts engine.CreateOpts) (string, error)
	StartContainer(ctx context.Context, id string) error
	ResolveBindings(ctx context.Context, id string, internalPorts []nat.Port) (map[nat.Port]engine.HostPort, error)
}

// PruneEngine is what the daemon side needs to delete every resource
// matching a registered filter. engine.Client implements it.
type PruneEngine interface {
	ContainersByLabel(ctx context.Context, labels map[string]string) ([]string, error)
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, id string) error
	NetworksByLabel(ctx context.Context, labels map[string]string) ([]string, error)
	RemoveNetwork(ctx context.Context, id string) error
	VolumesByLabel(ctx context.Context, labels map[string]string) ([]string, error)
	RemoveVolume(ctx context.Context, name string) error
}
