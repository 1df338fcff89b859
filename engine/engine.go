// Package engine wraps the Docker API client with the small set of
// operations tugboat needs: container lifecycle, inspection, log and exec
// access, label queries, and host port resolution. Everything above this
// package talks to Docker exclusively through these methods, so tests can
// substitute the whole engine behind consumer-side interfaces.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

type Client struct {
	docker *client.Client
	logger *slog.Logger
}

func New(logger *slog.Logger) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{docker: cli, logger: logger.With(slog.String("logger", "engine"))}, nil
}

func (c *Client) Close() error {
	return c.docker.Close()
}

// Ping verifies the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.docker.Ping(ctx)
	return err
}

type CreateOpts struct {
	Name         string
	Image        string
	Labels       map[string]string
	Env          []string
	Cmd          []string
	ExposedPorts []nat.Port // published to ephemeral host ports
	Binds        []string   // host:container bind mounts
	AutoRemove   bool
	MemLimit     int64 // bytes, 0 for unlimited
}

// CreateContainer creates a container without starting it. Every exposed
// port is published to a dynamically assigned host port.
func (c *Client) CreateContainer(ctx context.Context, opts CreateOpts) (string, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range opts.ExposedPorts {
		exposed[p] = struct{}{}
		bindings[p] = []nat.PortBinding{{HostIP: "0.0.0.0"}}
	}

	containerCfg := &container.Config{
		Image:        opts.Image,
		Labels:       opts.Labels,
		Env:          opts.Env,
		Cmd:          opts.Cmd,
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		AutoRemove:   opts.AutoRemove,
		Binds:        opts.Binds,
		Resources: container.Resources{
			Memory: opts.MemLimit,
		},
	}

	resp, err := c.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}
	return resp.ID, nil
}

func (c *Client) StartContainer(ctx context.Context, id string) error {
	if err := c.docker.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("container start: %w", err)
	}
	return nil
}

// StopContainer stops a container, escalating to SIGKILL after timeout.
func (c *Client) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := c.docker.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("container stop: %w", err)
	}
	return nil
}

// RemoveContainer force-removes a container together with its anonymous
// volumes. Removing an already-gone container is not an error.
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	err := c.docker.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container remove: %w", err)
	}
	return nil
}

func (c *Client) RemoveNetwork(ctx context.Context, id string) error {
	if err := c.docker.NetworkRemove(ctx, id); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("network remove: %w", err)
	}
	return nil
}

func (c *Client) RemoveVolume(ctx context.Context, name string) error {
	if err := c.docker.VolumeRemove(ctx, name, true); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("volume remove: %w", err)
	}
	return nil
}

// FindContainer looks a container up by exact name. The second return
// value reports whether it exists at all.
func (c *Client) FindContainer(ctx context.Context, name string) (string, bool, error) {
	f := filters.NewArgs()
	f.Add("name", "^/"+name+"$")

	containers, err := c.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return "", false, fmt.Errorf("container list: %w", err)
	}
	if len(containers) == 0 {
		return "", false, nil
	}
	return containers[0].ID, true, nil
}

// ContainersByLabel returns the IDs of all containers (running or not)
// carrying every given label.
func (c *Client) ContainersByLabel(ctx context.Context, labels map[string]string) ([]string, error) {
	containers, err := c.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: labelArgs(labels),
	})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}
	ids := make([]string, 0, len(containers))
	for _, ctr := range containers {
		ids = append(ids, ctr.ID)
	}
	return ids, nil
}

func (c *Client) NetworksByLabel(ctx context.Context, labels map[string]string) ([]string, error) {
	networks, err := c.docker.NetworkList(ctx, network.ListOptions{Filters: labelArgs(labels)})
	if err != nil {
		return nil, fmt.Errorf("network list: %w", err)
	}
	ids := make([]string, 0, len(networks))
	for _, nw := range networks {
		ids = append(ids, nw.ID)
	}
	return ids, nil
}

func (c *Client) VolumesByLabel(ctx context.Context, labels map[string]string) ([]string, error) {
	resp, err := c.docker.VolumeList(ctx, volume.ListOptions{Filters: labelArgs(labels)})
	if err != nil {
		return nil, fmt.Errorf("volume list: %w", err)
	}
	names := make([]string, 0, len(resp.Volumes))
	for _, vol := range resp.Volumes {
		names = append(names, vol.Name)
	}
	return names, nil
}

func labelArgs(labels map[string]string) filters.Args {
	f := filters.NewArgs()
	for k, v := range labels {
		f.Add("label", k+"="+v)
	}
	return f
}

// ContainerState is the subset of inspect output the wait engine needs.
type ContainerState struct {
	Status   string // created, running, exited, ...
	Running  bool
	ExitCode int
	Health   string // healthy, unhealthy, starting, or "" when no healthcheck
}

func (c *Client) State(ctx context.Context, id string) (ContainerState, error) {
	info, err := c.docker.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerState{}, fmt.Errorf("container inspect: %w", err)
	}
	st := ContainerState{
		Status:   info.State.Status,
		Running:  info.State.Running,
		ExitCode: info.State.ExitCode,
	}
	if info.State.Health != nil {
		st.Health = info.State.Health.Status
	}
	return st, nil
}

// Logs returns all output the container has produced so far, stdout and
// stderr demultiplexed and concatenated.
func (c *Client) Logs(ctx context.Context, id string) (string, error) {
	rc, err := c.docker.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("container logs: %w", err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return "", fmt.Errorf("logs read: %w", err)
	}
	stdout.Write(stderr.Bytes())
	return stdout.String(), nil
}

// Exec runs a command inside a running container and returns its exit
// code along with the combined output.
func (c *Client) Exec(ctx context.Context, id string, cmd []string) (int, string, error) {
	execResp, err := c.docker.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return 0, "", fmt.Errorf("exec create: %w", err)
	}

	attachResp, err := c.docker.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, "", fmt.Errorf("exec attach: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return 0, "", fmt.Errorf("exec read: %w", err)
	}
	stdout.Write(stderr.Bytes())

	// The stream closing does not guarantee the exec record is final yet.
	for {
		inspect, err := c.docker.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return 0, "", fmt.Errorf("exec inspect: %w", err)
		}
		if !inspect.Running {
			return inspect.ExitCode, stdout.String(), nil
		}
		select {
		case <-ctx.Done():
			return 0, "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// IsNameConflict reports whether a create failed because a container with
// the requested name already exists. Used by the reaper's create-or-attach
// convergence.
func IsNameConflict(err error) bool {
	return cerrdefs.IsConflict(err)
}

// IsNotFound reports whether the engine no longer knows the resource.
func IsNotFound(err error) bool {
	return client.IsErrNotFound(err)
}
