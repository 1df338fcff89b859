package reaper

import (
	"context"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/tugboat/engine"
)

// MockEngine mocks the client-side Engine interface.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) FindContainer(ctx context.Context, name string) (string, bool, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockEngine) CreateContainer(ctx context.Context, opts engine.CreateOpts) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func (m *MockEngine) StartContainer(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEngine) ResolveBindings(ctx context.Context, id string, internalPorts []nat.Port) (map[nat.Port]engine.HostPort, error) {
	args := m.Called(ctx, id, internalPorts)
	if bindings := args.Get(0); bindings != nil {
		return bindings.(map[nat.Port]engine.HostPort), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPruneEngine mocks the daemon-side PruneEngine interface.
type MockPruneEngine struct {
	mock.Mock
}

func (m *MockPruneEngine) ContainersByLabel(ctx context.Context, labels map[string]string) ([]string, error) {
	args := m.Called(ctx, labels)
	if ids := args.Get(0); ids != nil {
		return ids.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPruneEngine) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	args := m.Called(ctx, id, timeout)
	return args.Error(0)
}

func (m *MockPruneEngine) RemoveContainer(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPruneEngine) NetworksByLabel(ctx context.Context, labels map[string]string) ([]string, error) {
	args := m.Called(ctx, labels)
	if ids := args.Get(0); ids != nil {
		return ids.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPruneEngine) RemoveNetwork(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPruneEngine) VolumesByLabel(ctx context.Context, labels map[string]string) ([]string, error) {
	args := m.Called(ctx, labels)
	if names := args.Get(0); names != nil {
		return names.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPruneEngine) RemoveVolume(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}
