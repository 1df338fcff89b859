package wait

import (
	"context"
	"fmt"
	"sync"

	"github.com/docker/go-connections/nat"

	"github.com/p-arndt/tugboat/engine"
)

// fakeTarget is a scriptable Target. States and logs are consumed in
// order, with the last entry repeating once the script runs out.
type fakeTarget struct {
	id    string
	host  string
	ports map[nat.Port]engine.HostPort

	mu         sync.Mutex
	states     []engine.ContainerState
	stateErr   error
	stateCalls int
	logs       []string
	logsErr    error
	logCalls   int
	execCode   int
	execOutput string
	execErr    error
	execCalls  int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		id:     "c0ffee123456",
		host:   "localhost",
		ports:  map[nat.Port]engine.HostPort{},
		states: []engine.ContainerState{{Status: "running", Running: true}},
	}
}

func (f *fakeTarget) ID() string {
	return f.id
}

func (f *fakeTarget) Host() string {
	return f.host
}

func (f *fakeTarget) MappedPort(port nat.Port) (engine.HostPort, error) {
	hp, ok := f.ports[port]
	if !ok {
		return engine.HostPort{}, fmt.Errorf("port %s: %w", port, engine.ErrPortNotExposed)
	}
	return hp, nil
}

func (f *fakeTarget) State(ctx context.Context) (engine.ContainerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return engine.ContainerState{}, f.stateErr
	}
	i := f.stateCalls
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	f.stateCalls++
	return f.states[i], nil
}

func (f *fakeTarget) Logs(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logsErr != nil {
		return "", f.logsErr
	}
	if len(f.logs) == 0 {
		return "", nil
	}
	i := f.logCalls
	if i >= len(f.logs) {
		i = len(f.logs) - 1
	}
	f.logCalls++
	return f.logs[i], nil
}

func (f *fakeTarget) Exec(ctx context.Context, cmd []string) (int, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execCalls++
	if f.execErr != nil {
		return 0, "", f.execErr
	}
	return f.execCode, f.execOutput, nil
}

// stubStrategy scripts probe results for testing the shared poll loop.
type stubStrategy struct {
	timing
	stubName string

	mu     sync.Mutex
	script []func() (Result, error)
	calls  int
}

func newStubStrategy(script ...func() (Result, error)) *stubStrategy {
	return &stubStrategy{stubName: "stub", script: script}
}

func stepResult(o Outcome) func() (Result, error) {
	return func() (Result, error) { return Result{Outcome: o}, nil }
}

func stepError(err error) func() (Result, error) {
	return func() (Result, error) { return Result{}, err }
}

func (s *stubStrategy) Name() string {
	return s.stubName
}

func (s *stubStrategy) Probe(ctx context.Context, target Target) (Result, error) {
	s.mu.Lock()
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	step := s.script[i]
	s.mu.Unlock()
	return step()
}

func (s *stubStrategy) probeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
