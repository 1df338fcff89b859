package tugboat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/tugboat/config"
	"github.com/p-arndt/tugboat/internal/testutil"
	"github.com/p-arndt/tugboat/labels"
	"github.com/p-arndt/tugboat/protocol"
)

type fakeRegistrar struct {
	calls   atomic.Int32
	filters []protocol.Filter
	err     error
	closed  bool
	mu      sync.Mutex
}

func (f *fakeRegistrar) Register(_ context.Context, filter protocol.Filter) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	f.mu.Unlock()
	return f.err
}

func (f *fakeRegistrar) Close() error {
	f.closed = true
	return nil
}

func newTestSession(cfg *config.Config) (*Session, *fakeRegistrar) {
	s := NewSession(cfg, nil, nil)
	reg := &fakeRegistrar{}
	s.reaper = reg
	return s, reg
}

func TestSessionIDStable(t *testing.T) {
	s, _ := newTestSession(testutil.TestConfig())
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, s.ID(), s.ID())
}

func TestSessionIDsDistinct(t *testing.T) {
	a, _ := newTestSession(testutil.TestConfig())
	b, _ := newTestSession(testutil.TestConfig())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestSessionLabels(t *testing.T) {
	s, _ := newTestSession(testutil.TestConfig())

	got := s.Labels(map[string]string{"team": "platform"})

	assert.Equal(t, "true", got[labels.KeyManaged])
	assert.Equal(t, s.ID(), got[labels.KeySessionID])
	assert.Equal(t, "true", got[labels.KeyReap])
	assert.Equal(t, "platform", got["team"])
}

func TestSessionLabelsReservedKeysWin(t *testing.T) {
	s, _ := newTestSession(testutil.TestConfig())

	got := s.Labels(map[string]string{
		labels.KeySessionID: "spoofed",
		labels.KeyReap:      "false",
	})

	assert.Equal(t, s.ID(), got[labels.KeySessionID])
	assert.Equal(t, "true", got[labels.KeyReap])
}

func TestSessionLabelsReaperDisabled(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.ReaperDisabled = true
	s, _ := newTestSession(cfg)

	got := s.Labels(nil)

	assert.NotContains(t, got, labels.KeyReap)
	assert.Equal(t, s.ID(), got[labels.KeySessionID])
}

func TestRegisterSendsSessionFilter(t *testing.T) {
	s, reg := newTestSession(testutil.TestConfig())

	require.NoError(t, s.Register(context.Background()))

	require.Len(t, reg.filters, 1)
	assert.Equal(t, protocol.SessionFilter(s.ID()), reg.filters[0])
}

func TestRegisterIsIdempotent(t *testing.T) {
	s, reg := newTestSession(testutil.TestConfig())

	require.NoError(t, s.Register(context.Background()))
	require.NoError(t, s.Register(context.Background()))

	assert.Equal(t, int32(1), reg.calls.Load())
}

func TestRegisterErrorIsSticky(t *testing.T) {
	s, reg := newTestSession(testutil.TestConfig())
	reg.err = fmt.Errorf("daemon unreachable")

	first := s.Register(context.Background())
	second := s.Register(context.Background())

	require.Error(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), reg.calls.Load())
}

func TestRegisterConcurrentCallersConverge(t *testing.T) {
	s, reg := newTestSession(testutil.TestConfig())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Register(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), reg.calls.Load())
}

func TestRegisterNoopWhenReaperDisabled(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.ReaperDisabled = true
	s, reg := newTestSession(cfg)

	require.NoError(t, s.Register(context.Background()))
	assert.Equal(t, int32(0), reg.calls.Load())
}

func TestCloseDropsReaperConnection(t *testing.T) {
	s, reg := newTestSession(testutil.TestConfig())
	require.NoError(t, s.Close())
	assert.True(t, reg.closed)
}
