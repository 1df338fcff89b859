package wait

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/tugboat/engine"
)

func TestLogProbeReadyOnMatch(t *testing.T) {
	target := newFakeTarget()
	target.logs = []string{"starting up...\ndatabase system is ready to accept connections\n"}

	res, err := Log("ready to accept connections").Probe(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Ready, res.Outcome)
}

func TestLogProbeWaitingWithoutMatch(t *testing.T) {
	target := newFakeTarget()
	target.logs = []string{"starting up...\n"}

	res, err := Log("ready").Probe(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Waiting, res.Outcome)
}

func TestLogOccurrences(t *testing.T) {
	s := Log("ready").Occurrences(3)

	target := newFakeTarget()
	target.logs = []string{"ready\nready\n"}

	res, err := s.Probe(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Waiting, res.Outcome, "two occurrences must not satisfy a three-occurrence wait")

	target.logs = []string{"ready\nready\nalmost\nready\n"}
	target.logCalls = 0

	res, err = s.Probe(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Ready, res.Outcome)
}

func TestLogOccurrencesUntilReady(t *testing.T) {
	s := Log("ready").Occurrences(3).
		WithStartupTimeout(2 * time.Second).
		WithPollInterval(10 * time.Millisecond)

	target := newFakeTarget()
	// Third occurrence appears on the third poll.
	target.logs = []string{"ready\n", "ready\nready\n", "ready\nready\nready\n"}

	err := UntilReady(context.Background(), target, s)
	require.NoError(t, err)
	assert.Equal(t, 3, target.logCalls)
}

func TestLogProbeFailedWhenContainerExited(t *testing.T) {
	target := newFakeTarget()
	target.logs = []string{"boot error\n"}
	target.states = []engine.ContainerState{{Status: "exited", Running: false, ExitCode: 127}}

	res, err := Log("ready").Probe(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.Contains(t, res.Reason, "exited with code 127")
}

func TestLogProbeMatchWinsOverExit(t *testing.T) {
	// Pattern already present in the captured output counts even if the
	// container has since stopped.
	target := newFakeTarget()
	target.logs = []string{"ready\n"}
	target.states = []engine.ContainerState{{Status: "exited", Running: false, ExitCode: 0}}

	res, err := Log("ready").Probe(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Ready, res.Outcome)
}

func TestLogProbeRegexPattern(t *testing.T) {
	target := newFakeTarget()
	target.logs = []string{"listening on 0.0.0.0:8080\n"}

	res, err := Log(`listening on .+:\d+`).Probe(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Ready, res.Outcome)
}
