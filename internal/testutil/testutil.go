package testutil

import (
	"log/slog"
	"net"
	"testing"

	"github.com/p-arndt/tugboat/config"
)

// TestConfig returns a Config with fast retry and polling settings so
// failure-path tests do not sit out production backoffs.
func TestConfig() *config.Config {
	return &config.Config{
		ReaperImage:             "tugboat/reaperd:latest",
		ReaperPort:              8080,
		ReaperMemLimit:          "128m",
		ConnectAttempts:         3,
		ConnectDelayMs:          10,
		StartupTimeoutSeconds:   5,
		PollIntervalMs:          10,
		ReapGraceMs:             50,
		FirstConnTimeoutSeconds: 5,
	}
}

// Logger returns a slog.Logger that writes through t.Log so daemon output
// shows up attached to the failing test.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// Listener opens a loopback TCP listener on an ephemeral port and closes
// it when the test ends.
func Listener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}
