// Package tugboat provides disposable Docker workloads for tests: every
// resource a session creates is labeled with the session's identity, a
// cleanup daemon (the reaper) guarantees removal of those resources even
// if the test process dies, and the wait package turns "is the container
// ready" into a bounded, deterministic poll.
//
// Typical use: obtain a Session, register it for cleanup before creating
// anything, stamp Session.Labels onto every container, network and volume,
// and gate the test on a wait strategy:
//
//	sess, err := tugboat.Default()
//	if err != nil { ... }
//	if err := sess.Register(ctx); err != nil { ... }
//	// create containers carrying sess.Labels(nil), then:
//	err = wait.UntilReady(ctx, target, wait.HTTP("/health"))
package tugboat

import (
	"sync"

	"github.com/p-arndt/tugboat/config"
	"github.com/p-arndt/tugboat/engine"
)

var (
	defaultOnce    sync.Once
	defaultSession *Session
	defaultErr     error
)

// Default returns the process-wide session. The first call creates it,
// loading configuration from the environment and connecting to the Docker
// daemon named there; every later call returns the same session, so all
// resources of one test process share one identity.
func Default() (*Session, error) {
	defaultOnce.Do(func() {
		cfg, err := config.Load("")
		if err != nil {
			defaultErr = err
			return
		}
		eng, err := engine.New(nil)
		if err != nil {
			defaultErr = err
			return
		}
		defaultSession = NewSession(cfg, eng, nil)
	})
	return defaultSession, defaultErr
}
