package tugboat

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/p-arndt/tugboat/config"
	"github.com/p-arndt/tugboat/labels"
	"github.com/p-arndt/tugboat/protocol"
	"github.com/p-arndt/tugboat/reaper"
)

// registrar is the slice of the reaper client the session needs.
type registrar interface {
	Register(ctx context.Context, filter protocol.Filter) error
	Close() error
}

// Session ties together one test run's identity: a random id, the labels
// derived from it, and the single reaper registration that guarantees
// cleanup of everything carrying those labels.
type Session struct {
	id     string
	cfg    *config.Config
	logger *slog.Logger
	reaper registrar

	regOnce sync.Once
	regErr  error
}

// NewSession creates a session with a fresh random identity. Most callers
// want Default instead; explicit sessions exist for tests and for programs
// that deliberately run several isolated resource groups in one process.
func NewSession(cfg *config.Config, eng reaper.Engine, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		id:     uuid.New().String(),
		cfg:    cfg,
		logger: logger.With(slog.String("logger", "session")),
		reaper: reaper.New(eng, cfg, logger),
	}
}

// ID returns the session identifier. Stable for the session's lifetime.
func (s *Session) ID() string {
	return s.id
}

// Labels returns the labels to stamp onto every resource this session
// creates. Caller-supplied extras are merged in, but the reserved keys
// always win. When reaping is disabled the reap marker is left off, so
// the daemon will never touch the resource and cleanup is the caller's
// problem.
func (s *Session) Labels(extra map[string]string) map[string]string {
	merged := labels.Build(s.id, extra)
	if !s.cfg.ReaperDisabled {
		merged[labels.KeyReap] = labels.ReapValue
	} else {
		delete(merged, labels.KeyReap)
	}
	return merged
}

// Register arranges cleanup for this session: it ensures the reaper
// daemon is running, registers the session filter, and returns once the
// daemon has acknowledged. Idempotent; concurrent first callers converge
// on a single registration. Must be called before creating resources, so
// that cleanup is guaranteed before anything exists to clean up.
//
// When reaping is disabled in the configuration this is a no-op.
func (s *Session) Register(ctx context.Context) error {
	if s.cfg.ReaperDisabled {
		s.logger.Warn("cleanup disabled, resources will not be reaped", "session", s.id)
		return nil
	}
	s.regOnce.Do(func() {
		s.regErr = s.reaper.Register(ctx, protocol.SessionFilter(s.id))
	})
	return s.regErr
}

// Close drops the reaper connection, triggering cleanup of everything the
// session created. Tests call this for deterministic teardown; abandoning
// the session has the same effect when the process exits.
func (s *Session) Close() error {
	return s.reaper.Close()
}
