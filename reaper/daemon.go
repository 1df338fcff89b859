package reaper

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/p-arndt/tugboat/protocol"
)

const defaultStopTimeout = 10 * time.Second

// Daemon is the cleanup server that runs inside the reaper container.
// Each client connection registers one filter; when the connection drops
// for any reason, the daemon deletes every container, network and volume
// matching the filter. Deletion is best-effort but attempted for all
// matches, and the filter is forgotten afterwards — no replay.
type Daemon struct {
	engine      PruneEngine
	logger      *slog.Logger
	grace       time.Duration
	stopTimeout time.Duration

	mu     sync.Mutex
	active map[string]int // encoded filter -> open connections

	connectedOnce sync.Once
	connected     chan struct{}
}

func NewDaemon(e PruneEngine, grace time.Duration, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Daemon{
		engine:      e,
		logger:      logger.With(slog.String("logger", "reaperd")),
		grace:       grace,
		stopTimeout: defaultStopTimeout,
		active:      make(map[string]int),
		connected:   make(chan struct{}),
	}
}

// FirstConnection is closed once the first client has connected. The
// binary uses it to exit if no client ever shows up, so an orphaned
// daemon container does not linger.
func (d *Daemon) FirstConnection() <-chan struct{} {
	return d.connected
}

// Serve accepts client connections until the listener is closed or ctx is
// cancelled.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	d.logger.Info("reaper daemon listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go d.handleConn(ctx, conn)
	}
}

func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	d.connectedOnce.Do(func() { close(d.connected) })

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		d.logger.Warn("connection closed before a filter was sent", "remote", conn.RemoteAddr().String())
		return
	}

	filter, err := protocol.Decode(scanner.Text())
	if err != nil {
		d.logger.Error("invalid filter line", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}

	key := filter.Encode()
	d.track(key, 1)

	if _, err := conn.Write([]byte(protocol.Ack + "\n")); err != nil {
		d.logger.Error("send acknowledgement", "error", err)
		d.release(ctx, filter)
		return
	}
	d.logger.Info("filter registered", "filter", key, "remote", conn.RemoteAddr().String())

	// Hold the connection. Any further input is ignored; EOF or any read
	// error means the client is gone.
	for scanner.Scan() {
	}

	d.release(ctx, filter)
}

func (d *Daemon) track(key string, delta int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[key] += delta
	n := d.active[key]
	if n <= 0 {
		delete(d.active, key)
	}
	return n
}

// release is called when a registering connection drops. After a short
// grace period — during which a reconnecting client may re-arm the same
// filter — it prunes everything the filter matches.
func (d *Daemon) release(ctx context.Context, filter protocol.Filter) {
	key := filter.Encode()
	if d.track(key, -1) > 0 {
		return
	}

	if d.grace > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(d.grace):
		}
		d.mu.Lock()
		rearmed := d.active[key] > 0
		d.mu.Unlock()
		if rearmed {
			d.logger.Info("filter re-armed during grace period", "filter", key)
			return
		}
	}

	if err := d.prune(ctx, filter); err != nil {
		d.logger.Error("prune finished with errors", "filter", key, "error", err)
	}
}

// prune deletes every resource matching the filter: containers first
// (stopped then force-removed), then networks, then volumes. Individual
// failures are collected and do not stop the sweep.
func (d *Daemon) prune(ctx context.Context, filter protocol.Filter) error {
	matchLabels := filter.Labels()
	if len(matchLabels) == 0 {
		d.logger.Warn("filter has no label matches, refusing to prune", "filter", filter.Encode())
		return nil
	}

	var errs error
	removed := 0

	containers, err := d.engine.ContainersByLabel(ctx, matchLabels)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, id := range containers {
		if err := d.engine.StopContainer(ctx, id, d.stopTimeout); err != nil {
			errs = multierr.Append(errs, err)
		}
		if err := d.engine.RemoveContainer(ctx, id); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}

	networks, err := d.engine.NetworksByLabel(ctx, matchLabels)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, id := range networks {
		if err := d.engine.RemoveNetwork(ctx, id); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}

	volumes, err := d.engine.VolumesByLabel(ctx, matchLabels)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, name := range volumes {
		if err := d.engine.RemoveVolume(ctx, name); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}

	d.logger.Info("prune complete", "filter", filter.Encode(), "removed", removed,
		"failures", len(multierr.Errors(errs)))
	return errs
}
