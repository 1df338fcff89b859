// reaperd is the cleanup daemon that runs inside the tugboat reaper
// container. Clients register label filters over TCP; when a client's
// connection drops, reaperd deletes every Docker resource matching its
// filter. If no client ever connects, reaperd exits on its own so the
// reaper container does not outlive the test runs it serves.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-arndt/tugboat/config"
	"github.com/p-arndt/tugboat/engine"
	"github.com/p-arndt/tugboat/reaper"
)

func main() {
	cfgPath := flag.String("config", "", "path to tugboat.yaml")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(logger)
	if err != nil {
		logger.Error("docker client", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Ping(ctx); err != nil {
		logger.Error("docker ping failed — is the socket mounted?", "error", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.ReaperPort))
	if err != nil {
		logger.Error("listen", "port", cfg.ReaperPort, "error", err)
		os.Exit(1)
	}

	d := reaper.NewDaemon(eng, cfg.ReapGrace(), logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	// A daemon nobody registers with is an orphan; exit instead of
	// occupying the well-known container name forever.
	go func() {
		timer := time.NewTimer(cfg.FirstConnTimeout())
		defer timer.Stop()
		select {
		case <-d.FirstConnection():
		case <-ctx.Done():
		case <-timer.C:
			logger.Warn("no client connected, exiting", "after", cfg.FirstConnTimeout())
			cancel()
		}
	}()

	if err := d.Serve(ctx, ln); err != nil {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
	logger.Info("reaper daemon stopped")
}
