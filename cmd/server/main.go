// Package main is the headless authoritative world server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/assets"
	"github.com/Faultbox/midgard-world/internal/config"
	"github.com/Faultbox/midgard-world/internal/engine/physics"
	"github.com/Faultbox/midgard-world/internal/game/demo"
	"github.com/Faultbox/midgard-world/internal/game/world"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/internal/metrics"
	"github.com/Faultbox/midgard-world/internal/network"
	"github.com/Faultbox/midgard-world/pkg/math"
)

var flagBlueprint = flag.String("blueprint", "", "glTF/GLB file instantiated into the scene")

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== midgard-world server ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	w := world.New(cfg)
	rep := world.NewReplicator(w, cfg.Network.SendRate)
	hub := network.NewHub(cfg.Network.WriteTimeout)
	defer hub.Close()
	rep.Serve(hub)

	if _, err := demo.Build(w, rep); err != nil {
		return fmt.Errorf("building scene: %w", err)
	}
	if *flagBlueprint != "" {
		if err := instantiate(w, rep, *flagBlueprint); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				logger.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{
		Addr:              cfg.Network.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("replication listening", zap.String("addr", cfg.Network.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	simCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	simDone := make(chan error, 1)
	go func() { simDone <- w.Scheduler().Run(simCtx, cfg.Simulation.FrameInterval) }()

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("replication listener: %w", err)
		}
	case <-ctx.Done():
	}

	cancel()
	<-simDone

	shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	return runErr
}

// instantiate loads a blueprint and replicates its top-level nodes.
func instantiate(w *world.World, rep *world.Replicator, path string) error {
	mgr := assets.NewManager()
	defer mgr.Close()
	if err := mgr.AddRoot("."); err != nil {
		return err
	}

	bp, err := mgr.Load(path)
	if err != nil {
		return fmt.Errorf("loading blueprint: %w", err)
	}
	nodes, err := w.Instantiate(bp, nil)
	if err != nil {
		return err
	}
	for i, idx := range bp.Roots() {
		desc := bp.Nodes[idx]
		var half math.Vec3
		if desc.Bounds != nil {
			half = desc.Bounds.HalfExtents()
		}
		if _, err := rep.Track(nodes[idx], physics.Static, half); err != nil {
			return fmt.Errorf("tracking blueprint root %d: %w", i, err)
		}
	}
	logger.Info("blueprint instantiated", zap.String("path", path), zap.Int("nodes", len(nodes)))
	return nil
}
