// Package metrics exposes the world's prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/logger"
)

const namespace = "midgard_world"

// Registry holds every collector in this package plus the Go runtime ones.
var Registry = prometheus.NewRegistry()

var (
	// Frames counts scheduler frames.
	Frames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_total",
		Help:      "Scheduler frames executed.",
	})

	// FixedSteps counts fixed-update iterations.
	FixedSteps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fixed_steps_total",
		Help:      "Fixed-timestep iterations executed.",
	})

	// FrameClamps counts frames whose delta hit the max frame delta.
	FrameClamps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frame_clamps_total",
		Help:      "Frames whose delta was clamped after a stall.",
	})

	// FrameSeconds observes wall time spent inside a frame.
	FrameSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "frame_seconds",
		Help:      "Wall time spent running one scheduler frame.",
		Buckets:   []float64{.0005, .001, .002, .005, .01, .02, .05, .1},
	})

	// HookFailures counts phase hooks that returned an error or panicked.
	HookFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hook_failures_total",
		Help:      "Phase hooks that returned an error or panicked.",
	}, []string{"phase", "hook"})

	// DirtyRoots observes the number of roots cleaned by each commit sweep.
	DirtyRoots = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dirty_roots",
		Help:      "Dirty roots cleaned per commit sweep.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	// OctreeItems tracks the number of entries per spatial tree.
	OctreeItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "octree_items",
		Help:      "Entries currently stored per spatial tree.",
	}, []string{"tree"})

	// OctreeExpansions counts root expansions per spatial tree.
	OctreeExpansions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "octree_expansions_total",
		Help:      "Root expansions per spatial tree.",
	}, []string{"tree"})

	// OctreeInsertFailures counts entries dropped because no root could hold them.
	OctreeInsertFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "octree_insert_failures_total",
		Help:      "Entries dropped because insertion failed after expansion.",
	}, []string{"tree"})

	// Subscribers tracks connected replication subscribers.
	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscribers",
		Help:      "Connected replication subscribers.",
	})

	// Packets counts replication messages by direction and type.
	Packets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_total",
		Help:      "Replication messages by direction and type.",
	}, []string{"direction", "type"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Frames,
		FixedSteps,
		FrameClamps,
		FrameSeconds,
		HookFailures,
		DirtyRoots,
		OctreeItems,
		OctreeExpansions,
		OctreeInsertFailures,
		Subscribers,
		Packets,
	)
}

// Handler returns the /metrics HTTP handler for Registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
