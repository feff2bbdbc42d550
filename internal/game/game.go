// Package game implements the debug viewer: it runs a world locally or
// mirrors a server's, and draws the spatial trees as wireframes.
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/config"
	"github.com/Faultbox/midgard-world/internal/engine/camera"
	"github.com/Faultbox/midgard-world/internal/engine/debug"
	"github.com/Faultbox/midgard-world/internal/engine/input"
	"github.com/Faultbox/midgard-world/internal/engine/octree"
	"github.com/Faultbox/midgard-world/internal/engine/renderer"
	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/engine/window"
	"github.com/Faultbox/midgard-world/internal/game/demo"
	"github.com/Faultbox/midgard-world/internal/game/world"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/internal/network"
	"github.com/Faultbox/midgard-world/pkg/math"
)

const snapQueryRadius = 3

// Game is the viewer instance.
type Game struct {
	cfg      *config.Config
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera

	world *world.World
	scene *demo.Scene // nil when mirroring a server

	client *network.Client
	cancel context.CancelFunc

	lines     debug.Lines
	highlight map[transform.Handle]bool
	focus     math.Vec3 // Last hit point, center of snap queries
	shots     *debug.Screenshots
	showCells bool
	showGrid  bool
	running   bool
}

// New creates the window and the world. With a server URL configured the
// world mirrors the server; otherwise the demo scene runs locally.
func New(cfg *config.Config) (*Game, error) {
	log := logger.Named("viewer")
	g := &Game{
		cfg:       cfg,
		input:     input.New(),
		camera:    camera.NewOrbitCamera(),
		world:     world.New(cfg),
		highlight: make(map[transform.Handle]bool),
		shots:     debug.NewScreenshots("screenshots", "world"),
		showCells: true,
		showGrid:  true,
	}

	var err error
	g.window, err = window.New(window.FromViewer("midgard-world viewer", cfg.Viewer))
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	g.renderer, err = renderer.New(renderer.Config{Width: cfg.Viewer.Width, Height: cfg.Viewer.Height})
	if err != nil {
		g.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	if cfg.Network.ServerURL != "" {
		if err := g.connect(cfg.Network.ServerURL); err != nil {
			g.Close()
			return nil, err
		}
		log.Info("mirroring server", zap.String("url", cfg.Network.ServerURL))
	} else {
		g.scene, err = demo.Build(g.world, nil)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("building demo scene: %w", err)
		}
		log.Info("running demo scene offline")
	}
	return g, nil
}

func (g *Game) connect(url string) error {
	inbox := network.NewInbox()
	world.NewReplicator(g.world, 0).Listen(inbox)

	g.client = network.NewClient()
	g.client.Forward(inbox)

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	if err := g.client.Connect(ctx, url); err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	go func() {
		if err := g.client.Run(ctx); err != nil {
			logger.Named("viewer").Warn("connection lost", zap.Error(err))
		}
	}()
	return nil
}

// Run drives the world from wall-clock time until the window closes.
func (g *Game) Run() error {
	g.running = true
	last := time.Now()
	frames := 0
	fpsTimer := last

	for g.running {
		now := time.Now()
		dt := now.Sub(last)
		last = now

		if g.input.Update() {
			break
		}
		g.handleInput()

		w, h := g.renderer.Size()
		viewProj := g.camera.ViewProjection(w, h)
		g.world.SetView(world.View{ViewProj: viewProj, Width: float32(w), Height: float32(h)})
		g.world.Scheduler().Advance(dt)

		g.render(viewProj)
		g.window.SwapBuffers()

		frames++
		if now.Sub(fpsTimer) >= time.Second {
			g.window.SetTitle(fmt.Sprintf("midgard-world viewer | %d fps | %d nodes | %d colliders | step %d",
				frames, g.world.Graph().Len(), g.world.Loose().Count(), g.world.Scheduler().StepIndex()))
			frames = 0
			fpsTimer = now
		}
	}
	return nil
}

func (g *Game) handleInput() {
	for _, e := range g.input.Events() {
		switch e.Type {
		case input.EventWindowResize:
			g.renderer.Resize(e.Width, e.Height)
		case input.EventMouseWheel:
			g.camera.HandleZoom(float32(e.DeltaY))
		case input.EventMouseMove:
			if g.input.IsButtonHeld(sdl.BUTTON_RIGHT) {
				g.camera.HandleDrag(float32(e.DeltaX), float32(e.DeltaY))
			}
		case input.EventMouseDown:
			if e.Button == sdl.BUTTON_LEFT {
				g.pick(g.world.RaycastFromScreenPoint(float32(e.MouseX), float32(e.MouseY)))
			}
		case input.EventKeyDown:
			switch e.Key {
			case sdl.SCANCODE_ESCAPE:
				g.running = false
			case sdl.SCANCODE_R:
				g.pick(g.world.RaycastFromReticle())
			case sdl.SCANCODE_S:
				g.querySnap()
			case sdl.SCANCODE_C:
				g.showCells = !g.showCells
			case sdl.SCANCODE_G:
				g.showGrid = !g.showGrid
			case sdl.SCANCODE_F12:
				g.screenshot()
			}
		}
	}

	var forward, right, up float32
	if g.input.IsKeyHeld(sdl.SCANCODE_UP) {
		forward++
	}
	if g.input.IsKeyHeld(sdl.SCANCODE_DOWN) {
		forward--
	}
	if g.input.IsKeyHeld(sdl.SCANCODE_RIGHT) {
		right++
	}
	if g.input.IsKeyHeld(sdl.SCANCODE_LEFT) {
		right--
	}
	if g.input.IsKeyHeld(sdl.SCANCODE_PAGEUP) {
		up++
	}
	if g.input.IsKeyHeld(sdl.SCANCODE_PAGEDOWN) {
		up--
	}
	if forward != 0 || right != 0 || up != 0 {
		g.camera.HandleMovement(forward, right, up)
	}
}

func (g *Game) pick(hits []octree.Hit) {
	clear(g.highlight)
	log := logger.Named("viewer")
	if len(hits) == 0 {
		log.Info("raycast missed")
		return
	}
	first := hits[0]
	g.highlight[first.Owner] = true
	g.focus = first.Point

	name := "?"
	if n := g.world.Graph().Node(first.Owner); n != nil {
		name = n.Name()
	}
	log.Info("raycast hit",
		zap.String("node", name),
		zap.Stringer("handle", first.Owner),
		zap.Float32("distance", first.Distance),
		zap.Int("hits", len(hits)))
}

func (g *Game) querySnap() {
	hits := g.world.QuerySnapPoints(g.focus, snapQueryRadius)
	log := logger.Named("viewer")
	if len(hits) == 0 {
		log.Info("no snap point in range", zap.Float32("radius", snapQueryRadius))
		return
	}
	for _, h := range hits {
		name := "?"
		if n := g.world.Graph().Node(h.Owner); n != nil {
			name = n.Name()
		}
		log.Info("snap point",
			zap.String("node", name),
			zap.Float32("distance", h.Distance))
	}
}

func (g *Game) screenshot() {
	pixels, w, h := g.renderer.ReadPixels()
	name, err := g.shots.Save(pixels, w, h)
	if err != nil {
		logger.Named("viewer").Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Named("viewer").Info("screenshot saved", zap.String("file", name))
}

func (g *Game) render(viewProj math.Mat4) {
	g.lines.Reset()
	if g.showGrid && g.scene != nil {
		g.lines.Grid(g.scene.Grid, 0.01)
	}
	if g.showCells {
		g.lines.LooseTree(g.world.Loose(), g.highlight)
	}
	g.lines.SnapTree(g.world.Snap(), 0.3)
	g.lines.Cross(g.focus, 0.15, debug.ColorHit)

	g.renderer.Begin()
	g.renderer.DrawLines(&g.lines, viewProj)
}

// Close releases the connection, renderer and window.
func (g *Game) Close() {
	logger.Named("viewer").Info("closing viewer")
	if g.cancel != nil {
		g.cancel()
	}
	if g.renderer != nil {
		g.renderer.Close()
	}
	if g.window != nil {
		g.window.Close()
	}
}
