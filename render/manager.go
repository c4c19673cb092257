// Package render turns render requests into frames.
//
// Requests carry the reason for the render. Reasons that may have changed
// the visual state of nodes (canvas, mesh, scene and transformation) and
// forced requests first render the node tree so dirty meshes refresh their
// materials. Camera only requests just draw a new frame.
package render

import (
	"errors"
	"image"
	"log/slog"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/stlview/camera"
	"github.com/soypat/stlview/node"
	"github.com/soypat/stlview/signal"
)

// Scene is the node tree being drawn.
type Scene interface {
	Root() *node.Root
	Render(node.RenderContext)
}

// Config holds the parameters of a new Manager.
type Config struct {
	// Batch is the number of requests coalesced into a single pass.
	// Values below 2 render every request immediately.
	Batch int
	// Deferred only coalesces requests. Nothing is drawn until Flush or Render.
	Deferred bool
	Logger   *slog.Logger
}

// Manager renders the scene in response to requests.
type Manager struct {
	scene    Scene
	cameras  *camera.Manager
	drawer   Drawer
	batch    int
	deferred bool
	log      *slog.Logger

	pending int
	merged  node.RenderContext

	frames int
	passes int
	last   image.Image

	OnFrame signal.Signal[image.Image]
}

// NewManager returns a manager drawing sc through the active camera of
// cameras with d. A nil d uses NewFauxGL.
func NewManager(sc Scene, cameras *camera.Manager, d Drawer, cfg Config) *Manager {
	if d == nil {
		d = NewFauxGL()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{scene: sc, cameras: cameras, drawer: d, batch: cfg.Batch, deferred: cfg.Deferred, log: cfg.Logger}
}

// Request handles a render request. Connect it to render request signals.
func (m *Manager) Request(ctx node.RenderContext) {
	if m.deferred {
		m.merge(ctx)
		return
	}
	if m.batch < 2 {
		m.process(ctx)
		return
	}
	m.merge(ctx)
	if m.pending >= m.batch {
		m.Flush()
	}
}

// merge folds ctx into the pending request. The merged request
// affects nodes if any of its parts did and is forced if any part was.
func (m *Manager) merge(ctx node.RenderContext) {
	if m.pending == 0 {
		m.merged = ctx
	} else {
		if m.merged.Source != ctx.Source {
			m.merged.Source = ""
		}
		if !m.merged.Type.AffectsNodes() && ctx.Type.AffectsNodes() {
			m.merged.Type = ctx.Type
		}
		m.merged.Force = m.merged.Force || ctx.Force
	}
	m.pending++
}

// Flush processes pending coalesced requests, if any.
func (m *Manager) Flush() {
	if m.pending == 0 {
		return
	}
	ctx := m.merged
	m.log.Debug("flushing render batch", slog.Int("requests", m.pending), slog.String("type", ctx.Type.String()))
	m.pending = 0
	m.merged = node.RenderContext{}
	m.process(ctx)
}

// Pending returns the number of requests waiting for a flush.
func (m *Manager) Pending() int { return m.pending }

func (m *Manager) process(ctx node.RenderContext) {
	if ctx.Force || ctx.Type.AffectsNodes() {
		m.scene.Render(ctx)
		m.passes++
	}
	if _, err := m.draw(); err != nil {
		m.log.Error("drawing frame", slog.String("err", err.Error()))
	}
}

// Render refreshes every node and draws a frame. Pending requests are
// dropped, the full pass covers them.
func (m *Manager) Render() (image.Image, error) {
	m.pending = 0
	m.merged = node.RenderContext{}
	m.scene.Render(node.RenderContext{Source: "renderManager", Type: node.RequestScene})
	m.passes++
	return m.draw()
}

func (m *Manager) draw() (image.Image, error) {
	cam, ok := m.cameras.Camera()
	if !ok {
		return nil, camera.ErrNoCamera
	}
	img, err := m.drawer.Draw(m.scene.Root(), cam, m.cameras.Canvas())
	if err != nil {
		return nil, err
	}
	m.frames++
	m.last = img
	m.OnFrame.Emit(img)
	return img, nil
}

// Frames returns the number of frames drawn.
func (m *Manager) Frames() int { return m.frames }

// NodePasses returns how many times the node tree was rendered.
func (m *Manager) NodePasses() int { return m.passes }

// Image returns the last frame or nil.
func (m *Manager) Image() image.Image { return m.last }

// SavePNG writes the last frame to path.
func (m *Manager) SavePNG(path string) error {
	if m.last == nil {
		return errors.New("no frame rendered")
	}
	return fauxgl.SavePNG(path, m.last)
}
