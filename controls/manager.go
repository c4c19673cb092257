// Package controls turns pointer input on the canvas into mesh selection
// and transforms.
//
// A press followed by a release at the same canvas position is a click
// and picks the nearest mesh under the pointer. Any displacement larger
// than the drag threshold makes it a drag, which never changes the
// selection. At most one mesh is selected at any time.
package controls

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/soypat/stlview/camera"
	"github.com/soypat/stlview/node"
	"github.com/soypat/stlview/scene"
	"github.com/soypat/stlview/signal"
)

// ErrNoCamera is returned by NewManager when the camera manager has no camera.
var ErrNoCamera = camera.ErrNoCamera

// Source tag of render requests issued by the controls.
const Source = "controls"

// State of the pointer state machine.
type State int

const (
	Idle State = iota
	MouseDown
	TransformActive
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case MouseDown:
		return "mouseDown"
	case TransformActive:
		return "transformActive"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config holds the parameters of a new Manager.
type Config struct {
	// DragThreshold is the pointer displacement in pixels above which a
	// press and release is a drag. The default of zero makes any movement a drag.
	DragThreshold float64
	Logger        *slog.Logger
}

// Manager coordinates picking, selection, the transform gizmo and
// the orbit controls.
type Manager struct {
	scene   *scene.Manager
	cameras *camera.Manager
	orbit   *camera.Orbit
	gizmo   *Gizmo
	log     *slog.Logger

	state        State
	downX, downY float64
	threshold    float64

	OnNodeSelected   signal.Signal[*node.Mesh]
	OnNodeDeselected signal.Signal[*node.Mesh]
	OnRenderRequest  signal.Signal[node.RenderContext]
}

// NewManager wires gizmo transforms to the orbit controls and the scene.
// It fails with ErrNoCamera if cameras has no camera yet.
func NewManager(sc *scene.Manager, cameras *camera.Manager, orbit *camera.Orbit, cfg Config) (*Manager, error) {
	if _, ok := cameras.Camera(); !ok {
		return nil, ErrNoCamera
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DragThreshold < 0 {
		return nil, fmt.Errorf("negative drag threshold %g", cfg.DragThreshold)
	}
	m := &Manager{
		scene:     sc,
		cameras:   cameras,
		orbit:     orbit,
		gizmo:     &Gizmo{},
		log:       cfg.Logger,
		threshold: cfg.DragThreshold,
	}
	m.gizmo.OnTransformStarted.Connect(func(*node.Mesh) {
		m.state = TransformActive
		if m.orbit != nil {
			m.orbit.SetEnabled(false)
		}
	})
	m.gizmo.OnTransformEnded.Connect(func(*node.Mesh) {
		m.state = Idle
		if m.orbit != nil {
			m.orbit.SetEnabled(true)
		}
		m.scene.CheckContainment()
	})
	m.gizmo.OnChange.Connect(func(*node.Mesh) {
		m.OnRenderRequest.Emit(node.RenderContext{Source: Source, Type: node.RequestTransformation})
	})
	sc.OnMeshRemoved.Connect(func(mesh *node.Mesh) {
		if m.gizmo.Attached() == mesh {
			m.gizmo.Detach()
		}
	})
	return m, nil
}

func (m *Manager) Gizmo() *Gizmo { return m.gizmo }

func (m *Manager) State() State { return m.state }

// MouseDown records a press at canvas pixel coordinates x, y.
func (m *Manager) MouseDown(x, y float64) {
	if m.state == TransformActive {
		return
	}
	m.state = MouseDown
	m.downX, m.downY = x, y
}

// MouseUp completes a press at canvas pixel coordinates x, y. If it was a
// click the selection is resolved and the newly selected mesh, possibly
// nil, is returned with clicked set.
func (m *Manager) MouseUp(x, y float64) (selected *node.Mesh, clicked bool) {
	if m.state != MouseDown {
		return nil, false
	}
	m.state = Idle
	if math.Hypot(x-m.downX, y-m.downY) > m.threshold {
		return nil, false
	}
	return m.click(x, y), true
}

func (m *Manager) click(x, y float64) *node.Mesh {
	m.gizmo.Detach()
	cam, _ := m.cameras.Camera()
	canvas := m.cameras.Canvas()
	origin, dir := cam.Ray(x/float64(canvas.Width), y/float64(canvas.Height))
	hits := Intersect(m.scene.Root(), origin, dir)
	picked := FirstMesh(hits)
	id := ""
	if picked != nil {
		id = picked.ID()
	}
	m.log.Debug("click", slog.Float64("x", x), slog.Float64("y", y), slog.Int("hits", len(hits)), slog.String("picked", id))
	return m.apply(id)
}

// apply marks the mesh with the given id selected and every other mesh
// deselected, then attaches the gizmo to the selection. Deselection
// signals precede the selection signal, so handlers never observe two
// selected meshes.
func (m *Manager) apply(id string) *node.Mesh {
	var selected *node.Mesh
	for _, mesh := range m.scene.Meshes() {
		if id != "" && mesh.ID() == id {
			selected = mesh
			continue
		}
		mesh.SetSelected(false)
		m.OnNodeDeselected.Emit(mesh)
	}
	if selected != nil {
		selected.SetSelected(true)
		m.OnNodeSelected.Emit(selected)
		m.gizmo.Attach(selected)
		m.gizmo.SetMode(Translate)
	} else {
		m.gizmo.Detach()
	}
	m.OnRenderRequest.Emit(node.RenderContext{Source: Source, Type: node.RequestScene})
	return selected
}

// Select selects the mesh with the given id as if it was clicked.
func (m *Manager) Select(id string) (*node.Mesh, error) {
	if _, ok := m.scene.FindByID(id).(*node.Mesh); !ok {
		return nil, fmt.Errorf("select %q: %w", id, scene.ErrNotFound)
	}
	m.gizmo.Detach()
	return m.apply(id), nil
}

// ClearSelection deselects every mesh and detaches the gizmo.
func (m *Manager) ClearSelection() {
	m.gizmo.Detach()
	m.apply("")
}

// Selected returns the selected mesh or nil.
func (m *Manager) Selected() *node.Mesh {
	for _, mesh := range m.scene.Meshes() {
		if mesh.Selected() {
			return mesh
		}
	}
	return nil
}

// SetMode changes the gizmo transform mode.
func (m *Manager) SetMode(mode Mode) {
	m.gizmo.SetMode(mode)
	m.OnRenderRequest.Emit(node.RenderContext{Source: Source, Type: node.RequestScene})
}
