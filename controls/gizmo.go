package controls

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/internal/d3"
	"github.com/soypat/stlview/node"
	"github.com/soypat/stlview/signal"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mode is the kind of transform a Gizmo applies.
type Mode int

const (
	Translate Mode = iota
	Rotate
	Scale
)

func (m Mode) String() string {
	switch m {
	case Translate:
		return "translate"
	case Rotate:
		return "rotate"
	case Scale:
		return "scale"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the names returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Translate, Rotate, Scale} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown transform mode %q", s)
}

// Space is the coordinate space gizmo handles are aligned to.
type Space int

const (
	World Space = iota
	Local
)

var errNotAttached = errors.New("gizmo not attached")

// Gizmo is the transform manipulator of the selected mesh.
// It only ever attaches to meshes.
type Gizmo struct {
	target *node.Mesh
	mode   Mode
	space  Space
	snap   float64
	active bool

	startPos   r3.Vec
	startRot   r3.Rotation
	startScale r3.Vec

	OnTransformStarted signal.Signal[*node.Mesh]
	OnChange           signal.Signal[*node.Mesh]
	OnTransformEnded   signal.Signal[*node.Mesh]
}

// Attach binds the gizmo to n. Nodes other than meshes are ignored.
func (g *Gizmo) Attach(n node.Node) {
	m, ok := n.(*node.Mesh)
	if !ok {
		return
	}
	if g.target != m {
		g.Detach()
	}
	g.target = m
}

// Detach unbinds the gizmo, ending a transform in progress.
func (g *Gizmo) Detach() {
	if g.active {
		g.End()
	}
	g.target = nil
}

// Attached returns the mesh the gizmo is bound to or nil.
func (g *Gizmo) Attached() *node.Mesh { return g.target }

func (g *Gizmo) Mode() Mode { return g.mode }

func (g *Gizmo) Space() Space { return g.space }

// SetMode switches the transform mode. Scaling works in local space,
// translation and rotation in world space.
func (g *Gizmo) SetMode(m Mode) {
	g.mode = m
	if m == Scale {
		g.space = Local
	} else {
		g.space = World
	}
}

// SetSnap sets the translation snapping distance. Zero disables snapping.
func (g *Gizmo) SetSnap(distance float64) { g.snap = math.Max(0, distance) }

func (g *Gizmo) Snap() float64 { return g.snap }

// Active reports whether a transform is in progress.
func (g *Gizmo) Active() bool { return g.active }

// Begin starts a transform of the attached mesh.
func (g *Gizmo) Begin() error {
	if g.target == nil {
		return errNotAttached
	}
	if g.active {
		return nil
	}
	g.active = true
	g.startPos = g.target.Position()
	g.startRot = g.target.Rotation()
	g.startScale = g.target.Scale()
	g.OnTransformStarted.Emit(g.target)
	return nil
}

// Drag applies the total pointer offset since Begin. In translate mode
// delta is a world displacement, in rotate mode the x, y and z angles in
// radians about the world axes and in scale mode the relative change of
// each local axis.
func (g *Gizmo) Drag(delta r3.Vec) error {
	if !g.active {
		return errors.New("drag without active transform")
	}
	m := g.target
	switch g.mode {
	case Translate:
		p := r3.Add(g.startPos, delta)
		if g.snap > 0 {
			p = r3.Vec{X: snapTo(p.X, g.snap), Y: snapTo(p.Y, g.snap), Z: snapTo(p.Z, g.snap)}
		}
		m.SetPosition(p)
	case Rotate:
		q := geom.Identity
		for _, axis := range [3]struct {
			angle float64
			dir   r3.Vec
		}{{delta.X, r3.Vec{X: 1}}, {delta.Y, r3.Vec{Y: 1}}, {delta.Z, r3.Vec{Z: 1}}} {
			if axis.angle != 0 {
				q = geom.ComposeRotation(r3.NewRotation(axis.angle, axis.dir), q)
			}
		}
		m.SetRotation(geom.ComposeRotation(q, g.startRot))
	case Scale:
		s := d3.MulElem(g.startScale, r3.Add(d3.Elem(1), delta))
		if d3.LTEZero(s) {
			return fmt.Errorf("scale %v must stay positive", s)
		}
		m.SetScale(s)
	}
	g.OnChange.Emit(m)
	return nil
}

// End finishes the transform in progress.
func (g *Gizmo) End() {
	if !g.active {
		return
	}
	g.active = false
	g.OnTransformEnded.Emit(g.target)
}

func snapTo(v, step float64) float64 {
	return math.Round(v/step) * step
}
