// Package camera implements the z-up viewing camera of the viewer, the
// manager switching between perspective and orthographic projections and
// orbit controls.
package camera

import (
	"fmt"
	"math"

	"github.com/soypat/stlview/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Type selects the projection of a Camera.
type Type int

const (
	Perspective Type = iota
	Orthographic
)

func (t Type) String() string {
	switch t {
	case Perspective:
		return "perspective"
	case Orthographic:
		return "orthographic"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType parses the names returned by Type.String.
func ParseType(s string) (Type, error) {
	switch s {
	case "perspective":
		return Perspective, nil
	case "orthographic":
		return Orthographic, nil
	}
	return 0, fmt.Errorf("unknown camera type %q", s)
}

// Canvas is the size of the drawing surface in pixels.
type Canvas struct {
	Width, Height int
}

func (c Canvas) valid() bool { return c.Width > 0 && c.Height > 0 }

// Aspect returns width over height.
func (c Canvas) Aspect() float64 { return float64(c.Width) / float64(c.Height) }

// Up is the up direction of every camera. The build volume height runs along z.
var Up = r3.Vec{Z: 1}

// Projection defaults.
const (
	Fovy            = 60.0 // degrees
	PerspectiveNear = 0.1
	PerspectiveFar  = 100000
	OrthoNear       = 1
	OrthoFar        = 100
)

// Camera describes a view into the scene.
type Camera struct {
	Type     Type
	Position r3.Vec
	Target   r3.Vec
	Up       r3.Vec

	// Perspective parameters. Fovy is the vertical field of view in degrees.
	Fovy   float64
	Aspect float64

	// Orthographic frustum.
	Left, Right, Top, Bottom float64

	Near, Far float64
}

// New returns a camera of type typ sized for canvas, looking from the
// origin down the negative y axis.
func New(typ Type, canvas Canvas) (Camera, error) {
	if !canvas.valid() {
		return Camera{}, fmt.Errorf("invalid canvas %dx%d", canvas.Width, canvas.Height)
	}
	c := Camera{Type: typ, Up: Up, Target: r3.Vec{Y: -1}}
	switch typ {
	case Perspective:
		c.Fovy = Fovy
		c.Near, c.Far = PerspectiveNear, PerspectiveFar
	case Orthographic:
		c.Near, c.Far = OrthoNear, OrthoFar
	default:
		return Camera{}, fmt.Errorf("unknown camera type %d", int(typ))
	}
	c.resize(canvas)
	return c, nil
}

func (c *Camera) resize(canvas Canvas) {
	c.Aspect = canvas.Aspect()
	w, h := float64(canvas.Width), float64(canvas.Height)
	c.Left, c.Right = -w/2, w/2
	c.Top, c.Bottom = h/2, -h/2
}

// Forward returns the unit viewing direction.
func (c Camera) Forward() r3.Vec {
	return r3.Unit(r3.Sub(c.Target, c.Position))
}

// View returns the world to camera transform. Position and Target
// must differ.
func (c Camera) View() geom.Transform {
	z := r3.Unit(r3.Sub(c.Position, c.Target))
	x := r3.Cross(c.Up, z)
	if r3.Norm(x) == 0 {
		// Looking along the up axis, nudge so the basis is defined.
		z.X += 1e-4
		z = r3.Unit(z)
		x = r3.Cross(c.Up, z)
	}
	x = r3.Unit(x)
	y := r3.Cross(z, x)
	return geom.NewTransform([]float64{
		x.X, x.Y, x.Z, -r3.Dot(x, c.Position),
		y.X, y.Y, y.Z, -r3.Dot(y, c.Position),
		z.X, z.Y, z.Z, -r3.Dot(z, c.Position),
		0, 0, 0, 1,
	})
}

// Projection returns the camera to clip space transform.
func (c Camera) Projection() geom.Transform {
	n, f := c.Near, c.Far
	if c.Type == Orthographic {
		l, r, t, b := c.Left, c.Right, c.Top, c.Bottom
		return geom.NewTransform([]float64{
			2 / (r - l), 0, 0, -(r + l) / (r - l),
			0, 2 / (t - b), 0, -(t + b) / (t - b),
			0, 0, -2 / (f - n), -(f + n) / (f - n),
			0, 0, 0, 1,
		})
	}
	top := n * math.Tan(c.Fovy*math.Pi/360)
	right := top * c.Aspect
	return geom.NewTransform([]float64{
		n / right, 0, 0, 0,
		0, n / top, 0, 0,
		0, 0, -(f + n) / (f - n), -2 * f * n / (f - n),
		0, 0, -1, 0,
	})
}

// ViewProjection returns Projection * View.
func (c Camera) ViewProjection() geom.Transform {
	return c.Projection().Mul(c.View())
}

// Unproject maps a point in normalized device coordinates to world space.
func (c Camera) Unproject(ndc r3.Vec) r3.Vec {
	return c.ViewProjection().Inv().Apply(ndc)
}

// Ray returns the picking ray through the normalized canvas coordinates
// x, y in [0,1] measured from the top left corner. dir is a unit vector.
func (c Camera) Ray(x, y float64) (origin, dir r3.Vec) {
	ndc := r3.Vec{X: 2*x - 1, Y: -2*y + 1, Z: 0.5}
	if c.Type == Orthographic {
		ndc.Z = -1
		return c.Unproject(ndc), c.Forward()
	}
	return c.Position, r3.Unit(r3.Sub(c.Unproject(ndc), c.Position))
}
