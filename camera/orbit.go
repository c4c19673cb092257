package camera

import (
	"math"

	"github.com/soypat/stlview/signal"
	"gonum.org/v1/gonum/spatial/r3"
)

// minPolar keeps the orbiting camera from crossing the up axis.
const minPolar = 1e-3

// Orbit rotates, zooms and pans the managed camera around its target.
// A disabled Orbit ignores input.
type Orbit struct {
	m        *Manager
	disabled bool

	OnChange signal.Signal[Camera]
}

// NewOrbit returns enabled orbit controls for the camera of m.
func NewOrbit(m *Manager) *Orbit {
	return &Orbit{m: m}
}

func (o *Orbit) Enabled() bool { return !o.disabled }

func (o *Orbit) SetEnabled(enabled bool) { o.disabled = !enabled }

// Rotate orbits the camera about the target by dAzimuth around the z axis
// and dPolar away from it, both in radians.
func (o *Orbit) Rotate(dAzimuth, dPolar float64) error {
	cam, ok := o.camera()
	if !ok {
		return o.err()
	}
	offset := r3.Sub(cam.Position, cam.Target)
	r := r3.Norm(offset)
	if r == 0 {
		return nil
	}
	azimuth := math.Atan2(offset.Y, offset.X) + dAzimuth
	polar := math.Acos(offset.Z/r) + dPolar
	polar = math.Max(minPolar, math.Min(math.Pi-minPolar, polar))
	sin, cos := math.Sincos(polar)
	offset = r3.Vec{
		X: r * sin * math.Cos(azimuth),
		Y: r * sin * math.Sin(azimuth),
		Z: r * cos,
	}
	return o.apply(r3.Add(cam.Target, offset), cam.Target)
}

// Zoom scales the distance between camera and target by factor.
// Factors below 1 move the camera closer.
func (o *Orbit) Zoom(factor float64) error {
	cam, ok := o.camera()
	if !ok {
		return o.err()
	}
	if factor <= 0 {
		return nil
	}
	offset := r3.Scale(factor, r3.Sub(cam.Position, cam.Target))
	return o.apply(r3.Add(cam.Target, offset), cam.Target)
}

// Pan moves camera and target together in the view plane. dx and dy are
// fractions of the distance to the target.
func (o *Orbit) Pan(dx, dy float64) error {
	cam, ok := o.camera()
	if !ok {
		return o.err()
	}
	dist := r3.Norm(r3.Sub(cam.Position, cam.Target))
	fwd := cam.Forward()
	right := r3.Cross(fwd, cam.Up)
	if r3.Norm(right) == 0 {
		right = r3.Vec{X: 1}
	}
	right = r3.Unit(right)
	up := r3.Cross(right, fwd)
	move := r3.Add(r3.Scale(dx*dist, right), r3.Scale(dy*dist, up))
	return o.apply(r3.Add(cam.Position, move), r3.Add(cam.Target, move))
}

func (o *Orbit) camera() (Camera, bool) {
	if o.disabled {
		return Camera{}, false
	}
	return o.m.Camera()
}

// err returns the reason camera() failed. Disabled controls are not an error.
func (o *Orbit) err() error {
	if o.disabled {
		return nil
	}
	return ErrNoCamera
}

func (o *Orbit) apply(position, target r3.Vec) error {
	if err := o.m.look(position, target); err != nil {
		return err
	}
	cam, _ := o.m.Camera()
	o.OnChange.Emit(cam)
	return nil
}
