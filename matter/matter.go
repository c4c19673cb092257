// Package matter models how printing materials deform while they cool so
// exported parts can be enlarged to come out at their nominal size.
package matter

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// PLA (polylactic acid) is the most widely used plastic filament material in 3D printing.
	PLA = ViscousMaterial{name: "PLA", shrink: 0.2e-2, pullShrink: .45} // 0.2% shrinkage
)

var materials = map[string]ViscousMaterial{
	"pla": PLA,
}

// Lookup returns a predefined material by case insensitive name.
func Lookup(name string) (ViscousMaterial, error) {
	m, ok := materials[strings.ToLower(name)]
	if !ok {
		return ViscousMaterial{}, fmt.Errorf("unknown material %q", name)
	}
	return m, nil
}

type ViscousMaterial struct {
	name string
	// shrink is the thermal contraction shrinkage of a material once the material
	// cools to room temperature after the heated bed is turned off.
	shrink float64
	// pullShrink takes into account viscoelastic shrinkage.
	pullShrink float64
}

// NewViscousMaterial returns a material with thermal shrink fraction in [0, 1)
// and viscoelastic pull shrink in millimeters.
func NewViscousMaterial(name string, shrink, pullShrink float64) (ViscousMaterial, error) {
	if shrink < 0 || shrink >= 1 {
		return ViscousMaterial{}, errors.New("shrink must be in [0, 1)")
	}
	if pullShrink < 0 {
		return ViscousMaterial{}, errors.New("negative pull shrink")
	}
	return ViscousMaterial{name: name, shrink: shrink, pullShrink: pullShrink}, nil
}

func (m ViscousMaterial) Name() string { return m.name }

func (m ViscousMaterial) Shrink() float64 { return m.shrink }

// ScaleFactor is the uniform enlargement that cancels thermal shrinkage.
func (m ViscousMaterial) ScaleFactor() float64 {
	return 1 / (1 - m.shrink)
}

// Compensate scales a point about the origin by ScaleFactor.
func (m ViscousMaterial) Compensate(v r3.Vec) r3.Vec {
	return r3.Scale(m.ScaleFactor(), v)
}

// InternalDimScale returns the modelled size of an internal dimension
// such as a hole so it prints at the real size.
func (m ViscousMaterial) InternalDimScale(real float64) float64 {
	if real <= 0 {
		panic("InternalDimScale only works for non-zero dimensions")
	}
	return real*(m.shrink+1) + m.pullShrink
}
