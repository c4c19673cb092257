package node

import (
	"errors"

	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var errSize = errors.New("build volume dimensions must be positive")

// BuildVolume is the printable region of the printer: the box spanning
// from the origin to (width, depth, height). It cannot have children.
type BuildVolume struct {
	base
	geometry *geom.Geometry
	size     r3.Vec
}

// NewBuildVolume returns a build volume of the given size in millimeters.
func NewBuildVolume(width, depth, height float64) (*BuildVolume, error) {
	unit, err := geom.Box(1, 1, 1)
	if err != nil {
		return nil, err
	}
	// Normalize to [0,1]³ so scale equals size and the position stays at the origin.
	unit.Translate(d3.Elem(0.5))
	bv := &BuildVolume{geometry: unit}
	bv.init(TypeBuildVolume, bv, true)
	if err := bv.SetSize(width, depth, height); err != nil {
		return nil, err
	}
	return bv, nil
}

// SetSize resizes the build volume.
func (bv *BuildVolume) SetSize(width, depth, height float64) error {
	if width <= 0 || depth <= 0 || height <= 0 {
		return errSize
	}
	bv.size = r3.Vec{X: width, Y: depth, Z: height}
	return nil
}

// Size returns width, depth and height as a vector.
func (bv *BuildVolume) Size() r3.Vec { return bv.size }

// Geometry returns the normalized unit geometry of the volume.
func (bv *BuildVolume) Geometry() *geom.Geometry { return bv.geometry }

func (bv *BuildVolume) Local() geom.Transform {
	return geom.Compose(r3.Vec{}, bv.size, geom.Identity)
}

// Bounds returns the axis aligned box of the volume in world space. It is
// computed from the size alone so repeated resizes never accumulate error.
func (bv *BuildVolume) Bounds() r3.Box {
	return r3.Box{Min: r3.Vec{}, Max: bv.size}
}

// Center returns the center of the volume.
func (bv *BuildVolume) Center() r3.Vec {
	return d3.Box(bv.Bounds()).Center()
}

func (bv *BuildVolume) renderSelf(RenderContext) {}

// BuildPlate is the one millimeter thick bed drawn right under the build volume.
type BuildPlate struct {
	base
	geometry *geom.Geometry
	position r3.Vec
	scale    r3.Vec
}

// NewBuildPlate returns a plate for a build volume footprint of width by depth.
func NewBuildPlate(width, depth float64) (*BuildPlate, error) {
	unit, err := geom.Box(1, 1, 1)
	if err != nil {
		return nil, err
	}
	bp := &BuildPlate{geometry: unit}
	bp.init(TypeBuildPlate, bp, true)
	if err := bp.SetSize(width, depth); err != nil {
		return nil, err
	}
	return bp, nil
}

// SetSize resizes the plate to a new footprint.
func (bp *BuildPlate) SetSize(width, depth float64) error {
	if width <= 0 || depth <= 0 {
		return errSize
	}
	bp.position = r3.Vec{X: width / 2, Y: depth / 2, Z: -0.5}
	bp.scale = r3.Vec{X: width, Y: depth, Z: 1}
	return nil
}

func (bp *BuildPlate) Geometry() *geom.Geometry { return bp.geometry }

func (bp *BuildPlate) Position() r3.Vec { return bp.position }

func (bp *BuildPlate) Scale() r3.Vec { return bp.scale }

func (bp *BuildPlate) Local() geom.Transform {
	return geom.Compose(bp.position, bp.scale, geom.Identity)
}

func (bp *BuildPlate) renderSelf(RenderContext) {}
