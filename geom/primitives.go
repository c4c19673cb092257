package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box returns an axis aligned box of size width (x), depth (y) and
// height (z) centered at the origin. It has 8 vertices and 12 faces.
func Box(width, depth, height float64) (*Geometry, error) {
	if width <= 0 || depth <= 0 || height <= 0 {
		return nil, errors.New("box dimensions must be positive")
	}
	x, y, z := width/2, depth/2, height/2
	vertices := []r3.Vec{
		{X: -x, Y: -y, Z: -z}, // 0
		{X: x, Y: -y, Z: -z},  // 1
		{X: x, Y: y, Z: -z},   // 2
		{X: -x, Y: y, Z: -z},  // 3
		{X: -x, Y: -y, Z: z},  // 4
		{X: x, Y: -y, Z: z},   // 5
		{X: x, Y: y, Z: z},    // 6
		{X: -x, Y: y, Z: z},   // 7
	}
	faces := []Face{
		{A: 0, B: 2, C: 1}, {A: 0, B: 3, C: 2}, // bottom
		{A: 4, B: 5, C: 6}, {A: 4, B: 6, C: 7}, // top
		{A: 0, B: 1, C: 5}, {A: 0, B: 5, C: 4}, // front
		{A: 1, B: 2, C: 6}, {A: 1, B: 6, C: 5}, // right
		{A: 2, B: 3, C: 7}, {A: 2, B: 7, C: 6}, // back
		{A: 3, B: 0, C: 4}, {A: 3, B: 4, C: 7}, // left
	}
	return NewGeometry(vertices, faces)
}

// Cylinder returns a closed cylinder around the z axis centered at the
// origin with the given amount of radial segments.
func Cylinder(radius, height float64, segments int) (*Geometry, error) {
	if radius <= 0 || height <= 0 {
		return nil, errors.New("cylinder dimensions must be positive")
	}
	if segments < 3 {
		return nil, errors.New("cylinder needs at least 3 segments")
	}
	h := height / 2
	// ring vertices: bottom ring [0,segments), top ring [segments,2*segments),
	// then bottom and top cap centers.
	vertices := make([]r3.Vec, 0, 2*segments+2)
	for _, z := range [2]float64{-h, h} {
		for i := 0; i < segments; i++ {
			theta := 2 * math.Pi * float64(i) / float64(segments)
			vertices = append(vertices, r3.Vec{X: radius * math.Cos(theta), Y: radius * math.Sin(theta), Z: z})
		}
	}
	bottom, top := 2*segments, 2*segments+1
	vertices = append(vertices, r3.Vec{Z: -h}, r3.Vec{Z: h})
	faces := make([]Face, 0, 4*segments)
	for i := 0; i < segments; i++ {
		next := (i + 1) % segments
		b0, b1 := i, next
		t0, t1 := i+segments, next+segments
		faces = append(faces,
			Face{A: b0, B: b1, C: t1},
			Face{A: b0, B: t1, C: t0},
			Face{A: bottom, B: b1, C: b0},
			Face{A: top, B: t0, C: t1},
		)
	}
	return NewGeometry(vertices, faces)
}
