package geom

import (
	"errors"
	"fmt"

	"github.com/soypat/stlview/internal/d3"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Face is a triangle referencing three vertices of a Geometry
// in counter-clockwise order when seen from outside.
type Face struct {
	A, B, C int
	// Normal is the unit face normal in the local space of the geometry.
	Normal r3.Vec
}

// Geometry is an indexed triangle buffer.
type Geometry struct {
	Vertices []r3.Vec
	Faces    []Face
	disposed bool
}

// NewGeometry creates an indexed geometry and computes face normals.
// Every face index must reference an existing vertex.
func NewGeometry(vertices []r3.Vec, faces []Face) (*Geometry, error) {
	for i, f := range faces {
		if !validIndex(f.A, len(vertices)) || !validIndex(f.B, len(vertices)) || !validIndex(f.C, len(vertices)) {
			return nil, fmt.Errorf("face %d references vertex out of range [0,%d)", i, len(vertices))
		}
	}
	g := &Geometry{Vertices: vertices, Faces: faces}
	g.ComputeFaceNormals()
	return g, nil
}

func validIndex(i, n int) bool { return i >= 0 && i < n }

// TriangleCount returns the number of faces.
func (g *Geometry) TriangleCount() int { return len(g.Faces) }

// Triangle returns the local vertices of the ith face.
func (g *Geometry) Triangle(i int) [3]r3.Vec {
	f := g.Faces[i]
	return [3]r3.Vec{g.Vertices[f.A], g.Vertices[f.B], g.Vertices[f.C]}
}

// ComputeFaceNormals recalculates the unit normal of every face from
// its vertex winding. Degenerate faces get a zero normal.
func (g *Geometry) ComputeFaceNormals() {
	for i := range g.Faces {
		t := g.Triangle(i)
		n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
		if r3.Norm(n) == 0 {
			g.Faces[i].Normal = r3.Vec{}
			continue
		}
		g.Faces[i].Normal = r3.Unit(n)
	}
}

// Bounds returns the local axis aligned bounding box of the vertices.
// An empty geometry has a zero box.
func (g *Geometry) Bounds() r3.Box {
	if len(g.Vertices) == 0 {
		return r3.Box{}
	}
	return r3.Box{Min: d3.Set(g.Vertices).Min(), Max: d3.Set(g.Vertices).Max()}
}

// Center translates the geometry so the center of its bounding box
// sits at the origin and returns the offset that was removed.
func (g *Geometry) Center() r3.Vec {
	offset := d3.Box(g.Bounds()).Center()
	g.Translate(r3.Scale(-1, offset))
	return offset
}

// Translate moves every vertex by v.
func (g *Geometry) Translate(v r3.Vec) {
	for i := range g.Vertices {
		g.Vertices[i] = r3.Add(g.Vertices[i], v)
	}
}

// Transform applies t to every vertex and recomputes normals.
func (g *Geometry) Transform(t Transform) {
	for i := range g.Vertices {
		g.Vertices[i] = t.Apply(g.Vertices[i])
	}
	g.ComputeFaceNormals()
}

// Clone returns a deep copy of the geometry.
func (g *Geometry) Clone() *Geometry {
	c := &Geometry{
		Vertices: make([]r3.Vec, len(g.Vertices)),
		Faces:    make([]Face, len(g.Faces)),
		disposed: g.disposed,
	}
	copy(c.Vertices, g.Vertices)
	copy(c.Faces, g.Faces)
	return c
}

// Dispose releases the vertex and face buffers.
// A disposed geometry is empty.
func (g *Geometry) Dispose() {
	g.Vertices = nil
	g.Faces = nil
	g.disposed = true
}

// Disposed reports whether Dispose was called.
func (g *Geometry) Disposed() bool { return g.disposed }

// Validate checks indices and that vertices are finite.
func (g *Geometry) Validate() error {
	if g.disposed {
		return errors.New("geometry disposed")
	}
	for i, v := range g.Vertices {
		if !d3.IsFinite(v) {
			return fmt.Errorf("vertex %d is not finite: %v", i, v)
		}
	}
	for i, f := range g.Faces {
		if !validIndex(f.A, len(g.Vertices)) || !validIndex(f.B, len(g.Vertices)) || !validIndex(f.C, len(g.Vertices)) {
			return fmt.Errorf("face %d references vertex out of range", i)
		}
	}
	return nil
}

// Identity is the rotation that leaves vectors unchanged.
var Identity = r3.Rotation{Real: 1}

// NormalizeRotation maps the zero rotation to Identity and returns q unchanged otherwise.
func NormalizeRotation(q r3.Rotation) r3.Rotation {
	if q == (r3.Rotation{}) {
		return Identity
	}
	return q
}

// ComposeRotation returns the rotation that applies b first and then a.
func ComposeRotation(a, b r3.Rotation) r3.Rotation {
	a = NormalizeRotation(a)
	b = NormalizeRotation(b)
	return r3.Rotation(quat.Mul(quat.Number(a), quat.Number(b)))
}
