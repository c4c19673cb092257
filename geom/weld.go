package geom

import (
	"errors"
	"math"

	"github.com/soypat/stlview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// FromTriangles converts a triangle soup, as read from STL files, into an
// indexed Geometry. Vertices closer than tol on every axis share an index.
// If tol is zero it is inferred from the shortest triangle edge.
func FromTriangles(triangles [][3]r3.Vec, tol float64) (*Geometry, error) {
	if len(triangles) == 0 {
		return &Geometry{}, nil
	}
	bb := d3.Empty()
	minDist2 := math.MaxFloat64
	for i := range triangles {
		for j, vert := range triangles[i] {
			if !d3.IsFinite(vert) {
				return nil, errors.New("non-finite vertex in triangle soup")
			}
			bb = bb.Include(vert)
			side2 := r3.Norm2(r3.Sub(triangles[i][(j+1)%3], vert))
			if side2 > 0 {
				minDist2 = math.Min(minDist2, side2)
			}
		}
	}
	if tol < 0 {
		return nil, errors.New("negative vertex weld tolerance")
	}
	if tol == 0 {
		if minDist2 == math.MaxFloat64 {
			minDist2 = 1
		}
		tol = math.Sqrt(minDist2) / 256
	}
	div := d3.Max(bb.Size()) / tol
	if div > math.MaxInt64/2 {
		return nil, errors.New("tolerance too small. overflowed int64")
	}
	g := &Geometry{
		Faces: make([]Face, 0, len(triangles)),
	}
	// vertex index cache keyed by position in tolerance grid space.
	cache := make(map[[3]int64]int)
	ri := 1 / tol
	for _, tri := range triangles {
		var idx [3]int
		for j, vert := range tri {
			v := r3.Scale(ri, r3.Sub(vert, bb.Min))
			key := [3]int64{int64(math.Round(v.X)), int64(math.Round(v.Y)), int64(math.Round(v.Z))}
			vi, ok := cache[key]
			if !ok {
				vi = len(g.Vertices)
				cache[key] = vi
				g.Vertices = append(g.Vertices, vert)
			}
			idx[j] = vi
		}
		g.Faces = append(g.Faces, Face{A: idx[0], B: idx[1], C: idx[2]})
	}
	g.ComputeFaceNormals()
	return g, nil
}
