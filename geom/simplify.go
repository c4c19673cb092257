package geom

import (
	"errors"

	"github.com/fogleman/simplify"
	"gonum.org/v1/gonum/spatial/r3"
)

// Simplify returns a decimated copy of g keeping roughly factor of its
// triangles, with factor in (0,1]. g is not modified.
func Simplify(g *Geometry, factor float64) (*Geometry, error) {
	if factor <= 0 || factor > 1 {
		return nil, errors.New("simplify factor must be in (0,1]")
	}
	if factor == 1 || g.TriangleCount() == 0 {
		return g.Clone(), nil
	}
	tris := make([]*simplify.Triangle, g.TriangleCount())
	for i := range g.Faces {
		t := g.Triangle(i)
		tris[i] = &simplify.Triangle{V1: toSimplify(t[0]), V2: toSimplify(t[1]), V3: toSimplify(t[2])}
	}
	mesh := &simplify.Mesh{Triangles: tris}
	reduced := mesh.Simplify(factor)
	soup := make([][3]r3.Vec, len(reduced.Triangles))
	for i, t := range reduced.Triangles {
		soup[i] = [3]r3.Vec{fromSimplify(t.V1), fromSimplify(t.V2), fromSimplify(t.V3)}
	}
	return FromTriangles(soup, 0)
}

func toSimplify(v r3.Vec) simplify.Vector { return simplify.Vector{X: v.X, Y: v.Y, Z: v.Z} }

func fromSimplify(v simplify.Vector) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
