package controls

import (
	"sort"

	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/internal/d3"
	"github.com/soypat/stlview/node"
	"gonum.org/v1/gonum/spatial/r3"
)

// Hit is the nearest intersection of a ray with one node.
type Hit struct {
	Node node.Node
	// Distance from the ray origin along the unit ray direction.
	Distance float64
	Point    r3.Vec
}

// geometric nodes own a triangle geometry that can be hit.
type geometric interface {
	node.Node
	Geometry() *geom.Geometry
}

// Intersect casts a ray from origin along dir against every node under
// root carrying geometry and returns the hits sorted nearest first.
// Nodes at equal distance keep walk order.
func Intersect(root node.Node, origin, dir r3.Vec) []Hit {
	ray := d3.Ray{Origin: origin, Dir: r3.Unit(dir)}
	var hits []Hit
	node.Walk(root, func(n node.Node) bool {
		g, ok := n.(geometric)
		if !ok || g.Geometry().TriangleCount() == 0 {
			return true
		}
		if t, ok := intersectGeometry(ray, g.Geometry(), n.World()); ok {
			hits = append(hits, Hit{Node: n, Distance: t, Point: ray.At(t)})
		}
		return true
	})
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

func intersectGeometry(ray d3.Ray, g *geom.Geometry, world geom.Transform) (float64, bool) {
	verts := make([]r3.Vec, len(g.Vertices))
	bb := d3.Empty()
	for i, v := range g.Vertices {
		verts[i] = world.Apply(v)
		bb = bb.Include(verts[i])
	}
	if _, ok := ray.IntersectBox(bb); !ok {
		return 0, false
	}
	best, found := 0.0, false
	for _, f := range g.Faces {
		t, ok := ray.IntersectTriangle(verts[f.A], verts[f.B], verts[f.C])
		if ok && (!found || t < best) {
			best, found = t, true
		}
	}
	return best, found
}

// FirstMesh returns the first mesh among hits, or nil.
func FirstMesh(hits []Hit) *node.Mesh {
	for _, h := range hits {
		if m, ok := h.Node.(*node.Mesh); ok {
			return m
		}
	}
	return nil
}
