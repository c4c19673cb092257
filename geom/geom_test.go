package geom

import (
	"math"
	"testing"

	"github.com/soypat/stlview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func TestBoxPrimitive(t *testing.T) {
	g, err := Box(20, 20, 20)
	if err != nil {
		t.Fatal(err)
	}
	if g.TriangleCount() != 12 {
		t.Fatalf("box triangles: got %d, want 12", g.TriangleCount())
	}
	bb := d3.Box(g.Bounds())
	if !bb.Equals(d3.Box{Min: d3.Elem(-10), Max: d3.Elem(10)}, tol) {
		t.Errorf("box bounds: got %+v", bb)
	}
	diag := r3.Norm(bb.Size())
	if math.Abs(diag-20*math.Sqrt(3)) > 1e-9 {
		t.Errorf("box diagonal: got %g", diag)
	}
	// Every normal must point away from the center.
	for i, f := range g.Faces {
		tri := g.Triangle(i)
		centroid := r3.Scale(1./3, r3.Add(tri[0], r3.Add(tri[1], tri[2])))
		if r3.Dot(f.Normal, centroid) <= 0 {
			t.Errorf("face %d normal %v points inwards", i, f.Normal)
		}
	}
	if _, err := Box(0, 1, 1); err == nil {
		t.Error("expected error for zero sized box")
	}
}

func TestCylinderPrimitive(t *testing.T) {
	const segments = 24
	g, err := Cylinder(10, 10, segments)
	if err != nil {
		t.Fatal(err)
	}
	if g.TriangleCount() != 4*segments {
		t.Errorf("cylinder triangles: got %d, want %d", g.TriangleCount(), 4*segments)
	}
	for i, f := range g.Faces {
		tri := g.Triangle(i)
		centroid := r3.Scale(1./3, r3.Add(tri[0], r3.Add(tri[1], tri[2])))
		if r3.Dot(f.Normal, centroid) <= 0 {
			t.Errorf("face %d normal %v points inwards", i, f.Normal)
		}
	}
	if _, err := Cylinder(1, 1, 2); err == nil {
		t.Error("expected error for 2 segment cylinder")
	}
}

func TestGeometryCenter(t *testing.T) {
	g, _ := Box(2, 4, 6)
	g.Translate(r3.Vec{X: 5, Y: 6, Z: 7})
	offset := g.Center()
	if !d3.EqualWithin(offset, r3.Vec{X: 5, Y: 6, Z: 7}, tol) {
		t.Errorf("center offset: got %v", offset)
	}
	if c := d3.Box(g.Bounds()).Center(); !d3.EqualWithin(c, r3.Vec{}, tol) {
		t.Errorf("geometry not centered: %v", c)
	}
}

func TestGeometryCloneDispose(t *testing.T) {
	g, _ := Box(1, 1, 1)
	c := g.Clone()
	c.Translate(r3.Vec{X: 10})
	if g.Vertices[0] == c.Vertices[0] {
		t.Error("clone shares vertex buffer with original")
	}
	g.Dispose()
	if !g.Disposed() || g.TriangleCount() != 0 {
		t.Error("dispose did not release buffers")
	}
	if err := g.Validate(); err == nil {
		t.Error("disposed geometry should not validate")
	}
	if c.TriangleCount() != 12 {
		t.Error("disposing original affected clone")
	}
}

func TestNewGeometryBadIndex(t *testing.T) {
	_, err := NewGeometry([]r3.Vec{{}, {X: 1}, {Y: 1}}, []Face{{A: 0, B: 1, C: 3}})
	if err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestFromTrianglesWeld(t *testing.T) {
	box, _ := Box(10, 10, 10)
	soup := make([][3]r3.Vec, box.TriangleCount())
	for i := range soup {
		soup[i] = box.Triangle(i)
	}
	g, err := FromTriangles(soup, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Vertices) != 8 {
		t.Errorf("welded vertices: got %d, want 8", len(g.Vertices))
	}
	if g.TriangleCount() != 12 {
		t.Errorf("welded faces: got %d, want 12", g.TriangleCount())
	}
	for i := range g.Faces {
		if g.Faces[i].Normal != box.Faces[i].Normal {
			t.Errorf("face %d normal changed by welding: %v != %v", i, g.Faces[i].Normal, box.Faces[i].Normal)
		}
	}
}

func TestTransformInverse(t *testing.T) {
	q := r3.NewRotation(math.Pi/3, r3.Vec{X: 1, Y: 2, Z: 3})
	T := Compose(r3.Vec{X: 1, Y: -2, Z: 3}, r3.Vec{X: 2, Y: 3, Z: 0.5}, q)
	if !T.Inv().Mul(T).Equals(Transform{}, 1e-9) {
		t.Error("T^-1 * T is not identity")
	}
	p := r3.Vec{X: 4, Y: 5, Z: 6}
	if got := T.Inv().Apply(T.Apply(p)); !d3.EqualWithin(got, p, 1e-9) {
		t.Errorf("roundtrip point: got %v want %v", got, p)
	}
	if !Compose(r3.Vec{}, d3.Elem(1), r3.Rotation{}).Equals(Transform{}, 1e-12) {
		t.Error("zero rotation compose should be identity")
	}
}

func TestNormalMatrix(t *testing.T) {
	// A non uniform scale shears normals if not using the inverse transpose.
	T := Compose(r3.Vec{X: 100}, r3.Vec{X: 1, Y: 4, Z: 1}, Identity)
	tri := [3]r3.Vec{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0, Z: 1}}
	local := r3.Unit(r3.Cross(r3.Sub(tri[1], tri[0]), r3.Sub(tri[2], tri[0])))
	var world [3]r3.Vec
	for i := range tri {
		world[i] = T.Apply(tri[i])
	}
	want := r3.Unit(r3.Cross(r3.Sub(world[1], world[0]), r3.Sub(world[2], world[0])))
	got := r3.Unit(T.NormalMatrix().ApplyDirection(local))
	if !d3.EqualWithin(got, want, 1e-9) {
		t.Errorf("normal matrix: got %v, want %v", got, want)
	}
}

func TestComposeRotation(t *testing.T) {
	a := r3.NewRotation(math.Pi/2, r3.Vec{Z: 1})
	got := Compose(r3.Vec{}, d3.Elem(1), ComposeRotation(a, a)).Apply(r3.Vec{X: 1})
	if !d3.EqualWithin(got, r3.Vec{X: -1}, 1e-9) {
		t.Errorf("two quarter turns: got %v", got)
	}
	if ComposeRotation(r3.Rotation{}, r3.Rotation{}) != Identity {
		t.Error("composing zero rotations should give identity")
	}
}

func TestSimplify(t *testing.T) {
	g, _ := Cylinder(10, 10, 64)
	s, err := Simplify(g, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	if s.TriangleCount() == 0 || s.TriangleCount() >= g.TriangleCount() {
		t.Errorf("simplify did not reduce triangles: %d -> %d", g.TriangleCount(), s.TriangleCount())
	}
	if g.TriangleCount() != 4*64 {
		t.Error("simplify modified its input")
	}
	if _, err := Simplify(g, 0); err == nil {
		t.Error("expected error for zero factor")
	}
}
