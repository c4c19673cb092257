package node

import (
	"errors"
	"strings"
	"testing"

	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

func newCube(t *testing.T, side float64) *Mesh {
	t.Helper()
	g, err := geom.Box(side, side, side)
	if err != nil {
		t.Fatal(err)
	}
	return NewMesh(g)
}

func TestRenderIdempotent(t *testing.T) {
	m := newCube(t, 10)
	if !m.Dirty() {
		t.Fatal("new mesh should be dirty")
	}
	ctx := RenderContext{Type: RequestScene}
	m.Render(ctx)
	if m.Dirty() {
		t.Fatal("render did not clear dirty flag")
	}
	first := m.Material()
	if first.Updates() != 1 {
		t.Fatalf("want one material update, got %d", first.Updates())
	}
	m.Render(ctx)
	second := m.Material()
	if second != first {
		t.Errorf("second render changed material: %+v -> %+v", first, second)
	}
	// A render triggered by the mesh itself is a no-op even when forced.
	m.Render(RenderContext{Source: m.SourceTag(), Type: RequestMesh, Force: true})
	if m.Material().Updates() != 1 {
		t.Errorf("self sourced render updated the material")
	}
	// Forced renders from elsewhere reapply the state.
	m.Render(RenderContext{Source: "camera", Type: RequestCamera, Force: true})
	if m.Material().Updates() != 2 {
		t.Errorf("forced render did not reapply material")
	}
}

func TestSelectionEmissive(t *testing.T) {
	m := newCube(t, 1)
	m.SetColor(Color{R: 1, G: .5, B: 0})
	m.SetSelected(true)
	m.Render(RenderContext{})
	want := Color{R: .2, G: .1, B: 0}
	got := m.Material().Emissive
	if !d3.EqualWithin(r3.Vec{X: got.R, Y: got.G, Z: got.B}, r3.Vec{X: want.R, Y: want.G, Z: want.B}, 1e-12) {
		t.Errorf("selected emissive: got %+v, want %+v", got, want)
	}
	m.SetSelected(false)
	if !m.Dirty() {
		t.Fatal("deselect did not mark dirty")
	}
	m.Render(RenderContext{})
	if m.Material().Emissive != Black {
		t.Errorf("deselected emissive not black: %+v", m.Material().Emissive)
	}
	m.SetOutOfBounds(true)
	m.Render(RenderContext{})
	if m.Material().Color != OutOfBoundsColor {
		t.Errorf("out of bounds color: %+v", m.Material().Color)
	}
}

func TestPropertyChanged(t *testing.T) {
	m := newCube(t, 1)
	var got []PropertyChange
	m.OnPropertyChanged.Connect(func(pc PropertyChange) { got = append(got, pc) })
	m.SetColor(Color{R: 1})
	m.SetSelected(true)
	m.SetPosition(r3.Vec{X: 1})
	m.SetOutOfBounds(false) // unchanged, no emission
	if len(got) != 3 {
		t.Fatalf("want 3 property changes, got %d: %+v", len(got), got)
	}
	if got[0].NodeID != m.ID() || got[0].Property != PropColor || got[0].Value != (Color{R: 1}) {
		t.Errorf("unexpected color change payload %+v", got[0])
	}
	if got[1].Property != PropSelected || got[1].Value != true {
		t.Errorf("unexpected selection change payload %+v", got[1])
	}
	if !strings.HasPrefix(m.SourceTag(), "meshNode_") || !strings.HasSuffix(m.SourceTag(), m.ID()) {
		t.Errorf("bad source tag %q", m.SourceTag())
	}
}

func TestTreeOps(t *testing.T) {
	root := NewRoot()
	group := NewGroup()
	a, b := newCube(t, 1), newCube(t, 1)
	for _, err := range []error{root.AddChild(group), group.AddChild(a), root.AddChild(b)} {
		if err != nil {
			t.Fatal(err)
		}
	}
	if a.Parent() != Node(group) || group.Parent() != Node(root) {
		t.Fatal("parent pointers not set")
	}
	if err := root.AddChild(a); !errors.Is(err, ErrHasParent) {
		t.Errorf("want ErrHasParent, got %v", err)
	}
	if err := a.AddChild(group); err == nil {
		t.Error("want cycle error")
	}
	bv, _ := NewBuildVolume(10, 10, 10)
	if err := bv.AddChild(NewGroup()); !errors.Is(err, ErrLeaf) {
		t.Errorf("want ErrLeaf, got %v", err)
	}

	var order []Node
	Walk(root, func(n Node) bool { order = append(order, n); return true })
	want := []Node{root, group, a, b}
	if len(order) != len(want) {
		t.Fatalf("walk visited %d nodes, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("walk order mismatch at %d: %s", i, order[i].Type())
		}
	}
	if FindByID(root, b.ID()) != Node(b) {
		t.Error("FindByID did not find b")
	}
	if FindByID(root, "nope") != nil {
		t.Error("FindByID found missing id")
	}
	if meshes := Meshes(root); len(meshes) != 2 || meshes[0] != a || meshes[1] != b {
		t.Errorf("Meshes: got %v", meshes)
	}

	if !group.RemoveChild(a) || a.Parent() != nil {
		t.Error("RemoveChild did not detach")
	}
	if group.RemoveChild(a) {
		t.Error("second RemoveChild should report false")
	}
}

func TestWorldTransform(t *testing.T) {
	root := NewRoot()
	group := NewGroup()
	group.SetLocal(geom.Compose(r3.Vec{X: 10}, d3.Elem(2), geom.Identity))
	m := newCube(t, 2)
	m.SetPosition(r3.Vec{Y: 1})
	root.AddChild(group)
	group.AddChild(m)
	bb := d3.Box(m.Bounds())
	want := d3.Box{Min: r3.Vec{X: 8, Y: 0, Z: -2}, Max: r3.Vec{X: 12, Y: 4, Z: 2}}
	if !bb.Equals(want, 1e-12) {
		t.Errorf("world bounds: got %+v, want %+v", bb, want)
	}
}

func TestBuildVolume(t *testing.T) {
	bv, err := NewBuildVolume(200, 200, 200)
	if err != nil {
		t.Fatal(err)
	}
	if err := bv.SetSize(100, 150, 300); err != nil {
		t.Fatal(err)
	}
	if bv.Bounds().Max != (r3.Vec{X: 100, Y: 150, Z: 300}) || bv.Bounds().Min != (r3.Vec{}) {
		t.Errorf("resized bounds: %+v", bv.Bounds())
	}
	// Transforming the normalized geometry agrees with the closed form bounds.
	world := bv.World()
	bb := d3.Empty()
	for _, v := range bv.Geometry().Vertices {
		bb = bb.Include(world.Apply(v))
	}
	if !bb.Equals(d3.Box(bv.Bounds()), 1e-9) {
		t.Errorf("geometry bounds %+v disagree with %+v", bb, bv.Bounds())
	}
	if err := bv.SetSize(0, 1, 1); err == nil {
		t.Error("expected error for zero width")
	}

	bp, err := NewBuildPlate(100, 150)
	if err != nil {
		t.Fatal(err)
	}
	if bp.Position() != (r3.Vec{X: 50, Y: 75, Z: -0.5}) || bp.Scale() != (r3.Vec{X: 100, Y: 150, Z: 1}) {
		t.Errorf("plate transform: pos %v scale %v", bp.Position(), bp.Scale())
	}

	m := newCube(t, 10)
	m.SetPosition(r3.Vec{X: 50, Y: 50, Z: 5})
	if !m.InBuildVolume(bv) {
		t.Error("cube resting on floor should be inside")
	}
	m.SetPosition(r3.Vec{X: 98, Y: 50, Z: 5})
	if m.InBuildVolume(bv) {
		t.Error("cube crossing x max should be outside")
	}
}

func TestMeshDispose(t *testing.T) {
	root := NewRoot()
	m := newCube(t, 1)
	root.AddChild(m)
	calls := 0
	m.OnPropertyChanged.Connect(func(PropertyChange) { calls++ })
	m.Dispose()
	if !m.Geometry().Disposed() {
		t.Error("geometry not disposed")
	}
	if m.Parent() != nil || len(root.Children()) != 0 {
		t.Error("mesh still attached")
	}
	m.SetColor(Black)
	if calls != 0 {
		t.Error("subscriber survived dispose")
	}
}
