package scene

import (
	"errors"
	"math"
	"testing"

	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/internal/d3"
	"github.com/soypat/stlview/node"
	"gonum.org/v1/gonum/spatial/r3"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestAddMeshPlacement(t *testing.T) {
	m := newManager(t)
	g, _ := geom.Box(20, 30, 40)
	// Off center geometry must be centered on its own bounds first.
	g.Translate(r3.Vec{X: -500, Y: 12, Z: 3})
	mesh, err := m.AddMesh(node.NewMesh(g), "")
	if err != nil {
		t.Fatal(err)
	}
	bb := d3.Box(mesh.Bounds())
	c := bb.Center()
	if math.Abs(c.X-100) > 1e-9 || math.Abs(c.Y-100) > 1e-9 {
		t.Errorf("mesh not centered on footprint: %v", c)
	}
	if math.Abs(bb.Min.Z) > 1e-9 || math.Abs(bb.Max.Z-40) > 1e-9 {
		t.Errorf("mesh not resting on floor: z %g..%g", bb.Min.Z, bb.Max.Z)
	}
	if !d3.EqualWithin(d3.Box(g.Bounds()).Center(), r3.Vec{}, 1e-9) {
		t.Error("geometry pivot not moved to its center")
	}
	if mesh.Parent() != node.Node(m.Root()) {
		t.Error("mesh not attached to root")
	}
}

func TestAddMeshUnknownParent(t *testing.T) {
	m := newManager(t)
	mesh, err := m.AddCube("does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if mesh.Parent() != node.Node(m.Root()) {
		t.Error("unknown parent should fall back to root")
	}
	// Build volume cannot hold children, fall back too.
	mesh2, err := m.AddCube(m.BuildVolume().ID())
	if err != nil {
		t.Fatal(err)
	}
	if mesh2.Parent() != node.Node(m.Root()) {
		t.Error("leaf parent should fall back to root")
	}
	// A mesh can parent another mesh.
	child, err := m.AddCylinder(mesh.ID())
	if err != nil {
		t.Fatal(err)
	}
	if child.Parent() != node.Node(mesh) {
		t.Error("mesh parent was not honored")
	}
	bb := d3.Box(child.Bounds())
	if math.Abs(bb.Min.Z) > 1e-9 {
		t.Errorf("child mesh not resting on floor: %g", bb.Min.Z)
	}
}

func TestRenderRequests(t *testing.T) {
	m := newManager(t)
	var reqs []node.RenderContext
	added := 0
	m.OnRenderRequest.Connect(func(ctx node.RenderContext) { reqs = append(reqs, ctx) })
	m.OnMeshAdded.Connect(func(*node.Mesh) { added++ })
	mesh, err := m.AddCube("")
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Errorf("OnMeshAdded emitted %d times", added)
	}
	if len(reqs) == 0 || reqs[len(reqs)-1].Type != node.RequestMesh {
		t.Fatalf("missing mesh render request: %+v", reqs)
	}
	reqs = reqs[:0]
	mesh.SetColor(node.Color{R: 1})
	if len(reqs) != 1 || reqs[0].Source != mesh.SourceTag() || reqs[0].Type != node.RequestMesh {
		t.Errorf("property change not rebroadcast: %+v", reqs)
	}
}

func TestRemoveMesh(t *testing.T) {
	m := newManager(t)
	mesh, _ := m.AddCube("")
	var removed *node.Mesh
	m.OnMeshRemoved.Connect(func(n *node.Mesh) { removed = n })
	if err := m.RemoveMesh(mesh.ID()); err != nil {
		t.Fatal(err)
	}
	if removed != mesh {
		t.Error("OnMeshRemoved not emitted with mesh")
	}
	if m.FindByID(mesh.ID()) != nil || len(m.Meshes()) != 0 {
		t.Error("mesh still in tree")
	}
	if !mesh.Geometry().Disposed() {
		t.Error("geometry not released")
	}
	if err := m.RemoveMesh(mesh.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
	if err := m.RemoveMesh(m.BuildVolume().ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("removing non mesh: want ErrNotFound, got %v", err)
	}
}

func TestRemoveMeshWithChildren(t *testing.T) {
	m := newManager(t)
	parent, _ := m.AddCube("")
	child, err := m.AddCube(parent.ID())
	if err != nil {
		t.Fatal(err)
	}
	if child.Parent() != node.Node(parent) {
		t.Fatal("child not attached to parent mesh")
	}
	var removed []*node.Mesh
	m.OnMeshRemoved.Connect(func(n *node.Mesh) { removed = append(removed, n) })
	if err := m.RemoveMesh(parent.ID()); err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 || removed[0] != child || removed[1] != parent {
		t.Errorf("removed %d meshes, want child then parent", len(removed))
	}
	if !child.Geometry().Disposed() || child.OnPropertyChanged.Len() != 0 || child.Parent() != nil {
		t.Error("child mesh outlived its parent")
	}
	if len(m.subs) != 0 {
		t.Errorf("%d scene subscriptions left", len(m.subs))
	}
	requests := 0
	m.OnRenderRequest.Connect(func(node.RenderContext) { requests++ })
	child.SetColor(node.Color{R: 1})
	if requests != 0 {
		t.Errorf("removed child issued %d render requests", requests)
	}
	if len(m.Meshes()) != 0 {
		t.Errorf("%d meshes left in scene", len(m.Meshes()))
	}
}

func TestSetBuildVolumeSize(t *testing.T) {
	m := newManager(t)
	var changes []r3.Box
	m.OnBuildVolumeChanged.Connect(func(b r3.Box) { changes = append(changes, b) })
	if err := m.SetBuildVolumeSize(100, 150, 300); err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("want exactly one change signal, got %d", len(changes))
	}
	want := r3.Vec{X: 100, Y: 150, Z: 300}
	if changes[0].Max != want || m.BuildVolume().Bounds().Max != want {
		t.Errorf("resized max corner: got %v", changes[0].Max)
	}
	if m.BuildPlate().Position() != (r3.Vec{X: 50, Y: 75, Z: -0.5}) {
		t.Errorf("plate not resized in lockstep: %v", m.BuildPlate().Position())
	}
	if err := m.SetBuildVolumeSize(-1, 1, 1); err == nil {
		t.Error("expected error for negative size")
	}
	if len(changes) != 1 {
		t.Error("failed resize emitted a change")
	}
}

func TestContainment(t *testing.T) {
	m := newManager(t)
	mesh, _ := m.AddCube("")
	if mesh.OutOfBounds() {
		t.Fatal("freshly placed cube out of bounds")
	}
	var outEvents int
	m.OnMeshOutOfBounds.Connect(func(*node.Mesh) { outEvents++ })
	mesh.SetPosition(r3.Vec{X: 199, Y: 100, Z: 5})
	outside := m.CheckContainment()
	if len(outside) != 1 || !mesh.OutOfBounds() || outEvents != 1 {
		t.Fatalf("cube over the edge not flagged: %d outside, %d events", len(outside), outEvents)
	}
	m.CheckContainment()
	if outEvents != 1 {
		t.Error("out of bounds event repeated for same mesh")
	}
	mesh.Render(node.RenderContext{})
	if mesh.Material().Color != node.OutOfBoundsColor {
		t.Error("out of bounds mesh not highlighted")
	}
	if err := m.SetBuildVolumeSize(300, 300, 300); err != nil {
		t.Fatal(err)
	}
	if mesh.OutOfBounds() {
		t.Error("growing the volume did not clear the flag")
	}
}

func TestMeshBounds(t *testing.T) {
	m := newManager(t)
	if _, ok := m.MeshBounds(); ok {
		t.Fatal("empty scene has mesh bounds")
	}
	m.AddCube("")
	b, _ := m.AddCube("")
	b.SetPosition(r3.Vec{X: 20, Y: 30, Z: 5})
	bb, ok := m.MeshBounds()
	if !ok {
		t.Fatal("no bounds")
	}
	want := r3.Box{Min: r3.Vec{X: 15, Y: 25, Z: 0}, Max: r3.Vec{X: 105, Y: 105, Z: 10}}
	if !d3.Box(bb).Equals(d3.Box(want), 1e-9) {
		t.Errorf("got %v, want %v", bb, want)
	}
}
