// Package scene owns the node tree of a viewer: the root, the build volume
// and plate, and every mesh placed on the plate.
package scene

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/internal/d3"
	"github.com/soypat/stlview/node"
	"github.com/soypat/stlview/signal"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNotFound is returned when an id does not resolve to a mesh of the scene.
var ErrNotFound = errors.New("node not found")

// Source tag of render requests issued by the scene manager itself.
const Source = "sceneManager"

// Config holds the parameters of a new Manager. The zero value is usable.
type Config struct {
	// BuildVolume is the initial width, depth and height. Defaults to 200mm³.
	BuildVolume r3.Vec
	Logger      *slog.Logger
}

// Manager owns the scene tree and mediates every structural change to it.
type Manager struct {
	root   *node.Root
	volume *node.BuildVolume
	plate  *node.BuildPlate
	subs   map[string]signal.Connection
	log    *slog.Logger

	OnMeshAdded          signal.Signal[*node.Mesh]
	OnMeshRemoved        signal.Signal[*node.Mesh]
	OnRenderRequest      signal.Signal[node.RenderContext]
	OnBuildVolumeChanged signal.Signal[r3.Box]
	// OnMeshOutOfBounds is emitted when a mesh leaves the build volume.
	OnMeshOutOfBounds signal.Signal[*node.Mesh]
}

// NewManager creates a scene with a build volume and plate attached to the root.
func NewManager(cfg Config) (*Manager, error) {
	size := cfg.BuildVolume
	if size == (r3.Vec{}) {
		size = d3.Elem(200)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	volume, err := node.NewBuildVolume(size.X, size.Y, size.Z)
	if err != nil {
		return nil, err
	}
	plate, err := node.NewBuildPlate(size.X, size.Y)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		root:   node.NewRoot(),
		volume: volume,
		plate:  plate,
		subs:   make(map[string]signal.Connection),
		log:    cfg.Logger,
	}
	if err := m.root.AddChild(volume); err != nil {
		return nil, err
	}
	if err := m.root.AddChild(plate); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) Root() *node.Root { return m.root }

func (m *Manager) BuildVolume() *node.BuildVolume { return m.volume }

func (m *Manager) BuildPlate() *node.BuildPlate { return m.plate }

// Meshes returns every mesh of the scene in walk order.
func (m *Manager) Meshes() []*node.Mesh { return node.Meshes(m.root) }

// FindByID returns the node with the given id or nil.
func (m *Manager) FindByID(id string) node.Node { return node.FindByID(m.root, id) }

// AddMesh centers mesh's geometry on its bounding box center, inserts it
// under the node parentID and places it on the middle of the build plate.
// An empty or unknown parentID attaches the mesh to the root.
func (m *Manager) AddMesh(mesh *node.Mesh, parentID string) (*node.Mesh, error) {
	if mesh == nil {
		return nil, errors.New("nil mesh")
	}
	if mesh.Parent() != nil {
		return nil, fmt.Errorf("add mesh %s: %w", mesh.ID(), node.ErrHasParent)
	}
	if err := mesh.Geometry().Validate(); err != nil {
		return nil, fmt.Errorf("add mesh %s: %w", mesh.ID(), err)
	}
	mesh.Geometry().Center()

	var parent node.Node = m.root
	if parentID != "" {
		if p := m.FindByID(parentID); p != nil && p.Type() != node.TypeBuildVolume && p.Type() != node.TypeBuildPlate {
			parent = p
		} else {
			m.log.Debug("parent not found, attaching mesh to root", slog.String("parent", parentID), slog.String("mesh", mesh.ID()))
		}
	}
	if err := parent.AddChild(mesh); err != nil {
		return nil, err
	}
	m.place(mesh)

	tag := mesh.SourceTag()
	m.subs[mesh.ID()] = mesh.OnPropertyChanged.Connect(func(node.PropertyChange) {
		m.OnRenderRequest.Emit(node.RenderContext{Source: tag, Type: node.RequestMesh})
	})
	m.OnMeshAdded.Emit(mesh)
	m.CheckContainment()
	m.OnRenderRequest.Emit(node.RenderContext{Source: tag, Type: node.RequestMesh})
	m.log.Debug("mesh added", slog.String("mesh", mesh.ID()), slog.Int("triangles", mesh.Geometry().TriangleCount()))
	return mesh, nil
}

// place moves mesh so its world bounds are centered over the build plate
// with the bottom resting on the floor of the build volume.
func (m *Manager) place(mesh *node.Mesh) {
	vb := d3.Box(m.volume.Bounds())
	mb := d3.Box(mesh.Bounds())
	vc, mc := vb.Center(), mb.Center()
	delta := r3.Vec{X: vc.X - mc.X, Y: vc.Y - mc.Y, Z: vb.Min.Z - mb.Min.Z}
	if p := mesh.Parent(); p != nil {
		// Express the world displacement in the frame of the parent.
		delta = p.World().Inv().ApplyDirection(delta)
	}
	mesh.SetPosition(r3.Add(mesh.Position(), delta))
}

// AddCube adds a 10mm cube.
func (m *Manager) AddCube(parentID string) (*node.Mesh, error) {
	g, err := geom.Box(10, 10, 10)
	if err != nil {
		return nil, err
	}
	return m.AddMesh(node.NewMesh(g), parentID)
}

// AddCylinder adds a cylinder of radius and height 10mm.
func (m *Manager) AddCylinder(parentID string) (*node.Mesh, error) {
	g, err := geom.Cylinder(10, 10, 24)
	if err != nil {
		return nil, err
	}
	return m.AddMesh(node.NewMesh(g), parentID)
}

// RemoveMesh disposes of the mesh with the given id and every mesh under
// it, detaching them from the tree. Descendants are removed first.
func (m *Manager) RemoveMesh(id string) error {
	mesh, ok := m.FindByID(id).(*node.Mesh)
	if !ok {
		return fmt.Errorf("remove mesh %q: %w", id, ErrNotFound)
	}
	subtree := node.Meshes(mesh)
	for i := len(subtree) - 1; i >= 0; i-- {
		sub := subtree[i]
		if conn, ok := m.subs[sub.ID()]; ok {
			conn.Disconnect()
			delete(m.subs, sub.ID())
		}
		sub.Dispose()
		m.OnMeshRemoved.Emit(sub)
		m.log.Debug("mesh removed", slog.String("mesh", sub.ID()))
	}
	m.OnRenderRequest.Emit(node.RenderContext{Source: Source, Type: node.RequestScene})
	return nil
}

// SetBuildVolumeSize resizes the build volume and the plate under it.
func (m *Manager) SetBuildVolumeSize(width, depth, height float64) error {
	if width <= 0 || depth <= 0 || height <= 0 {
		return fmt.Errorf("invalid build volume size %gx%gx%g", width, depth, height)
	}
	if err := m.volume.SetSize(width, depth, height); err != nil {
		return err
	}
	if err := m.plate.SetSize(width, depth); err != nil {
		return err
	}
	m.OnBuildVolumeChanged.Emit(m.volume.Bounds())
	m.CheckContainment()
	m.OnRenderRequest.Emit(node.RenderContext{Source: Source, Type: node.RequestScene})
	return nil
}

// CheckContainment flags every mesh that is not inside the build volume
// as out of bounds and clears the flag on the rest. It returns the
// meshes found outside.
func (m *Manager) CheckContainment() []*node.Mesh {
	var outside []*node.Mesh
	for _, mesh := range m.Meshes() {
		out := !mesh.InBuildVolume(m.volume)
		if out {
			outside = append(outside, mesh)
			if !mesh.OutOfBounds() {
				m.OnMeshOutOfBounds.Emit(mesh)
			}
		}
		mesh.SetOutOfBounds(out)
	}
	return outside
}

// MeshBounds returns the world box enclosing every mesh. It is false
// when the scene has no meshes.
func (m *Manager) MeshBounds() (r3.Box, bool) {
	meshes := m.Meshes()
	if len(meshes) == 0 {
		return r3.Box{}, false
	}
	bb := d3.Box(meshes[0].Bounds())
	for _, mesh := range meshes[1:] {
		bb = bb.Extend(d3.Box(mesh.Bounds()))
	}
	return r3.Box(bb), true
}

// Render renders the node tree with ctx.
func (m *Manager) Render(ctx node.RenderContext) {
	m.root.Render(ctx)
}
