package node

import (
	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/internal/d3"
	"github.com/soypat/stlview/signal"
	"gonum.org/v1/gonum/spatial/r3"
)

// Color is a linear RGB color with components in [0,1].
type Color struct {
	R, G, B float64
}

// Scale multiplies every component by f.
func (c Color) Scale(f float64) Color {
	return Color{R: c.R * f, G: c.G * f, B: c.B * f}
}

var (
	// DefaultColor is the base color of new meshes.
	DefaultColor = Color{R: .5, G: .5, B: .5}
	// OutOfBoundsColor replaces the base color of meshes not contained in the build volume.
	OutOfBoundsColor = Color{R: 1, G: .25, B: .25}
	// Black has every component at zero.
	Black = Color{}
)

// SelectionFactor scales the base color into the emissive color of a selected mesh.
const SelectionFactor = 0.2

// Material is the render facing appearance of a mesh.
type Material struct {
	Color    Color
	Emissive Color
	updates  int
}

func (m *Material) set(color, emissive Color) {
	m.Color = color
	m.Emissive = emissive
	m.updates++
}

// Updates returns how many times the material was written to.
func (m Material) Updates() int { return m.updates }

// Property names carried in PropertyChange.
const (
	PropColor       = "color"
	PropSelected    = "selected"
	PropPosition    = "position"
	PropRotation    = "rotation"
	PropScale       = "scale"
	PropOutOfBounds = "outOfBounds"
)

// Mesh is a node holding a triangle geometry with a transform and color.
//
// Any change to color, selection, bounds state or transform marks the mesh
// dirty and is announced through OnPropertyChanged. The next Render applies
// pending visual changes to the mesh's Material and clears the dirty flag.
type Mesh struct {
	base
	geometry    *geom.Geometry
	position    r3.Vec
	rotation    r3.Rotation
	scale       r3.Vec
	color       Color
	material    Material
	selected    bool
	outOfBounds bool
	dirty       bool

	OnPropertyChanged signal.Signal[PropertyChange]
}

// NewMesh returns a dirty mesh owning g with DefaultColor and unit scale.
func NewMesh(g *geom.Geometry) *Mesh {
	if g == nil {
		g = &geom.Geometry{}
	}
	m := &Mesh{
		geometry: g,
		rotation: geom.Identity,
		scale:    d3.Elem(1),
		color:    DefaultColor,
		dirty:    true,
	}
	m.init(TypeMesh, m, false)
	return m
}

// SourceTag identifies render requests originating from this mesh.
func (m *Mesh) SourceTag() string { return "meshNode_" + m.id }

func (m *Mesh) Geometry() *geom.Geometry { return m.geometry }

func (m *Mesh) Position() r3.Vec { return m.position }

func (m *Mesh) Rotation() r3.Rotation { return m.rotation }

func (m *Mesh) Scale() r3.Vec { return m.scale }

func (m *Mesh) Color() Color { return m.color }

func (m *Mesh) Material() Material { return m.material }

func (m *Mesh) Selected() bool { return m.selected }

func (m *Mesh) OutOfBounds() bool { return m.outOfBounds }

func (m *Mesh) Dirty() bool { return m.dirty }

func (m *Mesh) SetColor(c Color) {
	m.color = c
	m.changed(PropColor, c)
}

func (m *Mesh) SetSelected(selected bool) {
	m.selected = selected
	m.changed(PropSelected, selected)
}

func (m *Mesh) SetPosition(p r3.Vec) {
	m.position = p
	m.changed(PropPosition, p)
}

func (m *Mesh) SetRotation(q r3.Rotation) {
	m.rotation = geom.NormalizeRotation(q)
	m.changed(PropRotation, m.rotation)
}

func (m *Mesh) SetScale(s r3.Vec) {
	m.scale = s
	m.changed(PropScale, s)
}

// SetOutOfBounds flags the mesh as lying outside the build volume.
// Only actual changes mark the mesh dirty.
func (m *Mesh) SetOutOfBounds(out bool) {
	if m.outOfBounds == out {
		return
	}
	m.outOfBounds = out
	m.changed(PropOutOfBounds, out)
}

func (m *Mesh) changed(prop string, v any) {
	m.dirty = true
	m.OnPropertyChanged.Emit(PropertyChange{NodeID: m.id, Property: prop, Value: v})
}

func (m *Mesh) Local() geom.Transform {
	return geom.Compose(m.position, m.scale, m.rotation)
}

func (m *Mesh) renderSelf(ctx RenderContext) {
	if !m.dirty && (ctx.Source == m.SourceTag() || !ctx.Force) {
		return
	}
	color := m.color
	if m.outOfBounds {
		color = OutOfBoundsColor
	}
	emissive := Black
	if m.selected {
		emissive = m.color.Scale(SelectionFactor)
	}
	m.material.set(color, emissive)
	m.dirty = false
}

// Bounds returns the world axis aligned bounding box of the mesh's vertices.
func (m *Mesh) Bounds() r3.Box {
	if len(m.geometry.Vertices) == 0 {
		p := m.World().Translation()
		return r3.Box{Min: p, Max: p}
	}
	world := m.World()
	bb := d3.Empty()
	for _, v := range m.geometry.Vertices {
		bb = bb.Include(world.Apply(v))
	}
	return r3.Box(bb)
}

// InBuildVolume reports whether the mesh's world bounds lie inside bv.
func (m *Mesh) InBuildVolume(bv *BuildVolume) bool {
	return d3.Box(bv.Bounds()).ContainsBox(d3.Box(m.Bounds()), containTol)
}

const containTol = 1e-6

// Dispose releases the mesh's geometry, disconnects every property
// subscriber and detaches the mesh from its parent.
func (m *Mesh) Dispose() {
	m.geometry.Dispose()
	m.OnPropertyChanged.DisconnectAll()
	Detach(m)
}
