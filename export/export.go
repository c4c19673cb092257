// Package export serializes the mesh nodes of a scene tree.
//
// Exporters pull the current state of the tree on every call. Geometry is
// cloned and moved to world space, so exporting never mutates the scene.
package export

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/matter"
	"github.com/soypat/stlview/node"
	"gonum.org/v1/gonum/spatial/r3"
)

// Signature is the default binary STL header text.
const Signature = "Created with stlview, a 3D printing model viewer."

// Exporter serializes the meshes of a scene.
type Exporter interface {
	Export() ([]byte, error)
}

// Options configures exporters. The zero value is usable.
type Options struct {
	// Header is the binary STL header text, Signature if empty.
	Header string
	// Material, if set, enlarges every exported vertex to compensate
	// for the material's shrinkage.
	Material *matter.ViscousMaterial
}

// solid is a mesh in world space ready to serialize.
type solid struct {
	geometry *geom.Geometry
	normals  geom.Transform
}

// collect returns world space clones of the meshes under root in
// depth first order.
func collect(root node.Node, opts Options) []solid {
	var solids []solid
	for _, m := range node.Meshes(root) {
		world := m.World()
		if opts.Material != nil {
			f := opts.Material.ScaleFactor()
			world = geom.Compose(r3.Vec{}, r3.Vec{X: f, Y: f, Z: f}, geom.Identity).Mul(world)
		}
		g := m.Geometry().Clone()
		for i := range g.Vertices {
			g.Vertices[i] = world.Apply(g.Vertices[i])
		}
		solids = append(solids, solid{geometry: g, normals: world.NormalMatrix()})
	}
	return solids
}

// normal transforms the local face normal n to world space.
func (s solid) normal(n r3.Vec) r3.Vec {
	n = s.normals.ApplyDirection(n)
	if l := r3.Norm(n); l > 0 {
		return r3.Scale(1/l, n)
	}
	return n
}

// BinarySTL exports meshes as binary STL.
type BinarySTL struct {
	root node.Node
	opts Options
}

func NewBinarySTL(root node.Node, opts Options) *BinarySTL {
	return &BinarySTL{root: root, opts: opts}
}

// Export returns an 84+50N byte buffer for the N triangles of every mesh.
// A tree without meshes yields a header with a zero count.
func (e *BinarySTL) Export() ([]byte, error) {
	solids := collect(e.root, e.opts)
	var count int64 // int64 so the limit check works on 32 bit machines.
	for _, s := range solids {
		count += int64(s.geometry.TriangleCount())
	}
	if count > math.MaxUint32 {
		return nil, errors.New("amount of triangles in model exceeds STL design limits")
	}
	text := e.opts.Header
	if text == "" {
		text = Signature
	}
	b := make([]byte, triangleBase+triangleSize*int(count))
	newHeader(text, uint32(count)).put(b)
	off := triangleBase
	for _, s := range solids {
		g := s.geometry
		for i, face := range g.Faces {
			record(s.normal(face.Normal), g.Triangle(i)).put(b[off:])
			off += triangleSize
		}
	}
	return b, nil
}

// WriteTo writes the exported buffer to w.
func (e *BinarySTL) WriteTo(w io.Writer) (int64, error) {
	return writeTo(w, e)
}

// ASCIISTL exports meshes as ASCII STL.
type ASCIISTL struct {
	root node.Node
	opts Options
}

func NewASCIISTL(root node.Node, opts Options) *ASCIISTL {
	return &ASCIISTL{root: root, opts: opts}
}

// String returns the ASCII STL document. Values use the shortest
// decimal representation that round trips.
func (e *ASCIISTL) String() string {
	var sb strings.Builder
	sb.WriteString("solid exported\n")
	for _, s := range collect(e.root, e.opts) {
		g := s.geometry
		for i, face := range g.Faces {
			sb.WriteString("facet normal ")
			writeVec(&sb, s.normal(face.Normal))
			sb.WriteString(" outer loop\n")
			for _, v := range g.Triangle(i) {
				sb.WriteString(" vertex ")
				writeVec(&sb, v)
			}
			sb.WriteString("endloop\n endfacet\n")
		}
	}
	sb.WriteString("endsolid")
	return sb.String()
}

func (e *ASCIISTL) Export() ([]byte, error) { return []byte(e.String()), nil }

func (e *ASCIISTL) WriteTo(w io.Writer) (int64, error) {
	return writeTo(w, e)
}

func writeVec(sb *strings.Builder, v r3.Vec) {
	sb.WriteString(strconv.FormatFloat(v.X, 'g', -1, 64))
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatFloat(v.Y, 'g', -1, 64))
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatFloat(v.Z, 'g', -1, 64))
	sb.WriteByte('\n')
}

func writeTo(w io.Writer, e Exporter) (int64, error) {
	b, err := e.Export()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// Buffers holds the plain vertex and face arrays of one mesh.
type Buffers struct {
	ID       string       `json:"id"`
	Vertices [][3]float64 `json:"vertices"`
	Faces    [][3]int     `json:"faces"`
}

// yUp maps z up world coordinates to the y up convention of most
// modelling software by a quarter turn about x, world z becoming y.
var yUp = geom.Compose(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, r3.NewRotation(-math.Pi/2, r3.Vec{X: 1}))

// GeometryExporter exports each mesh as plain arrays in world space,
// rotated to a y up frame.
type GeometryExporter struct {
	root node.Node
	opts Options
}

func NewGeometryExporter(root node.Node, opts Options) *GeometryExporter {
	return &GeometryExporter{root: root, opts: opts}
}

// Buffers returns the arrays of every mesh in depth first order.
func (e *GeometryExporter) Buffers() []Buffers {
	meshes := node.Meshes(e.root)
	solids := collect(e.root, e.opts)
	out := make([]Buffers, len(solids))
	for i, s := range solids {
		g := s.geometry
		g.Transform(yUp)
		out[i] = Buffers{
			ID:       meshes[i].ID(),
			Vertices: make([][3]float64, len(g.Vertices)),
			Faces:    make([][3]int, len(g.Faces)),
		}
		for j, v := range g.Vertices {
			out[i].Vertices[j] = [3]float64{v.X, v.Y, v.Z}
		}
		for j, f := range g.Faces {
			out[i].Faces[j] = [3]int{f.A, f.B, f.C}
		}
	}
	return out
}

// Export returns the buffers as a JSON array.
func (e *GeometryExporter) Export() ([]byte, error) {
	return json.Marshal(e.Buffers())
}

func (e *GeometryExporter) WriteTo(w io.Writer) (int64, error) {
	return writeTo(w, e)
}
