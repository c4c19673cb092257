package render

import (
	"errors"
	"image"
	"math/bits"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/stlview/camera"
	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/internal/d3"
	"github.com/soypat/stlview/node"
	"gonum.org/v1/gonum/spatial/r3"
)

// Drawer rasterizes the node tree as seen by a camera.
type Drawer interface {
	Draw(root node.Node, cam camera.Camera, canvas camera.Canvas) (image.Image, error)
}

// FauxGL is a software Drawer. Meshes and the build plate are Phong shaded,
// the build volume is drawn as its 12 edges.
type FauxGL struct {
	// Supersample renders at this multiple of the canvas size and
	// downsamples the result for antialiasing. Values below 2 disable it.
	Supersample int
	Background  fauxgl.Color
	Ambient     fauxgl.Color
	PlateColor  fauxgl.Color
	VolumeColor fauxgl.Color
	// Light is the direction light comes from.
	Light r3.Vec

	cache map[string]cachedMesh
}

// cachedMesh is the world space fauxgl mesh of a node, valid while the
// node's geometry and world transform are unchanged.
type cachedMesh struct {
	geometry  *geom.Geometry
	triangles int
	world     geom.Transform
	mesh      *fauxgl.Mesh
}

// NewFauxGL returns a drawer with the default palette.
func NewFauxGL() *FauxGL {
	return &FauxGL{
		Supersample: 1,
		Background:  fauxgl.HexColor("#FFFFFF"),
		Ambient:     fauxgl.Color{R: 0.2, G: 0.2, B: 0.2, A: 1},
		PlateColor:  fauxgl.HexColor("#D8D8D8"),
		VolumeColor: fauxgl.HexColor("#3D5A80"),
		Light:       r3.Vec{X: -0.75, Y: 1, Z: 0.25},
		cache:       make(map[string]cachedMesh),
	}
}

// Draw renders the tree under root into a canvas sized image.
func (f *FauxGL) Draw(root node.Node, cam camera.Camera, canvas camera.Canvas) (image.Image, error) {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return nil, errors.New("empty canvas")
	}
	if f.cache == nil {
		f.cache = make(map[string]cachedMesh)
	}
	ss := f.Supersample
	if ss < 2 {
		ss = 1
	}
	ctx := fauxgl.NewContext(canvas.Width*ss, canvas.Height*ss)
	ctx.ClearColorBufferWith(f.Background)

	eye := vec(cam.Position)
	matrix := fauxgl.LookAt(eye, vec(cam.Target), vec(cam.Up))
	switch cam.Type {
	case camera.Orthographic:
		matrix = matrix.Orthographic(cam.Left, cam.Right, cam.Bottom, cam.Top, cam.Near, cam.Far)
	default:
		matrix = matrix.Perspective(cam.Fovy, cam.Aspect, cam.Near, cam.Far)
	}
	light := vec(f.Light).Normalize()

	seen := make(map[string]bool)
	node.Walk(root, func(n node.Node) bool {
		switch n := n.(type) {
		case *node.Mesh:
			seen[n.ID()] = true
			mat := n.Material()
			shader := fauxgl.NewPhongShader(matrix, light, eye)
			shader.ObjectColor = color(mat.Color)
			shader.AmbientColor = f.Ambient.Add(color(mat.Emissive))
			ctx.Shader = shader
			ctx.DrawMesh(f.mesh(n.ID(), n.Geometry(), n.World()))
		case *node.BuildPlate:
			seen[n.ID()] = true
			shader := fauxgl.NewPhongShader(matrix, light, eye)
			shader.ObjectColor = f.PlateColor
			shader.AmbientColor = f.Ambient
			ctx.Shader = shader
			ctx.DrawMesh(f.mesh(n.ID(), n.Geometry(), n.World()))
		case *node.BuildVolume:
			ctx.Shader = fauxgl.NewSolidColorShader(matrix, f.VolumeColor)
			ctx.DrawMesh(fauxgl.NewMesh(nil, boxEdges(d3.Box(n.Bounds()))))
		}
		return true
	})
	for id := range f.cache {
		if !seen[id] {
			delete(f.cache, id)
		}
	}

	img := ctx.Image()
	if ss > 1 {
		img = resize.Resize(uint(canvas.Width), uint(canvas.Height), img, resize.Bilinear)
	}
	return img, nil
}

// mesh returns the cached world space mesh of a node, rebuilding it
// if geometry or transform changed.
func (f *FauxGL) mesh(id string, g *geom.Geometry, world geom.Transform) *fauxgl.Mesh {
	c, ok := f.cache[id]
	if ok && c.geometry == g && c.triangles == g.TriangleCount() && c.world == world {
		return c.mesh
	}
	normals := world.NormalMatrix()
	triangles := make([]*fauxgl.Triangle, 0, g.TriangleCount())
	for i, face := range g.Faces {
		t := g.Triangle(i)
		n := normals.ApplyDirection(face.Normal)
		if r3.Norm(n) > 0 {
			n = r3.Unit(n)
		}
		var v [3]fauxgl.Vertex
		for j := range t {
			v[j] = fauxgl.Vertex{Position: vec(world.Apply(t[j])), Normal: vec(n)}
		}
		triangles = append(triangles, fauxgl.NewTriangle(v[0], v[1], v[2]))
	}
	mesh := fauxgl.NewTriangleMesh(triangles)
	f.cache[id] = cachedMesh{geometry: g, triangles: g.TriangleCount(), world: world, mesh: mesh}
	return mesh
}

// boxEdges returns the 12 edges of b. Box corners that differ in a single
// coordinate share an edge.
func boxEdges(b d3.Box) []*fauxgl.Line {
	corners := b.Vertices()
	lines := make([]*fauxgl.Line, 0, 12)
	for i := range corners {
		for j := i + 1; j < len(corners); j++ {
			if bits.OnesCount(uint(i^j)) == 1 {
				lines = append(lines, fauxgl.NewLine(
					fauxgl.Vertex{Position: vec(corners[i])},
					fauxgl.Vertex{Position: vec(corners[j])},
				))
			}
		}
	}
	return lines
}

func vec(v r3.Vec) fauxgl.Vector { return fauxgl.V(v.X, v.Y, v.Z) }

func color(c node.Color) fauxgl.Color { return fauxgl.Color{R: c.R, G: c.G, B: c.B, A: 1} }
