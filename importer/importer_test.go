package importer

import (
	"encoding/base64"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hschendel/stl"
	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/node"
	"gonum.org/v1/gonum/spatial/r3"
)

func cubeSolid(t *testing.T, size float64) *stl.Solid {
	t.Helper()
	g, err := geom.Box(size, size, size)
	if err != nil {
		t.Fatal(err)
	}
	s := &stl.Solid{Name: "cube"}
	for i, f := range g.Faces {
		var tri stl.Triangle
		tri.Normal = stl.Vec3{float32(f.Normal.X), float32(f.Normal.Y), float32(f.Normal.Z)}
		for j, v := range g.Triangle(i) {
			tri.Vertices[j] = stl.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
		}
		s.Triangles = append(s.Triangles, tri)
	}
	return s
}

func writeCube(t *testing.T, ascii bool) string {
	t.Helper()
	s := cubeSolid(t, 20)
	s.IsAscii = ascii
	path := filepath.Join(t.TempDir(), "20mm_cube.stl")
	if err := s.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

type result struct {
	meshes   []*node.Mesh
	progress []Progress
	errs     []error
}

func listen(fi *FileImporter) *result {
	r := &result{}
	fi.OnMeshImported.Connect(func(m *node.Mesh) { r.meshes = append(r.meshes, m) })
	fi.OnProgress.Connect(func(p Progress) { r.progress = append(r.progress, p) })
	fi.OnError.Connect(func(err error) { r.errs = append(r.errs, err) })
	return r
}

func TestImportSTL(t *testing.T) {
	for _, ascii := range []bool{false, true} {
		fi := NewFileImporter(nil, nil)
		r := listen(fi)
		fi.Load(writeCube(t, ascii))
		if len(r.errs) != 0 {
			t.Fatal(r.errs)
		}
		if len(r.meshes) != 1 {
			t.Fatalf("ascii=%v: mesh imported %d times", ascii, len(r.meshes))
		}
		g := r.meshes[0].Geometry()
		if g.TriangleCount() != 12 || len(g.Vertices) != 8 {
			t.Errorf("ascii=%v: %d triangles %d vertices, want welded cube", ascii, g.TriangleCount(), len(g.Vertices))
		}
		b := g.Bounds()
		if diag := r3.Norm(r3.Sub(b.Max, b.Min)); math.Abs(diag-20*math.Sqrt(3)) > 1e-4 {
			t.Errorf("bounding box diagonal %g", diag)
		}
		if len(r.progress) == 0 {
			t.Fatal("no progress reported")
		}
		last := r.progress[len(r.progress)-1]
		if last.Fraction() != 1 {
			t.Errorf("final progress %+v", last)
		}
	}
}

func TestImportProgressChunks(t *testing.T) {
	path := writeCube(t, false)
	fi := NewFileImporter(ExtLoader{".stl": &STLLoader{ChunkSize: 100}}, nil)
	r := listen(fi)
	fi.Load(path)
	// 84 + 12*50 bytes read 100 at a time.
	if len(r.progress) != 7 {
		t.Errorf("want 7 progress reports, got %d", len(r.progress))
	}
	for i := 1; i < len(r.progress); i++ {
		if r.progress[i].Loaded <= r.progress[i-1].Loaded {
			t.Fatal("progress not increasing")
		}
	}
}

func TestImportErrors(t *testing.T) {
	faulty := "data:application/octet-stream;base64,c29saWQgbW9kZWwKZmFjZXQg"
	missing := filepath.Join(t.TempDir(), "missing.stl")
	for _, source := range []string{faulty, missing, "model.step", "data:no-comma"} {
		fi := NewFileImporter(nil, nil)
		r := listen(fi)
		fi.Load(source)
		if len(r.errs) != 1 || len(r.meshes) != 0 {
			t.Errorf("%s: %d errors %d meshes", describe(source), len(r.errs), len(r.meshes))
		}
	}
}

func TestImportDataURL(t *testing.T) {
	data, err := os.ReadFile(writeCube(t, false))
	if err != nil {
		t.Fatal(err)
	}
	fi := NewFileImporter(nil, nil)
	r := listen(fi)
	fi.Load("data:model/stl;base64," + base64.StdEncoding.EncodeToString(data))
	if len(r.errs) != 0 || len(r.meshes) != 1 {
		t.Fatalf("errors %v, %d meshes", r.errs, len(r.meshes))
	}
}

func TestImportOBJ(t *testing.T) {
	const tetra = `v 0 0 0
v 10 0 0
v 0 10 0
v 0 0 10
f 1 3 2
f 1 2 4
f 1 4 3
f 2 3 4
`
	path := filepath.Join(t.TempDir(), "tetra.obj")
	if err := os.WriteFile(path, []byte(tetra), 0o644); err != nil {
		t.Fatal(err)
	}
	fi := NewFileImporter(nil, nil)
	r := listen(fi)
	fi.Load(path)
	if len(r.errs) != 0 || len(r.meshes) != 1 {
		t.Fatalf("errors %v, %d meshes", r.errs, len(r.meshes))
	}
	g := r.meshes[0].Geometry()
	if g.TriangleCount() != 4 || len(g.Vertices) != 4 {
		t.Errorf("%d triangles %d vertices", g.TriangleCount(), len(g.Vertices))
	}
}

func TestImportDecimate(t *testing.T) {
	g, err := geom.Cylinder(10, 10, 64)
	if err != nil {
		t.Fatal(err)
	}
	s := &stl.Solid{}
	for i := range g.Faces {
		var tri stl.Triangle
		for j, v := range g.Triangle(i) {
			tri.Vertices[j] = stl.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
		}
		s.Triangles = append(s.Triangles, tri)
	}
	path := filepath.Join(t.TempDir(), "cyl.stl")
	if err := s.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	fi := NewFileImporter(nil, nil)
	fi.Decimate = 0.25
	r := listen(fi)
	fi.Load(path)
	if len(r.meshes) != 1 {
		t.Fatalf("errors %v", r.errs)
	}
	if n := r.meshes[0].Geometry().TriangleCount(); n >= g.TriangleCount() {
		t.Errorf("decimated mesh has %d of %d triangles", n, g.TriangleCount())
	}
}
