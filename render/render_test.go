package render

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/stlview/camera"
	"github.com/soypat/stlview/internal/d3"
	"github.com/soypat/stlview/node"
	"github.com/soypat/stlview/scene"
	"gonum.org/v1/plot/cmpimg"
)

type countDrawer struct{ draws int }

func (d *countDrawer) Draw(node.Node, camera.Camera, camera.Canvas) (image.Image, error) {
	d.draws++
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func newScene(t testing.TB, volume float64, canvas camera.Canvas) (*scene.Manager, *camera.Manager) {
	t.Helper()
	sc, err := scene.NewManager(scene.Config{BuildVolume: d3.Elem(volume)})
	if err != nil {
		t.Fatal(err)
	}
	cams := camera.NewManager(canvas, sc.BuildVolume().Bounds(), nil)
	if err := cams.SetCameraType(camera.Perspective); err != nil {
		t.Fatal(err)
	}
	return sc, cams
}

func TestRequestRouting(t *testing.T) {
	sc, cams := newScene(t, 200, camera.Canvas{Width: 8, Height: 8})
	d := &countDrawer{}
	m := NewManager(sc, cams, d, Config{})
	m.Request(node.RenderContext{Type: node.RequestCamera})
	if m.Frames() != 1 || m.NodePasses() != 0 {
		t.Errorf("camera request: %d frames %d passes", m.Frames(), m.NodePasses())
	}
	for _, typ := range []node.RequestType{node.RequestMesh, node.RequestScene, node.RequestTransformation, node.RequestCanvas} {
		m.Request(node.RenderContext{Type: typ})
	}
	if m.Frames() != 5 || m.NodePasses() != 4 {
		t.Errorf("node requests: %d frames %d passes", m.Frames(), m.NodePasses())
	}
	m.Request(node.RenderContext{Type: node.RequestCamera, Force: true})
	if m.NodePasses() != 5 {
		t.Error("forced camera request did not render nodes")
	}
	if d.draws != m.Frames() {
		t.Errorf("drawer called %d times for %d frames", d.draws, m.Frames())
	}
}

func TestRequestRendersDirtyMesh(t *testing.T) {
	sc, cams := newScene(t, 200, camera.Canvas{Width: 8, Height: 8})
	m := NewManager(sc, cams, &countDrawer{}, Config{})
	sc.OnRenderRequest.Connect(m.Request)
	mesh, err := sc.AddCube("")
	if err != nil {
		t.Fatal(err)
	}
	if mesh.Dirty() {
		t.Error("mesh added but still dirty after render request")
	}
	mesh.SetSelected(true)
	if mesh.Dirty() || mesh.Material().Emissive == node.Black {
		t.Error("selection not applied by rebroadcast render request")
	}
}

func TestBatching(t *testing.T) {
	sc, cams := newScene(t, 200, camera.Canvas{Width: 8, Height: 8})
	m := NewManager(sc, cams, &countDrawer{}, Config{Batch: 3})
	var frames int
	m.OnFrame.Connect(func(image.Image) { frames++ })
	m.Request(node.RenderContext{Source: "a", Type: node.RequestCamera})
	m.Request(node.RenderContext{Source: "b", Type: node.RequestCamera})
	if m.Frames() != 0 || m.Pending() != 2 {
		t.Fatalf("requests not batched: %d frames, %d pending", m.Frames(), m.Pending())
	}
	m.Request(node.RenderContext{Source: "c", Type: node.RequestMesh})
	if m.Frames() != 1 || m.NodePasses() != 1 || m.Pending() != 0 || frames != 1 {
		t.Fatalf("batch not coalesced: %d frames, %d passes", m.Frames(), m.NodePasses())
	}
	m.Request(node.RenderContext{Type: node.RequestCamera})
	m.Flush()
	if m.Frames() != 2 || m.NodePasses() != 1 {
		t.Errorf("flush: %d frames, %d passes", m.Frames(), m.NodePasses())
	}
	m.Flush()
	if m.Frames() != 2 {
		t.Error("empty flush drew a frame")
	}
}

func TestDeferred(t *testing.T) {
	sc, cams := newScene(t, 200, camera.Canvas{Width: 8, Height: 8})
	m := NewManager(sc, cams, &countDrawer{}, Config{Batch: 2, Deferred: true})
	for i := 0; i < 5; i++ {
		m.Request(node.RenderContext{Source: "a", Type: node.RequestMesh})
	}
	if m.Frames() != 0 || m.NodePasses() != 0 || m.Pending() != 5 {
		t.Fatalf("deferred requests drew: %d frames, %d passes, %d pending", m.Frames(), m.NodePasses(), m.Pending())
	}
	if _, err := m.Render(); err != nil {
		t.Fatal(err)
	}
	if m.Frames() != 1 || m.NodePasses() != 1 || m.Pending() != 0 {
		t.Errorf("render: %d frames, %d passes, %d pending", m.Frames(), m.NodePasses(), m.Pending())
	}
	m.Request(node.RenderContext{Type: node.RequestCamera})
	m.Flush()
	if m.Frames() != 2 {
		t.Errorf("flush: %d frames", m.Frames())
	}
}

func TestNoCamera(t *testing.T) {
	sc, _ := scene.NewManager(scene.Config{})
	cams := camera.NewManager(camera.Canvas{Width: 8, Height: 8}, sc.BuildVolume().Bounds(), nil)
	m := NewManager(sc, cams, &countDrawer{}, Config{})
	m.Request(node.RenderContext{Type: node.RequestScene})
	if m.Frames() != 0 || m.NodePasses() != 1 {
		t.Errorf("%d frames %d passes", m.Frames(), m.NodePasses())
	}
	if _, err := m.Render(); !errors.Is(err, camera.ErrNoCamera) {
		t.Errorf("want ErrNoCamera, got %v", err)
	}
	if err := m.SavePNG(filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Error("saving without frame should fail")
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFauxGLFrames(t *testing.T) {
	canvas := camera.Canvas{Width: 64, Height: 48}
	sc, cams := newScene(t, 20, canvas)
	drawer := NewFauxGL()
	drawer.Supersample = 2
	m := NewManager(sc, cams, drawer, Config{})
	mesh, err := sc.AddCube("")
	if err != nil {
		t.Fatal(err)
	}
	first, err := m.Render()
	if err != nil {
		t.Fatal(err)
	}
	if first.Bounds().Dx() != 64 || first.Bounds().Dy() != 48 {
		t.Fatalf("frame size %v", first.Bounds())
	}
	if r, g, b, _ := first.At(32, 24).RGBA(); r == 0xffff && g == 0xffff && b == 0xffff {
		t.Error("cube not drawn at the center of the frame")
	}
	if len(drawer.cache) != 2 {
		t.Errorf("want mesh and plate cached, got %d entries", len(drawer.cache))
	}

	second, _ := m.Render()
	equal, err := cmpimg.EqualApprox("png", encodePNG(t, first), encodePNG(t, second), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Error("rendering the same scene twice gave different frames")
	}

	mesh.SetColor(node.Color{R: 1})
	third, _ := m.Render()
	equal, err = cmpimg.EqualApprox("png", encodePNG(t, first), encodePNG(t, third), 0)
	if err != nil {
		t.Fatal(err)
	}
	if equal {
		t.Error("recoloring the cube did not change the frame")
	}

	path := filepath.Join(t.TempDir(), "frame.png")
	if err := m.SavePNG(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}

	if err := sc.RemoveMesh(mesh.ID()); err != nil {
		t.Fatal(err)
	}
	m.Render()
	if len(drawer.cache) != 1 {
		t.Errorf("removed mesh still cached: %d entries", len(drawer.cache))
	}
}
