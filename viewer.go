package stlview

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/stlview/camera"
	"github.com/soypat/stlview/config"
	"github.com/soypat/stlview/controls"
	"github.com/soypat/stlview/export"
	"github.com/soypat/stlview/importer"
	"github.com/soypat/stlview/matter"
	"github.com/soypat/stlview/node"
	"github.com/soypat/stlview/render"
	"github.com/soypat/stlview/scene"
	"github.com/soypat/stlview/signal"
	"gonum.org/v1/gonum/spatial/r3"
)

type options struct {
	logger *slog.Logger
	drawer render.Drawer
	loader importer.Loader
}

// Option customizes a Viewer.
type Option func(*options)

// WithLogger sets the logger of the viewer and all its managers.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithDrawer replaces the software rasterizer.
func WithDrawer(d render.Drawer) Option { return func(o *options) { o.drawer = d } }

// WithLoader replaces the file loaders.
func WithLoader(l importer.Loader) Option { return func(o *options) { o.loader = l } }

// Viewer owns one manager of each kind and the signal wiring between them.
// Viewers share no state.
type Viewer struct {
	log      *slog.Logger
	scene    *scene.Manager
	cameras  *camera.Manager
	orbit    *camera.Orbit
	controls *controls.Manager
	renderer *render.Manager
	importer *importer.FileImporter
	exportOp export.Options
	conns    []signal.Connection
}

// New builds a viewer from a validated configuration.
func New(cfg config.Config, opts ...Option) (*Viewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	v := &Viewer{log: o.logger}

	bv := cfg.BuildVolume
	sc, err := scene.NewManager(scene.Config{
		BuildVolume: r3.Vec{X: bv.Width, Y: bv.Depth, Z: bv.Height},
		Logger:      o.logger,
	})
	if err != nil {
		return nil, err
	}
	v.scene = sc
	v.cameras = camera.NewManager(cfg.Canvas(), sc.BuildVolume().Bounds(), o.logger)
	typ, _ := cfg.CameraType()
	if err := v.cameras.SetCameraType(typ); err != nil {
		return nil, err
	}
	v.orbit = camera.NewOrbit(v.cameras)
	v.controls, err = controls.NewManager(sc, v.cameras, v.orbit, controls.Config{
		DragThreshold: cfg.Controls.DragThreshold,
		Logger:        o.logger,
	})
	if err != nil {
		return nil, err
	}

	if o.drawer == nil {
		f := render.NewFauxGL()
		f.Supersample = cfg.Render.Supersample
		f.Background = fauxgl.HexColor(cfg.Render.Background)
		f.PlateColor = fauxgl.HexColor(cfg.Render.Plate)
		f.VolumeColor = fauxgl.HexColor(cfg.Render.Volume)
		o.drawer = f
	}
	v.renderer = render.NewManager(sc, v.cameras, o.drawer, render.Config{
		Batch:    cfg.Render.Batch,
		Deferred: cfg.Render.Deferred,
		Logger:   o.logger,
	})

	if o.loader == nil {
		o.loader = importer.ExtLoader{
			".stl": &importer.STLLoader{WeldTolerance: cfg.Import.WeldTolerance},
			".obj": &importer.OBJLoader{WeldTolerance: cfg.Import.WeldTolerance},
		}
	}
	v.importer = importer.NewFileImporter(o.loader, o.logger)
	v.importer.Decimate = cfg.Import.Decimate

	material, _ := cfg.Material()
	v.exportOp = export.Options{Header: cfg.Export.Header, Material: material}

	v.conns = append(v.conns,
		sc.OnRenderRequest.Connect(v.renderer.Request),
		v.cameras.OnRenderRequest.Connect(v.renderer.Request),
		v.controls.OnRenderRequest.Connect(v.renderer.Request),
		sc.OnBuildVolumeChanged.Connect(v.cameras.FitBuildVolume),
		v.importer.OnMeshImported.Connect(v.imported),
	)
	return v, nil
}

func (v *Viewer) imported(m *node.Mesh) {
	if _, err := v.scene.AddMesh(m, ""); err != nil {
		v.log.Error("adding imported mesh", slog.String("err", err.Error()))
		v.importer.OnError.Emit(err)
	}
}

// Close disconnects the viewer's wiring and disposes every mesh.
func (v *Viewer) Close() {
	for _, c := range v.conns {
		c.Disconnect()
	}
	v.conns = nil
	for _, child := range v.scene.Root().Children() {
		m, ok := child.(*node.Mesh)
		if !ok {
			continue
		}
		if err := v.scene.RemoveMesh(m.ID()); err != nil {
			v.log.Debug("closing viewer", slog.String("mesh", m.ID()), slog.String("err", err.Error()))
		}
	}
}

func (v *Viewer) Scene() *scene.Manager { return v.scene }

func (v *Viewer) Cameras() *camera.Manager { return v.cameras }

func (v *Viewer) Orbit() *camera.Orbit { return v.orbit }

func (v *Viewer) Controls() *controls.Manager { return v.controls }

func (v *Viewer) Renderer() *render.Manager { return v.renderer }

func (v *Viewer) Importer() *importer.FileImporter { return v.importer }

// LoadFile imports a mesh file or data URL and places it on the build plate.
func (v *Viewer) LoadFile(source string) (*node.Mesh, error) {
	var (
		added   *node.Mesh
		loadErr error
	)
	onAdd := v.scene.OnMeshAdded.Connect(func(m *node.Mesh) { added = m })
	onErr := v.importer.OnError.Connect(func(err error) { loadErr = err })
	defer onAdd.Disconnect()
	defer onErr.Disconnect()
	v.importer.Load(source)
	if loadErr != nil {
		return nil, loadErr
	}
	if added == nil {
		return nil, fmt.Errorf("%s: loader completed without geometry", source)
	}
	return added, nil
}

// AddMesh places m under the node with parentID, or the root.
func (v *Viewer) AddMesh(m *node.Mesh, parentID string) (*node.Mesh, error) {
	return v.scene.AddMesh(m, parentID)
}

func (v *Viewer) AddCube() (*node.Mesh, error) { return v.scene.AddCube("") }

func (v *Viewer) AddCylinder() (*node.Mesh, error) { return v.scene.AddCylinder("") }

func (v *Viewer) RemoveMesh(id string) error { return v.scene.RemoveMesh(id) }

func (v *Viewer) SetCameraType(t camera.Type) error { return v.cameras.SetCameraType(t) }

func (v *Viewer) SetCanvas(c camera.Canvas) error { return v.cameras.SetCanvas(c) }

// SetBuildVolumeSize resizes the build volume. The camera refits to it.
func (v *Viewer) SetBuildVolumeSize(width, depth, height float64) error {
	return v.scene.SetBuildVolumeSize(width, depth, height)
}

func (v *Viewer) MouseDown(x, y float64) { v.controls.MouseDown(x, y) }

// MouseUp completes a press, see controls.Manager.MouseUp.
func (v *Viewer) MouseUp(x, y float64) (*node.Mesh, bool) { return v.controls.MouseUp(x, y) }

func (v *Viewer) SetControlMode(m controls.Mode) { v.controls.SetMode(m) }

// SetMaterial sets the shrink compensation applied by exports, nil disables it.
func (v *Viewer) SetMaterial(m *matter.ViscousMaterial) { v.exportOp.Material = m }

func (v *Viewer) ExportBinarySTL() ([]byte, error) {
	return export.NewBinarySTL(v.scene.Root(), v.exportOp).Export()
}

func (v *Viewer) ExportASCIISTL() string {
	return export.NewASCIISTL(v.scene.Root(), v.exportOp).String()
}

func (v *Viewer) ExportGeometry() []export.Buffers {
	return export.NewGeometryExporter(v.scene.Root(), v.exportOp).Buffers()
}

// Exporter returns the exporter for format "stl", "ascii" or "json".
func (v *Viewer) Exporter(format string) (export.Exporter, error) {
	root := v.scene.Root()
	switch format {
	case "stl":
		return export.NewBinarySTL(root, v.exportOp), nil
	case "ascii":
		return export.NewASCIISTL(root, v.exportOp), nil
	case "json":
		return export.NewGeometryExporter(root, v.exportOp), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// Render refreshes every node and draws a frame.
func (v *Viewer) Render() (image.Image, error) { return v.renderer.Render() }

// Image returns the last drawn frame or nil.
func (v *Viewer) Image() image.Image { return v.renderer.Image() }

func (v *Viewer) SavePNG(path string) error { return v.renderer.SavePNG(path) }
