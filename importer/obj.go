package importer

import (
	"fmt"
	"os"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/stlview/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// OBJLoader loads Wavefront OBJ files. Only faces are kept.
type OBJLoader struct {
	WeldTolerance float64
}

func (l *OBJLoader) Load(source string, onLoaded func(*geom.Geometry), onProgress func(Progress), onError func(error)) {
	mesh, err := fauxgl.LoadOBJ(source)
	if err != nil {
		onError(fmt.Errorf("loading OBJ %s: %w", source, err))
		return
	}
	if len(mesh.Triangles) == 0 {
		onError(fmt.Errorf("OBJ %s has no faces", source))
		return
	}
	soup := make([][3]r3.Vec, len(mesh.Triangles))
	for i, t := range mesh.Triangles {
		soup[i] = [3]r3.Vec{vec(t.V1.Position), vec(t.V2.Position), vec(t.V3.Position)}
	}
	if info, err := os.Stat(source); err == nil {
		report(onProgress, Progress{Source: source, Loaded: info.Size(), Total: info.Size()})
	}
	g, err := geom.FromTriangles(soup, l.WeldTolerance)
	if err != nil {
		onError(fmt.Errorf("indexing OBJ %s: %w", source, err))
		return
	}
	onLoaded(g)
}

func vec(v fauxgl.Vector) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
