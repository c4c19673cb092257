// Package importer loads mesh files into scene nodes.
//
// Loaders report through callbacks: exactly one of onLoaded or onError is
// called per Load, optionally preceded by progress reports. The bundled
// loaders call back before Load returns. There is no cancellation, so a
// caller starting overlapping loads receives every completion.
package importer

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/soypat/stlview/geom"
	"github.com/soypat/stlview/node"
	"github.com/soypat/stlview/signal"
)

// Progress reports how many bytes of a source were read.
// Total is -1 if unknown.
type Progress struct {
	Source string
	Loaded int64
	Total  int64
}

// Fraction returns Loaded/Total or -1 if the total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Loaded) / float64(p.Total)
}

// Loader loads indexed triangle geometry from a source.
type Loader interface {
	Load(source string, onLoaded func(*geom.Geometry), onProgress func(Progress), onError func(error))
}

// ExtLoader dispatches to a loader by lower case file extension.
// Data URLs go to the ".stl" loader.
type ExtLoader map[string]Loader

// DefaultLoaders returns an ExtLoader for STL and OBJ files.
func DefaultLoaders() ExtLoader {
	return ExtLoader{".stl": &STLLoader{}, ".obj": &OBJLoader{}}
}

func (e ExtLoader) Load(source string, onLoaded func(*geom.Geometry), onProgress func(Progress), onError func(error)) {
	ext := strings.ToLower(filepath.Ext(source))
	if isDataURL(source) {
		ext = ".stl"
	}
	l, ok := e[ext]
	if !ok {
		onError(fmt.Errorf("no loader for %q files", ext))
		return
	}
	l.Load(source, onLoaded, onProgress, onError)
}

// FileImporter turns loaded geometry into mesh nodes.
type FileImporter struct {
	loader Loader
	log    *slog.Logger
	// Decimate, if in (0,1), keeps that fraction of the triangles of
	// every imported geometry.
	Decimate float64

	OnMeshImported signal.Signal[*node.Mesh]
	OnProgress     signal.Signal[Progress]
	OnError        signal.Signal[error]
}

// NewFileImporter returns an importer using l, DefaultLoaders if nil.
func NewFileImporter(l Loader, logger *slog.Logger) *FileImporter {
	if l == nil {
		l = DefaultLoaders()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileImporter{loader: l, log: logger}
}

// Load starts loading source. The outcome is reported through the
// importer's signals.
func (fi *FileImporter) Load(source string) {
	fi.log.Debug("importing", slog.String("source", describe(source)))
	fi.loader.Load(source, fi.loaded, fi.OnProgress.Emit, func(err error) {
		fi.log.Error("import failed", slog.String("source", describe(source)), slog.String("err", err.Error()))
		fi.OnError.Emit(err)
	})
}

func (fi *FileImporter) loaded(g *geom.Geometry) {
	if fi.Decimate > 0 && fi.Decimate < 1 {
		reduced, err := geom.Simplify(g, fi.Decimate)
		if err != nil {
			fi.OnError.Emit(fmt.Errorf("decimating: %w", err))
			return
		}
		fi.log.Debug("decimated", slog.Int("from", g.TriangleCount()), slog.Int("to", reduced.TriangleCount()))
		g.Dispose()
		g = reduced
	}
	fi.OnMeshImported.Emit(node.NewMesh(g))
}

// describe shortens data URLs for logs.
func describe(source string) string {
	if isDataURL(source) && len(source) > 32 {
		return source[:32] + "..."
	}
	return source
}
