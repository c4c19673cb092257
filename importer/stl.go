package importer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/hschendel/stl"
	"github.com/soypat/stlview/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

const defaultChunk = 64 << 10

// STLLoader loads binary and ASCII STL files and data URLs.
type STLLoader struct {
	// WeldTolerance is the distance under which vertices are merged.
	// Zero infers it from the shortest triangle edge.
	WeldTolerance float64
	// ChunkSize is the read size between progress reports.
	ChunkSize int
}

func (l *STLLoader) Load(source string, onLoaded func(*geom.Geometry), onProgress func(Progress), onError func(error)) {
	data, err := readSource(source, l.ChunkSize, onProgress)
	if err != nil {
		onError(err)
		return
	}
	solid, err := stl.ReadAll(bytes.NewReader(data))
	if err != nil {
		onError(fmt.Errorf("parsing STL %s: %w", describe(source), err))
		return
	}
	if len(solid.Triangles) == 0 {
		onError(fmt.Errorf("STL %s has no triangles", describe(source)))
		return
	}
	soup := make([][3]r3.Vec, len(solid.Triangles))
	for i, t := range solid.Triangles {
		for j, v := range t.Vertices {
			soup[i][j] = r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
		}
	}
	g, err := geom.FromTriangles(soup, l.WeldTolerance)
	if err != nil {
		onError(fmt.Errorf("indexing STL %s: %w", describe(source), err))
		return
	}
	onLoaded(g)
}

func isDataURL(source string) bool { return strings.HasPrefix(source, "data:") }

// readSource returns the contents of a file path or data URL,
// reporting progress every chunk bytes.
func readSource(source string, chunk int, onProgress func(Progress)) ([]byte, error) {
	if isDataURL(source) {
		data, err := decodeDataURL(source)
		if err != nil {
			return nil, err
		}
		report(onProgress, Progress{Source: describe(source), Loaded: int64(len(data)), Total: int64(len(data))})
		return data, nil
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	total := int64(-1)
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}
	if chunk <= 0 {
		chunk = defaultChunk
	}
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	for {
		n, err := io.CopyN(&buf, f, int64(chunk))
		if n > 0 {
			report(onProgress, Progress{Source: source, Loaded: int64(buf.Len()), Total: total})
		}
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("reading %s: %w", source, err)
		}
	}
	return buf.Bytes(), nil
}

func report(onProgress func(Progress), p Progress) {
	if onProgress != nil {
		onProgress(p)
	}
}

// decodeDataURL decodes "data:[<mediatype>][;base64],<data>".
func decodeDataURL(source string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(source, "data:"), ",")
	if !ok {
		return nil, errors.New("data URL missing comma")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data URL: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data URL: %w", err)
	}
	return []byte(text), nil
}
