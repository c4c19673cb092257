package export

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	headerSize   = 80
	countOffset  = headerSize
	triangleBase = headerSize + 4
	triangleSize = 50
)

// stlHeader defines the STL file header.
type stlHeader struct {
	Header [headerSize]uint8 // Free text, NUL padded.
	Count  uint32            // Number of triangles
}

func (h stlHeader) put(b []byte) {
	_ = b[triangleBase-1] //early bounds check
	copy(b, h.Header[:])
	binary.LittleEndian.PutUint32(b[countOffset:], h.Count)
}

func newHeader(text string, count uint32) stlHeader {
	h := stlHeader{Count: count}
	copy(h.Header[:], text) // Text past 80 bytes is dropped.
	return h
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func (t stlTriangle) put(b []byte) {
	if len(b) < triangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0) // Zero out attributes.
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < triangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
}

// record builds the STL record of a world space triangle with normal n.
func record(n r3.Vec, tri [3]r3.Vec) stlTriangle {
	return stlTriangle{
		Normal:  array(n),
		Vertex1: array(tri[0]),
		Vertex2: array(tri[1]),
		Vertex3: array(tri[2]),
	}
}

func array(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

// ErrNormalMismatch is wrapped by ReadBinary when stored normals disagree
// with the vertex winding. The triangles are still returned.
var ErrNormalMismatch = errors.New("mismatch normal")

func (t stlTriangle) validate() error {
	const epsilon = 1e-12
	const normTol = 5e-2
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	if t.Triangle().IsDegenerate(epsilon) {
		return errors.New("triangle is degenerate")
	}
	gotNormal := vecFromArray(t.Normal)
	calcNormal := t.normalFromVertices()
	if !equalElem(calcNormal, gotNormal, normTol) && !equalElem(ms3.Scale(-1, calcNormal), gotNormal, normTol) {
		return ErrNormalMismatch // sometimes may fail
	}
	return nil
}

// equalElem reports whether a and b differ by at most tol in every component.
func equalElem(a, b ms3.Vec, tol float32) bool {
	return math32.Abs(a.X-b.X) <= tol && math32.Abs(a.Y-b.Y) <= tol && math32.Abs(a.Z-b.Z) <= tol
}

func vecFromArray(f [3]float32) ms3.Vec {
	return ms3.Vec{X: f[0], Y: f[1], Z: f[2]}
}

func (t stlTriangle) normalFromVertices() ms3.Vec {
	// Scaled up so millimeter sized facets keep float32 precision.
	v1 := ms3.Scale(10, vecFromArray(t.Vertex1))
	v2 := ms3.Scale(10, vecFromArray(t.Vertex2))
	v3 := ms3.Scale(10, vecFromArray(t.Vertex3))
	return ms3.Unit(ms3.Cross(ms3.Sub(v2, v1), ms3.Sub(v3, v1)))
}

func (t stlTriangle) Triangle() ms3.Triangle {
	return ms3.Triangle{vecFromArray(t.Vertex1), vecFromArray(t.Vertex2), vecFromArray(t.Vertex3)}
}

// Facet is a triangle read from a binary STL file.
type Facet struct {
	Normal   r3.Vec
	Vertices [3]r3.Vec
}

func (t stlTriangle) facet() Facet {
	tri := t.Triangle()
	var f Facet
	f.Normal = r3.Vec{X: float64(t.Normal[0]), Y: float64(t.Normal[1]), Z: float64(t.Normal[2])}
	for i, v := range tri {
		f.Vertices[i] = r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
	}
	return f
}

// Header is the decoded fixed part of a binary STL file.
type Header struct {
	// Text is the header up to the first NUL byte.
	Text  string
	Count uint32
}

// ReadBinary decodes a binary STL stream. Triangles with non finite
// values or degenerate vertices are rejected. A normal that disagrees with
// the vertex winding is reported after reading the whole stream, with
// every triangle returned, since high resolution models trip the check.
func ReadBinary(r io.Reader) (hdr Header, output []Facet, readErr error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return hdr, nil, errors.New("encountered EOF while reading STL header")
		}
		return hdr, nil, fmt.Errorf("STL header read failed: %w", err)
	}
	hdr.Count = header.Count
	hdr.Text = string(header.Header[:])
	for i, c := range header.Header {
		if c == 0 {
			hdr.Text = string(header.Header[:i])
			break
		}
	}
	var (
		buf            [triangleSize]byte
		d              stlTriangle
		i              int
		normMismatches int
	)
	defer func() {
		if readErr != nil && !errors.Is(readErr, ErrNormalMismatch) {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i+1, header.Count, readErr)
		}
	}()
	output = make([]Facet, 0, min(int(header.Count), 1<<16))
	for i = 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return hdr, nil, err
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			if !errors.Is(err, ErrNormalMismatch) {
				return hdr, nil, err
			}
			normMismatches++
		}
		output = append(output, d.facet())
	}
	if normMismatches > 0 {
		return hdr, output, fmt.Errorf("%d facets: %w", normMismatches, ErrNormalMismatch)
	}
	return hdr, output, nil
}
