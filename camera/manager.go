package camera

import (
	"errors"
	"log/slog"

	"github.com/soypat/stlview/internal/d3"
	"github.com/soypat/stlview/node"
	"github.com/soypat/stlview/signal"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoCamera is returned by operations needing a camera before SetCameraType was called.
var ErrNoCamera = errors.New("no camera")

// Source tag of render requests issued by the camera manager.
const Source = "cameraManager"

// Manager owns the active camera.
type Manager struct {
	cam    *Camera
	canvas Canvas
	volume r3.Box
	log    *slog.Logger

	OnCameraChanged signal.Signal[Camera]
	OnRenderRequest signal.Signal[node.RenderContext]
}

// NewManager returns a manager without camera for the given canvas and
// build volume bounds. Call SetCameraType to create the camera.
func NewManager(canvas Canvas, volume r3.Box, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{canvas: canvas, volume: volume, log: logger}
}

// Camera returns the active camera and whether there is one.
func (m *Manager) Camera() (Camera, bool) {
	if m.cam == nil {
		return Camera{}, false
	}
	return *m.cam, true
}

func (m *Manager) Canvas() Canvas { return m.canvas }

// SetCameraType replaces the camera with a new one of type t and points
// it at the build volume.
func (m *Manager) SetCameraType(t Type) error {
	cam, err := New(t, m.canvas)
	if err != nil {
		return err
	}
	m.cam = &cam
	m.reset()
	m.log.Debug("camera type set", slog.String("type", t.String()))
	m.changed(true)
	return nil
}

// reset places the camera at twice the far corner of the build volume
// looking at the center of its floor.
func (m *Manager) reset() {
	c := d3.Box(m.volume).Center()
	m.cam.Position = r3.Scale(2, m.volume.Max)
	m.cam.Target = r3.Vec{X: c.X, Y: c.Y, Z: m.volume.Min.Z}
}

// SetPosition moves the camera. The position must differ from the target.
func (m *Manager) SetPosition(p r3.Vec) error {
	if m.cam == nil {
		return ErrNoCamera
	}
	m.cam.Position = p
	m.changed(false)
	return nil
}

// SetTarget points the camera at p. The target must differ from the position.
func (m *Manager) SetTarget(p r3.Vec) error {
	if m.cam == nil {
		return ErrNoCamera
	}
	m.cam.Target = p
	m.changed(false)
	return nil
}

func (m *Manager) look(position, target r3.Vec) error {
	if m.cam == nil {
		return ErrNoCamera
	}
	m.cam.Position, m.cam.Target = position, target
	m.changed(false)
	return nil
}

// SetCanvas resizes the canvas and the camera frustum with it.
func (m *Manager) SetCanvas(c Canvas) error {
	if !c.valid() {
		return errors.New("canvas dimensions must be positive")
	}
	m.canvas = c
	if m.cam == nil {
		return nil
	}
	m.cam.resize(c)
	m.OnCameraChanged.Emit(*m.cam)
	m.OnRenderRequest.Emit(node.RenderContext{Source: Source, Type: node.RequestCanvas, Force: true})
	return nil
}

// FitBuildVolume stores the new build volume bounds and repoints the camera.
func (m *Manager) FitBuildVolume(volume r3.Box) {
	m.volume = volume
	if m.cam == nil {
		return
	}
	m.reset()
	m.changed(false)
}

func (m *Manager) changed(force bool) {
	m.OnCameraChanged.Emit(*m.cam)
	m.OnRenderRequest.Emit(node.RenderContext{Source: Source, Type: node.RequestCamera, Force: force})
}
