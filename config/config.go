// Package config loads viewer settings from TOML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/soypat/stlview/camera"
	"github.com/soypat/stlview/matter"
)

// Config holds every tunable of a viewer. Zero values are invalid, start from Default.
type Config struct {
	BuildVolume BuildVolume `toml:"build_volume"`
	Camera      Camera      `toml:"camera"`
	Controls    Controls    `toml:"controls"`
	Render      Render      `toml:"render"`
	Import      Import      `toml:"import"`
	Export      Export      `toml:"export"`
	Log         Log         `toml:"log"`
}

// BuildVolume is the printable region in millimeters.
type BuildVolume struct {
	Width  float64 `toml:"width"`
	Depth  float64 `toml:"depth"`
	Height float64 `toml:"height"`
}

type Camera struct {
	// Type is "perspective" or "orthographic".
	Type   string `toml:"type"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type Controls struct {
	DragThreshold float64 `toml:"drag_threshold"`
}

type Render struct {
	Batch int `toml:"batch"`
	// Deferred draws only on explicit render calls.
	Deferred    bool   `toml:"deferred"`
	Supersample int    `toml:"supersample"`
	Background  string `toml:"background"`
	Plate       string `toml:"plate"`
	Volume      string `toml:"volume"`
}

type Import struct {
	// Decimate in (0,1) keeps that fraction of imported triangles. Zero disables it.
	Decimate      float64 `toml:"decimate"`
	WeldTolerance float64 `toml:"weld_tolerance"`
}

type Export struct {
	Header string `toml:"header"`
	// Material names a predefined material, or names a custom one when
	// Shrink is set. Empty disables shrink compensation.
	Material   string  `toml:"material"`
	Shrink     float64 `toml:"shrink"`
	PullShrink float64 `toml:"pull_shrink"`
}

type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration of a 200mm cubic printer viewed
// through an 800x600 perspective camera.
func Default() Config {
	return Config{
		BuildVolume: BuildVolume{Width: 200, Depth: 200, Height: 200},
		Camera:      Camera{Type: camera.Perspective.String(), Width: 800, Height: 600},
		Render: Render{
			Supersample: 2,
			Background:  "#FFFFFF",
			Plate:       "#D8D8D8",
			Volume:      "#3D5A80",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads and validates the TOML file at path on top of Default.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads TOML from r on top of Default. Unknown keys are an error.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("unknown configuration keys:\n%s", strict.String())
		}
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (cfg Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// Validate reports every invalid field.
func (cfg Config) Validate() error {
	var errs []error
	bv := cfg.BuildVolume
	if bv.Width <= 0 || bv.Depth <= 0 || bv.Height <= 0 {
		errs = append(errs, fmt.Errorf("build_volume: non-positive size %gx%gx%g", bv.Width, bv.Depth, bv.Height))
	}
	if _, err := cfg.CameraType(); err != nil {
		errs = append(errs, fmt.Errorf("camera.type: %w", err))
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera: non-positive canvas %dx%d", cfg.Camera.Width, cfg.Camera.Height))
	}
	if cfg.Controls.DragThreshold < 0 {
		errs = append(errs, errors.New("controls.drag_threshold: negative"))
	}
	if cfg.Render.Batch < 0 || cfg.Render.Supersample < 0 {
		errs = append(errs, errors.New("render: negative batch or supersample"))
	}
	for key, c := range map[string]string{"background": cfg.Render.Background, "plate": cfg.Render.Plate, "volume": cfg.Render.Volume} {
		if !validHex(c) {
			errs = append(errs, fmt.Errorf("render.%s: bad hex color %q", key, c))
		}
	}
	if d := cfg.Import.Decimate; d < 0 || d > 1 {
		errs = append(errs, fmt.Errorf("import.decimate: %g not in [0,1]", d))
	}
	if cfg.Import.WeldTolerance < 0 {
		errs = append(errs, errors.New("import.weld_tolerance: negative"))
	}
	if _, err := cfg.Material(); err != nil {
		errs = append(errs, fmt.Errorf("export: %w", err))
	}
	if _, err := cfg.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

func (cfg Config) CameraType() (camera.Type, error) {
	return camera.ParseType(cfg.Camera.Type)
}

func (cfg Config) Canvas() camera.Canvas {
	return camera.Canvas{Width: cfg.Camera.Width, Height: cfg.Camera.Height}
}

// Material returns the export shrink compensation material or nil.
func (cfg Config) Material() (*matter.ViscousMaterial, error) {
	e := cfg.Export
	if e.Material == "" && e.Shrink == 0 {
		return nil, nil
	}
	var (
		m   matter.ViscousMaterial
		err error
	)
	if e.Shrink != 0 {
		m, err = matter.NewViscousMaterial(e.Material, e.Shrink, e.PullShrink)
	} else {
		m, err = matter.Lookup(e.Material)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (cfg Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(cfg.Log.Level))
	return level, err
}

// validHex accepts #RGB and #RRGGBB with optional leading #.
func validHex(s string) bool {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 3 && len(s) != 6 {
		return false
	}
	_, err := strconv.ParseUint(s, 16, 32)
	return err == nil
}
