// Command stlview places mesh files on a virtual build plate, renders a
// preview image and exports the arranged scene.
//
//	stlview --png preview.png --out plate.stl part1.stl part2.obj
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/soypat/stlview"
	"github.com/soypat/stlview/config"
	flag "github.com/spf13/pflag"
)

type mainOptions struct {
	Config   string
	Camera   string
	PNG      string
	Out      string
	Format   string
	Material string
	Decimate float64
	Volume   []float64
	Cubes    int
	LogLevel string
	Inputs   []string
}

func loadConfig(options *mainOptions) (cfg config.Config, err error) {
	cfg = config.Default()
	if options.Config != "" {
		cfg, err = config.Load(options.Config)
		if err != nil {
			return cfg, err
		}
	}
	// Frames are only needed for --png.
	cfg.Render.Deferred = true
	if flag.CommandLine.Changed("camera") {
		cfg.Camera.Type = options.Camera
	}
	if flag.CommandLine.Changed("material") {
		cfg.Export.Material = options.Material
	}
	if flag.CommandLine.Changed("decimate") {
		cfg.Import.Decimate = options.Decimate
	}
	if flag.CommandLine.Changed("log-level") {
		cfg.Log.Level = options.LogLevel
	}
	if flag.CommandLine.Changed("volume") {
		if len(options.Volume) != 3 {
			return cfg, fmt.Errorf("--volume needs width,depth,height, got %d values", len(options.Volume))
		}
		cfg.BuildVolume = config.BuildVolume{Width: options.Volume[0], Depth: options.Volume[1], Height: options.Volume[2]}
	}
	return cfg, cfg.Validate()
}

func execute(options *mainOptions) (err error) {
	cfg, err := loadConfig(options)
	if err != nil {
		return
	}
	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	v, err := stlview.New(cfg, stlview.WithLogger(logger))
	if err != nil {
		return
	}
	defer v.Close()

	for _, input := range options.Inputs {
		mesh, err := v.LoadFile(input)
		if err != nil {
			return err
		}
		logger.Info("placed", slog.String("file", input), slog.String("id", mesh.ID()),
			slog.Int("triangles", mesh.Geometry().TriangleCount()))
	}
	for i := 0; i < options.Cubes; i++ {
		if _, err = v.AddCube(); err != nil {
			return
		}
	}
	if bb, ok := v.Scene().MeshBounds(); ok {
		logger.Info("scene extent", slog.Any("min", bb.Min), slog.Any("max", bb.Max))
	}
	for _, mesh := range v.Scene().Meshes() {
		if mesh.OutOfBounds() {
			b := mesh.Bounds()
			logger.Warn("mesh exceeds build volume", slog.String("id", mesh.ID()),
				slog.Any("min", b.Min), slog.Any("max", b.Max))
		}
	}

	if options.PNG != "" {
		if _, err = v.Render(); err != nil {
			return
		}
		if err = v.SavePNG(options.PNG); err != nil {
			return
		}
		logger.Info("rendered", slog.String("file", options.PNG))
	}

	if options.Out != "" {
		e, err := v.Exporter(options.Format)
		if err != nil {
			return err
		}
		b, err := e.Export()
		if err != nil {
			return err
		}
		if err = os.WriteFile(options.Out, b, 0666); err != nil {
			return err
		}
		logger.Info("exported", slog.String("file", options.Out), slog.String("size", humanSize(int64(len(b)))))
	}
	return
}

func humanSize(bytes int64) (size string) {
	const (
		kB = 1000
		MB = 1000 * kB
		GB = 1000 * MB
	)
	switch {
	case bytes < 10*kB:
		size = fmt.Sprintf("%dB", bytes)
	case bytes < 10*MB:
		size = fmt.Sprintf("%dkB", bytes/kB)
	case bytes < 10*GB:
		size = fmt.Sprintf("%dMB", bytes/MB)
	default:
		size = fmt.Sprintf("%dGB", bytes/GB)
	}
	return size
}

func main() {
	var options mainOptions

	flag.StringVar(&options.Config, "config", "", "TOML configuration file")
	flag.StringVar(&options.Camera, "camera", "perspective", "Camera type: perspective or orthographic")
	flag.StringVar(&options.PNG, "png", "", "Render a preview PNG to this file")
	flag.StringVarP(&options.Out, "out", "o", "", "Export the scene to this file")
	flag.StringVar(&options.Format, "format", "stl", "Export format: stl, ascii or json")
	flag.StringVar(&options.Material, "material", "", "Compensate exports for material shrinkage, e.g. PLA")
	flag.Float64Var(&options.Decimate, "decimate", 0, "Keep this fraction of imported triangles")
	flag.Float64SliceVar(&options.Volume, "volume", nil, "Build volume width,depth,height in mm")
	flag.IntVar(&options.Cubes, "cubes", 0, "Add this many 10mm test cubes")
	flag.StringVar(&options.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flag.SetInterspersed(true)
	flag.Parse()
	options.Inputs = flag.Args()

	err := execute(&options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
