// Package stlview is a headless viewer and editor core for 3D printing models.
//
// A Viewer loads STL and OBJ files, places each model at the center of the
// build plate, lets a pointer select and transform models and exports the
// scene back to STL. Frames are drawn with a software rasterizer.
//
// The world is z up with millimeter units. The build volume spans from the
// origin to its width, depth and height.
//
//	v, err := stlview.New(config.Default())
//	if err != nil {
//		return err
//	}
//	mesh, err := v.LoadFile("20mm_cube.stl")
//	...
//	b, err := v.ExportBinarySTL()
package stlview
