package mpr

import (
	"fmt"

	"github.com/mprview/mprview/pkg/volume"
)

// SliceGrid is one axis-aligned 2D cross-section of a volume, with the
// physical pixel size of its two in-plane axes. Samples are row-major.
type SliceGrid struct {
	Plane  Plane
	Index  int
	Width  int
	Height int

	// In-plane pixel size in mm
	PixelWidth  float64
	PixelHeight float64

	Samples []int16
}

// ExtractSlice reads a 2D cross-section directly from the voxel array for
// one of the three orthogonal planes. The grid is regular, so axis-aligned
// extraction needs no interpolation; calls with identical arguments return
// identical grids.
//
// In-plane axes: axial is (X,Y), coronal is (X,Z), sagittal is (Y,Z), the
// second axis increasing with row index.
func ExtractSlice(vol *volume.Volume, plane Plane, index int) (*SliceGrid, error) {
	switch plane {
	case Axial:
		if index < 0 || index >= vol.Depth {
			return nil, fmt.Errorf("axial index %d out of range [0,%d)", index, vol.Depth)
		}
		g := &SliceGrid{
			Plane: plane, Index: index,
			Width: vol.Width, Height: vol.Height,
			PixelWidth: vol.SpacingX, PixelHeight: vol.SpacingY,
			Samples: make([]int16, vol.Width*vol.Height),
		}
		start := index * vol.Width * vol.Height
		copy(g.Samples, vol.Data[start:start+len(g.Samples)])
		return g, nil

	case Coronal:
		if index < 0 || index >= vol.Height {
			return nil, fmt.Errorf("coronal index %d out of range [0,%d)", index, vol.Height)
		}
		g := &SliceGrid{
			Plane: plane, Index: index,
			Width: vol.Width, Height: vol.Depth,
			PixelWidth: vol.SpacingX, PixelHeight: vol.SpacingZ,
			Samples: make([]int16, vol.Width*vol.Depth),
		}
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				g.Samples[z*vol.Width+x] = vol.Get(x, index, z)
			}
		}
		return g, nil

	case Sagittal:
		if index < 0 || index >= vol.Width {
			return nil, fmt.Errorf("sagittal index %d out of range [0,%d)", index, vol.Width)
		}
		g := &SliceGrid{
			Plane: plane, Index: index,
			Width: vol.Height, Height: vol.Depth,
			PixelWidth: vol.SpacingY, PixelHeight: vol.SpacingZ,
			Samples: make([]int16, vol.Height*vol.Depth),
		}
		for z := 0; z < vol.Depth; z++ {
			for y := 0; y < vol.Height; y++ {
				g.Samples[z*vol.Height+y] = vol.Get(index, y, z)
			}
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown plane %v", plane)
}
