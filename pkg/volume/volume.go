// Package volume assembles decoded image slices into a single immutable 3D
// voxel grid with physical spacing and origin metadata.
package volume

import "fmt"

// Volume is a 3D grid of signed 16-bit intensities. Voxels are stored
// contiguously, indexed z*Width*Height + y*Width + x, slices ordered by
// ascending physical position along the stack axis. A Volume is built once
// and never mutated; concurrent reads need no locking.
type Volume struct {
	// Dimensions in voxels
	Width  int // X
	Height int // Y
	Depth  int // Z (number of slices)

	// Voxel spacing in mm
	SpacingX float64
	SpacingY float64
	SpacingZ float64

	// Patient-space position of voxel (0,0,0)
	OriginX float64
	OriginY float64
	OriginZ float64

	// Rescaled intensities, row-major, slice-by-slice
	Data []int16
}

// NewVolume creates a zeroed Volume with the given dimensions
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Width:    width,
		Height:   height,
		Depth:    depth,
		SpacingX: 1.0,
		SpacingY: 1.0,
		SpacingZ: 1.0,
		Data:     make([]int16, width*height*depth),
	}
}

// Get returns the voxel value at (x, y, z), zero outside the grid
func (v *Volume) Get(x, y, z int) int16 {
	if x < 0 || x >= v.Width || y < 0 || y >= v.Height || z < 0 || z >= v.Depth {
		return 0
	}
	return v.Data[z*v.Width*v.Height+y*v.Width+x]
}

// MinMax returns the minimum and maximum voxel values
func (v *Volume) MinMax() (min, max int16) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	min, max = v.Data[0], v.Data[0]
	for _, val := range v.Data {
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	return
}

// String summarizes the grid for logs
func (v *Volume) String() string {
	return fmt.Sprintf("%dx%dx%d @ %.3gx%.3gx%.3gmm origin (%.6g,%.6g,%.6g)",
		v.Width, v.Height, v.Depth,
		v.SpacingX, v.SpacingY, v.SpacingZ,
		v.OriginX, v.OriginY, v.OriginZ)
}
