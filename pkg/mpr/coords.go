package mpr

import (
	"math"
	"sync"

	"github.com/mprview/mprview/pkg/volume"
)

// Position is a patient-space cursor position in mm
type Position struct {
	X, Y, Z float64
}

// CoordinateSystem holds the current cursor position over one volume: the
// single mutable entity of the engine, representing where the viewer
// currently is in 3D. Writes publish a complete snapshot under a mutex;
// derived reads are pure functions of a snapshot.
type CoordinateSystem struct {
	vol *volume.Volume

	mu  sync.RWMutex
	pos Position
}

// NewCoordinateSystem creates a cursor over vol, centered in the grid
func NewCoordinateSystem(vol *volume.Volume) *CoordinateSystem {
	return &CoordinateSystem{
		vol: vol,
		pos: Position{
			X: vol.OriginX + float64(vol.Width-1)/2*vol.SpacingX,
			Y: vol.OriginY + float64(vol.Height-1)/2*vol.SpacingY,
			Z: vol.OriginZ + float64(vol.Depth-1)/2*vol.SpacingZ,
		},
	}
}

// Volume returns the immutable volume this cursor navigates
func (c *CoordinateSystem) Volume() *volume.Volume {
	return c.vol
}

// SetPosition publishes a new cursor position
func (c *CoordinateSystem) SetPosition(p Position) {
	c.mu.Lock()
	c.pos = p
	c.mu.Unlock()
}

// Position returns the current cursor snapshot
func (c *CoordinateSystem) Position() Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos
}

// SliceIndex derives the cursor's slice index on the given plane
func (c *CoordinateSystem) SliceIndex(p Plane) int {
	return WorldToVoxelIndex(c.vol, c.Position(), p)
}

// WorldToVoxelIndex converts a patient-space position to the slice index
// along the axis perpendicular to plane: divide by that axis's spacing,
// round to nearest, clamp into the grid.
func WorldToVoxelIndex(vol *volume.Volume, pos Position, plane Plane) int {
	var idx, max int
	switch plane {
	case Axial:
		idx = roundIndex((pos.Z - vol.OriginZ) / vol.SpacingZ)
		max = vol.Depth - 1
	case Coronal:
		idx = roundIndex((pos.Y - vol.OriginY) / vol.SpacingY)
		max = vol.Height - 1
	default:
		idx = roundIndex((pos.X - vol.OriginX) / vol.SpacingX)
		max = vol.Width - 1
	}
	if idx < 0 {
		return 0
	}
	if idx > max {
		return max
	}
	return idx
}

// VoxelIndexToWorld converts a slice index back to the patient-space
// coordinate along the axis perpendicular to plane. Round-trips with
// WorldToVoxelIndex for every valid index.
func VoxelIndexToWorld(vol *volume.Volume, index int, plane Plane) float64 {
	switch plane {
	case Axial:
		return vol.OriginZ + float64(index)*vol.SpacingZ
	case Coronal:
		return vol.OriginY + float64(index)*vol.SpacingY
	default:
		return vol.OriginX + float64(index)*vol.SpacingX
	}
}

func roundIndex(v float64) int {
	return int(math.Round(v))
}
