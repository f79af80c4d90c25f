package mpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mprview/mprview/pkg/volume"
)

// labeledVolume encodes each voxel's coordinates into its value so gather
// loops can be checked exactly: value = z*100 + y*10 + x.
func labeledVolume(w, h, d int) *volume.Volume {
	vol := volume.NewVolume(w, h, d)
	vol.SpacingX, vol.SpacingY, vol.SpacingZ = 1.0, 1.5, 3.0
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				vol.Data[z*w*h+y*w+x] = int16(z*100 + y*10 + x)
			}
		}
	}
	return vol
}

func TestExtractSlice_Axial(t *testing.T) {
	vol := labeledVolume(4, 3, 2)

	g, err := ExtractSlice(vol, Axial, 1)
	require.NoError(t, err)

	assert.Equal(t, 4, g.Width)
	assert.Equal(t, 3, g.Height)
	assert.InDelta(t, 1.0, g.PixelWidth, 1e-9)
	assert.InDelta(t, 1.5, g.PixelHeight, 1e-9)
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, int16(100+y*10+x), g.Samples[y*4+x])
		}
	}
}

func TestExtractSlice_Coronal(t *testing.T) {
	vol := labeledVolume(4, 3, 2)

	g, err := ExtractSlice(vol, Coronal, 2)
	require.NoError(t, err)

	assert.Equal(t, 4, g.Width)
	assert.Equal(t, 2, g.Height)
	assert.InDelta(t, 1.0, g.PixelWidth, 1e-9)
	assert.InDelta(t, 3.0, g.PixelHeight, 1e-9)
	for z := 0; z < 2; z++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, int16(z*100+20+x), g.Samples[z*4+x])
		}
	}
}

func TestExtractSlice_Sagittal(t *testing.T) {
	vol := labeledVolume(4, 3, 2)

	g, err := ExtractSlice(vol, Sagittal, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, g.Width)
	assert.Equal(t, 2, g.Height)
	assert.InDelta(t, 1.5, g.PixelWidth, 1e-9)
	assert.InDelta(t, 3.0, g.PixelHeight, 1e-9)
	for z := 0; z < 2; z++ {
		for y := 0; y < 3; y++ {
			assert.Equal(t, int16(z*100+y*10+3), g.Samples[z*3+y])
		}
	}
}

// Extraction is a pure read: repeated calls with the same arguments return
// bit-identical grids.
func TestExtractSlice_Deterministic(t *testing.T) {
	vol := labeledVolume(4, 3, 2)

	for _, plane := range []Plane{Axial, Coronal, Sagittal} {
		a, err := ExtractSlice(vol, plane, 1)
		require.NoError(t, err)
		b, err := ExtractSlice(vol, plane, 1)
		require.NoError(t, err)
		assert.Equal(t, a, b, "plane %s", plane)
	}
}

func TestExtractSlice_IndexOutOfRange(t *testing.T) {
	vol := labeledVolume(4, 3, 2)

	cases := []struct {
		plane Plane
		index int
	}{
		{Axial, -1}, {Axial, 2},
		{Coronal, -1}, {Coronal, 3},
		{Sagittal, -1}, {Sagittal, 4},
	}
	for _, c := range cases {
		_, err := ExtractSlice(vol, c.plane, c.index)
		assert.Error(t, err, "plane %s index %d", c.plane, c.index)
	}

	_, err := ExtractSlice(vol, Plane(9), 0)
	assert.Error(t, err)
}
