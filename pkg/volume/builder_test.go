package volume

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mprview/mprview/pkg/dicom"
	"github.com/mprview/mprview/pkg/dicom/tag"
)

// sliceSpec describes one synthetic image slice. Empty string fields are
// omitted from the encoded stream.
type sliceSpec struct {
	rows, cols int
	ipp        string
	sliceLoc   string
	instance   string
	spacing    string
	thickness  string
	between    string
	intercept  string
	slope      string
	pixels     []uint16
}

func encodeSlice(s sliceSpec) []byte {
	var b bytes.Buffer
	short := func(t tag.Tag, code string, value []byte) {
		if len(value)%2 != 0 {
			value = append(append([]byte{}, value...), ' ')
		}
		binary.Write(&b, binary.LittleEndian, t.Group)
		binary.Write(&b, binary.LittleEndian, t.Element)
		b.WriteString(code)
		binary.Write(&b, binary.LittleEndian, uint16(len(value)))
		b.Write(value)
	}
	us := func(t tag.Tag, v uint16) {
		var raw [2]byte
		binary.LittleEndian.PutUint16(raw[:], v)
		short(t, "US", raw[:])
	}
	ds := func(t tag.Tag, v string) {
		if v != "" {
			short(t, "DS", []byte(v))
		}
	}

	us(tag.Rows, uint16(s.rows))
	us(tag.Columns, uint16(s.cols))
	us(tag.BitsAllocated, 16)
	us(tag.PixelRepresentation, 0)
	ds(tag.ImagePositionPatient, s.ipp)
	ds(tag.SliceLocation, s.sliceLoc)
	ds(tag.PixelSpacing, s.spacing)
	ds(tag.SliceThickness, s.thickness)
	ds(tag.SpacingBetweenSlices, s.between)
	ds(tag.RescaleIntercept, s.intercept)
	ds(tag.RescaleSlope, s.slope)
	if s.instance != "" {
		short(tag.InstanceNumber, "IS", []byte(s.instance))
	}

	pix := make([]byte, len(s.pixels)*2)
	for i, v := range s.pixels {
		binary.LittleEndian.PutUint16(pix[i*2:], v)
	}
	binary.Write(&b, binary.LittleEndian, tag.PixelData.Group)
	binary.Write(&b, binary.LittleEndian, tag.PixelData.Element)
	b.WriteString("OW")
	b.Write([]byte{0, 0})
	binary.Write(&b, binary.LittleEndian, uint32(len(pix)))
	b.Write(pix)

	return b.Bytes()
}

func decodeSlice(t *testing.T, s sliceSpec) *dicom.Dataset {
	t.Helper()
	ds, err := dicom.Decode(encodeSlice(s))
	require.NoError(t, err)
	return ds
}

func TestBuild_OrdersByStackPosition(t *testing.T) {
	// Slices arrive shuffled; each carries one distinctive pixel value.
	mk := func(z string, fill uint16) *dicom.Dataset {
		return decodeSlice(t, sliceSpec{
			rows: 2, cols: 2,
			ipp:     "-100\\-100\\" + z,
			spacing: "0.5\\0.5",
			pixels:  []uint16{fill, fill, fill, fill},
		})
	}

	vol, err := Build([]*dicom.Dataset{mk("20", 300), mk("0", 100), mk("10", 200)})
	require.NoError(t, err)

	assert.Equal(t, 2, vol.Width)
	assert.Equal(t, 2, vol.Height)
	assert.Equal(t, 3, vol.Depth)
	assert.Equal(t, int16(100), vol.Get(0, 0, 0))
	assert.Equal(t, int16(200), vol.Get(0, 0, 1))
	assert.Equal(t, int16(300), vol.Get(0, 0, 2))

	assert.InDelta(t, -100.0, vol.OriginX, 1e-9)
	assert.InDelta(t, -100.0, vol.OriginY, 1e-9)
	assert.InDelta(t, 0.0, vol.OriginZ, 1e-9)
	assert.InDelta(t, 0.5, vol.SpacingX, 1e-9)
	assert.InDelta(t, 0.5, vol.SpacingY, 1e-9)
	// No declared spacing: measured from consecutive positions.
	assert.InDelta(t, 10.0, vol.SpacingZ, 1e-9)
}

func TestBuild_AppliesRescale(t *testing.T) {
	ds := decodeSlice(t, sliceSpec{
		rows: 2, cols: 2,
		intercept: "-1024",
		slope:     "1",
		pixels:    []uint16{0, 1024, 2048, 65535},
	})

	vol, err := Build([]*dicom.Dataset{ds})
	require.NoError(t, err)

	assert.Equal(t, int16(-1024), vol.Get(0, 0, 0))
	assert.Equal(t, int16(0), vol.Get(1, 0, 0))
	assert.Equal(t, int16(1024), vol.Get(0, 1, 0))
	// 65535 - 1024 overflows int16 and clamps.
	assert.Equal(t, int16(32767), vol.Get(1, 1, 0))
}

func TestBuild_InconsistentGeometry(t *testing.T) {
	a := decodeSlice(t, sliceSpec{rows: 2, cols: 2, ipp: "0\\0\\0", pixels: make([]uint16, 4)})
	b := decodeSlice(t, sliceSpec{rows: 4, cols: 4, ipp: "0\\0\\5", pixels: make([]uint16, 16)})

	_, err := Build([]*dicom.Dataset{a, b})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistentGeometry)
}

func TestBuild_NoImages(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)

	_, err = Build([]*dicom.Dataset{nil})
	assert.Error(t, err)
}

func TestStackSpacingPrecedence(t *testing.T) {
	t.Run("declared spacing wins over measured", func(t *testing.T) {
		mk := func(z string) *dicom.Dataset {
			return decodeSlice(t, sliceSpec{
				rows: 1, cols: 1,
				ipp:     "0\\0\\" + z,
				between: "2.5",
				pixels:  []uint16{0},
			})
		}
		vol, err := Build([]*dicom.Dataset{mk("0"), mk("10")})
		require.NoError(t, err)
		assert.InDelta(t, 2.5, vol.SpacingZ, 1e-9)
	})

	t.Run("thickness fallback for single slice", func(t *testing.T) {
		ds := decodeSlice(t, sliceSpec{
			rows: 1, cols: 1,
			thickness: "3.0",
			pixels:    []uint16{0},
		})
		vol, err := Build([]*dicom.Dataset{ds})
		require.NoError(t, err)
		assert.InDelta(t, 3.0, vol.SpacingZ, 1e-9)
	})

	t.Run("unit default", func(t *testing.T) {
		ds := decodeSlice(t, sliceSpec{rows: 1, cols: 1, pixels: []uint16{0}})
		vol, err := Build([]*dicom.Dataset{ds})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, vol.SpacingZ, 1e-9)
	})
}

func TestStackPositionFallbacks(t *testing.T) {
	withIPP := decodeSlice(t, sliceSpec{rows: 1, cols: 1, ipp: "0\\0\\-7.5", pixels: []uint16{0}})
	assert.InDelta(t, -7.5, stackPosition(withIPP), 1e-9)

	withLoc := decodeSlice(t, sliceSpec{rows: 1, cols: 1, sliceLoc: "12.25", pixels: []uint16{0}})
	assert.InDelta(t, 12.25, stackPosition(withLoc), 1e-9)

	withInstance := decodeSlice(t, sliceSpec{rows: 1, cols: 1, instance: "42", pixels: []uint16{0}})
	assert.InDelta(t, 42.0, stackPosition(withInstance), 1e-9)
}

func TestDecodeSeries(t *testing.T) {
	good1 := encodeSlice(sliceSpec{rows: 1, cols: 1, ipp: "0\\0\\0", pixels: []uint16{1}})
	good2 := encodeSlice(sliceSpec{rows: 1, cols: 1, ipp: "0\\0\\5", pixels: []uint16{2}})
	bad := []byte{0xFF, 0xFE}

	results := DecodeSeries([][]byte{good1, bad, good2}, 4)
	require.Len(t, results, 2)

	// Input order survives; the bad buffer is dropped, not replaced.
	pos1, _ := dicom.GetImagePositionPatient(results[0])
	pos2, _ := dicom.GetImagePositionPatient(results[1])
	assert.InDelta(t, 0.0, pos1[2], 1e-9)
	assert.InDelta(t, 5.0, pos2[2], 1e-9)
}

func TestVolumeGetAndMinMax(t *testing.T) {
	vol := NewVolume(2, 2, 1)
	copy(vol.Data, []int16{-5, 3, 7, 1})

	assert.Equal(t, int16(-5), vol.Get(0, 0, 0))
	assert.Equal(t, int16(7), vol.Get(0, 1, 0))

	// Out-of-range lookups read as background.
	assert.Equal(t, int16(0), vol.Get(-1, 0, 0))
	assert.Equal(t, int16(0), vol.Get(0, 0, 2))

	min, max := vol.MinMax()
	assert.Equal(t, int16(-5), min)
	assert.Equal(t, int16(7), max)
}
