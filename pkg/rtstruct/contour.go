package rtstruct

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/mprview/mprview/pkg/dicom"
)

// contourData tag signature in little-endian byte order: (3006,0050)
var contourSignature = [4]byte{0x06, 0x30, 0x50, 0x00}

// maxRawContourBytes caps how much a raw-scan hit may claim, so a garbage
// length field cannot swallow the rest of the buffer
const maxRawContourBytes = 1 << 24

// parseContourElement parses a decoded ContourData element into a Contour
func parseContourElement(elem *dicom.Element) (Contour, bool) {
	switch v := elem.Value.(type) {
	case string:
		return buildContour(parseNumberText(v))
	case []float32:
		nums := make([]float64, len(v))
		for i, f := range v {
			nums[i] = float64(f)
		}
		return buildContour(nums)
	case []byte:
		return parseContourBytes(v)
	}
	return Contour{}, false
}

// parseContourBytes parses contour value bytes: backslash/comma-delimited
// decimal text first, packed little-endian float32 as fallback
func parseContourBytes(data []byte) (Contour, bool) {
	if looksTextual(data) {
		if c, ok := buildContour(parseNumberText(string(data))); ok {
			return c, true
		}
	}
	if len(data) >= 24 && len(data)%4 == 0 {
		nums := make([]float64, len(data)/4)
		for i := range nums {
			var a [4]byte
			copy(a[:], data[i*4:i*4+4])
			f := math.Float32frombits(binary.LittleEndian.Uint32(a[:]))
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
				return Contour{}, false
			}
			nums[i] = float64(f)
		}
		return buildContour(nums)
	}
	return Contour{}, false
}

func looksTextual(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		switch {
		case b >= '0' && b <= '9':
		case b == '.' || b == '-' || b == '+' || b == '\\' || b == ',' ||
			b == ' ' || b == 'e' || b == 'E' || b == 0 || b == '\r' || b == '\n':
		default:
			return false
		}
	}
	return true
}

func parseNumberText(s string) []float64 {
	s = strings.Trim(s, "\x00 \r\n")
	if s == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\\' || r == ','
	})
	nums := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil
		}
		nums = append(nums, v)
	}
	return nums
}

// buildContour validates a flat x,y,z number list and assigns the plane
// depth. A contour needs at least 3 points and a whole number of triplets;
// malformed ones are dropped, never fatal.
func buildContour(nums []float64) (Contour, bool) {
	if len(nums) < 6 || len(nums)%3 != 0 {
		return Contour{}, false
	}
	points := make([]Point, len(nums)/3)
	zs := make([]float64, len(points))
	for i := range points {
		points[i] = Point{X: nums[i*3], Y: nums[i*3+1], Z: nums[i*3+2]}
		zs[i] = nums[i*3+2]
	}
	return Contour{Points: points, Depth: modalDepth(zs)}, true
}

// modalDepth picks the contour's plane depth when point z values disagree
// slightly: the modal value wins, ties resolving to the smallest candidate.
func modalDepth(zs []float64) float64 {
	sorted := append([]float64(nil), zs...)
	sort.Float64s(sorted)
	mode, _ := stat.Mode(sorted, nil)
	return mode
}

// rawScan recovers contours the structured decode missed by scanning the
// retained original buffer for the ContourData tag signature
func rawScan(raw []byte) []Contour {
	var out []Contour
	for i := 0; i+8 <= len(raw); {
		if raw[i] != contourSignature[0] || raw[i+1] != contourSignature[1] ||
			raw[i+2] != contourSignature[2] || raw[i+3] != contourSignature[3] {
			i++
			continue
		}

		var length int
		var start int
		if raw[i+4] == 'D' && raw[i+5] == 'S' {
			// explicit VR: DS + 2-byte length
			var a [2]byte
			copy(a[:], raw[i+6:i+8])
			length = int(binary.LittleEndian.Uint16(a[:]))
			start = i + 8
		} else {
			// implicit VR: 4-byte length
			var a [4]byte
			copy(a[:], raw[i+4:i+8])
			length = int(binary.LittleEndian.Uint32(a[:]))
			start = i + 8
		}

		if length <= 0 || length > maxRawContourBytes || start+length > len(raw) {
			i += 4
			continue
		}

		c, ok := parseContourBytes(raw[start : start+length])
		if !ok {
			slog.Debug("raw contour hit did not parse", slog.Int("offset", i), slog.Int("length", length))
			i += 4
			continue
		}
		out = append(out, c)
		i = start + length
	}
	return out
}
