package volume

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/mprview/mprview/pkg/dicom"
)

// ErrInconsistentGeometry indicates the slice stack disagrees on row/column
// counts. Fatal for the volume build; the study cannot be displayed.
var ErrInconsistentGeometry = errors.New("volume: inconsistent slice geometry")

type sliceInfo struct {
	ds     *dicom.Dataset
	z      float64
	hasPos bool
}

// Build assembles one Volume from decoded single-image datasets.
//
// Slices are ordered by ascending stack position (ImagePositionPatient z,
// falling back to SliceLocation, then InstanceNumber). The declared linear
// rescale is applied and intensities clamped into int16. No resampling:
// voxel resolution equals input resolution exactly.
func Build(datasets []*dicom.Dataset) (*Volume, error) {
	slices := make([]sliceInfo, 0, len(datasets))
	for _, ds := range datasets {
		if ds == nil || !dicom.IsImage(ds) {
			continue
		}
		slices = append(slices, sliceInfo{ds: ds, z: stackPosition(ds)})
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("no image slices to assemble")
	}

	sort.SliceStable(slices, func(i, j int) bool { return slices[i].z < slices[j].z })

	first := slices[0].ds
	width, height := dicom.GetColumns(first), dicom.GetRows(first)
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: first slice declares %dx%d", ErrInconsistentGeometry, width, height)
	}
	for i, s := range slices {
		if dicom.GetColumns(s.ds) != width || dicom.GetRows(s.ds) != height {
			return nil, fmt.Errorf("%w: slice %d is %dx%d, stack is %dx%d",
				ErrInconsistentGeometry, i,
				dicom.GetColumns(s.ds), dicom.GetRows(s.ds), width, height)
		}
	}

	vol := NewVolume(width, height, len(slices))
	rowSpacing, colSpacing := dicom.GetPixelSpacing(first)
	vol.SpacingX = colSpacing
	vol.SpacingY = rowSpacing
	vol.SpacingZ = stackSpacing(slices)
	if pos, ok := dicom.GetImagePositionPatient(first); ok {
		vol.OriginX, vol.OriginY, vol.OriginZ = pos[0], pos[1], pos[2]
	} else {
		vol.OriginZ = slices[0].z
	}

	plane := width * height
	for zi, s := range slices {
		raw, err := dicom.GetPixelValues(s.ds)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", zi, err)
		}
		intercept, slope := dicom.GetRescale(s.ds)
		dst := vol.Data[zi*plane : (zi+1)*plane]
		for i, v := range raw {
			dst[i] = clampInt16(slope*float64(v) + intercept)
		}
	}

	slog.Debug("volume assembled", slog.String("volume", vol.String()), slog.Int("slices", len(slices)))
	return vol, nil
}

// stackPosition returns a slice's physical position along the stack axis
func stackPosition(ds *dicom.Dataset) float64 {
	if pos, ok := dicom.GetImagePositionPatient(ds); ok {
		return pos[2]
	}
	if loc, ok := dicom.GetSliceLocation(ds); ok {
		return loc
	}
	return float64(dicom.GetInstanceNumber(ds))
}

// stackSpacing resolves the mm distance between consecutive slices:
// declared SpacingBetweenSlices, then the measured delta of the first two
// positions, then SliceThickness, then 1.0
func stackSpacing(slices []sliceInfo) float64 {
	if s := dicom.GetSpacingBetweenSlices(slices[0].ds); s > 0 {
		return s
	}
	if len(slices) > 1 {
		if d := math.Abs(slices[1].z - slices[0].z); d > 0 {
			return d
		}
	}
	if t := dicom.GetSliceThickness(slices[0].ds); t > 0 {
		return t
	}
	return 1.0
}

func clampInt16(v float64) int16 {
	r := math.Round(v)
	if r > math.MaxInt16 {
		return math.MaxInt16
	}
	if r < math.MinInt16 {
		return math.MinInt16
	}
	return int16(r)
}

// DecodeSeries decodes independent slice buffers in parallel. Each decode is
// order-independent; ordering by stack position happens in Build after all
// decodes complete. A file that fails to decode is dropped with a warning
// and never aborts its siblings.
func DecodeSeries(buffers [][]byte, workers int) []*dicom.Dataset {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(buffers) {
		workers = len(buffers)
	}

	results := make([]*dicom.Dataset, len(buffers))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				ds, err := dicom.Decode(buffers[i])
				if err != nil {
					slog.Warn("dropping undecodable slice file",
						slog.Int("index", i), slog.Any("error", err))
					continue
				}
				results[i] = ds
			}
		}()
	}
	for i := range buffers {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make([]*dicom.Dataset, 0, len(results))
	for _, ds := range results {
		if ds != nil {
			out = append(out, ds)
		}
	}
	return out
}
