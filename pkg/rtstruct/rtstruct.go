// Package rtstruct extracts named, colored ROI structures from RT Structure
// Set datasets.
//
// Real-world structure sets are inconsistently encoded: contour data shows up
// as top-level elements, nested three sequences deep, or only recoverable by
// scanning raw bytes when declared lengths do not enclose it cleanly. The
// extractor runs three non-exclusive strategies over the same dataset and
// merges their results with deduplication, then groups the surviving contours
// into anatomical structures by plane-depth proximity.
package rtstruct

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mprview/mprview/pkg/dicom"
	"github.com/mprview/mprview/pkg/dicom/tag"
)

// ErrNoContourData indicates the dataset holds no recoverable ROI contours.
// Callers treat this as "study has no annotations", not as a failure.
var ErrNoContourData = errors.New("rtstruct: no contour data")

// Point is one patient-space coordinate in mm
type Point struct {
	X, Y, Z float64
}

// Contour is one closed planar polygon. First and last point are implicitly
// connected; all points share one plane depth along the stack axis.
type Contour struct {
	Points []Point
	Depth  float64 // shared z in mm
}

// Structure is one named anatomical ROI: a number, display color and the
// contours that outline it across cross-sections.
type Structure struct {
	Number   int
	Name     string
	Color    [3]float64 // normalized RGB
	Contours []Contour
}

// Options tune the extraction heuristics. The grouping gap is a heuristic
// substitute for explicit ROI-to-contour linkage, not a hard law.
type Options struct {
	// GroupGapMM starts a new structure when consecutive sorted plane
	// depths are further apart than this.
	GroupGapMM float64
	// DedupDepthTolMM treats two contours as the same occurrence when
	// their depths differ by less than this and point counts match.
	DedupDepthTolMM float64
}

// DefaultOptions returns the tuned defaults (10mm gap, 0.01mm dedup)
func DefaultOptions() Options {
	return Options{GroupGapMM: 10.0, DedupDepthTolMM: 0.01}
}

// Extract pulls ROI structures out of an RT Structure Set dataset using the
// default options. Returns ErrNoContourData when the dataset is not a
// structure set or holds no parseable contours.
func Extract(ds *dicom.Dataset) ([]Structure, error) {
	return ExtractWith(ds, DefaultOptions())
}

// ExtractWith is Extract with explicit options
func ExtractWith(ds *dicom.Dataset, opts Options) ([]Structure, error) {
	if !dicom.IsRTStruct(ds) {
		return nil, fmt.Errorf("%w: modality %q is not a structure set", ErrNoContourData, dicom.GetModality(ds))
	}
	if opts.GroupGapMM <= 0 {
		opts.GroupGapMM = 10.0
	}
	if opts.DedupDepthTolMM <= 0 {
		opts.DedupDepthTolMM = 0.01
	}

	var pool []Contour
	merge := func(strategy string, found []Contour) {
		kept := 0
		for _, c := range found {
			if !containsDuplicate(pool, c, opts.DedupDepthTolMM) {
				pool = append(pool, c)
				kept++
			}
		}
		slog.Debug("contour strategy complete",
			slog.String("strategy", strategy),
			slog.Int("found", len(found)),
			slog.Int("kept", kept))
	}

	merge("direct", directScan(ds))
	merge("sequence", sequenceWalk(ds))
	merge("raw", rawScan(ds.Raw))

	if len(pool) == 0 {
		return nil, ErrNoContourData
	}

	groups := groupByDepth(pool, opts.GroupGapMM)
	return decorate(ds, groups), nil
}

// directScan parses every top-level ContourData element
func directScan(ds *dicom.Dataset) []Contour {
	var out []Contour
	ds.Walk(func(elem *dicom.Element) bool {
		if elem.Tag == tag.ContourData {
			if c, ok := parseContourElement(elem); ok {
				out = append(out, c)
			}
		}
		return true
	})
	return out
}

// sequenceWalk descends ROIContourSequence -> items -> ContourSequence ->
// items -> ContourData, the nesting the standard actually declares.
func sequenceWalk(ds *dicom.Dataset) []Contour {
	var out []Contour
	for _, roiItem := range dicom.GetSequenceItems(ds, tag.ROIContourSequence) {
		for _, contourItem := range dicom.GetSequenceItems(roiItem, tag.ContourSequence) {
			elem, ok := contourItem.Find(tag.ContourData)
			if !ok {
				continue
			}
			if c, ok := parseContourElement(elem); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func containsDuplicate(pool []Contour, c Contour, tol float64) bool {
	for i := range pool {
		if len(pool[i].Points) == len(c.Points) && absF(pool[i].Depth-c.Depth) < tol {
			return true
		}
	}
	return false
}

// groupByDepth sorts contours by plane depth and starts a new group wherever
// the gap between consecutive depths exceeds gapMM
func groupByDepth(pool []Contour, gapMM float64) [][]Contour {
	sort.Slice(pool, func(i, j int) bool { return pool[i].Depth < pool[j].Depth })

	var groups [][]Contour
	var current []Contour
	for i, c := range pool {
		if i > 0 && c.Depth-pool[i-1].Depth > gapMM {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, c)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// decorate attaches names, numbers and colors to depth groups, matching
// declared metadata to groups by index order and synthesizing the rest
func decorate(ds *dicom.Dataset, groups [][]Contour) []Structure {
	defs := dicom.GetSequenceItems(ds, tag.StructureSetROISequence)
	colors := dicom.GetSequenceItems(ds, tag.ROIContourSequence)

	out := make([]Structure, 0, len(groups))
	for i, contours := range groups {
		s := Structure{
			Number:   i + 1,
			Name:     fmt.Sprintf("Structure %d", i+1),
			Color:    paletteColor(i),
			Contours: contours,
		}
		if i < len(defs) {
			if elem, ok := defs[i].Find(tag.ROIName); ok {
				if name, ok := elem.GetString(); ok && name != "" {
					s.Name = name
				}
			}
			if elem, ok := defs[i].Find(tag.ROINumber); ok {
				if n, ok := elem.GetInt(); ok {
					s.Number = n
				}
			}
		}
		if i < len(colors) {
			if elem, ok := colors[i].Find(tag.ROIDisplayColor); ok {
				if rgb, ok := elem.GetInts(); ok && len(rgb) >= 3 {
					s.Color = [3]float64{
						clamp01(float64(rgb[0]) / 255.0),
						clamp01(float64(rgb[1]) / 255.0),
						clamp01(float64(rgb[2]) / 255.0),
					}
				}
			}
		}
		out = append(out, s)
	}
	return out
}

// palette assigns distinct colors to structures without a declared one
var palette = [][3]float64{
	{1.0, 0.2, 0.2},
	{0.2, 1.0, 0.2},
	{0.2, 0.4, 1.0},
	{1.0, 1.0, 0.2},
	{1.0, 0.2, 1.0},
	{0.2, 1.0, 1.0},
	{1.0, 0.6, 0.2},
	{0.6, 0.2, 1.0},
}

func paletteColor(i int) [3]float64 {
	return palette[i%len(palette)]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
