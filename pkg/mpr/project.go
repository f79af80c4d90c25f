package mpr

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mprview/mprview/pkg/rtstruct"
	"github.com/mprview/mprview/pkg/volume"
)

// DefaultDuplicateRadiusMM is the radius under which two projected points
// collapse into one
const DefaultDuplicateRadiusMM = 1.0

// ProjectContour projects a single contour onto the axial plane: the
// contour's own points, unchanged, when its plane depth matches the cursor's
// stack-axis coordinate within half a slice spacing; nothing otherwise.
func ProjectContour(c rtstruct.Contour, vol *volume.Volume, cursor Position) ([]r2.Vec, bool) {
	if math.Abs(c.Depth-cursor.Z) > vol.SpacingZ/2 {
		return nil, false
	}
	return contourToPlane(c, vol), true
}

// ProjectStructure computes the 2D cross-section of one ROI structure on a
// plane at the cursor position. Axial returns one polyline per contour at
// the cursor depth, or a pairwise depth interpolation when the cursor falls
// between two neighboring contour depths with matching point counts. The
// perpendicular planes return one closed polygon built from every
// straddling-edge intersection, near-duplicates discarded and the points
// ordered by angle around their centroid.
//
// 2D coordinates are mm offsets from the volume origin along the plane's
// in-plane axes (same convention as SliceGrid).
func ProjectStructure(s *rtstruct.Structure, plane Plane, vol *volume.Volume, cursor Position) ([][]r2.Vec, bool) {
	return ProjectStructureRadius(s, plane, vol, cursor, DefaultDuplicateRadiusMM)
}

// ProjectStructureRadius is ProjectStructure with an explicit
// duplicate-point radius
func ProjectStructureRadius(s *rtstruct.Structure, plane Plane, vol *volume.Volume, cursor Position, dupRadius float64) ([][]r2.Vec, bool) {
	if s == nil || len(s.Contours) == 0 {
		return nil, false
	}
	if plane == Axial {
		return projectAxial(s, vol, cursor)
	}
	poly := sectionPolygon(s, plane, vol, cursor, dupRadius)
	if poly == nil {
		return nil, false
	}
	return [][]r2.Vec{poly}, true
}

func projectAxial(s *rtstruct.Structure, vol *volume.Volume, cursor Position) ([][]r2.Vec, bool) {
	tol := vol.SpacingZ / 2

	var direct [][]r2.Vec
	for i := range s.Contours {
		if math.Abs(s.Contours[i].Depth-cursor.Z) <= tol {
			direct = append(direct, contourToPlane(s.Contours[i], vol))
		}
	}
	if len(direct) > 0 {
		return direct, true
	}

	// Cursor between two known depths: interpolate the enclosing contours
	// pairwise when their point counts line up
	below, above := -1, -1
	for i := range s.Contours {
		d := s.Contours[i].Depth
		if d < cursor.Z && (below < 0 || d > s.Contours[below].Depth) {
			below = i
		}
		if d > cursor.Z && (above < 0 || d < s.Contours[above].Depth) {
			above = i
		}
	}
	if below < 0 || above < 0 {
		return nil, false
	}
	cb, ca := s.Contours[below], s.Contours[above]
	if len(cb.Points) != len(ca.Points) {
		return nil, false
	}

	t := clamp01((cursor.Z - cb.Depth) / (ca.Depth - cb.Depth))
	poly := make([]r2.Vec, len(cb.Points))
	for i := range cb.Points {
		poly[i] = r2.Vec{
			X: lerp(cb.Points[i].X, ca.Points[i].X, t) - vol.OriginX,
			Y: lerp(cb.Points[i].Y, ca.Points[i].Y, t) - vol.OriginY,
		}
	}
	return [][]r2.Vec{poly}, true
}

// sectionPolygon walks every closed edge of every contour and collects the
// exact intersection with the cutting plane wherever an edge straddles it
func sectionPolygon(s *rtstruct.Structure, plane Plane, vol *volume.Volume, cursor Position, dupRadius float64) []r2.Vec {
	cut := cursor.Y
	if plane == Sagittal {
		cut = cursor.X
	}

	var pts []r2.Vec
	for ci := range s.Contours {
		c := &s.Contours[ci]
		n := len(c.Points)
		for i := 0; i < n; i++ {
			a, b := c.Points[i], c.Points[(i+1)%n]
			va, vb := planeAxisValue(a, plane), planeAxisValue(b, plane)
			switch {
			case va == cut:
				pts = appendUnique(pts, pointToPlane(a, c.Depth, plane, vol), dupRadius)
			case (va-cut)*(vb-cut) < 0:
				t := clamp01((cut - va) / (vb - va))
				p := rtstruct.Point{
					X: lerp(a.X, b.X, t),
					Y: lerp(a.Y, b.Y, t),
					Z: lerp(a.Z, b.Z, t),
				}
				pts = appendUnique(pts, pointToPlane(p, c.Depth, plane, vol), dupRadius)
			}
		}
	}
	if len(pts) < 3 {
		return nil
	}
	return angularOrder(pts)
}

// angularOrder sorts points into one closed polygon by angle around their
// centroid
func angularOrder(pts []r2.Vec) []r2.Vec {
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	cx := floats.Sum(xs) / float64(len(pts))
	cy := floats.Sum(ys) / float64(len(pts))

	sort.Slice(pts, func(i, j int) bool {
		return math.Atan2(pts[i].Y-cy, pts[i].X-cx) < math.Atan2(pts[j].Y-cy, pts[j].X-cx)
	})
	return pts
}

func appendUnique(pts []r2.Vec, p r2.Vec, radius float64) []r2.Vec {
	for _, q := range pts {
		if math.Hypot(p.X-q.X, p.Y-q.Y) < radius {
			return pts
		}
	}
	return append(pts, p)
}

// planeAxisValue returns a point's coordinate along the axis perpendicular
// to the cutting plane
func planeAxisValue(p rtstruct.Point, plane Plane) float64 {
	if plane == Sagittal {
		return p.X
	}
	return p.Y
}

// pointToPlane maps a 3D point into a plane's 2D coordinates. The contour's
// plane depth stands in for z; points within one contour share it.
func pointToPlane(p rtstruct.Point, depth float64, plane Plane, vol *volume.Volume) r2.Vec {
	if plane == Sagittal {
		return r2.Vec{X: p.Y - vol.OriginY, Y: depth - vol.OriginZ}
	}
	return r2.Vec{X: p.X - vol.OriginX, Y: depth - vol.OriginZ}
}

func contourToPlane(c rtstruct.Contour, vol *volume.Volume) []r2.Vec {
	out := make([]r2.Vec, len(c.Points))
	for i, p := range c.Points {
		out[i] = r2.Vec{X: p.X - vol.OriginX, Y: p.Y - vol.OriginY}
	}
	return out
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
