// Package mpr maps between voxel-index space, patient-space millimeters and
// the three orthogonal reconstruction planes, producing resampled 2D slice
// grids and plane-intersected contour polygons.
//
// Everything here is a pure function over an immutable Volume and ROI set;
// the only mutable state is the CoordinateSystem cursor.
package mpr

import (
	"fmt"
	"strings"
)

// Plane identifies one of the three orthogonal reconstruction orientations
type Plane int

const (
	// Axial is the slice-stack plane, perpendicular to the patient Z axis
	Axial Plane = iota
	// Coronal is perpendicular to the patient Y axis
	Coronal
	// Sagittal is perpendicular to the patient X axis
	Sagittal
)

// String returns the anatomical name of the plane
func (p Plane) String() string {
	switch p {
	case Axial:
		return "axial"
	case Coronal:
		return "coronal"
	case Sagittal:
		return "sagittal"
	default:
		return fmt.Sprintf("Plane(%d)", int(p))
	}
}

// ParsePlane resolves an orientation name
func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(s) {
	case "axial":
		return Axial, nil
	case "coronal":
		return Coronal, nil
	case "sagittal":
		return Sagittal, nil
	default:
		return Axial, fmt.Errorf("unknown plane %q", s)
	}
}
