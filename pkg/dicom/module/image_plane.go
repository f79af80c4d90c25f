package module

import (
	"github.com/mprview/mprview/pkg/dicom"
	"github.com/mprview/mprview/pkg/dicom/tag"
)

// ImagePlaneModule represents the Image Plane Module
// Per DICOM Part 3 Section C.7.6.2
type ImagePlaneModule struct {
	PixelSpacing            [2]float64 // Row\Column spacing (mm)
	ImageOrientationPatient [6]float64 // Direction cosines
	ImagePositionPatient    [3]float64 // Position of upper-left voxel (mm)
	SliceThickness          float64
	SpacingBetweenSlices    float64
	SliceLocation           float64
	HasPosition             bool
}

// ImagePlaneFromDataset reads the image plane module out of a decoded dataset
func ImagePlaneFromDataset(ds *dicom.Dataset) *ImagePlaneModule {
	m := &ImagePlaneModule{
		ImageOrientationPatient: dicom.GetImageOrientationPatient(ds),
		SliceThickness:          dicom.GetSliceThickness(ds),
		SpacingBetweenSlices:    dicom.GetSpacingBetweenSlices(ds),
	}
	m.PixelSpacing[0], m.PixelSpacing[1] = dicom.GetPixelSpacing(ds)
	if pos, ok := dicom.GetImagePositionPatient(ds); ok {
		m.ImagePositionPatient = pos
		m.HasPosition = true
	}
	if loc, ok := dicom.GetSliceLocation(ds); ok {
		m.SliceLocation = loc
	}
	return m
}

// FrameOfReferenceUID returns the spatial frame UID shared by a registered
// image stack and its structure set
func FrameOfReferenceUID(ds *dicom.Dataset) string {
	return getString(ds, tag.FrameOfReferenceUID)
}
