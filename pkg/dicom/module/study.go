package module

import (
	"github.com/mprview/mprview/pkg/dicom"
	"github.com/mprview/mprview/pkg/dicom/tag"
)

// StudyModule represents the General Study Module
type StudyModule struct {
	StudyInstanceUID string
	StudyID          string
	StudyDate        string
	StudyTime        string
	AccessionNumber  string
	StudyDescription string
}

// StudyFromDataset reads the study module out of a decoded dataset
func StudyFromDataset(ds *dicom.Dataset) *StudyModule {
	return &StudyModule{
		StudyInstanceUID: getString(ds, tag.StudyInstanceUID),
		StudyID:          getString(ds, tag.StudyID),
		StudyDate:        getString(ds, tag.StudyDate),
		StudyTime:        getString(ds, tag.StudyTime),
		AccessionNumber:  getString(ds, tag.AccessionNumber),
		StudyDescription: getString(ds, tag.StudyDescription),
	}
}

// SeriesModule represents the General Series Module
type SeriesModule struct {
	Modality          string
	SeriesInstanceUID string
	SeriesNumber      string
	SeriesDescription string
	SeriesDate        string
	SeriesTime        string
}

// SeriesFromDataset reads the series module out of a decoded dataset
func SeriesFromDataset(ds *dicom.Dataset) *SeriesModule {
	return &SeriesModule{
		Modality:          getString(ds, tag.Modality),
		SeriesInstanceUID: getString(ds, tag.SeriesInstanceUID),
		SeriesNumber:      getString(ds, tag.SeriesNumber),
		SeriesDescription: getString(ds, tag.SeriesDescription),
		SeriesDate:        getString(ds, tag.SeriesDate),
		SeriesTime:        getString(ds, tag.SeriesTime),
	}
}
