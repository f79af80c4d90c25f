// Package module provides typed views over the IOD modules a loaded study
// surfaces: patient, study, series and image plane metadata.
package module

import (
	"strings"

	"github.com/mprview/mprview/pkg/dicom"
	"github.com/mprview/mprview/pkg/dicom/tag"
)

func getString(ds *dicom.Dataset, t tag.Tag) string {
	if elem, ok := ds.Find(t); ok {
		if s, ok := elem.GetString(); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
