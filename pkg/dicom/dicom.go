// Package dicom provides a native Go decoder for single-frame DICOM files.
//
// The decoder targets the subset a cross-sectional viewer consumes: CT-like
// grayscale image slices and RT Structure Set annotation files, in the
// little-endian uncompressed transfer syntaxes. Decoded datasets keep their
// original byte buffer so downstream consumers can recover data the
// structured decode missed.
//
// Basic usage:
//
//	ds, err := dicom.ReadFile("/path/to/slice.dcm")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if dicom.IsRTStruct(ds) {
//		// hand off to the rtstruct extractor
//	}
package dicom

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mprview/mprview/pkg/dicom/tag"
	"github.com/mprview/mprview/pkg/dicom/transfer"
)

// TransferSyntax re-exports transfer.Syntax
type TransferSyntax = transfer.Syntax

// SOP Class UIDs this viewer recognizes
const (
	CTImageStorageUID        = "1.2.840.10008.5.1.4.1.1.2"
	MRImageStorageUID        = "1.2.840.10008.5.1.4.1.1.4"
	RTStructureSetStorageUID = "1.2.840.10008.5.1.4.1.1.481.3"
)

// ReadFile reads and decodes a DICOM file from disk
func ReadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return Decode(data)
}

// Parse reads and decodes a DICOM stream
func Parse(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	return Decode(data)
}

// GetModality returns the modality string from the dataset
func GetModality(ds *Dataset) string {
	if elem, ok := ds.Find(tag.Modality); ok {
		if s, ok := elem.GetString(); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// IsCT returns true if the dataset is a CT image
func IsCT(ds *Dataset) bool {
	return checkSOPClass(ds, CTImageStorageUID) || GetModality(ds) == "CT"
}

// IsRTStruct returns true if the dataset is an RT Structure Set
func IsRTStruct(ds *Dataset) bool {
	return checkSOPClass(ds, RTStructureSetStorageUID) || GetModality(ds) == "RTSTRUCT"
}

// IsImage returns true if the dataset carries single-frame pixel data
func IsImage(ds *Dataset) bool {
	return HasElement(ds, tag.PixelData)
}

// GetTransferSyntax returns the transfer syntax from the dataset
func GetTransferSyntax(ds *Dataset) TransferSyntax {
	return datasetTransferSyntax(ds)
}

// GetRows returns the number of rows in the image
func GetRows(ds *Dataset) int {
	if elem, ok := ds.Find(tag.Rows); ok {
		if v, ok := elem.GetInt(); ok {
			return v
		}
	}
	return 0
}

// GetColumns returns the number of columns in the image
func GetColumns(ds *Dataset) int {
	if elem, ok := ds.Find(tag.Columns); ok {
		if v, ok := elem.GetInt(); ok {
			return v
		}
	}
	return 0
}

// GetBitsAllocated returns the bits allocated per sample
func GetBitsAllocated(ds *Dataset) int {
	if elem, ok := ds.Find(tag.BitsAllocated); ok {
		if v, ok := elem.GetInt(); ok {
			return v
		}
	}
	return 16
}

// GetPixelRepresentation returns 0 for unsigned, 1 for signed
func GetPixelRepresentation(ds *Dataset) int {
	if elem, ok := ds.Find(tag.PixelRepresentation); ok {
		if v, ok := elem.GetInt(); ok {
			return v
		}
	}
	return 0
}

// GetInstanceNumber returns the instance number (0020,0013)
func GetInstanceNumber(ds *Dataset) int {
	if elem, ok := ds.Find(tag.InstanceNumber); ok {
		if v, ok := elem.GetInt(); ok {
			return v
		}
	}
	return 0
}

// GetPixelSpacing returns the in-plane pixel spacing in mm (row, col)
func GetPixelSpacing(ds *Dataset) (row, col float64) {
	row, col = 1.0, 1.0
	if elem, ok := ds.Find(tag.PixelSpacing); ok {
		if vals, ok := elem.GetFloats(); ok && len(vals) >= 2 {
			row, col = vals[0], vals[1]
		}
	}
	return
}

// GetSliceThickness returns the slice thickness in mm
func GetSliceThickness(ds *Dataset) float64 {
	if elem, ok := ds.Find(tag.SliceThickness); ok {
		if v, ok := elem.GetFloat(); ok {
			return v
		}
	}
	return 0
}

// GetSpacingBetweenSlices returns the declared slice-to-slice spacing in mm
func GetSpacingBetweenSlices(ds *Dataset) float64 {
	if elem, ok := ds.Find(tag.SpacingBetweenSlices); ok {
		if v, ok := elem.GetFloat(); ok {
			return v
		}
	}
	return 0
}

// GetImagePositionPatient returns the patient-space position of the slice origin
func GetImagePositionPatient(ds *Dataset) ([3]float64, bool) {
	if elem, ok := ds.Find(tag.ImagePositionPatient); ok {
		if vals, ok := elem.GetFloats(); ok && len(vals) >= 3 {
			return [3]float64{vals[0], vals[1], vals[2]}, true
		}
	}
	return [3]float64{}, false
}

// GetImageOrientationPatient returns the direction cosines, identity by default
func GetImageOrientationPatient(ds *Dataset) [6]float64 {
	if elem, ok := ds.Find(tag.ImageOrientationPatient); ok {
		if vals, ok := elem.GetFloats(); ok && len(vals) >= 6 {
			return [6]float64{vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]}
		}
	}
	return [6]float64{1, 0, 0, 0, 1, 0}
}

// GetSliceLocation returns the SliceLocation value and whether it was present
func GetSliceLocation(ds *Dataset) (float64, bool) {
	if elem, ok := ds.Find(tag.SliceLocation); ok {
		if v, ok := elem.GetFloat(); ok {
			return v, true
		}
	}
	return 0, false
}

// GetRescale returns the linear rescale intercept and slope (defaults 0, 1)
func GetRescale(ds *Dataset) (intercept, slope float64) {
	intercept, slope = 0, 1
	if elem, ok := ds.Find(tag.RescaleIntercept); ok {
		if v, ok := elem.GetFloat(); ok {
			intercept = v
		}
	}
	if elem, ok := ds.Find(tag.RescaleSlope); ok {
		if v, ok := elem.GetFloat(); ok {
			slope = v
		}
	}
	return
}

// GetWindowLevel returns the declared window center and width,
// defaulting to CT soft tissue
func GetWindowLevel(ds *Dataset) (center, width float64) {
	center, width = 40, 400
	if elem, ok := ds.Find(tag.WindowCenter); ok {
		if vals, ok := elem.GetFloats(); ok && len(vals) > 0 {
			center = vals[0]
		}
	}
	if elem, ok := ds.Find(tag.WindowWidth); ok {
		if vals, ok := elem.GetFloats(); ok && len(vals) > 0 {
			width = vals[0]
		}
	}
	return
}

// GetPixelValues returns the stored pixel values of a single-frame image as
// raw integers, honoring BitsAllocated and PixelRepresentation. Rescale is
// not applied here; the volume builder owns that.
func GetPixelValues(ds *Dataset) ([]int32, error) {
	elem, ok := ds.Find(tag.PixelData)
	if !ok {
		return nil, fmt.Errorf("no pixel data element found")
	}

	rows, cols := GetRows(ds), GetColumns(ds)
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}
	count := rows * cols
	signed := GetPixelRepresentation(ds) == 1
	out := make([]int32, count)

	switch v := elem.Value.(type) {
	case []uint16:
		if len(v) < count {
			return nil, fmt.Errorf("pixel data truncated: %d of %d samples", len(v), count)
		}
		for i := 0; i < count; i++ {
			if signed {
				out[i] = int32(int16(v[i]))
			} else {
				out[i] = int32(v[i])
			}
		}
	case []byte:
		switch bits := GetBitsAllocated(ds); bits {
		case 16:
			if len(v) < count*2 {
				return nil, fmt.Errorf("pixel data truncated: %d of %d bytes", len(v), count*2)
			}
			for i := 0; i < count; i++ {
				raw := u16At(v, i*2)
				if signed {
					out[i] = int32(int16(raw))
				} else {
					out[i] = int32(raw)
				}
			}
		case 8:
			if len(v) < count {
				return nil, fmt.Errorf("pixel data truncated: %d of %d bytes", len(v), count)
			}
			for i := 0; i < count; i++ {
				out[i] = int32(v[i])
			}
		default:
			return nil, fmt.Errorf("unsupported bits allocated: %d", bits)
		}
	default:
		return nil, fmt.Errorf("pixel data element has unexpected type: %T", elem.Value)
	}

	return out, nil
}

func checkSOPClass(ds *Dataset, uids ...string) bool {
	if elem, ok := ds.Find(tag.SOPClassUID); ok {
		if s, ok := elem.GetString(); ok {
			s = strings.TrimSpace(s)
			for _, uid := range uids {
				if s == uid {
					return true
				}
			}
		}
	}
	return false
}
