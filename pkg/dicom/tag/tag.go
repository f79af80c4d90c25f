// Package tag defines standard DICOM tags
package tag

import "fmt"

// Tag represents a DICOM tag with Group and Element
type Tag struct {
	Group   uint16
	Element uint16
}

// New creates a new Tag
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// String formats the tag as (gggg,eeee)
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// Equals compares two tags
func (t Tag) Equals(other Tag) bool {
	return t.Group == other.Group && t.Element == other.Element
}

// IsPrivate returns true if this is a private tag (odd group number)
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsFileMeta returns true if this tag is in the File Meta Information group
func (t Tag) IsFileMeta() bool {
	return t.Group == 0x0002
}

// Less orders tags by group then element
func (t Tag) Less(other Tag) bool {
	if t.Group != other.Group {
		return t.Group < other.Group
	}
	return t.Element < other.Element
}

// Standard DICOM Tags - File Meta Information (Group 0002)
var (
	FileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	FileMetaInformationVersion     = Tag{0x0002, 0x0001}
	MediaStorageSOPClassUID        = Tag{0x0002, 0x0002}
	MediaStorageSOPInstanceUID     = Tag{0x0002, 0x0003}
	TransferSyntaxUID              = Tag{0x0002, 0x0010}
	ImplementationClassUID         = Tag{0x0002, 0x0012}
	ImplementationVersionName      = Tag{0x0002, 0x0013}
	SpecificCharacterSet           = Tag{0x0008, 0x0005}
)

// Patient Module (Group 0010)
var (
	PatientName      = Tag{0x0010, 0x0010}
	PatientID        = Tag{0x0010, 0x0020}
	PatientBirthDate = Tag{0x0010, 0x0030}
	PatientSex       = Tag{0x0010, 0x0040}
	PatientAge       = Tag{0x0010, 0x1010}
	PatientComments  = Tag{0x0010, 0x4000}
)

// General Study Module (Group 0008, 0020)
var (
	StudyDate        = Tag{0x0008, 0x0020}
	StudyTime        = Tag{0x0008, 0x0030}
	AccessionNumber  = Tag{0x0008, 0x0050}
	StudyDescription = Tag{0x0008, 0x1030}
	StudyInstanceUID = Tag{0x0020, 0x000D}
	StudyID          = Tag{0x0020, 0x0010}
)

// General Series Module
var (
	Modality          = Tag{0x0008, 0x0060}
	SeriesInstanceUID = Tag{0x0020, 0x000E}
	SeriesNumber      = Tag{0x0020, 0x0011}
	InstanceNumber    = Tag{0x0020, 0x0013}
	SeriesDescription = Tag{0x0008, 0x103E}
	SeriesDate        = Tag{0x0008, 0x0021}
	SeriesTime        = Tag{0x0008, 0x0031}
)

// General Equipment Module
var (
	Manufacturer          = Tag{0x0008, 0x0070}
	InstitutionName       = Tag{0x0008, 0x0080}
	StationName           = Tag{0x0008, 0x1010}
	ManufacturerModelName = Tag{0x0008, 0x1090}
)

// SOP Common Module
var (
	SOPClassUID          = Tag{0x0008, 0x0016}
	SOPInstanceUID       = Tag{0x0008, 0x0018}
	InstanceCreationDate = Tag{0x0008, 0x0012}
	InstanceCreationTime = Tag{0x0008, 0x0013}
)

// Frame of Reference Module
var (
	FrameOfReferenceUID        = Tag{0x0020, 0x0052}
	PositionReferenceIndicator = Tag{0x0020, 0x1040}
)

// Image Pixel Module (Group 0028)
var (
	SamplesPerPixel           = Tag{0x0028, 0x0002}
	PhotometricInterpretation = Tag{0x0028, 0x0004}
	Rows                      = Tag{0x0028, 0x0010}
	Columns                   = Tag{0x0028, 0x0011}
	BitsAllocated             = Tag{0x0028, 0x0100}
	BitsStored                = Tag{0x0028, 0x0101}
	HighBit                   = Tag{0x0028, 0x0102}
	PixelRepresentation       = Tag{0x0028, 0x0103}
	PixelData                 = Tag{0x7FE0, 0x0010}
	NumberOfFrames            = Tag{0x0028, 0x0008}
)

// CT Image Module
var (
	ImageType        = Tag{0x0008, 0x0008}
	RescaleIntercept = Tag{0x0028, 0x1052}
	RescaleSlope     = Tag{0x0028, 0x1053}
	RescaleType      = Tag{0x0028, 0x1054}
	WindowCenter     = Tag{0x0028, 0x1050}
	WindowWidth      = Tag{0x0028, 0x1051}
)

// Image Position/Orientation
var (
	ImagePositionPatient    = Tag{0x0020, 0x0032}
	ImageOrientationPatient = Tag{0x0020, 0x0037}
	SliceThickness          = Tag{0x0018, 0x0050}
	SpacingBetweenSlices    = Tag{0x0018, 0x0088}
	PixelSpacing            = Tag{0x0028, 0x0030}
	SliceLocation           = Tag{0x0020, 0x1041}
)

// Content Date/Time
var (
	ContentDate = Tag{0x0008, 0x0023}
	ContentTime = Tag{0x0008, 0x0033}
)

// Sequence delimiters
var (
	Item                     = Tag{0xFFFE, 0xE000}
	ItemDelimitationItem     = Tag{0xFFFE, 0xE00D}
	SequenceDelimitationItem = Tag{0xFFFE, 0xE0DD}
)

// RT Structure Set Module (Group 3006)
var (
	StructureSetLabel       = Tag{0x3006, 0x0002}
	StructureSetName        = Tag{0x3006, 0x0004}
	StructureSetDate        = Tag{0x3006, 0x0008}
	StructureSetTime        = Tag{0x3006, 0x0009}
	StructureSetROISequence = Tag{0x3006, 0x0020}
	ROINumber               = Tag{0x3006, 0x0022}
	ROIName                 = Tag{0x3006, 0x0026}
	ROIDisplayColor         = Tag{0x3006, 0x002A}
	ROIGenerationAlgorithm  = Tag{0x3006, 0x0036}
	ROIContourSequence      = Tag{0x3006, 0x0039}
	ContourSequence         = Tag{0x3006, 0x0040}
	ContourGeometricType    = Tag{0x3006, 0x0042}
	NumberOfContourPoints   = Tag{0x3006, 0x0046}
	ContourData             = Tag{0x3006, 0x0050}
	ReferencedROINumber     = Tag{0x3006, 0x0084}
)

// Referenced image tags
var (
	ReferencedSOPClassUID              = Tag{0x0008, 0x1150}
	ReferencedSOPInstanceUID           = Tag{0x0008, 0x1155}
	ReferencedFrameOfReferenceSequence = Tag{0x3006, 0x0010}
)

// LookupName returns a human-readable name for common tags
func (t Tag) LookupName() string {
	switch t {
	case PatientName:
		return "PatientName"
	case PatientID:
		return "PatientID"
	case Rows:
		return "Rows"
	case Columns:
		return "Columns"
	case BitsAllocated:
		return "BitsAllocated"
	case PixelData:
		return "PixelData"
	case TransferSyntaxUID:
		return "TransferSyntaxUID"
	case SOPClassUID:
		return "SOPClassUID"
	case Modality:
		return "Modality"
	case NumberOfFrames:
		return "NumberOfFrames"
	case PixelSpacing:
		return "PixelSpacing"
	case ImagePositionPatient:
		return "ImagePositionPatient"
	case SliceLocation:
		return "SliceLocation"
	case StructureSetROISequence:
		return "StructureSetROISequence"
	case ROIContourSequence:
		return "ROIContourSequence"
	case ContourSequence:
		return "ContourSequence"
	case ContourData:
		return "ContourData"
	case ROIName:
		return "ROIName"
	case ROIDisplayColor:
		return "ROIDisplayColor"
	default:
		return ""
	}
}
