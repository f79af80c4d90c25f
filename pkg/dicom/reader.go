package dicom

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/mprview/mprview/pkg/dicom/tag"
	"github.com/mprview/mprview/pkg/dicom/transfer"
	"github.com/mprview/mprview/pkg/dicom/vr"
)

const undefinedLength = 0xFFFFFFFF

// part10HeaderSize is the 128-byte preamble plus the 4-byte DICM magic
const part10HeaderSize = 132

// decoder walks a byte buffer. It deliberately operates on a slice with an
// explicit cursor instead of an io.Reader: the whole buffer must survive on
// the Dataset for raw fallback scanning, and undefined-length recovery needs
// offset arithmetic against the buffer end.
type decoder struct {
	buf        []byte
	pos        int
	explicitVR bool
}

// Decode decodes a complete DICOM byte buffer into a Dataset.
//
// Returns ErrUnsupportedTransferEncoding when the leading structural header
// matches no supported byte-order/encoding convention, ErrMalformedStream
// when the stream ends before a declared element boundary. The input buffer
// is retained on the returned Dataset.
func Decode(data []byte) (*Dataset, error) {
	start, explicit, part10, err := sniffHeader(data)
	if err != nil {
		return nil, err
	}

	d := &decoder{buf: data, pos: start, explicitVR: explicit}
	ds := newDataset()
	ds.Raw = data

	// File Meta group 0002 is always explicit VR little endian; the body
	// encoding comes from TransferSyntaxUID once the meta group ends.
	metaDone := !part10
	for d.pos < len(d.buf) {
		if !metaDone {
			group, err := d.peekGroup()
			if err != nil {
				return nil, err
			}
			if group != 0x0002 {
				metaDone = true
				ts := datasetTransferSyntax(ds)
				if !ts.IsSupported() {
					return nil, fmt.Errorf("%w: transfer syntax %q (%s)",
						ErrUnsupportedTransferEncoding, string(ts), ts.Name())
				}
				d.explicitVR = ts.IsExplicitVR()
			}
		}

		elem, err := d.readElement()
		if err != nil {
			return nil, err
		}
		ds.add(elem)
	}

	return ds, nil
}

// sniffHeader locates the dataset start and encoding convention.
func sniffHeader(data []byte) (start int, explicit, part10 bool, err error) {
	if len(data) >= part10HeaderSize && string(data[128:132]) == "DICM" {
		return part10HeaderSize, true, true, nil
	}
	if len(data) < 8 {
		return 0, false, false, fmt.Errorf("%w: %d-byte buffer has no recognizable header",
			ErrUnsupportedTransferEncoding, len(data))
	}

	// Headerless streams: some archives strip the part-10 preamble.
	// A big-endian group number (high byte first) is not supported.
	if data[0] == 0x00 && data[1] != 0x00 {
		return 0, false, false, fmt.Errorf("%w: leading bytes look big endian",
			ErrUnsupportedTransferEncoding)
	}
	if vr.VR(data[4:6]).IsKnown() {
		return 0, true, false, nil
	}
	if length := u32At(data, 4); length == undefinedLength || int64(length) <= int64(len(data)-8) {
		return 0, false, false, nil
	}
	return 0, false, false, fmt.Errorf("%w: no DICM magic and no plausible leading element",
		ErrUnsupportedTransferEncoding)
}

func datasetTransferSyntax(ds *Dataset) transfer.Syntax {
	if elem, ok := ds.Find(tag.TransferSyntaxUID); ok {
		if s, ok := elem.GetString(); ok {
			return transfer.FromUID(strings.TrimSpace(s))
		}
	}
	// No file meta transfer syntax: default per the standard
	return transfer.ImplicitVRLittleEndian
}

// readElement reads one complete element at the cursor
func (d *decoder) readElement() (*Element, error) {
	t, err := d.readTag()
	if err != nil {
		return nil, err
	}

	elemVR, length, err := d.readVRLength(t)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", t, err)
	}

	if length == undefinedLength {
		// Undefined length always implies item structure. Encapsulated
		// pixel streams declare themselves via transfer syntax and are
		// rejected before we get here.
		items, err := d.readItems(-1)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", t, err)
		}
		return &Element{Tag: t, VR: string(vr.SQ), Length: undefinedLength, Value: items}, nil
	}

	end := d.pos + int(length)
	if int64(end) > int64(len(d.buf)) {
		return nil, fmt.Errorf("%w: element %s declares %d value bytes, %d remain",
			ErrMalformedStream, t, length, len(d.buf)-d.pos)
	}

	if elemVR == string(vr.SQ) {
		items, err := d.readItems(end)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", t, err)
		}
		if d.pos != end {
			return nil, fmt.Errorf("%w: sequence %s items overran declared length", ErrMalformedStream, t)
		}
		return &Element{Tag: t, VR: elemVR, Length: length, Value: items}, nil
	}

	raw := d.buf[d.pos:end]
	d.pos = end
	return &Element{Tag: t, VR: elemVR, Length: length, Value: parseValue(elemVR, raw)}, nil
}

// readVRLength reads the VR code and value length following a tag
func (d *decoder) readVRLength(t Tag) (string, uint32, error) {
	if d.explicitVR {
		vrBytes, err := d.readBytes(2)
		if err != nil {
			return "", 0, err
		}
		code := string(vrBytes)
		if !vr.VR(code).IsKnown() {
			return "", 0, fmt.Errorf("%w: unknown VR %q", ErrMalformedStream, code)
		}
		if !vr.VR(code).IsExplicitLength() {
			// 2 reserved bytes then a 4-byte length
			if _, err := d.readBytes(2); err != nil {
				return "", 0, err
			}
			length, err := d.readU32()
			return code, length, err
		}
		length, err := d.readU16()
		return code, uint32(length), err
	}

	length, err := d.readU32()
	return implicitVRFor(t), length, err
}

// readItems reads sequence items until limit (byte offset) or, when limit
// is negative, until a Sequence Delimitation tag. Running out of buffer
// before the delimiter is a malformed stream, never a silent stop.
func (d *decoder) readItems(limit int) ([]*Dataset, error) {
	items := []*Dataset{}
	for {
		if limit >= 0 && d.pos >= limit {
			return items, nil
		}
		if d.pos >= len(d.buf) {
			if limit < 0 {
				return nil, fmt.Errorf("%w: undefined-length sequence missing delimiter", ErrMalformedStream)
			}
			return nil, fmt.Errorf("%w: sequence truncated", ErrMalformedStream)
		}

		t, err := d.readTag()
		if err != nil {
			return nil, err
		}
		switch t {
		case tag.SequenceDelimitationItem:
			if _, err := d.readU32(); err != nil {
				return nil, err
			}
			return items, nil
		case tag.Item:
			itemLen, err := d.readU32()
			if err != nil {
				return nil, err
			}
			item, err := d.readItem(itemLen)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		default:
			return nil, fmt.Errorf("%w: unexpected tag %s inside sequence", ErrMalformedStream, t)
		}
	}
}

// readItem reads a single item body, fixed or undefined length
func (d *decoder) readItem(itemLen uint32) (*Dataset, error) {
	item := newDataset()

	if itemLen != undefinedLength {
		end := d.pos + int(itemLen)
		if int64(end) > int64(len(d.buf)) {
			return nil, fmt.Errorf("%w: item declares %d bytes, %d remain",
				ErrMalformedStream, itemLen, len(d.buf)-d.pos)
		}
		for d.pos < end {
			elem, err := d.readElement()
			if err != nil {
				return nil, err
			}
			item.add(elem)
		}
		if d.pos != end {
			return nil, fmt.Errorf("%w: item content overran declared length", ErrMalformedStream)
		}
		return item, nil
	}

	// Undefined-length item: elements until the Item Delimitation tag
	for {
		if d.pos >= len(d.buf) {
			return nil, fmt.Errorf("%w: undefined-length item missing delimiter", ErrMalformedStream)
		}
		next, err := d.peekTag()
		if err != nil {
			return nil, err
		}
		if next == tag.ItemDelimitationItem {
			d.pos += 4
			if _, err := d.readU32(); err != nil {
				return nil, err
			}
			return item, nil
		}
		elem, err := d.readElement()
		if err != nil {
			return nil, err
		}
		item.add(elem)
	}
}

// Cursor primitives. Every multi-byte read copies into a fixed local array
// before reinterpretation; source offsets are never assumed aligned.

func (d *decoder) readBytes(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("%w: need %d bytes, %d remain", ErrMalformedStream, n, len(d.buf)-d.pos)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readU16() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, fmt.Errorf("%w: truncated uint16", ErrMalformedStream)
	}
	v := u16At(d.buf, d.pos)
	d.pos += 2
	return v, nil
}

func (d *decoder) readU32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, fmt.Errorf("%w: truncated uint32", ErrMalformedStream)
	}
	v := u32At(d.buf, d.pos)
	d.pos += 4
	return v, nil
}

func (d *decoder) readTag() (Tag, error) {
	group, err := d.readU16()
	if err != nil {
		return Tag{}, err
	}
	element, err := d.readU16()
	if err != nil {
		return Tag{}, err
	}
	return Tag{Group: group, Element: element}, nil
}

func (d *decoder) peekTag() (Tag, error) {
	if d.pos+4 > len(d.buf) {
		return Tag{}, fmt.Errorf("%w: truncated tag", ErrMalformedStream)
	}
	return Tag{Group: u16At(d.buf, d.pos), Element: u16At(d.buf, d.pos+2)}, nil
}

func (d *decoder) peekGroup() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, fmt.Errorf("%w: truncated tag", ErrMalformedStream)
	}
	return u16At(d.buf, d.pos), nil
}

// u16At copies two bytes into an aligned array before decoding
func u16At(b []byte, off int) uint16 {
	var a [2]byte
	copy(a[:], b[off:off+2])
	return binary.LittleEndian.Uint16(a[:])
}

// u32At copies four bytes into an aligned array before decoding
func u32At(b []byte, off int) uint32 {
	var a [4]byte
	copy(a[:], b[off:off+4])
	return binary.LittleEndian.Uint32(a[:])
}

// implicitVRFor returns the VR for a tag under Implicit VR Little Endian.
// Covers the tags this viewer consumes; everything else decodes as UN bytes.
func implicitVRFor(t Tag) string {
	switch t.Group {
	case 0x0002:
		if t == tag.TransferSyntaxUID || t == tag.MediaStorageSOPClassUID || t == tag.MediaStorageSOPInstanceUID {
			return string(vr.UI)
		}
		return string(vr.UL)
	case 0x0008:
		switch t {
		case tag.SOPClassUID, tag.SOPInstanceUID:
			return string(vr.UI)
		case tag.Modality, tag.ImageType:
			return string(vr.CS)
		case tag.StudyDate, tag.SeriesDate, tag.ContentDate, tag.InstanceCreationDate:
			return string(vr.DA)
		case tag.StudyDescription, tag.SeriesDescription, tag.Manufacturer, tag.InstitutionName:
			return string(vr.LO)
		}
	case 0x0010:
		switch t {
		case tag.PatientName:
			return string(vr.PN)
		case tag.PatientID, tag.PatientComments:
			return string(vr.LO)
		case tag.PatientBirthDate:
			return string(vr.DA)
		case tag.PatientSex:
			return string(vr.CS)
		}
	case 0x0018:
		switch t {
		case tag.SliceThickness, tag.SpacingBetweenSlices:
			return string(vr.DS)
		}
	case 0x0020:
		switch t {
		case tag.StudyInstanceUID, tag.SeriesInstanceUID, tag.FrameOfReferenceUID:
			return string(vr.UI)
		case tag.ImagePositionPatient, tag.ImageOrientationPatient, tag.SliceLocation:
			return string(vr.DS)
		case tag.InstanceNumber, tag.SeriesNumber, tag.StudyID:
			return string(vr.IS)
		}
	case 0x0028:
		switch t {
		case tag.Rows, tag.Columns, tag.BitsAllocated, tag.BitsStored, tag.HighBit,
			tag.PixelRepresentation, tag.SamplesPerPixel:
			return string(vr.US)
		case tag.NumberOfFrames:
			return string(vr.IS)
		case tag.PixelSpacing, tag.WindowCenter, tag.WindowWidth,
			tag.RescaleIntercept, tag.RescaleSlope:
			return string(vr.DS)
		case tag.PhotometricInterpretation:
			return string(vr.CS)
		}
	case 0x3006:
		switch t {
		case tag.StructureSetROISequence, tag.ROIContourSequence, tag.ContourSequence,
			tag.ReferencedFrameOfReferenceSequence:
			return string(vr.SQ)
		case tag.ContourData, tag.ROIDisplayColor:
			return string(vr.DS)
		case tag.ROINumber, tag.NumberOfContourPoints, tag.ReferencedROINumber:
			return string(vr.IS)
		case tag.ROIName, tag.StructureSetLabel, tag.StructureSetName:
			return string(vr.LO)
		case tag.ContourGeometricType:
			return string(vr.CS)
		}
	case 0x7FE0:
		if t == tag.PixelData {
			return string(vr.OW)
		}
	}
	return string(vr.UN)
}

// parseValue converts raw bytes to a typed value based on VR
func parseValue(code string, data []byte) interface{} {
	switch vr.VR(code) {
	case vr.UI, vr.SH, vr.LO, vr.ST, vr.LT, vr.UT, vr.PN, vr.CS, vr.DA,
		vr.TM, vr.DT, vr.AS, vr.IS, vr.DS, vr.AE, vr.UC, vr.UR:
		return trimPadding(string(data))
	case vr.US:
		if len(data) == 2 {
			return u16At(data, 0)
		}
		values := make([]uint16, len(data)/2)
		for i := range values {
			values[i] = u16At(data, i*2)
		}
		return values
	case vr.UL:
		if len(data) == 4 {
			return u32At(data, 0)
		}
		values := make([]uint32, len(data)/4)
		for i := range values {
			values[i] = u32At(data, i*4)
		}
		return values
	case vr.SS:
		if len(data) == 2 {
			return int16(u16At(data, 0))
		}
	case vr.SL:
		if len(data) == 4 {
			return int32(u32At(data, 0))
		}
	case vr.FL:
		if len(data) == 4 {
			return f32At(data, 0)
		}
		if len(data)%4 == 0 {
			values := make([]float32, len(data)/4)
			for i := range values {
				values[i] = f32At(data, i*4)
			}
			return values
		}
	case vr.FD:
		if len(data) == 8 {
			return f64At(data, 0)
		}
		if len(data)%8 == 0 {
			values := make([]float64, len(data)/8)
			for i := range values {
				values[i] = f64At(data, i*8)
			}
			return values
		}
	}
	return data
}

// f32At copies four bytes into an aligned array before decoding
func f32At(b []byte, off int) float32 {
	return math.Float32frombits(u32At(b, off))
}

// f64At copies eight bytes into an aligned array before decoding
func f64At(b []byte, off int) float64 {
	var a [8]byte
	copy(a[:], b[off:off+8])
	return math.Float64frombits(binary.LittleEndian.Uint64(a[:]))
}

func trimPadding(s string) string {
	for len(s) > 0 && (s[len(s)-1] == 0 || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
