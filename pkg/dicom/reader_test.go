package dicom

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mprview/mprview/pkg/dicom/tag"
	"github.com/mprview/mprview/pkg/dicom/transfer"
	"github.com/mprview/mprview/pkg/dicom/vr"
)

// streamBuilder assembles synthetic DICOM byte streams for decoder tests.
type streamBuilder struct {
	buf      bytes.Buffer
	explicit bool
}

func newStream(explicit bool) *streamBuilder {
	return &streamBuilder{explicit: explicit}
}

func (b *streamBuilder) tag(t Tag) *streamBuilder {
	binary.Write(&b.buf, binary.LittleEndian, t.Group)
	binary.Write(&b.buf, binary.LittleEndian, t.Element)
	return b
}

// element writes one complete data element. String values are padded to
// even length the way a conformant encoder would.
func (b *streamBuilder) element(t Tag, code string, value []byte) *streamBuilder {
	if len(value)%2 != 0 {
		if vr.VR(code).IsString() {
			value = append(append([]byte{}, value...), ' ')
		} else {
			value = append(append([]byte{}, value...), 0)
		}
	}
	b.tag(t)
	if b.explicit {
		b.buf.WriteString(code)
		if !vr.VR(code).IsExplicitLength() {
			b.buf.Write([]byte{0, 0})
			binary.Write(&b.buf, binary.LittleEndian, uint32(len(value)))
		} else {
			binary.Write(&b.buf, binary.LittleEndian, uint16(len(value)))
		}
	} else {
		binary.Write(&b.buf, binary.LittleEndian, uint32(len(value)))
	}
	b.buf.Write(value)
	return b
}

// sequence writes an SQ element. When undefined is true the sequence and
// every item carry the 0xFFFFFFFF length and explicit delimiters.
func (b *streamBuilder) sequence(t Tag, undefined bool, items ...[]byte) *streamBuilder {
	var body bytes.Buffer
	for _, item := range items {
		binary.Write(&body, binary.LittleEndian, tag.Item.Group)
		binary.Write(&body, binary.LittleEndian, tag.Item.Element)
		if undefined {
			binary.Write(&body, binary.LittleEndian, uint32(0xFFFFFFFF))
			body.Write(item)
			binary.Write(&body, binary.LittleEndian, tag.ItemDelimitationItem.Group)
			binary.Write(&body, binary.LittleEndian, tag.ItemDelimitationItem.Element)
			binary.Write(&body, binary.LittleEndian, uint32(0))
		} else {
			binary.Write(&body, binary.LittleEndian, uint32(len(item)))
			body.Write(item)
		}
	}
	if undefined {
		binary.Write(&body, binary.LittleEndian, tag.SequenceDelimitationItem.Group)
		binary.Write(&body, binary.LittleEndian, tag.SequenceDelimitationItem.Element)
		binary.Write(&body, binary.LittleEndian, uint32(0))
	}

	b.tag(t)
	if b.explicit {
		b.buf.WriteString("SQ")
		b.buf.Write([]byte{0, 0})
	}
	if undefined {
		binary.Write(&b.buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	} else {
		binary.Write(&b.buf, binary.LittleEndian, uint32(body.Len()))
	}
	b.buf.Write(body.Bytes())
	return b
}

func (b *streamBuilder) bytes() []byte {
	return b.buf.Bytes()
}

// part10 wraps a body in the 128-byte preamble, DICM magic and a minimal
// explicit VR file meta group.
func part10(transferSyntax string, body []byte) []byte {
	meta := newStream(true)
	meta.element(tag.TransferSyntaxUID, "UI", []byte(transferSyntax))

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")
	out.Write(meta.bytes())
	out.Write(body)
	return out.Bytes()
}

// itemBytes encodes an item body under the given encoding convention.
func itemBytes(explicit bool, fill func(*streamBuilder)) []byte {
	b := newStream(explicit)
	fill(b)
	return b.bytes()
}

func TestDecode_Part10ExplicitVR(t *testing.T) {
	body := newStream(true).
		element(tag.Modality, "CS", []byte("CT")).
		element(tag.PatientName, "PN", []byte("DOE^JANE")).
		element(tag.Rows, "US", []byte{0x00, 0x02}).
		bytes()

	ds, err := Decode(part10(string(transfer.ExplicitVRLittleEndian), body))
	require.NoError(t, err)

	assert.Equal(t, "CT", GetModality(ds))
	elem, ok := ds.Find(tag.PatientName)
	require.True(t, ok)
	name, _ := elem.GetString()
	assert.Equal(t, "DOE^JANE", name)
	assert.Equal(t, 512, GetRows(ds))
	assert.NotNil(t, ds.Raw)
}

func TestDecode_Part10ImplicitVR(t *testing.T) {
	body := newStream(false).
		element(tag.Modality, "CS", []byte("MR")).
		element(tag.SliceLocation, "DS", []byte("-42.5")).
		bytes()

	ds, err := Decode(part10(string(transfer.ImplicitVRLittleEndian), body))
	require.NoError(t, err)

	assert.Equal(t, "MR", GetModality(ds))
	loc, ok := GetSliceLocation(ds)
	require.True(t, ok)
	assert.InDelta(t, -42.5, loc, 1e-9)
}

func TestDecode_HeaderlessStreams(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		data := newStream(true).
			element(tag.Modality, "CS", []byte("CT")).
			bytes()
		ds, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "CT", GetModality(ds))
	})

	t.Run("implicit", func(t *testing.T) {
		data := newStream(false).
			element(tag.Modality, "CS", []byte("CT")).
			element(tag.Rows, "US", []byte{0x00, 0x01}).
			bytes()
		ds, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "CT", GetModality(ds))
		assert.Equal(t, 256, GetRows(ds))
	})
}

// Decoding must not depend on the buffer's alignment in memory: the same
// payload copied to an odd offset of a larger backing array decodes to an
// identical dataset.
func TestDecode_AlignmentIndependence(t *testing.T) {
	data := part10(string(transfer.ExplicitVRLittleEndian), newStream(true).
		element(tag.PatientID, "LO", []byte("PAT-7")).
		element(tag.Rows, "US", []byte{0x00, 0x02}).
		element(tag.PixelSpacing, "DS", []byte("0.75\\0.75")).
		bytes())

	aligned, err := Decode(data)
	require.NoError(t, err)

	for shift := 1; shift <= 7; shift++ {
		backing := make([]byte, len(data)+shift)
		copy(backing[shift:], data)
		shifted, err := Decode(backing[shift:])
		require.NoError(t, err, "shift %d", shift)

		require.Equal(t, len(aligned.Order), len(shifted.Order))
		for _, tg := range aligned.Order {
			a := aligned.Elements[tg]
			b := shifted.Elements[tg]
			require.NotNil(t, b, "tag %s missing at shift %d", tg, shift)
			assert.Equal(t, a.VR, b.VR)
			assert.Equal(t, a.Value, b.Value)
		}
	}
}

// Undefined-length and explicit-length encodings of the same sequence must
// produce the same items.
func TestDecode_SequenceLengthEquivalence(t *testing.T) {
	items := [][]byte{
		itemBytes(true, func(b *streamBuilder) {
			b.element(tag.ROINumber, "IS", []byte("1"))
			b.element(tag.ROIName, "LO", []byte("Liver"))
		}),
		itemBytes(true, func(b *streamBuilder) {
			b.element(tag.ROINumber, "IS", []byte("2"))
			b.element(tag.ROIName, "LO", []byte("Spleen"))
		}),
	}

	fixed := newStream(true).sequence(tag.StructureSetROISequence, false, items...).bytes()
	undef := newStream(true).sequence(tag.StructureSetROISequence, true, items...).bytes()

	dsFixed, err := Decode(part10(string(transfer.ExplicitVRLittleEndian), fixed))
	require.NoError(t, err)
	dsUndef, err := Decode(part10(string(transfer.ExplicitVRLittleEndian), undef))
	require.NoError(t, err)

	itemsFixed := GetSequenceItems(dsFixed, tag.StructureSetROISequence)
	itemsUndef := GetSequenceItems(dsUndef, tag.StructureSetROISequence)
	require.Len(t, itemsFixed, 2)
	require.Len(t, itemsUndef, 2)

	for i := range itemsFixed {
		elemA, ok := itemsFixed[i].Find(tag.ROIName)
		require.True(t, ok)
		elemB, ok := itemsUndef[i].Find(tag.ROIName)
		require.True(t, ok)
		nameA, _ := elemA.GetString()
		nameB, _ := elemB.GetString()
		assert.Equal(t, nameA, nameB)
	}
}

func TestDecode_NestedSequence(t *testing.T) {
	inner := itemBytes(true, func(b *streamBuilder) {
		b.element(tag.ContourData, "DS", []byte("1\\2\\3\\4\\5\\3\\7\\8\\3"))
	})
	outer := itemBytes(true, func(b *streamBuilder) {
		b.element(tag.ReferencedROINumber, "IS", []byte("1"))
		b.sequence(tag.ContourSequence, true, inner)
	})
	body := newStream(true).sequence(tag.ROIContourSequence, true, outer).bytes()

	ds, err := Decode(part10(string(transfer.ExplicitVRLittleEndian), body))
	require.NoError(t, err)

	rois := GetSequenceItems(ds, tag.ROIContourSequence)
	require.Len(t, rois, 1)
	contours := GetSequenceItems(rois[0], tag.ContourSequence)
	require.Len(t, contours, 1)
	elem, ok := contours[0].Find(tag.ContourData)
	require.True(t, ok)
	values, ok := elem.GetFloats()
	require.True(t, ok)
	assert.Len(t, values, 9)
}

// An undefined-length sequence whose delimiter never arrives must fail as a
// malformed stream instead of silently accepting a truncated dataset.
func TestDecode_MissingSequenceDelimiter(t *testing.T) {
	item := itemBytes(true, func(b *streamBuilder) {
		b.element(tag.ROINumber, "IS", []byte("1"))
	})
	good := newStream(true).sequence(tag.StructureSetROISequence, true, item).bytes()
	// Chop the trailing (FFFE,E0DD) delimiter off.
	truncated := good[:len(good)-8]

	_, err := Decode(part10(string(transfer.ExplicitVRLittleEndian), truncated))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedStream)
}

func TestDecode_TruncatedValue(t *testing.T) {
	body := newStream(true).element(tag.PatientID, "LO", []byte("PAT-0001")).bytes()
	data := part10(string(transfer.ExplicitVRLittleEndian), body)

	_, err := Decode(data[:len(data)-4])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedStream)
}

func TestDecode_UnsupportedTransferSyntax(t *testing.T) {
	body := newStream(true).element(tag.Modality, "CS", []byte("CT")).bytes()
	// Explicit VR Big Endian is retired and not supported.
	_, err := Decode(part10("1.2.840.10008.1.2.2", body))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedTransferEncoding)

	// JPEG baseline encapsulation is likewise rejected up front.
	_, err = Decode(part10("1.2.840.10008.1.2.4.50", body))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedTransferEncoding)
}

func TestDecode_UnrecognizableBuffer(t *testing.T) {
	_, err := Decode([]byte{0xDE, 0xAD})
	assert.ErrorIs(t, err, ErrUnsupportedTransferEncoding)

	// Big-endian leading group number
	_, err = Decode([]byte{0x00, 0x08, 0x00, 0x60, 0x43, 0x53, 0x00, 0x02, 'C', 'T'})
	assert.ErrorIs(t, err, ErrUnsupportedTransferEncoding)
}

func TestDecode_MultiValuedFloats(t *testing.T) {
	body := newStream(true).
		element(tag.ImagePositionPatient, "DS", []byte("-250.0\\-250.0\\12.5")).
		element(tag.PixelSpacing, "DS", []byte("0.976562\\0.976562")).
		bytes()

	ds, err := Decode(part10(string(transfer.ExplicitVRLittleEndian), body))
	require.NoError(t, err)

	pos, ok := GetImagePositionPatient(ds)
	require.True(t, ok)
	assert.InDelta(t, -250.0, pos[0], 1e-9)
	assert.InDelta(t, 12.5, pos[2], 1e-9)

	rowSp, colSp := GetPixelSpacing(ds)
	assert.InDelta(t, 0.976562, rowSp, 1e-6)
	assert.InDelta(t, 0.976562, colSp, 1e-6)
}

func TestDecode_DocumentOrderPreserved(t *testing.T) {
	body := newStream(true).
		element(tag.Modality, "CS", []byte("CT")).
		element(tag.PatientName, "PN", []byte("DOE^JANE")).
		element(tag.PatientID, "LO", []byte("PAT-1")).
		bytes()

	ds, err := Decode(part10(string(transfer.ExplicitVRLittleEndian), body))
	require.NoError(t, err)

	// File meta transfer syntax precedes the body elements.
	want := []Tag{tag.TransferSyntaxUID, tag.Modality, tag.PatientName, tag.PatientID}
	assert.Equal(t, want, ds.Order)
}
