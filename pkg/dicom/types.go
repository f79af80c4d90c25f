package dicom

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/mprview/mprview/pkg/dicom/tag"
)

// Dataset represents one decoded DICOM file: an ordered tag->element
// mapping plus the complete original byte buffer. The raw buffer is kept
// because annotation data is sometimes only recoverable by scanning bytes
// the structured decode missed. A Dataset is never mutated after Decode.
type Dataset struct {
	Elements map[Tag]*Element
	Order    []Tag // document order of top-level tags

	// Raw is the complete input buffer. Nil for nested sequence items.
	Raw []byte
}

// Element represents a single DICOM element
type Element struct {
	Tag    Tag
	VR     string // Value Representation
	Length uint32 // declared value length; 0xFFFFFFFF means undefined
	Value  interface{}
}

// Tag alias to avoid duplication
type Tag = tag.Tag

func newDataset() *Dataset {
	return &Dataset{Elements: make(map[Tag]*Element)}
}

func (ds *Dataset) add(elem *Element) {
	if _, dup := ds.Elements[elem.Tag]; !dup {
		ds.Order = append(ds.Order, elem.Tag)
	}
	ds.Elements[elem.Tag] = elem
}

// FindElement returns an element by tag
func (ds *Dataset) FindElement(group, element uint16) (*Element, bool) {
	elem, ok := ds.Elements[Tag{Group: group, Element: element}]
	return elem, ok
}

// Find returns an element by tag constant
func (ds *Dataset) Find(t Tag) (*Element, bool) {
	elem, ok := ds.Elements[t]
	return elem, ok
}

// Walk visits every top-level element in document order
func (ds *Dataset) Walk(fn func(*Element) bool) {
	for _, t := range ds.Order {
		if !fn(ds.Elements[t]) {
			return
		}
	}
}

// GetString returns a string value from an element
func (elem *Element) GetString() (string, bool) {
	if s, ok := elem.Value.(string); ok {
		return s, true
	}
	return "", false
}

// GetUint16 returns a uint16 value from an element
func (elem *Element) GetUint16() (uint16, bool) {
	if u, ok := elem.Value.(uint16); ok {
		return u, true
	}
	return 0, false
}

// GetInt returns an int value from an element
func (elem *Element) GetInt() (int, bool) {
	switch v := elem.Value.(type) {
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int:
		return v, true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i, true
		}
	case []byte:
		if len(v) == 2 {
			return int(binary.LittleEndian.Uint16(v)), true
		}
		if len(v) == 4 {
			return int(binary.LittleEndian.Uint32(v)), true
		}
	}
	return 0, false
}

// GetInts returns a slice of ints from an element. Integer-string values
// ("1\2\3") split on the DICOM multi-value backslash.
func (elem *Element) GetInts() ([]int, bool) {
	switch v := elem.Value.(type) {
	case []uint16:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	case []uint32:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	case string:
		parts := strings.Split(strings.TrimSpace(v), "\\")
		res := make([]int, 0, len(parts))
		for _, p := range parts {
			i, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, false
			}
			res = append(res, i)
		}
		return res, len(res) > 0
	}
	if i, ok := elem.GetInt(); ok {
		return []int{i}, true
	}
	return nil, false
}

// GetFloat returns a float64 value from an element
func (elem *Element) GetFloat() (float64, bool) {
	switch v := elem.Value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	if i, ok := elem.GetInt(); ok {
		return float64(i), true
	}
	return 0, false
}

// GetFloats returns a slice of float64s from an element. Decimal-string
// values split on the DICOM multi-value backslash.
func (elem *Element) GetFloats() ([]float64, bool) {
	switch v := elem.Value.(type) {
	case []float32:
		res := make([]float64, len(v))
		for i, val := range v {
			res[i] = float64(val)
		}
		return res, true
	case []float64:
		return v, true
	case float32:
		return []float64{float64(v)}, true
	case float64:
		return []float64{v}, true
	case string:
		parts := strings.Split(strings.TrimSpace(v), "\\")
		res := make([]float64, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, false
			}
			res = append(res, f)
		}
		return res, len(res) > 0
	}
	return nil, false
}

// GetBytes returns the raw byte value from an element
func (elem *Element) GetBytes() ([]byte, bool) {
	if b, ok := elem.Value.([]byte); ok {
		return b, true
	}
	return nil, false
}

// GetSequence returns sequence items from an element
func (elem *Element) GetSequence() ([]*Dataset, bool) {
	if items, ok := elem.Value.([]*Dataset); ok {
		return items, true
	}
	return nil, false
}

// GetSequenceItems returns all items from a sequence element of the dataset,
// or nil if the element is absent or not a sequence.
func GetSequenceItems(ds *Dataset, t Tag) []*Dataset {
	elem, ok := ds.Find(t)
	if !ok {
		return nil
	}
	items, _ := elem.GetSequence()
	return items
}

// HasElement returns true if the dataset contains the specified element
func HasElement(ds *Dataset, t Tag) bool {
	_, ok := ds.Find(t)
	return ok
}

func (elem *Element) valueString() string {
	switch v := elem.Value.(type) {
	case []*Dataset:
		return fmt.Sprintf("Sequence (%d items)", len(v))
	case []uint16:
		if len(v) > 10 {
			return fmt.Sprintf("Array of %d values", len(v))
		}
		return fmt.Sprintf("%v", v)
	case []byte:
		if len(v) > 20 {
			return fmt.Sprintf("Binary Data (%d bytes)", len(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
