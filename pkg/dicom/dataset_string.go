package dicom

import (
	"encoding/json"
	"fmt"
	"strings"
)

// String returns a string representation of the Element
func (e *Element) String() string {
	tagName := e.Tag.LookupName()
	if tagName != "" {
		tagName = " " + tagName
	}
	return fmt.Sprintf("[%s] %s%s: %s", e.Tag, e.VR, tagName, e.valueString())
}

// MarshalJSON returns a JSON representation of the Element
func (e *Element) MarshalJSON() ([]byte, error) {
	var value interface{} = e.Value
	if b, ok := e.Value.([]byte); ok && len(b) > 64 {
		value = fmt.Sprintf("binary (%d bytes)", len(b))
	}
	return json.Marshal(&struct {
		Tag   string      `json:"tag"`
		Name  string      `json:"name,omitempty"`
		VR    string      `json:"vr"`
		Value interface{} `json:"value"`
	}{
		Tag:   e.Tag.String(),
		Name:  e.Tag.LookupName(),
		VR:    e.VR,
		Value: value,
	})
}

// String returns a string representation of the Dataset in document order
func (ds *Dataset) String() string {
	if ds == nil {
		return "<nil>"
	}
	var b strings.Builder
	for _, t := range ds.Order {
		b.WriteString(ds.Elements[t].String())
		b.WriteString("\n")
	}
	return b.String()
}

// MarshalJSON returns the elements as a JSON array in document order
func (ds *Dataset) MarshalJSON() ([]byte, error) {
	elements := make([]*Element, 0, len(ds.Order))
	for _, t := range ds.Order {
		elements = append(elements, ds.Elements[t])
	}
	return json.Marshal(elements)
}
