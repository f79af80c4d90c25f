package module

import (
	"strings"

	"github.com/mprview/mprview/pkg/dicom"
	"github.com/mprview/mprview/pkg/dicom/tag"
)

// PersonName holds the DICOM PN components
type PersonName struct {
	FamilyName string
	GivenName  string
	MiddleName string
	Prefix     string
	Suffix     string
}

// String joins the components back into caret notation
func (n PersonName) String() string {
	s := strings.Join([]string{n.FamilyName, n.GivenName, n.MiddleName, n.Prefix, n.Suffix}, "^")
	return strings.TrimRight(s, "^")
}

// Display renders the name the way a viewer shows it
func (n PersonName) Display() string {
	parts := []string{}
	if n.GivenName != "" {
		parts = append(parts, n.GivenName)
	}
	if n.MiddleName != "" {
		parts = append(parts, n.MiddleName)
	}
	if n.FamilyName != "" {
		parts = append(parts, n.FamilyName)
	}
	return strings.Join(parts, " ")
}

// ParsePersonName splits caret notation into components
func ParsePersonName(s string) PersonName {
	var n PersonName
	parts := strings.Split(s, "^")
	fields := []*string{&n.FamilyName, &n.GivenName, &n.MiddleName, &n.Prefix, &n.Suffix}
	for i := 0; i < len(parts) && i < len(fields); i++ {
		*fields[i] = strings.TrimSpace(parts[i])
	}
	return n
}

// PatientModule represents the DICOM Patient Module
type PatientModule struct {
	PatientName      PersonName
	PatientID        string
	PatientBirthDate string
	PatientSex       string // M, F, O
	PatientAge       string
	PatientComments  string
}

// PatientFromDataset reads the patient module out of a decoded dataset
func PatientFromDataset(ds *dicom.Dataset) *PatientModule {
	return &PatientModule{
		PatientName:      ParsePersonName(getString(ds, tag.PatientName)),
		PatientID:        getString(ds, tag.PatientID),
		PatientBirthDate: getString(ds, tag.PatientBirthDate),
		PatientSex:       getString(ds, tag.PatientSex),
		PatientAge:       getString(ds, tag.PatientAge),
		PatientComments:  getString(ds, tag.PatientComments),
	}
}
