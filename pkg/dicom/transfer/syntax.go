// Package transfer defines DICOM Transfer Syntaxes
package transfer

// Syntax represents a DICOM Transfer Syntax
type Syntax string

// Standard Transfer Syntaxes
const (
	// Uncompressed
	ImplicitVRLittleEndian Syntax = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian Syntax = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    Syntax = "1.2.840.10008.1.2.2" // Retired

	// Encapsulated (not decodable here, recognized for diagnostics)
	JPEGBaseline           Syntax = "1.2.840.10008.1.2.4.50"
	JPEGLossless           Syntax = "1.2.840.10008.1.2.4.57"
	JPEGLosslessFirstOrder Syntax = "1.2.840.10008.1.2.4.70"
	JPEGLSLossless         Syntax = "1.2.840.10008.1.2.4.80"
	JPEG2000Lossless       Syntax = "1.2.840.10008.1.2.4.90"
	RLELossless            Syntax = "1.2.840.10008.1.2.5"
)

// FromUID converts a UID string to a Syntax
func FromUID(uid string) Syntax {
	return Syntax(uid)
}

// IsExplicitVR returns true if this transfer syntax uses explicit VR
func (s Syntax) IsExplicitVR() bool {
	return s != ImplicitVRLittleEndian
}

// IsLittleEndian returns true if this transfer syntax uses little endian byte order
func (s Syntax) IsLittleEndian() bool {
	return s != ExplicitVRBigEndian
}

// IsEncapsulated returns true if pixel data is encapsulated (compressed)
func (s Syntax) IsEncapsulated() bool {
	switch s {
	case ImplicitVRLittleEndian, ExplicitVRLittleEndian, ExplicitVRBigEndian:
		return false
	default:
		return true
	}
}

// IsSupported returns true if the decoder can read datasets in this syntax.
// Big endian and all encapsulated pixel encodings are out of scope.
func (s Syntax) IsSupported() bool {
	switch s {
	case ImplicitVRLittleEndian, ExplicitVRLittleEndian:
		return true
	default:
		return false
	}
}

// Name returns a human-readable name for the transfer syntax
func (s Syntax) Name() string {
	switch s {
	case ImplicitVRLittleEndian:
		return "Implicit VR Little Endian"
	case ExplicitVRLittleEndian:
		return "Explicit VR Little Endian"
	case ExplicitVRBigEndian:
		return "Explicit VR Big Endian (Retired)"
	case JPEGBaseline:
		return "JPEG Baseline (Process 1)"
	case JPEGLossless:
		return "JPEG Lossless (Process 14)"
	case JPEGLosslessFirstOrder:
		return "JPEG Lossless First-Order (Process 14, SV1)"
	case JPEGLSLossless:
		return "JPEG-LS Lossless"
	case JPEG2000Lossless:
		return "JPEG 2000 Lossless"
	case RLELossless:
		return "RLE Lossless"
	default:
		return "Unknown"
	}
}
