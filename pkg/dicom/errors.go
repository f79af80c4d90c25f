package dicom

import "errors"

// Decode failure taxonomy. Both are fatal for the file being decoded and
// local to it; callers drop the file and continue with siblings.
var (
	// ErrMalformedStream indicates the byte stream ended before a declared
	// element boundary, or no valid tag/length could be located.
	ErrMalformedStream = errors.New("dicom: malformed element stream")

	// ErrUnsupportedTransferEncoding indicates the leading structural header
	// does not match a supported byte-order/encoding convention.
	ErrUnsupportedTransferEncoding = errors.New("dicom: unsupported transfer encoding")
)
