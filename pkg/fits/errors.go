package fits

import "errors"

var (
	ErrMalformedHeader = errors.New("malformed FITS header")
	ErrUnsupportedType = errors.New("unsupported FITS column type")
	ErrHeapRange       = errors.New("FITS heap reference out of range")
	ErrIO              = errors.New("FITS i/o error")
)
