package zipfmt

import "errors"

var (
	errInvalidDataDescriptorSignature = errors.New("zipfmt: invalid data descriptor signature")
	errInvalidLocalHeaderSignature    = errors.New("zipfmt: invalid local file header signature")
	errInvalidCentralDirSignature     = errors.New("zipfmt: invalid central directory signature")
	errEOCDNotFound                   = errors.New("zipfmt: end of central directory record not found")
	errZip64LocatorNotFound           = errors.New("zipfmt: zip64 end of central directory locator not found")
	errTruncatedZip64Extra            = errors.New("zipfmt: truncated zip64 extra field")
)
