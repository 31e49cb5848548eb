package cloud

import (
	"errors"
	"strconv"
)

// ErrChannelClosed is returned by Write and Shutdown once the upload
// worker has terminated, whether from a fatal upload error or because
// Shutdown already completed (§4.7 "Failure").
var ErrChannelClosed = errors.New("cloud: upload worker channel closed")

// UploadError wraps a failed S3 operation with the part number it was
// attempting, carrying provider detail per the UploadFailed error kind
// (§7).
type UploadError struct {
	PartNumber int32
	Err        error
}

func (e *UploadError) Error() string {
	if e.PartNumber > 0 {
		return "cloud: uploading part " + strconv.Itoa(int(e.PartNumber)) + ": " + e.Err.Error()
	}
	return "cloud: " + e.Err.Error()
}

func (e *UploadError) Unwrap() error { return e.Err }
