// Package zipfmt implements the on-disk ZIP/ZIP64 record formats: local
// file headers, data descriptors, central directory headers, the classic
// and ZIP64 end-of-central-directory trailers, and the WinZip AE-2 extra
// field. It knows nothing about compression, encryption or sinks/sources
// beyond the io.Writer/io.ReaderAt it is handed.
package zipfmt

// Signatures, little-endian on the wire (stored here as native u32 for
// comparison against a decoded LE value).
const (
	SigLocalFileHeader  = 0x04034b50
	SigDataDescriptor   = 0x08074b50
	SigCentralDirectory = 0x02014b50
	SigEOCD             = 0x06054b50
	SigZip64EOCDRecord  = 0x06064b50
	SigZip64EOCDLocator = 0x07064b50
)

// Compression method codes as they appear on the wire.
const (
	MethodStore   uint16 = 0
	MethodDeflate uint16 = 8
	MethodZstd    uint16 = 93
	MethodAE2     uint16 = 99 // local/central header method when AE-2 is in effect
)

// Version-needed-to-extract values.
const (
	VersionStore      uint16 = 20
	VersionZip64      uint16 = 45
	VersionAE2        uint16 = 51
	VersionMadeBy     uint16 = 20
	zip64ExtraID             = 0x0001
	ae2ExtraID               = 0x9901
	ae2ExtraDataLen          = 7
)

// General-purpose bit flag bits used by this format.
const (
	FlagDataDescriptor uint16 = 1 << 3
	FlagEncrypted      uint16 = 1 << 0
)

const (
	uint16Max = 1<<16 - 1
	uint32Max = 1<<32 - 1

	localFileHeaderLen  = 30
	centralDirHeaderLen = 46
	eocdLen             = 22
	zip64EOCDRecordLen  = 44 // fixed fields only, excludes signature+size-of-record
	zip64EOCDLocatorLen = 20
)

// ZIP64Extra is the payload of extra field 0x0001 as it is emitted in a
// central directory record: only the fields that are actually sentineled
// in the classic record are present, in this fixed order (invariant I4).
type ZIP64Extra struct {
	Uncompressed *uint64
	Compressed   *uint64
	Offset       *uint64
}

// Encode serializes the extra field (id, length, payload). It returns nil
// if no field is promoted.
func (z ZIP64Extra) Encode() []byte {
	var payload []byte
	for _, v := range []*uint64{z.Uncompressed, z.Compressed, z.Offset} {
		if v == nil {
			continue
		}
		payload = appendU64(payload, *v)
	}
	if len(payload) == 0 {
		return nil
	}
	out := make([]byte, 0, 4+len(payload))
	out = appendU16(out, zip64ExtraID)
	out = appendU16(out, uint16(len(payload)))
	out = append(out, payload...)
	return out
}
