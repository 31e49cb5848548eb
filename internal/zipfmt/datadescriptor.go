package zipfmt

import "io"

// WriteDataDescriptor writes the signature, CRC and sizes trailer that
// follows an entry's compressed data (§4.2 step 4d, §4.4, §6.1). Size
// fields are 8 bytes wide if either size exceeds the 32-bit limit,
// otherwise both are written as 4 bytes (the widths must match).
func WriteDataDescriptor(w io.Writer, crc32 uint32, compressedSize, uncompressedSize uint64) error {
	return writeDataDescriptor(w, crc32, compressedSize, uncompressedSize, NeedsWideSizes(compressedSize, uncompressedSize))
}

// NeedsWideSizes reports whether a data descriptor (or any other size
// pair) must use the 8-byte representation.
func NeedsWideSizes(compressedSize, uncompressedSize uint64) bool {
	return compressedSize > uint32Max || uncompressedSize > uint32Max
}

// writeDataDescriptor writes a descriptor with the width given by wide,
// independent of the actual sizes; WriteDataDescriptor picks the width
// from the sizes.
func writeDataDescriptor(w io.Writer, crc32 uint32, compressedSize, uncompressedSize uint64, wide bool) error {
	var buf []byte
	b := make([]byte, 0, 4+4+16)
	b = appendU32(b, SigDataDescriptor)
	b = appendU32(b, crc32)
	if wide {
		b = appendU64(b, compressedSize)
		b = appendU64(b, uncompressedSize)
	} else {
		b = appendU32(b, uint32(compressedSize))
		b = appendU32(b, uint32(uncompressedSize))
	}
	buf = b
	_, err := w.Write(buf)
	return err
}

// DataDescriptor is the parsed form, used only by tests that want to
// assert on the wire format directly; the reader front-end does not
// need to parse data descriptors since the central directory already
// carries authoritative sizes.
type DataDescriptor struct {
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Wide             bool
}

// ParseDataDescriptor decodes a data descriptor of the given width from
// the front of b.
func ParseDataDescriptor(b []byte, wide bool) (DataDescriptor, error) {
	want := 16
	if wide {
		want = 24
	}
	if len(b) < want {
		return DataDescriptor{}, io.ErrUnexpectedEOF
	}
	if leU32(b) != SigDataDescriptor {
		return DataDescriptor{}, errInvalidDataDescriptorSignature
	}
	d := DataDescriptor{CRC32: leU32(b[4:]), Wide: wide}
	if wide {
		d.CompressedSize = leU64(b[8:])
		d.UncompressedSize = leU64(b[16:])
	} else {
		d.CompressedSize = uint64(leU32(b[8:]))
		d.UncompressedSize = uint64(leU32(b[12:]))
	}
	return d, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
