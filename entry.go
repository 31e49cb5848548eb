package zipflow

import "github.com/zipflow/zipflow/internal/codec"

// Entry describes one archive member as recorded in the central
// directory (§4.6). It is returned by Reader.Entries and Reader.Find.
type Entry struct {
	Name              string
	Method            CompressionMethod
	Encrypted         bool
	CRC32             uint32
	CompressedSize    uint64
	UncompressedSize  uint64
	LocalHeaderOffset uint64
}

func methodFromInternal(m codec.Method) CompressionMethod {
	switch m {
	case codec.Deflate:
		return Deflate
	case codec.Zstd:
		return Zstd
	default:
		return Store
	}
}
