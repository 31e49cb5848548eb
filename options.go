package zipflow

import "github.com/zipflow/zipflow/internal/codec"

// CompressionMethod selects the per-entry codec (§4.1/§9 tagged variants).
type CompressionMethod int

const (
	Store CompressionMethod = iota
	Deflate
	Zstd
)

func (m CompressionMethod) internal() codec.Method {
	switch m {
	case Deflate:
		return codec.Deflate
	case Zstd:
		return codec.Zstd
	default:
		return codec.Store
	}
}

// Options configures a Writer (§4.5 "Options recognized"). CompressionLevel
// is interpreted per CompressionMethod: 0-9 for Deflate, 1-21 for Zstd,
// ignored for Store. Password, when non-empty, enables WinZip AE-2
// encryption for every entry started while it is set.
type Options struct {
	CompressionMethod CompressionMethod
	CompressionLevel  int
	Password          string
}

// DefaultOptions returns the Writer defaults: DEFLATE at level 6, no
// password.
func DefaultOptions() Options {
	return Options{CompressionMethod: Deflate, CompressionLevel: 6}
}
