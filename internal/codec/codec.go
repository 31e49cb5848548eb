// Package codec provides the streaming compressor abstraction shared by
// the entry pipeline: a uniform write-more/finish contract over Store,
// DEFLATE and Zstd (§4.1 component B), dispatched at entry-start time
// as tagged variants rather than a runtime registry (design note in
// spec.md §9).
package codec

import (
	"fmt"
	"io"
)

// Method identifies a compression method independent of its on-wire code.
type Method int

const (
	Store Method = iota
	Deflate
	Zstd
)

// Encoder streams plaintext (or, under AE-2, ciphertext — see §4.2) into
// dst, which is the caller's staging buffer. Flush must push any
// internally buffered bytes to dst so the caller can observe them for
// its flush-threshold accounting; Close finalizes the stream (flushing
// all residual bytes to dst) and must be called exactly once.
type Encoder interface {
	io.Writer
	Flush() error
	Close() error
}

// NewEncoder constructs an Encoder for method, writing into dst. level is
// interpreted per-method: 0-9 for Deflate (compress/flate levels),
// 1-21 for Zstd (mapped via zstd.EncoderLevelFromZstd); ignored for
// Store.
func NewEncoder(dst io.Writer, method Method, level int) (Encoder, error) {
	switch method {
	case Store:
		return storeEncoder{dst}, nil
	case Deflate:
		return newDeflateEncoder(dst, level)
	case Zstd:
		return newZstdEncoder(dst, level)
	default:
		return nil, fmt.Errorf("codec: unsupported compression method %d", method)
	}
}

// Decoder is a streaming decompressor. Read semantics match io.Reader;
// Close releases any codec-internal resources.
type Decoder interface {
	io.ReadCloser
}

// NewDecoder constructs a Decoder for method, reading compressed bytes
// from src.
func NewDecoder(src io.Reader, method Method) (Decoder, error) {
	switch method {
	case Store:
		return storeDecoder{io.NopCloser(src)}, nil
	case Deflate:
		return newDeflateDecoder(src), nil
	case Zstd:
		return newZstdDecoder(src)
	default:
		return nil, fmt.Errorf("codec: unsupported compression method %d", method)
	}
}

// MethodFromWire maps an on-wire ZIP method code to a Method.
func MethodFromWire(wire uint16) (Method, error) {
	switch wire {
	case 0:
		return Store, nil
	case 8:
		return Deflate, nil
	case 93:
		return Zstd, nil
	default:
		return 0, fmt.Errorf("codec: unsupported compression method code %d", wire)
	}
}

// WireCode maps a Method back to its on-wire ZIP method code.
func (m Method) WireCode() uint16 {
	switch m {
	case Store:
		return 0
	case Deflate:
		return 8
	case Zstd:
		return 93
	default:
		return 0
	}
}
