package zipflow

import (
	"bytes"
	"io"
)

// Sink is the append-only destination a Writer drains bytes into. The
// design note in §9 deliberately avoids backward seeks so any append-
// only destination, including a non-seekable network endpoint, can
// serve as a sink (§4.5 "Ownership").
type Sink interface {
	io.Writer
}

// MemorySink is an in-memory Sink backed by a growable buffer, useful
// for tests and for building whole archives in memory.
type MemorySink struct {
	buf bytes.Buffer
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Write(p []byte) (int, error) { return s.buf.Write(p) }

// Bytes returns the bytes written so far. The returned slice aliases
// the sink's internal buffer and must not be retained past the next
// Write.
func (s *MemorySink) Bytes() []byte { return s.buf.Bytes() }

// Len reports the number of bytes written so far.
func (s *MemorySink) Len() int { return s.buf.Len() }
