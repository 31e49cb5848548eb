// Package stagingbuf implements the bounded compressed-data buffer that
// sits between a codec's output and the sink (§4.2 component D): it
// accumulates encoded bytes and signals when accumulated length has
// crossed a flush threshold chosen from an optional size hint, so
// worst-case resident memory for any single entry is bounded by a
// small constant multiple of the threshold rather than by the entry's
// uncompressed size (P4).
package stagingbuf

import "bytes"

// SizeHint bands map to the table in §4.2.
const (
	hint10KiB  = 10 * 1024
	hint100KiB = 100 * 1024
	hint1MiB   = 1 * 1024 * 1024
	hint10MiB  = 10 * 1024 * 1024
)

const (
	cap8KiB   = 8 * 1024
	cap32KiB  = 32 * 1024
	cap128KiB = 128 * 1024
	cap256KiB = 256 * 1024
	cap512KiB = 512 * 1024

	threshold256KiB = 256 * 1024
	threshold512KiB = 512 * 1024
	threshold2MiB   = 2 * 1024 * 1024
	threshold4MiB   = 4 * 1024 * 1024
	threshold8MiB   = 8 * 1024 * 1024
)

// Policy bundles the initial capacity and flush threshold derived from
// a size hint.
type Policy struct {
	InitialCapacity int
	FlushThreshold  int
}

// PolicyForHint selects a Policy from the §4.2 table. A negative or
// zero hint is treated as "otherwise" (no hint available).
func PolicyForHint(sizeHint int64) Policy {
	switch {
	case sizeHint > 0 && sizeHint < hint10KiB:
		return Policy{InitialCapacity: cap8KiB, FlushThreshold: threshold256KiB}
	case sizeHint > 0 && sizeHint < hint100KiB:
		return Policy{InitialCapacity: cap32KiB, FlushThreshold: threshold512KiB}
	case sizeHint > 0 && sizeHint < hint1MiB:
		return Policy{InitialCapacity: cap128KiB, FlushThreshold: threshold2MiB}
	case sizeHint > 0 && sizeHint < hint10MiB:
		return Policy{InitialCapacity: cap256KiB, FlushThreshold: threshold4MiB}
	default:
		return Policy{InitialCapacity: cap512KiB, FlushThreshold: threshold8MiB}
	}
}

// Buffer is the bounded staging buffer itself. It is not safe for
// concurrent use; the entry pipeline serializes access per entry.
type Buffer struct {
	buf       bytes.Buffer
	threshold int
}

// New allocates a Buffer sized per policy.
func New(policy Policy) *Buffer {
	b := &Buffer{threshold: policy.FlushThreshold}
	b.buf.Grow(policy.InitialCapacity)
	return b
}

// Write appends p to the buffer. It never returns an error; bytes.Buffer
// only fails to grow on allocation failure, which panics rather than
// erroring, matching the teacher's in-memory buffering convention.
func (b *Buffer) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

// ShouldFlush reports whether accumulated length has crossed the flush
// threshold.
func (b *Buffer) ShouldFlush() bool {
	return b.buf.Len() >= b.threshold
}

// Len reports the number of bytes currently staged.
func (b *Buffer) Len() int { return b.buf.Len() }

// Drain writes all staged bytes to dst and resets the buffer, returning
// the number of bytes drained.
func (b *Buffer) Drain(dst func([]byte) (int, error)) (int, error) {
	if b.buf.Len() == 0 {
		return 0, nil
	}
	n, err := dst(b.buf.Bytes())
	b.buf.Reset()
	return n, err
}
