package zipflow

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Source is the random-read byte source a Reader opens (§4.6 "open").
// Any io.ReaderAt that also knows its own length qualifies; FileSource
// and MemorySource below adapt the two common cases.
type Source interface {
	io.ReaderAt
	Size() int64
}

// MemorySource adapts an in-memory byte slice to Source.
type MemorySource struct {
	r    *bytes.Reader
	size int64
}

// NewMemorySource wraps b as a Source. b is not copied; the caller must
// not mutate it while the Source is in use.
func NewMemorySource(b []byte) *MemorySource {
	return &MemorySource{r: bytes.NewReader(b), size: int64(len(b))}
}

func (s *MemorySource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *MemorySource) Size() int64                             { return s.size }

// FileSource adapts an *os.File to Source.
type FileSource struct {
	f    *os.File
	size int64
}

// OpenFileSource opens name and stats its size.
func OpenFileSource(name string) (*FileSource, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, newError(KindIO, fmt.Sprintf("opening %q", name), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newError(KindIO, fmt.Sprintf("stat %q", name), err)
	}
	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *FileSource) Size() int64                             { return s.size }

// Close releases the underlying file.
func (s *FileSource) Close() error { return s.f.Close() }
