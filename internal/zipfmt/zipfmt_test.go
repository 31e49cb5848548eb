package zipfmt

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteLocalHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteLocalHeader(&buf, LocalHeader{
		Name:          "hello.txt",
		Method:        MethodDeflate,
		VersionNeeded: VersionStore,
	})
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)

	dataOffset, flags, extra, err := LocalHeaderDataOffset(&sliceReaderAt{buf.Bytes()}, 0)
	require.NoError(t, err)
	require.Equal(t, FlagDataDescriptor, flags)
	require.Empty(t, extra)
	require.Equal(t, int64(buf.Len()), int64(dataOffset))
}

func TestWriteLocalHeaderEncryptedCarriesAE2Extra(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteLocalHeader(&buf, LocalHeader{
		Name:            "secret.bin",
		Method:          MethodAE2,
		VersionNeeded:   VersionAE2,
		Encrypted:       true,
		AE2ActualMethod: MethodDeflate,
	})
	require.NoError(t, err)

	_, flags, extra, err := LocalHeaderDataOffset(&sliceReaderAt{buf.Bytes()}, 0)
	require.NoError(t, err)
	require.NotZero(t, flags&FlagEncrypted)

	method, strength, ok := ParseAE2Extra(extra)
	require.True(t, ok)
	require.Equal(t, MethodDeflate, method)
	require.Equal(t, byte(AE2Strength256), strength)
}

func TestWriteLocalHeaderNameTooLong(t *testing.T) {
	_, err := WriteLocalHeader(&bytes.Buffer{}, LocalHeader{Name: string(make([]byte, 1<<16+1))})
	require.Error(t, err)
}

func TestDataDescriptorNarrowVsWide(t *testing.T) {
	var narrow bytes.Buffer
	require.NoError(t, WriteDataDescriptor(&narrow, 0xdeadbeef, 100, 200))
	d, err := ParseDataDescriptor(narrow.Bytes(), false)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), d.CRC32)
	require.Equal(t, uint64(100), d.CompressedSize)
	require.Equal(t, uint64(200), d.UncompressedSize)

	var wide bytes.Buffer
	big := uint64(1) << 33
	require.NoError(t, WriteDataDescriptor(&wide, 1, big, big+1))
	require.True(t, NeedsWideSizes(big, big+1))
	d2, err := ParseDataDescriptor(wide.Bytes(), true)
	require.NoError(t, err)
	require.Equal(t, big, d2.CompressedSize)
	require.Equal(t, big+1, d2.UncompressedSize)
}

func TestCentralDirectoryRoundTripClassic(t *testing.T) {
	entries := []DirEntry{
		{Name: "a.txt", Method: MethodStore, VersionNeeded: VersionStore, CRC32: 1, CompressedSize: 10, UncompressedSize: 10, LocalHeaderOffset: 0},
		{Name: "b.txt", Method: MethodDeflate, VersionNeeded: VersionStore, CRC32: 2, CompressedSize: 5, UncompressedSize: 20, LocalHeaderOffset: 10},
	}
	var buf bytes.Buffer
	_, err := WriteTrailer(&buf, EOCDInput{Entries: entries, CentralDirOffset: 0})
	require.NoError(t, err)

	src := &sliceReaderAt{buf.Bytes()}
	eocd, err := FindEOCD(src, int64(buf.Len()))
	require.NoError(t, err)
	require.Equal(t, uint64(2), eocd.EntryCount)

	parsed, err := ParseCentralDirectory(src, eocd.CentralDirOffset, eocd.CentralDirSize, eocd.EntryCount)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	require.Equal(t, "a.txt", parsed[0].Name)
	require.Equal(t, "b.txt", parsed[1].Name)
	require.Equal(t, uint64(20), parsed[1].UncompressedSize)
	require.Equal(t, uint64(10), parsed[1].LocalHeaderOffset)
}

func TestCentralDirectoryPromotesZip64Fields(t *testing.T) {
	big := uint64(1) << 33
	entries := []DirEntry{
		{Name: "huge.bin", Method: MethodStore, VersionNeeded: VersionZip64, CRC32: 7, CompressedSize: big, UncompressedSize: big + 1, LocalHeaderOffset: big + 2},
	}
	var buf bytes.Buffer
	_, err := WriteTrailer(&buf, EOCDInput{Entries: entries, CentralDirOffset: 0})
	require.NoError(t, err)

	src := &sliceReaderAt{buf.Bytes()}
	eocd, err := FindEOCD(src, int64(buf.Len()))
	require.NoError(t, err)

	parsed, err := ParseCentralDirectory(src, eocd.CentralDirOffset, eocd.CentralDirSize, eocd.EntryCount)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	require.Equal(t, big, parsed[0].CompressedSize)
	require.Equal(t, big+1, parsed[0].UncompressedSize)
	require.Equal(t, big+2, parsed[0].LocalHeaderOffset)
}

func TestTrailerNeedsZip64WhenManyEntries(t *testing.T) {
	entries := make([]DirEntry, 0, uint16Max+1)
	for i := 0; i < uint16Max+1; i++ {
		entries = append(entries, DirEntry{Name: "x", Method: MethodStore, VersionNeeded: VersionStore})
	}
	var buf bytes.Buffer
	_, err := WriteTrailer(&buf, EOCDInput{Entries: entries, CentralDirOffset: 0})
	require.NoError(t, err)

	src := &sliceReaderAt{buf.Bytes()}
	eocd, err := FindEOCD(src, int64(buf.Len()))
	require.NoError(t, err)
	require.Equal(t, uint64(uint16Max+1), eocd.EntryCount)
}

func TestFindEOCDNotFound(t *testing.T) {
	_, err := FindEOCD(&sliceReaderAt{[]byte("not a zip file")}, 14)
	require.Error(t, err)
}

func TestAE2ExtraRoundTrip(t *testing.T) {
	extra := encodeAE2Extra(MethodZstd)
	method, strength, ok := ParseAE2Extra(extra)
	require.True(t, ok)
	require.Equal(t, MethodZstd, method)
	require.Equal(t, byte(AE2Strength256), strength)
}

func TestParseAE2ExtraAbsent(t *testing.T) {
	_, _, ok := ParseAE2Extra(nil)
	require.False(t, ok)
}

// sliceReaderAt adapts a byte slice to io.ReaderAt, mirroring how the
// central directory parser is actually driven (a Source over an
// in-memory archive).
type sliceReaderAt struct{ b []byte }

func (s *sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.b)) {
		return 0, io.EOF
	}
	n := copy(p, s.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
