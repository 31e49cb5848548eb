package pipeline

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zipflow/zipflow/internal/codec"
	"github.com/zipflow/zipflow/internal/zipfmt"
)

func TestEntryPlainRoundTrip(t *testing.T) {
	var sink bytes.Buffer
	e, n, err := Start(&sink, "file.txt", 0, Config{Method: codec.Store})
	require.NoError(t, err)
	require.Equal(t, StateWriting, e.State())
	require.Greater(t, n, int64(0))

	data := []byte("hello, pipeline")
	written, err := e.Write(data)
	require.NoError(t, err)
	require.Equal(t, int64(0), written, "store-level data stays staged until flush or finish")

	sealed, err := e.Finish()
	require.NoError(t, err)
	require.Equal(t, StateClosed, e.State())
	require.Equal(t, crc32.ChecksumIEEE(data), sealed.Dir.CRC32)
	require.Equal(t, uint64(len(data)), sealed.Dir.UncompressedSize)
	require.False(t, sealed.Dir.Encrypted)
	require.Equal(t, zipfmt.VersionStore, sealed.Dir.VersionNeeded)
}

func TestEntryWriteAfterFinishFails(t *testing.T) {
	var sink bytes.Buffer
	e, _, err := Start(&sink, "x", 0, Config{Method: codec.Store})
	require.NoError(t, err)
	_, err = e.Finish()
	require.NoError(t, err)

	_, err = e.Write([]byte("too late"))
	require.ErrorIs(t, err, ErrWrongState)
}

func TestEntryDoubleFinishFails(t *testing.T) {
	var sink bytes.Buffer
	e, _, err := Start(&sink, "x", 0, Config{Method: codec.Store})
	require.NoError(t, err)
	_, err = e.Finish()
	require.NoError(t, err)

	_, err = e.Finish()
	require.ErrorIs(t, err, ErrWrongState)
}

func TestEntryEmptyIsLegal(t *testing.T) {
	var sink bytes.Buffer
	e, _, err := Start(&sink, "empty", 0, Config{Method: codec.Deflate, Level: 6})
	require.NoError(t, err)
	sealed, err := e.Finish()
	require.NoError(t, err)
	require.Equal(t, uint64(0), sealed.Dir.UncompressedSize)
	require.Equal(t, crc32.ChecksumIEEE(nil), sealed.Dir.CRC32)
}

func TestEntryEncryptedWritesAE2Preamble(t *testing.T) {
	var sink bytes.Buffer
	e, n, err := Start(&sink, "secret.txt", 0, Config{Method: codec.Deflate, Level: 6, Password: "hunter2"})
	require.NoError(t, err)
	require.True(t, n > 30, "local header plus AE-2 preamble must be larger than the bare header")

	data := bytes.Repeat([]byte("plaintext to be protected "), 50)
	_, err = e.Write(data)
	require.NoError(t, err)

	sealed, err := e.Finish()
	require.NoError(t, err)
	require.True(t, sealed.Dir.Encrypted)
	require.Equal(t, zipfmt.MethodAE2, sealed.Dir.Method)
	require.Equal(t, zipfmt.VersionAE2, sealed.Dir.VersionNeeded)
	require.Equal(t, crc32.ChecksumIEEE(data), sealed.Dir.CRC32, "CRC is always computed over plaintext")
}

func TestEntryFlushesWhenStagingThresholdCrossed(t *testing.T) {
	var sink bytes.Buffer
	e, _, err := Start(&sink, "big", 100, Config{Method: codec.Store, HasSizeHint: true, SizeHintBytes: 100})
	require.NoError(t, err)

	chunk := bytes.Repeat([]byte("z"), 300*1024)
	total, err := e.Write(chunk)
	require.NoError(t, err)
	require.Greater(t, total, int64(0), "a flush should have occurred mid-write for a small size hint's tight threshold")
}
