package zipflow

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, opts Options, entries map[string][]byte) *MemorySink {
	t.Helper()
	sink := NewMemorySink()
	w := NewWriter(sink, opts)
	for name, data := range entries {
		require.NoError(t, w.StartEntry(name, int64(len(data))))
		_, err := w.WriteData(data)
		require.NoError(t, err)
		require.NoError(t, w.FinishEntry())
	}
	_, err := w.Finish()
	require.NoError(t, err)
	return sink
}

func TestWriteReadRoundTrip(t *testing.T) {
	entries := map[string][]byte{
		"hello.txt": []byte("hello, world"),
		"empty.txt": nil,
		"big.bin":   bytes.Repeat([]byte("payload chunk "), 5000),
	}

	for _, method := range []CompressionMethod{Store, Deflate, Zstd} {
		opts := DefaultOptions()
		opts.CompressionMethod = method
		sink := writeArchive(t, opts, entries)

		r, err := Open(NewMemorySource(sink.Bytes()))
		require.NoError(t, err)
		require.Len(t, r.Entries(), len(entries))

		for name, want := range entries {
			e, ok := r.Find(name)
			require.True(t, ok, "entry %q must be found", name)
			require.Equal(t, method, e.Method)
			require.Equal(t, crc32.ChecksumIEEE(want), e.CRC32)
			require.Equal(t, uint64(len(want)), e.UncompressedSize)

			got, err := r.ReadEntry(e)
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	}
}

func TestWriteReadEncrypted(t *testing.T) {
	opts := DefaultOptions()
	opts.Password = "hunter2"
	data := bytes.Repeat([]byte("confidential "), 1000)
	sink := writeArchive(t, opts, map[string][]byte{"secret.txt": data})

	r, err := Open(NewMemorySource(sink.Bytes()))
	require.NoError(t, err)
	e, ok := r.Find("secret.txt")
	require.True(t, ok)
	require.True(t, e.Encrypted)

	r.SetPassword("hunter2")
	got, err := r.ReadEntry(e)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestReadEncryptedWrongPasswordFails(t *testing.T) {
	opts := DefaultOptions()
	opts.Password = "correct"
	sink := writeArchive(t, opts, map[string][]byte{"secret.txt": []byte("top secret")})

	r, err := Open(NewMemorySource(sink.Bytes()))
	require.NoError(t, err)
	e, _ := r.Find("secret.txt")

	r.SetPassword("wrong")
	_, err = r.ReadEntry(e)
	require.Error(t, err)
	require.True(t, Is(err, KindBadPassword))
}

func TestMixedEncryptedAndPlainEntries(t *testing.T) {
	sink := NewMemorySink()
	w := NewWriter(sink, DefaultOptions())

	require.NoError(t, w.StartEntry("plain.txt", 0))
	_, err := w.WriteData([]byte("no secrets here"))
	require.NoError(t, err)
	require.NoError(t, w.FinishEntry())

	w.SetPassword("swordfish")
	require.NoError(t, w.StartEntry("private.txt", 0))
	_, err = w.WriteData([]byte("shh"))
	require.NoError(t, err)
	require.NoError(t, w.FinishEntry())
	w.ClearPassword()

	require.NoError(t, w.StartEntry("plain2.txt", 0))
	_, err = w.WriteData([]byte("also public"))
	require.NoError(t, err)
	require.NoError(t, w.FinishEntry())

	_, err = w.Finish()
	require.NoError(t, err)

	r, err := Open(NewMemorySource(sink.Bytes()))
	require.NoError(t, err)
	r.SetPassword("swordfish")

	plain, _ := r.Find("plain.txt")
	require.False(t, plain.Encrypted)
	got, err := r.ReadEntry(plain)
	require.NoError(t, err)
	require.Equal(t, "no secrets here", string(got))

	priv, _ := r.Find("private.txt")
	require.True(t, priv.Encrypted)
	got, err = r.ReadEntry(priv)
	require.NoError(t, err)
	require.Equal(t, "shh", string(got))
}

func TestWriteDataWithNoOpenEntryFails(t *testing.T) {
	w := NewWriter(NewMemorySink(), DefaultOptions())
	_, err := w.WriteData([]byte("nope"))
	require.Error(t, err)
	require.True(t, Is(err, KindWrongState))
}

func TestStartEntryImplicitlyFinishesPredecessor(t *testing.T) {
	sink := NewMemorySink()
	w := NewWriter(sink, DefaultOptions())
	require.NoError(t, w.StartEntry("a", 0))
	_, err := w.WriteData([]byte("first entry's data"))
	require.NoError(t, err)

	require.NoError(t, w.StartEntry("b", 0))
	_, err = w.WriteData([]byte("second entry's data"))
	require.NoError(t, err)
	require.NoError(t, w.FinishEntry())

	_, err = w.Finish()
	require.NoError(t, err)

	r, err := Open(NewMemorySource(sink.Bytes()))
	require.NoError(t, err)
	require.Len(t, r.Entries(), 2)

	a, ok := r.Find("a")
	require.True(t, ok)
	got, err := r.ReadEntry(a)
	require.NoError(t, err)
	require.Equal(t, "first entry's data", string(got))

	b, ok := r.Find("b")
	require.True(t, ok)
	got, err = r.ReadEntry(b)
	require.NoError(t, err)
	require.Equal(t, "second entry's data", string(got))
}

func TestFinishTwiceFails(t *testing.T) {
	w := NewWriter(NewMemorySink(), DefaultOptions())
	_, err := w.Finish()
	require.NoError(t, err)
	_, err = w.Finish()
	require.Error(t, err)
	require.True(t, Is(err, KindWrongState))
}

func TestEmptyArchiveIsValid(t *testing.T) {
	sink := NewMemorySink()
	w := NewWriter(sink, DefaultOptions())
	_, err := w.Finish()
	require.NoError(t, err)

	r, err := Open(NewMemorySource(sink.Bytes()))
	require.NoError(t, err)
	require.Empty(t, r.Entries())
}

func TestFindMissingEntry(t *testing.T) {
	sink := writeArchive(t, DefaultOptions(), map[string][]byte{"a.txt": []byte("a")})
	r, err := Open(NewMemorySource(sink.Bytes()))
	require.NoError(t, err)
	_, ok := r.Find("does-not-exist.txt")
	require.False(t, ok)
}
