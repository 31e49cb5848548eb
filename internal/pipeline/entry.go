package pipeline

import (
	"fmt"
	"hash/crc32"
	"io"

	"github.com/zipflow/zipflow/internal/aes2"
	"github.com/zipflow/zipflow/internal/codec"
	"github.com/zipflow/zipflow/internal/stagingbuf"
	"github.com/zipflow/zipflow/internal/zipfmt"
)

// Entry drives one archive member through Open -> Writing -> Finalizing
// -> Closed (§4.2). It owns the per-entry CRC accumulator, the optional
// AE-2 encryptor, the codec encoder, and the staging buffer that sits
// between the encoder and the sink.
type Entry struct {
	sink  io.Writer
	name  string
	state State

	crc               uint32
	uncompressedCount uint64
	compressedCount   uint64

	localHeaderOffset uint64
	versionNeeded     uint16
	wireMethod        uint16

	staging *stagingbuf.Buffer
	encoder codec.Encoder
	enc     *aes2.Encryptor // nil when not encrypted
}

// Start writes the local header (and, if a password is configured, the
// AE-2 extra field and preamble) to sink and returns an Entry ready to
// receive Write calls. localHeaderOffset is the sink's current logical
// position, needed later to build the central directory record.
func Start(sink io.Writer, name string, localHeaderOffset uint64, cfg Config) (*Entry, int64, error) {
	encrypted := cfg.Password != ""

	wireMethod := cfg.Method.WireCode()
	versionNeeded := zipfmt.VersionStore
	if encrypted {
		versionNeeded = zipfmt.VersionAE2
	}

	lh := zipfmt.LocalHeader{
		Name:            name,
		Method:          wireMethod,
		VersionNeeded:   versionNeeded,
		Encrypted:       encrypted,
		AE2ActualMethod: wireMethod,
	}
	if encrypted {
		lh.Method = zipfmt.MethodAE2
	}

	n, err := zipfmt.WriteLocalHeader(sink, lh)
	if err != nil {
		return nil, n, fmt.Errorf("pipeline: writing local header for %q: %w", name, err)
	}

	policy := stagingbuf.PolicyForHint(sizeHintOrZero(cfg))
	staging := stagingbuf.New(policy)

	encoder, err := codec.NewEncoder(staging, cfg.Method, cfg.Level)
	if err != nil {
		return nil, n, fmt.Errorf("pipeline: constructing encoder for %q: %w", name, err)
	}

	var enc *aes2.Encryptor
	if encrypted {
		// Ciphertext is forwarded to the compressor (encoder), not the
		// sink; only the salt/verifier preamble is raw on the sink.
		enc, err = aes2.NewEncryptor(sink, encoder, cfg.Password)
		if err != nil {
			return nil, n, fmt.Errorf("pipeline: constructing encryptor for %q: %w", name, err)
		}
		n += int64(aes2.SaltLen + aes2.VerifierLen)
	}

	return &Entry{
		sink:              sink,
		name:              name,
		state:             StateWriting,
		localHeaderOffset: localHeaderOffset,
		versionNeeded:     versionNeeded,
		wireMethod:        lh.Method,
		staging:           staging,
		encoder:           encoder,
		enc:               enc,
	}, n, nil
}

func sizeHintOrZero(cfg Config) int64 {
	if cfg.HasSizeHint {
		return cfg.SizeHintBytes
	}
	return 0
}

// Write feeds plaintext through CRC accounting, optional AE-2
// encryption, and compression, draining the staging buffer to the sink
// whenever it crosses its flush threshold (§4.2 steps 1-3). It returns
// the number of bytes written to the sink in this call (0 unless a
// flush occurred).
func (e *Entry) Write(p []byte) (int64, error) {
	if e.state != StateWriting {
		return 0, fmt.Errorf("pipeline: write on entry %q: %w", e.name, ErrWrongState)
	}
	e.crc = crc32.Update(e.crc, crc32.IEEETable, p)
	e.uncompressedCount += uint64(len(p))

	var encodeErr error
	if e.enc != nil {
		_, encodeErr = e.enc.Write(p)
	} else {
		_, encodeErr = e.encoder.Write(p)
	}
	if encodeErr != nil {
		return 0, fmt.Errorf("pipeline: encoding entry %q: %w", e.name, encodeErr)
	}

	if !e.staging.ShouldFlush() {
		return 0, nil
	}
	return e.drain()
}

func (e *Entry) drain() (int64, error) {
	n, err := e.staging.Drain(e.sink.Write)
	if err != nil {
		return int64(n), fmt.Errorf("pipeline: draining entry %q to sink: %w", e.name, err)
	}
	e.compressedCount += uint64(n)
	return int64(n), nil
}

// Sealed is the outcome of Finish: everything needed to build this
// entry's central directory record.
type Sealed struct {
	Dir               zipfmt.DirEntry
	TotalBytesWritten int64
}

// Finish finalizes the compressor, drains any residual staged bytes,
// appends the AE-2 authentication code when encrypted, writes the data
// descriptor, and returns the sealed record (§4.2 step 4).
func (e *Entry) Finish() (Sealed, error) {
	if e.state != StateWriting {
		return Sealed{}, fmt.Errorf("pipeline: finish on entry %q: %w", e.name, ErrWrongState)
	}
	e.state = StateFinalizing

	var total int64
	if err := e.encoder.Close(); err != nil {
		return Sealed{}, fmt.Errorf("pipeline: finalizing codec for %q: %w", e.name, err)
	}
	n, err := e.drain()
	total += n
	if err != nil {
		return Sealed{}, err
	}

	if e.enc != nil {
		mac := e.enc.Sum()
		if _, err := e.sink.Write(mac[:]); err != nil {
			return Sealed{}, fmt.Errorf("pipeline: writing auth code for %q: %w", e.name, err)
		}
		e.compressedCount += uint64(len(mac))
		total += int64(len(mac))
	}

	if err := zipfmt.WriteDataDescriptor(e.sink, e.crc, e.compressedCount, e.uncompressedCount); err != nil {
		return Sealed{}, fmt.Errorf("pipeline: writing data descriptor for %q: %w", e.name, err)
	}
	ddWidth := 4 + 4 + 4 + 4
	if zipfmt.NeedsWideSizes(e.compressedCount, e.uncompressedCount) {
		ddWidth = 4 + 4 + 8 + 8
	}
	total += int64(ddWidth)

	e.state = StateClosed

	return Sealed{
		Dir: zipfmt.DirEntry{
			Name:              e.name,
			Method:            e.wireMethod,
			VersionNeeded:     e.versionNeeded,
			Encrypted:         e.enc != nil,
			CRC32:             e.crc,
			CompressedSize:    e.compressedCount,
			UncompressedSize:  e.uncompressedCount,
			LocalHeaderOffset: e.localHeaderOffset,
		},
		TotalBytesWritten: total,
	}, nil
}

// State reports the entry's current lifecycle state.
func (e *Entry) State() State { return e.state }
