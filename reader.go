package zipflow

import (
	"fmt"
	"io"

	"github.com/zipflow/zipflow/internal/aes2"
	"github.com/zipflow/zipflow/internal/codec"
	"github.com/zipflow/zipflow/internal/zipfmt"
)

// Reader is the reader front-end (§4.6 component H): it loads the
// central directory once at Open and fetches entry bytes on demand
// from source.
type Reader struct {
	source  Source
	entries []Entry
	raw     []zipfmt.ParsedDirEntry
	pw      string
}

// Open loads the central directory from source (§4.6 "open").
func Open(source Source) (*Reader, error) {
	eocd, err := zipfmt.FindEOCD(source, source.Size())
	if err != nil {
		return nil, newError(KindInvalidFormat, "locating end of central directory", err)
	}
	raw, err := zipfmt.ParseCentralDirectory(source, eocd.CentralDirOffset, eocd.CentralDirSize, eocd.EntryCount)
	if err != nil {
		return nil, newError(KindInvalidFormat, "parsing central directory", err)
	}

	entries := make([]Entry, len(raw))
	for i, r := range raw {
		method := r.Method
		if r.Encrypted() {
			if actual, _, ok := zipfmt.ParseAE2Extra(r.Extra); ok {
				method = actual
			}
		}
		m, err := codec.MethodFromWire(method)
		if err != nil {
			return nil, newError(KindUnsupportedCompression, fmt.Sprintf("entry %q", r.Name), err)
		}
		entries[i] = Entry{
			Name:              r.Name,
			Method:            methodFromInternal(m),
			Encrypted:         r.Encrypted(),
			CRC32:             r.CRC32,
			CompressedSize:    r.CompressedSize,
			UncompressedSize:  r.UncompressedSize,
			LocalHeaderOffset: r.LocalHeaderOffset,
		}
	}

	return &Reader{source: source, entries: entries, raw: raw}, nil
}

// SetPassword configures the password used to decrypt AE-2 entries.
func (r *Reader) SetPassword(password string) { r.pw = password }

// Entries returns every archive member in central-directory order
// (§4.6 "entries").
func (r *Reader) Entries() []Entry { return r.entries }

// Find returns the first entry with an exact, case-sensitive name
// match (§4.6 "find").
func (r *Reader) Find(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// ReadEntry reads and fully decodes one entry's data (§4.6 "read_entry").
func (r *Reader) ReadEntry(e Entry) ([]byte, error) {
	stream, err := r.ReadEntryStreaming(e)
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(stream)
	if err != nil {
		if ze, ok := err.(*Error); ok {
			return nil, ze
		}
		return nil, newError(KindIO, fmt.Sprintf("reading entry %q", e.Name), err)
	}
	return out, nil
}

// ReadEntryStreaming returns a lazy, non-restartable byte stream that
// decrypts (if AE-2) and decompresses e on demand, enforcing the
// compressed-byte budget from the central directory (§4.6
// "read_entry_streaming", "Decryption flow (read)").
func (r *Reader) ReadEntryStreaming(e Entry) (io.Reader, error) {
	dataOffset, flags, extra, err := zipfmt.LocalHeaderDataOffset(r.source, e.LocalHeaderOffset)
	if err != nil {
		return nil, newError(KindInvalidFormat, fmt.Sprintf("reading local header for %q", e.Name), err)
	}

	encrypted := flags&zipfmt.FlagEncrypted != 0
	wireMethod := uint16(0)
	if encrypted {
		actual, _, ok := zipfmt.ParseAE2Extra(extra)
		if !ok {
			return nil, newError(KindInvalidFormat, fmt.Sprintf("entry %q missing AE-2 extra", e.Name), nil)
		}
		wireMethod = actual
	} else {
		wireMethod = e.Method.internal().WireCode()
	}
	method, err := codec.MethodFromWire(wireMethod)
	if err != nil {
		return nil, newError(KindUnsupportedCompression, fmt.Sprintf("entry %q", e.Name), err)
	}

	if !encrypted {
		section := io.NewSectionReader(r.source, int64(dataOffset), int64(e.CompressedSize))
		dec, err := codec.NewDecoder(section, method)
		if err != nil {
			return nil, newError(KindUnsupportedCompression, fmt.Sprintf("entry %q", e.Name), err)
		}
		return dec, nil
	}

	preamble := io.NewSectionReader(r.source, int64(dataOffset), int64(aes2.SaltLen+aes2.VerifierLen))
	decryptor, err := aes2.NewDecryptor(preamble, r.pw)
	if err != nil {
		if err == aes2.ErrBadPassword {
			return nil, newError(KindBadPassword, fmt.Sprintf("entry %q", e.Name), err)
		}
		return nil, newError(KindIO, fmt.Sprintf("entry %q: reading AE-2 preamble", e.Name), err)
	}

	if e.CompressedSize < uint64(aes2.MACLen) {
		return nil, newError(KindInvalidFormat, fmt.Sprintf("entry %q: compressed size too small for AE-2", e.Name), nil)
	}
	cipherLen := e.CompressedSize - uint64(aes2.MACLen)
	cipherStart := int64(dataOffset) + int64(aes2.SaltLen+aes2.VerifierLen)
	cipherSection := io.NewSectionReader(r.source, cipherStart, int64(cipherLen))
	dec, err := codec.NewDecoder(cipherSection, method)
	if err != nil {
		return nil, newError(KindUnsupportedCompression, fmt.Sprintf("entry %q", e.Name), err)
	}

	macOff := cipherStart + int64(cipherLen)
	mac := make([]byte, aes2.MACLen)
	return &decryptingReader{
		dec:       dec,
		decryptor: decryptor,
		readMAC: func() ([]byte, error) {
			if _, err := r.source.ReadAt(mac, macOff); err != nil && err != io.EOF {
				return nil, err
			}
			return mac, nil
		},
		name: e.Name,
	}, nil
}

// decryptingReader decompresses the ciphertext stream on demand and
// decrypts it in place, verifying the AE-2 authentication code once
// the underlying decoder reports EOF (§4.6 "Decryption flow (read)").
type decryptingReader struct {
	dec       codec.Decoder
	decryptor *aes2.Decryptor
	readMAC   func() ([]byte, error)
	name      string
	buf       []byte
	verified  bool
}

func (d *decryptingReader) Read(p []byte) (int, error) {
	if cap(d.buf) < len(p) {
		d.buf = make([]byte, len(p))
	}
	ct := d.buf[:len(p)]
	n, err := d.dec.Read(ct)
	if n > 0 {
		d.decryptor.Decrypt(p[:n], ct[:n])
	}
	if err == io.EOF && !d.verified {
		d.verified = true
		mac, macErr := d.readMAC()
		if macErr != nil {
			return n, newError(KindIO, fmt.Sprintf("entry %q: reading auth code", d.name), macErr)
		}
		if verr := d.decryptor.Verify(mac); verr != nil {
			return n, newError(KindAuthFailed, fmt.Sprintf("entry %q", d.name), verr)
		}
	}
	return n, err
}
