package zipfmt

import (
	"fmt"
	"io"
)

// LocalHeader describes the fields needed to emit a local file header
// under the data-descriptor convention (gp_flag bit 3 always set, sizes
// and CRC always zero placeholders per §4.4/§6.1).
type LocalHeader struct {
	Name string
	// Method is the on-wire method: the true compression method, or
	// MethodAE2 (99) when encryption is in effect.
	Method        uint16
	VersionNeeded uint16
	Encrypted     bool
	// AE2ActualMethod is the true compression method to record in the
	// AE-2 extra field; only meaningful when Encrypted is true.
	AE2ActualMethod uint16
}

// WriteLocalHeader writes the 30-byte fixed prefix, the name, and (when
// Encrypted) the AE-2 extra field (§4.3/§6.1). It returns the number of
// bytes written, which the caller adds to the sink position to learn
// where entry data begins.
func WriteLocalHeader(w io.Writer, h LocalHeader) (int64, error) {
	if len(h.Name) > uint16Max {
		return 0, fmt.Errorf("zipfmt: entry name too long: %d bytes", len(h.Name))
	}

	var extra []byte
	if h.Encrypted {
		extra = encodeAE2Extra(h.AE2ActualMethod)
	}

	gpFlag := FlagDataDescriptor
	if h.Encrypted {
		gpFlag |= FlagEncrypted
	}

	var buf [localFileHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(SigLocalFileHeader)
	b.uint16(h.VersionNeeded)
	b.uint16(gpFlag)
	b.uint16(h.Method)
	b.uint16(0) // mod_time
	b.uint16(0) // mod_date
	b.uint32(0) // crc placeholder
	b.uint32(0) // compressed size placeholder
	b.uint32(0) // uncompressed size placeholder
	b.uint16(uint16(len(h.Name)))
	b.uint16(uint16(len(extra)))

	cw := &countWriter{w: w}
	if _, err := cw.Write(buf[:]); err != nil {
		return cw.count, err
	}
	if _, err := io.WriteString(cw, h.Name); err != nil {
		return cw.count, err
	}
	if len(extra) > 0 {
		if _, err := cw.Write(extra); err != nil {
			return cw.count, err
		}
	}
	return cw.count, nil
}

// AE2Strength256 is the single-byte WinZip AES strength code for AES-256.
//
// spec.md's prose describes the strength code as a 2-byte field, which
// would make the AE-2 payload 8 bytes long, contradicting the spec's own
// "data_len=7" constant. We follow the real WinZip AE-2 layout (version
// u16, vendor 2 bytes, strength 1 byte, actual method u16 = 7 bytes),
// which is both internally consistent and matches the format this
// extra field is named after.
const AE2Strength256 = 3

func encodeAE2Extra(actualMethod uint16) []byte {
	buf := make([]byte, 0, 4+ae2ExtraDataLen)
	buf = appendU16(buf, ae2ExtraID)
	buf = appendU16(buf, ae2ExtraDataLen)
	buf = appendU16(buf, 2) // AE-2 version
	buf = append(buf, 'A', 'E')
	buf = append(buf, AE2Strength256)
	buf = appendU16(buf, actualMethod)
	return buf
}

// ParseAE2Extra scans a raw local-header (or central-directory) extra
// block for the WinZip AE-2 field (id 0x9901) and returns the actual
// compression method it records.
func ParseAE2Extra(extra []byte) (actualMethod uint16, strength byte, ok bool) {
	for len(extra) >= 4 {
		id := leU16(extra)
		size := leU16(extra[2:])
		if len(extra) < 4+int(size) {
			return 0, 0, false
		}
		payload := extra[4 : 4+int(size)]
		if id == ae2ExtraID && len(payload) == ae2ExtraDataLen {
			strength = payload[4]
			actualMethod = leU16(payload[5:7])
			return actualMethod, strength, true
		}
		extra = extra[4+int(size):]
	}
	return 0, 0, false
}

func leU16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
