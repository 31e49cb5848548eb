package zipfmt

import "io"

// DirEntry is everything the central directory needs to know about one
// sealed entry. Method mirrors the local header's; sizes and CRC are
// the final values, where the local header carries zero placeholders.
type DirEntry struct {
	Name              string
	Method            uint16 // on-wire method (MethodAE2 when encrypted)
	VersionNeeded     uint16
	Encrypted         bool
	CRC32             uint32
	CompressedSize    uint64
	UncompressedSize  uint64
	LocalHeaderOffset uint64
}

func (e DirEntry) isZip64Field(v uint64) bool { return v > uint32Max }

// buildExtra returns the per-entry ZIP64 extra field (possibly nil) and
// the classic 32-bit values to place in the record, applying per-field
// promotion (invariant I4): only the fields that individually exceed the
// 32-bit limit are sentineled and carried in the extra field, in the
// fixed order {uncompressed, compressed, offset}.
func (e DirEntry) buildExtra() (extra []byte, classicCompressed, classicUncompressed, classicOffset uint32) {
	var z ZIP64Extra
	if e.isZip64Field(e.UncompressedSize) {
		v := e.UncompressedSize
		z.Uncompressed = &v
		classicUncompressed = uint32Max
	} else {
		classicUncompressed = uint32(e.UncompressedSize)
	}
	if e.isZip64Field(e.CompressedSize) {
		v := e.CompressedSize
		z.Compressed = &v
		classicCompressed = uint32Max
	} else {
		classicCompressed = uint32(e.CompressedSize)
	}
	if e.isZip64Field(e.LocalHeaderOffset) {
		v := e.LocalHeaderOffset
		z.Offset = &v
		classicOffset = uint32Max
	} else {
		classicOffset = uint32(e.LocalHeaderOffset)
	}
	return z.Encode(), classicCompressed, classicUncompressed, classicOffset
}

// WriteCentralDirectoryHeader emits one 46-byte-fixed-prefix record plus
// name and ZIP64 extra (§4.4, §6.1).
func WriteCentralDirectoryHeader(w io.Writer, e DirEntry) (int64, error) {
	extra, ccs, cus, coff := e.buildExtra()

	gpFlag := FlagDataDescriptor
	if e.Encrypted {
		gpFlag |= FlagEncrypted
	}

	var buf [centralDirHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(SigCentralDirectory)
	b.uint16(VersionMadeBy)
	b.uint16(e.VersionNeeded)
	b.uint16(gpFlag)
	b.uint16(e.Method)
	b.uint32(0) // mod time/date
	b.uint32(e.CRC32)
	b.uint32(ccs)
	b.uint32(cus)
	b.uint16(uint16(len(e.Name)))
	b.uint16(uint16(len(extra)))
	b.uint16(0) // comment length
	b.uint16(0) // disk number start
	b.uint16(0) // internal attributes
	b.uint32(0) // external attributes
	b.uint32(coff)

	cw := &countWriter{w: w}
	if _, err := cw.Write(buf[:]); err != nil {
		return cw.count, err
	}
	if _, err := io.WriteString(cw, e.Name); err != nil {
		return cw.count, err
	}
	if len(extra) > 0 {
		if _, err := cw.Write(extra); err != nil {
			return cw.count, err
		}
	}
	return cw.count, nil
}

// EOCDInput is what the writer front-end has in hand once every entry is
// sealed.
type EOCDInput struct {
	Entries          []DirEntry
	CentralDirOffset uint64
	Comment          string
}

// WriteTrailer writes the central directory, the ZIP64 EOCD record and
// locator when needed (I5), and the classic EOCD (§4.4, §6.1). It
// returns the total number of bytes written.
func WriteTrailer(w io.Writer, in EOCDInput) (int64, error) {
	cw := &countWriter{w: w}
	for _, e := range in.Entries {
		if _, err := WriteCentralDirectoryHeader(cw, e); err != nil {
			return cw.count, err
		}
	}
	cdSize := uint64(cw.count)
	cdOffset := in.CentralDirOffset
	cdEnd := cdOffset + cdSize
	numEntries := uint64(len(in.Entries))

	needsZip64 := numEntries > uint16Max || cdSize > uint32Max || cdOffset > uint32Max

	if needsZip64 {
		if err := writeZip64EOCD(cw, numEntries, cdSize, cdOffset, cdEnd); err != nil {
			return cw.count, err
		}
	}

	if err := writeClassicEOCD(cw, numEntries, cdSize, cdOffset, needsZip64, in.Comment); err != nil {
		return cw.count, err
	}
	return cw.count, nil
}

func writeZip64EOCD(w io.Writer, numEntries, cdSize, cdOffset, recordOffset uint64) error {
	var buf [12 + zip64EOCDRecordLen]byte
	b := writeBuf(buf[:])
	b.uint32(SigZip64EOCDRecord)
	b.uint64(zip64EOCDRecordLen) // size of record, excluding signature+this field
	b.uint16(VersionZip64)       // version made by
	b.uint16(VersionZip64)       // version needed to extract
	b.uint32(0)                  // disk number
	b.uint32(0)                  // disk with start of central directory
	b.uint64(numEntries)         // entries on this disk
	b.uint64(numEntries)         // entries total
	b.uint64(cdSize)
	b.uint64(cdOffset)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}

	var locBuf [zip64EOCDLocatorLen]byte
	lb := writeBuf(locBuf[:])
	lb.uint32(SigZip64EOCDLocator)
	lb.uint32(0) // disk with zip64 EOCD
	lb.uint64(recordOffset)
	lb.uint32(1) // total disks
	_, err := w.Write(locBuf[:])
	return err
}

func writeClassicEOCD(w io.Writer, numEntries, cdSize, cdOffset uint64, zip64 bool, comment string) error {
	entries16 := uint16(numEntries)
	size32 := uint32(cdSize)
	offset32 := uint32(cdOffset)
	if zip64 || numEntries > uint16Max {
		entries16 = uint16Max
	}
	if zip64 || cdSize > uint32Max {
		size32 = uint32Max
	}
	if zip64 || cdOffset > uint32Max {
		offset32 = uint32Max
	}

	var buf [eocdLen]byte
	b := writeBuf(buf[:])
	b.uint32(SigEOCD)
	b.uint16(0) // disk number
	b.uint16(0) // disk with central directory
	b.uint16(entries16)
	b.uint16(entries16)
	b.uint32(size32)
	b.uint32(offset32)
	b.uint16(uint16(len(comment)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, comment)
	return err
}
