package zipfmt

import (
	"fmt"
	"io"
)

// maxEOCDSearch bounds the backward scan window: 22-byte fixed EOCD plus
// the maximum 64KiB comment (§4.4 "Read path — EOCD discovery").
const maxEOCDSearch = eocdLen + uint16Max

// EOCDRecord is the fully-resolved (ZIP64-promoted if needed) trailer
// summary the reader needs to locate and size the central directory.
type EOCDRecord struct {
	EntryCount       uint64
	CentralDirSize   uint64
	CentralDirOffset uint64
}

// FindEOCD scans backward from the end of source over the bounded tail
// window for the classic EOCD signature, then (if the classic record
// carries sentinels) follows the ZIP64 locator to the ZIP64 EOCD record
// for promoted 64-bit values (§4.4 read path).
func FindEOCD(source io.ReaderAt, size int64) (EOCDRecord, error) {
	windowSize := size
	if windowSize > maxEOCDSearch {
		windowSize = maxEOCDSearch
	}
	tail := make([]byte, windowSize)
	if _, err := source.ReadAt(tail, size-windowSize); err != nil && err != io.EOF {
		return EOCDRecord{}, fmt.Errorf("zipfmt: reading EOCD search window: %w", err)
	}

	eocdPos := -1
	for i := len(tail) - eocdLen; i >= 0; i-- {
		if leU32(tail[i:]) == SigEOCD {
			eocdPos = i
			break
		}
	}
	if eocdPos < 0 {
		return EOCDRecord{}, errEOCDNotFound
	}

	rec := tail[eocdPos:]
	entries := uint64(leU16(rec[10:]))
	cdSize := uint64(leU32(rec[12:]))
	cdOffset := uint64(leU32(rec[16:]))

	if entries != uint16Max && cdSize != uint32Max && cdOffset != uint32Max {
		return EOCDRecord{EntryCount: entries, CentralDirSize: cdSize, CentralDirOffset: cdOffset}, nil
	}

	// Sentinel values present: look up the ZIP64 locator in the same
	// search window and follow it to the ZIP64 EOCD record.
	locPos := -1
	for i := eocdPos - zip64EOCDLocatorLen; i >= 0; i-- {
		if leU32(tail[i:]) == SigZip64EOCDLocator {
			locPos = i
			break
		}
	}
	if locPos < 0 {
		return EOCDRecord{}, errZip64LocatorNotFound
	}
	loc := tail[locPos:]
	zip64Offset := leU64(loc[8:])

	var recBuf [12 + zip64EOCDRecordLen]byte
	if _, err := source.ReadAt(recBuf[:], int64(zip64Offset)); err != nil {
		return EOCDRecord{}, fmt.Errorf("zipfmt: reading zip64 EOCD record: %w", err)
	}
	if leU32(recBuf[:]) != SigZip64EOCDRecord {
		return EOCDRecord{}, errEOCDNotFound
	}
	return EOCDRecord{
		EntryCount:       leU64(recBuf[32:]),
		CentralDirSize:   leU64(recBuf[40:]),
		CentralDirOffset: leU64(recBuf[48:]),
	}, nil
}

// ParsedDirEntry is a central-directory record after ZIP64 promotion.
type ParsedDirEntry struct {
	Name              string
	Method            uint16
	Flags             uint16
	CRC32             uint32
	CompressedSize    uint64
	UncompressedSize  uint64
	LocalHeaderOffset uint64
	Extra             []byte
}

func (e ParsedDirEntry) Encrypted() bool { return e.Flags&FlagEncrypted != 0 }

// ParseCentralDirectory decodes count consecutive central directory
// records starting at off, applying per-field ZIP64 promotion from each
// record's extra field (§4.4 "Read path — ZIP64 extra parsing").
func ParseCentralDirectory(source io.ReaderAt, off uint64, size uint64, count uint64) ([]ParsedDirEntry, error) {
	buf := make([]byte, size)
	if _, err := source.ReadAt(buf, int64(off)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("zipfmt: reading central directory: %w", err)
	}

	entries := make([]ParsedDirEntry, 0, count)
	pos := 0
	for i := uint64(0); i < count; i++ {
		if pos+centralDirHeaderLen > len(buf) {
			return nil, fmt.Errorf("zipfmt: central directory truncated at entry %d", i)
		}
		rec := buf[pos:]
		if leU32(rec) != SigCentralDirectory {
			return nil, errInvalidCentralDirSignature
		}
		flags := leU16(rec[8:])
		method := leU16(rec[10:])
		crc := leU32(rec[16:])
		compressedSize := uint64(leU32(rec[20:]))
		uncompressedSize := uint64(leU32(rec[24:]))
		nameLen := int(leU16(rec[28:]))
		extraLen := int(leU16(rec[30:]))
		commentLen := int(leU16(rec[32:]))
		localOffset := uint64(leU32(rec[42:]))

		entryLen := centralDirHeaderLen + nameLen + extraLen + commentLen
		if pos+entryLen > len(buf) {
			return nil, fmt.Errorf("zipfmt: central directory entry %d overruns buffer", i)
		}
		name := string(rec[centralDirHeaderLen : centralDirHeaderLen+nameLen])
		extra := rec[centralDirHeaderLen+nameLen : centralDirHeaderLen+nameLen+extraLen]

		compressedSize, uncompressedSize, localOffset, err := promoteZip64(
			extra, compressedSize, uncompressedSize, localOffset)
		if err != nil {
			return nil, fmt.Errorf("zipfmt: entry %q: %w", name, err)
		}

		entries = append(entries, ParsedDirEntry{
			Name:              name,
			Method:            method,
			Flags:             flags,
			CRC32:             crc,
			CompressedSize:    compressedSize,
			UncompressedSize:  uncompressedSize,
			LocalHeaderOffset: localOffset,
			Extra:             extra,
		})
		pos += entryLen
	}
	return entries, nil
}

// promoteZip64 walks the extra field's (id, len, payload) triples and,
// on id==0x0001, consumes 8-byte fields in the canonical order
// {uncompressed (if sentinel), compressed (if sentinel), offset (if
// sentinel), disk (ignored, single-disk only)} (§4.4).
func promoteZip64(extra []byte, compressedSize, uncompressedSize, localOffset uint64) (cs, us, off uint64, err error) {
	cs, us, off = compressedSize, uncompressedSize, localOffset
	needUncompressed := uncompressedSize == uint32Max
	needCompressed := compressedSize == uint32Max
	needOffset := localOffset == uint32Max
	if !needUncompressed && !needCompressed && !needOffset {
		return cs, us, off, nil
	}

	rest := extra
	for len(rest) >= 4 {
		id := leU16(rest)
		size := leU16(rest[2:])
		if len(rest) < 4+int(size) {
			return 0, 0, 0, errTruncatedZip64Extra
		}
		payload := rest[4 : 4+int(size)]
		if id == zip64ExtraID {
			p := payload
			if needUncompressed {
				if len(p) < 8 {
					return 0, 0, 0, errTruncatedZip64Extra
				}
				us = leU64(p)
				p = p[8:]
			}
			if needCompressed {
				if len(p) < 8 {
					return 0, 0, 0, errTruncatedZip64Extra
				}
				cs = leU64(p)
				p = p[8:]
			}
			if needOffset {
				if len(p) < 8 {
					return 0, 0, 0, errTruncatedZip64Extra
				}
				off = leU64(p)
			}
			return cs, us, off, nil
		}
		rest = rest[4+int(size):]
	}
	return 0, 0, 0, fmt.Errorf("zipfmt: sentinel field present but no zip64 extra found")
}

// LocalHeaderDataOffset reads the local header at off and returns the
// byte offset, relative to the start of source, where the (possibly
// AE-2-preambled) entry data begins, along with the raw extra field
// (needed to recover the AE-2 actual compression method).
func LocalHeaderDataOffset(source io.ReaderAt, off uint64) (dataOffset uint64, flags uint16, extra []byte, err error) {
	var fixed [localFileHeaderLen]byte
	if _, err := source.ReadAt(fixed[:], int64(off)); err != nil {
		return 0, 0, nil, fmt.Errorf("zipfmt: reading local file header: %w", err)
	}
	if leU32(fixed[:]) != SigLocalFileHeader {
		return 0, 0, nil, errInvalidLocalHeaderSignature
	}
	flags = leU16(fixed[6:])
	nameLen := int(leU16(fixed[26:]))
	extraLen := int(leU16(fixed[28:]))

	extra = make([]byte, extraLen)
	if extraLen > 0 {
		if _, err := source.ReadAt(extra, int64(off)+localFileHeaderLen+int64(nameLen)); err != nil {
			return 0, 0, nil, fmt.Errorf("zipfmt: reading local file header extra: %w", err)
		}
	}
	dataOffset = off + localFileHeaderLen + uint64(nameLen) + uint64(extraLen)
	return dataOffset, flags, extra, nil
}
