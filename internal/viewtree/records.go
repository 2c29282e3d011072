package viewtree

import (
	"encoding/binary"
	"time"

	"github.com/discforge/isoforge/internal/namecodec"
)

// drFixedPartSize is the 33-byte fixed header of an ECMA-119 directory
// record (§9.1), grounded on the teacher's iso9660/constants.go.
const drFixedPartSize = 33

// DirFlagDirectory and DirFlagMultiExtent are the two Directory Record
// flag bits the spec names explicitly (§4.5); hidden is bit 0, associated
// bit 2, etc. are left at zero as the teacher does.
const (
	DirFlagHidden      byte = 1 << 0
	DirFlagDirectory   byte = 1 << 1
	DirFlagMultiExtent byte = 1 << 7
)

// IdentifierBytes returns the on-disk identifier bytes for name under the
// given view, handling the ECMA-119 "." (0x00) / ".." (0x01) and Joliet
// root (single 0x00 byte) special cases (spec §4.5, grounded on the
// teacher's getDRIdentifierBytes).
func IdentifierBytes(view View, name string, isDotEntry, isDotDotEntry bool) []byte {
	if view == ViewJoliet || view == ViewHFSPlus {
		switch {
		case isDotEntry:
			return []byte{0x00}
		case isDotDotEntry:
			return []byte{0x01}
		default:
			return namecodec.UCS2BE(name)
		}
	}
	switch {
	case isDotEntry:
		return []byte{0x00}
	case isDotDotEntry:
		return []byte{0x01}
	default:
		return []byte(name)
	}
}

// evenPad rounds n up to the next even number, matching the single
// padding byte ECMA-119 §9.1 inserts after the identifier when its
// length is even (so the following field starts on an even offset).
func evenPad(n int) int {
	if n%2 != 0 {
		n++
	}
	return n
}

// DirRecordSize returns the total, padded-to-even byte length of a
// directory record carrying the given identifier bytes and no
// system-use area (spec §4.2).
func DirRecordSize(identifier []byte) int {
	return evenPad(drFixedPartSize + len(identifier))
}

// DirRecordSizeWithSystemUse is DirRecordSize plus a Rock Ridge/SUSP
// system-use payload, dropped wholesale (rather than truncated) when it
// would push the record past the 255-byte length a directory record's
// one-byte length field can address — this package implements no SUSP
// Continuation Area (CE) chaining (see DESIGN.md).
func DirRecordSizeWithSystemUse(identifier, systemUse []byte) int {
	base := DirRecordSize(identifier)
	if len(systemUse) > 0 && base+len(systemUse) <= 255 {
		return base + len(systemUse)
	}
	return base
}

// DirectoryRecordFields is the fixed 33-byte part of a directory record,
// prior to the variable-length identifier (ECMA-119 §9.1).
type DirectoryRecordFields struct {
	ExtAttrRecordLen uint8
	LBA              uint32
	DataLength       uint32
	RecordingTime    time.Time
	Flags            byte
	FileUnitSize     uint8
	InterleaveGap    uint8
	VolumeSeqNumber  uint16
}

// MarshalDirectoryRecord renders fields, an identifier, and an optional
// Rock Ridge/SUSP system-use payload into a complete directory record
// byte slice, both-endian LBA/length fields per ECMA-119 §9.1, grounded
// on the teacher's marshalDirectoryRecord. systemUse is silently dropped
// if it would push the record past the 255-byte length budget (see
// DirRecordSizeWithSystemUse); callers that need consistent sizing ahead
// of marshalling use that function directly.
func MarshalDirectoryRecord(fields DirectoryRecordFields, identifier, systemUse []byte) []byte {
	base := DirRecordSize(identifier)
	n := base
	if len(systemUse) > 0 && base+len(systemUse) <= 255 {
		n = base + len(systemUse)
	}
	buf := make([]byte, n)
	buf[0] = byte(n)
	buf[1] = fields.ExtAttrRecordLen

	binary.LittleEndian.PutUint32(buf[2:6], fields.LBA)
	binary.BigEndian.PutUint32(buf[6:10], fields.LBA)
	binary.LittleEndian.PutUint32(buf[10:14], fields.DataLength)
	binary.BigEndian.PutUint32(buf[14:18], fields.DataLength)

	t := fields.RecordingTime.UTC()
	buf[18] = byte(t.Year() - 1900)
	buf[19] = byte(t.Month())
	buf[20] = byte(t.Day())
	buf[21] = byte(t.Hour())
	buf[22] = byte(t.Minute())
	buf[23] = byte(t.Second())
	buf[24] = 0 // GMT offset

	buf[25] = fields.Flags
	buf[26] = fields.FileUnitSize
	buf[27] = fields.InterleaveGap
	binary.LittleEndian.PutUint16(buf[28:30], fields.VolumeSeqNumber)
	binary.BigEndian.PutUint16(buf[30:32], fields.VolumeSeqNumber)

	buf[32] = byte(len(identifier))
	copy(buf[33:], identifier)
	if n > base {
		copy(buf[base:], systemUse)
	}
	return buf
}

// ptRecFixedPartSize is the 8-byte fixed header of a path table record
// (ECMA-119 §9.4).
const ptRecFixedPartSize = 8

// MarshalPathTableRecord renders one path table record; useBigEndian
// selects the M-Type (big-endian) table's integer encoding over the
// L-Type (little-endian) one, per ECMA-119 §9.4.
func MarshalPathTableRecord(identifier []byte, lba uint32, parentDirNum uint16, useBigEndian bool) []byte {
	n := ptRecFixedPartSize + len(identifier)
	if len(identifier)%2 != 0 {
		n++
	}
	buf := make([]byte, n)
	buf[0] = byte(len(identifier))
	buf[1] = 0 // extended attribute record length, unused
	if useBigEndian {
		binary.BigEndian.PutUint32(buf[2:6], lba)
		binary.BigEndian.PutUint16(buf[6:8], parentDirNum)
	} else {
		binary.LittleEndian.PutUint32(buf[2:6], lba)
		binary.LittleEndian.PutUint16(buf[6:8], parentDirNum)
	}
	copy(buf[8:], identifier)
	return buf
}
