package writerpipe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/discforge/isoforge/internal/namecodec"
)

const (
	vdTypeBootRecord    byte = 0
	vdTypePrimary       byte = 1
	vdTypeSupplementary byte = 2
	vdTypeTerminator    byte = 255
)

var cd001 = [5]byte{'C', 'D', '0', '0', '1'}

func vdHeader(vdType byte) []byte {
	buf := make([]byte, 7)
	buf[0] = vdType
	copy(buf[1:6], cd001[:])
	buf[6] = 1
	return buf
}

// terminatorBlock renders the Volume Descriptor Set Terminator (spec
// §6.2): type 255, "CD001", version 1, the rest zeroed.
func terminatorBlock() []byte {
	block := make([]byte, SectorSize)
	copy(block, vdHeader(vdTypeTerminator))
	return block
}

// padBytes pads/truncates s to length with ASCII spaces, matching the
// teacher's padString for d-character/a-character fixed fields.
func padBytes(s string, length int) []byte {
	b := bytes.Repeat([]byte{' '}, length)
	copy(b, s)
	return b
}

// formatTimestamp renders the ECMA-119 17-byte volume timestamp (spec
// §6.2): YYYYMMDDHHMMSSmm plus a GMT-offset byte, or 16 zero digits plus
// a zero offset for the "not specified" case.
func formatTimestamp(t time.Time) []byte {
	out := make([]byte, 17)
	if t.IsZero() {
		for i := 0; i < 16; i++ {
			out[i] = '0'
		}
		return out
	}
	s := fmt.Sprintf("%04d%02d%02d%02d%02d%02d00",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	copy(out, s)
	return out
}

// PrimaryDescriptorFields carries the values an ECMA-119/ISO9660:1999
// descriptor needs beyond the shared layout (path tables, root record).
type PrimaryDescriptorFields struct {
	VDType            byte // vdTypePrimary or vdTypeSupplementary (reused for EVD, version byte differs)
	Version           byte
	SystemID          string
	VolumeID          string
	VolumeSpaceSize   uint32
	PathTableSize     uint32
	LPathTableLBA     uint32
	LPathTableLBA2    uint32
	MPathTableLBA     uint32
	MPathTableLBA2    uint32
	RootDirRecord     []byte // 34-byte marshaled root directory record
	VolumeSetID       string
	PublisherID       string
	DataPreparerID    string
	ApplicationID     string
	EscapeSequences   []byte // Joliet UCS-2 escape sequence, or nil
	Now               time.Time
}

// MarshalPrimaryLike renders a PVD, EVD, or the basic (non-UCS2) fields
// of an SVD: the ECMA-119 §8.4/§8.5 descriptor layout shared by all three,
// differing only in type byte, version byte, and escape sequences (spec
// §6.2). Joliet's UCS-2 string fields are rendered by MarshalSupplementary
// instead, which embeds this for the integer/timestamp portion.
func MarshalPrimaryLike(f PrimaryDescriptorFields) []byte {
	block := make([]byte, SectorSize)
	copy(block[0:7], vdHeader(f.VDType))
	block[6] = f.Version

	buf := new(bytes.Buffer)
	buf.WriteByte(0) // byte 7: unused/volume flags
	buf.Write(padBytes(f.SystemID, 32))
	buf.Write(padBytes(f.VolumeID, 32))
	buf.Write(make([]byte, 8))

	binary.Write(buf, binary.LittleEndian, f.VolumeSpaceSize)
	binary.Write(buf, binary.BigEndian, f.VolumeSpaceSize)

	esc := make([]byte, 32)
	copy(esc, f.EscapeSequences)
	buf.Write(esc)

	binary.Write(buf, binary.LittleEndian, uint16(1)) // volume set size
	binary.Write(buf, binary.BigEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // volume sequence number
	binary.Write(buf, binary.BigEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(SectorSize))
	binary.Write(buf, binary.BigEndian, uint16(SectorSize))
	binary.Write(buf, binary.LittleEndian, f.PathTableSize)
	binary.Write(buf, binary.BigEndian, f.PathTableSize)

	binary.Write(buf, binary.LittleEndian, f.LPathTableLBA)
	binary.Write(buf, binary.LittleEndian, f.LPathTableLBA2)
	binary.Write(buf, binary.BigEndian, f.MPathTableLBA)
	binary.Write(buf, binary.BigEndian, f.MPathTableLBA2)

	root := make([]byte, 34)
	copy(root, f.RootDirRecord)
	buf.Write(root)

	buf.Write(padBytes(f.VolumeSetID, 128))
	buf.Write(padBytes(f.PublisherID, 128))
	buf.Write(padBytes(f.DataPreparerID, 128))
	buf.Write(padBytes(f.ApplicationID, 128))
	buf.Write(padBytes("", 37)) // copyright file id
	buf.Write(padBytes("", 37)) // abstract file id
	buf.Write(padBytes("", 37)) // bibliographic file id

	now := f.Now
	buf.Write(formatTimestamp(now))
	buf.Write(formatTimestamp(now))
	buf.Write(formatTimestamp(time.Time{}))
	buf.Write(formatTimestamp(now))
	buf.WriteByte(1) // file structure version

	copy(block[7:], buf.Bytes())
	return block
}

// JolietDescriptorFields mirrors PrimaryDescriptorFields but with UCS-2BE
// string values, per spec §4.6.
type JolietDescriptorFields struct {
	SystemID        string
	VolumeID        string
	VolumeSpaceSize uint32
	PathTableSize   uint32
	LPathTableLBA   uint32
	LPathTableLBA2  uint32
	MPathTableLBA   uint32
	MPathTableLBA2  uint32
	RootDirRecord   []byte
	EscapeSequence  [3]byte
	Now             time.Time
}

func utf16Field(s string, byteLen int) []byte {
	out := make([]byte, byteLen)
	enc := namecodec.UTF16BE(s)
	if len(enc) > byteLen {
		enc = enc[:byteLen]
	}
	copy(out, enc)
	for i := len(enc); i < byteLen; i += 2 {
		if i+1 < byteLen {
			out[i], out[i+1] = 0x00, 0x20
		}
	}
	return out
}

// MarshalSupplementary renders the Joliet SVD (spec §6.2): UCS-2BE string
// fields, Joliet escape sequence, and the same integer/timestamp layout
// as MarshalPrimaryLike.
func MarshalSupplementary(f JolietDescriptorFields) []byte {
	esc := make([]byte, 32)
	copy(esc, f.EscapeSequence[:])

	block := make([]byte, SectorSize)
	copy(block[0:7], vdHeader(vdTypeSupplementary))
	block[6] = 1

	buf := new(bytes.Buffer)
	buf.WriteByte(0)
	buf.Write(padBytes(f.SystemID, 32))
	buf.Write(utf16Field(f.VolumeID, 32))
	buf.Write(make([]byte, 8))

	binary.Write(buf, binary.LittleEndian, f.VolumeSpaceSize)
	binary.Write(buf, binary.BigEndian, f.VolumeSpaceSize)

	buf.Write(esc)

	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.BigEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.BigEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(SectorSize))
	binary.Write(buf, binary.BigEndian, uint16(SectorSize))
	binary.Write(buf, binary.LittleEndian, f.PathTableSize)
	binary.Write(buf, binary.BigEndian, f.PathTableSize)

	binary.Write(buf, binary.LittleEndian, f.LPathTableLBA)
	binary.Write(buf, binary.LittleEndian, f.LPathTableLBA2)
	binary.Write(buf, binary.BigEndian, f.MPathTableLBA)
	binary.Write(buf, binary.BigEndian, f.MPathTableLBA2)

	root := make([]byte, 34)
	copy(root, f.RootDirRecord)
	buf.Write(root)

	buf.Write(utf16Field("", 64))
	buf.Write(utf16Field("", 64))
	buf.Write(utf16Field("", 64))
	buf.Write(utf16Field("", 64))
	buf.Write(utf16Field("", 37))
	buf.Write(utf16Field("", 37))
	buf.Write(utf16Field("", 37))

	now := f.Now
	buf.Write(formatTimestamp(now))
	buf.Write(formatTimestamp(now))
	buf.Write(formatTimestamp(time.Time{}))
	buf.Write(formatTimestamp(now))
	buf.WriteByte(1)

	copy(block[7:], buf.Bytes())
	return block
}

// MarshalBootRecordVD renders the Boot Record volume descriptor
// referencing the El Torito catalog (spec §6.2): type 0, "CD001", version
// 1, "EL TORITO SPECIFICATION" at bytes 8..30, catalog LBA at bytes 72..75.
func MarshalBootRecordVD(catalogLBA uint32) []byte {
	block := make([]byte, SectorSize)
	copy(block[0:7], vdHeader(vdTypeBootRecord))
	copy(block[7:30], []byte("EL TORITO SPECIFICATION"))
	binary.LittleEndian.PutUint32(block[71:75], catalogLBA)
	return block
}
