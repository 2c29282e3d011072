package sysarea

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

const sunLabelSize = 512
const sunMaxPartitions = 8
const sunPartitionTableOffset = 0x1c

// BuildSUNLabel writes a 512-byte SUN Disk Label: up to 8 partition
// entries at offset 0x1c, cylinder/head/sector geometry fields, and a
// 16-bit XOR checksum over the first 510 bytes stored at 510:512 (spec
// §4.11 step 6). It is an alternative to MBR, not stacked with it.
func BuildSUNLabel(reqs []PartitionRequest, geom Geometry) ([]byte, error) {
	if len(reqs) > sunMaxPartitions {
		return nil, errors.Wrap(isoerr.ErrLayout, "sysarea: more than 8 SUN partitions requested")
	}
	buf := make([]byte, sunLabelSize)

	copy(buf[0:], []byte("CD-ROM Disc"))

	binary.BigEndian.PutUint16(buf[70:72], uint16(geom.SectorsPerTrk)) // rpm/sectors field reused for track size
	binary.BigEndian.PutUint16(buf[72:74], 1)                         // number of alternate cylinders
	binary.BigEndian.PutUint16(buf[74:76], uint16(geom.Heads))
	binary.BigEndian.PutUint16(buf[76:78], uint16(geom.SectorsPerTrk))

	for i, r := range reqs {
		off := sunPartitionTableOffset + i*8
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(r.TypeCode))
		binary.BigEndian.PutUint16(buf[off+2:off+4], 0) // flags
		startCyl := uint32(0)
		if geom.Heads*geom.SectorsPerTrk > 0 {
			startCyl = r.StartBlock * 4 / (geom.Heads * geom.SectorsPerTrk)
		}
		binary.BigEndian.PutUint32(buf[off+4:off+8], startCyl)
	}

	sizesOff := 0x1c + sunMaxPartitions*8
	for i, r := range reqs {
		off := sizesOff + i*4
		if off+4 > sunLabelSize-2 {
			break
		}
		binary.BigEndian.PutUint32(buf[off:off+4], r.BlockCount*4)
	}

	binary.BigEndian.PutUint16(buf[508:510], 0xDABE) // magic

	var checksum uint16
	for i := 0; i < sunLabelSize-2; i += 2 {
		checksum ^= binary.BigEndian.Uint16(buf[i : i+2])
	}
	binary.BigEndian.PutUint16(buf[510:512], checksum)
	return buf, nil
}

// MIPSVariant selects the big-endian, little-endian (MIPSEL), or CHRP
// boot-block layout written by BuildMIPS.
type MIPSVariant int

const (
	MIPSBigEndian MIPSVariant = iota
	MIPSLittleEndian
	MIPSCHRP
)

// BuildMIPS writes the MIPS/SGI volume-header-style boot block: a small
// directory of up to 15 (name, LBA, length) entries describing the boot
// program, byte-order matching the requested variant (spec §4.11 step
// 7). CHRP uses the same directory shape with a prepended "CHRP" magic.
func BuildMIPS(variant MIPSVariant, bootFileLBA, bootFileLen uint32) []byte {
	buf := make([]byte, SystemAreaBytes)
	order := func() binary.ByteOrder {
		if variant == MIPSLittleEndian {
			return binary.LittleEndian
		}
		return binary.BigEndian
	}()

	off := 0
	if variant == MIPSCHRP {
		copy(buf[0:4], []byte("CHRP"))
		off = 4
	}
	order.PutUint32(buf[off:off+4], 0x0be5a941) // SGI volume header magic
	order.PutUint32(buf[off+4:off+8], bootFileLBA*4)
	order.PutUint32(buf[off+8:off+12], bootFileLen)
	return buf
}
