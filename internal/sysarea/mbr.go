package sysarea

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

const mbrPartitionTableOffset = 446
const mbrSignatureOffset = 510

// writeMBR assigns up to 4 partition slots (honouring DesiredSlot, then
// filling lowest free slots) and writes CHS-encoded entries at bytes
// 446..509, plus the 0x55 0xAA boot signature (spec §4.11 step 3).
func writeMBR(buf []byte, reqs []PartitionRequest, geom Geometry) error {
	if len(reqs) > 4 {
		return errors.Wrap(isoerr.ErrLayout, "sysarea: more than 4 MBR partitions requested")
	}
	slots := make([]*PartitionRequest, 4)
	var unassigned []*PartitionRequest
	for i := range reqs {
		r := &reqs[i]
		if r.DesiredSlot >= 1 && r.DesiredSlot <= 4 {
			if slots[r.DesiredSlot-1] != nil {
				return errors.Wrapf(isoerr.ErrLayout, "sysarea: MBR slot %d requested twice", r.DesiredSlot)
			}
			slots[r.DesiredSlot-1] = r
		} else {
			unassigned = append(unassigned, r)
		}
	}
	for _, r := range unassigned {
		for i := 0; i < 4; i++ {
			if slots[i] == nil {
				slots[i] = r
				break
			}
		}
	}

	for i, r := range slots {
		if r == nil {
			continue
		}
		off := mbrPartitionTableOffset + i*16
		entry := buf[off : off+16]
		entry[0] = 0x00 // boot flag; 0x80 set by caller via TypeCode convention if needed
		startCHS := chsEncode(r.StartBlock, geom)
		endCHS := chsEncode(r.StartBlock+r.BlockCount-1, geom)
		copy(entry[1:4], startCHS[:])
		entry[4] = r.TypeCode
		copy(entry[5:8], endCHS[:])
		binary.LittleEndian.PutUint32(entry[8:12], r.StartBlock*4) // 512-byte sectors per 2048-byte block
		binary.LittleEndian.PutUint32(entry[12:16], r.BlockCount*4)
	}

	buf[mbrSignatureOffset] = 0x55
	buf[mbrSignatureOffset+1] = 0xAA
	return nil
}

// chsEncode renders a 2048-byte-block LBA as a 3-byte CHS tuple,
// clamping to the MBR's 1024-cylinder addressable limit by saturating at
// 1023/254/63 the way legacy BIOSes expect once true geometry overflows.
func chsEncode(block uint32, geom Geometry) [3]byte {
	lba := block * 4 // 512-byte sectors
	sectorsPerCyl := geom.Heads * geom.SectorsPerTrk
	if sectorsPerCyl == 0 {
		sectorsPerCyl = 1
	}
	cyl := lba / sectorsPerCyl
	rem := lba % sectorsPerCyl
	head := rem / geom.SectorsPerTrk
	sector := rem%geom.SectorsPerTrk + 1

	if cyl > 1023 {
		cyl = 1023
		head = geom.Heads - 1
		sector = geom.SectorsPerTrk
	}

	var out [3]byte
	out[0] = byte(head)
	out[1] = byte(sector&0x3f) | byte((cyl>>8)&0x3)<<6
	out[2] = byte(cyl & 0xff)
	return out
}
