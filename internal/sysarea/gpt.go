package sysarea

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

const gptHeaderSize = 92
const gptEntrySize = 128
const gptSignature = "EFI PART"
const gptRevision = 0x00010000

// gptCRCTable is the Ethernet/GPT CRC32 table (polynomial 0x04C11DB7,
// reflected), built once.
var gptCRCTable = buildCRCTable()

func buildCRCTable() [256]uint32 {
	var table [256]uint32
	const poly = 0xEDB88320 // bit-reversed 0x04C11DB7
	for i := 0; i < 256; i++ {
		c := uint32(i)
		for bit := 0; bit < 8; bit++ {
			if c&1 != 0 {
				c = poly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		table[i] = c
	}
	return table
}

// CRC32 computes the GPT/Ethernet CRC32 over data: initial 0x46AF6449's
// bitwise complement (0xFFFFFFFF per the standard algorithm), final XOR
// 0xFFFFFFFF, matching spec §4.11 step 4's description.
func CRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = gptCRCTable[byte(crc)^b] ^ (crc >> 8)
	}
	return crc ^ 0xFFFFFFFF
}

// BuildGPTEntries sorts, overlap-checks, and optionally gap-fills reqs,
// then renders the resulting partition-entry array bytes — the same
// bytes both the primary system-area copy and GPTTailWriter's backup
// copy marshal, so an orchestrator building the tail writer can call
// this directly instead of re-deriving the array from writeGPT's
// internals.
func BuildGPTEntries(reqs []PartitionRequest, allowOverlap, gapFill bool) ([]byte, error) {
	sorted := make([]PartitionRequest, len(reqs))
	copy(sorted, reqs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartBlock < sorted[j].StartBlock })

	if !allowOverlap {
		for i := 1; i < len(sorted); i++ {
			if sorted[i].StartBlock < sorted[i-1].StartBlock+sorted[i-1].BlockCount {
				return nil, errors.Wrap(isoerr.GPTOverlap, "sysarea: GPT partition entries overlap")
			}
		}
	}

	entries := sorted
	if gapFill {
		entries = fillGapsGPT(sorted)
	}

	entryBytes := make([]byte, len(entries)*gptEntrySize)
	for i, e := range entries {
		off := i * gptEntrySize
		writeGPTEntry(entryBytes[off:off+gptEntrySize], e)
	}
	return entryBytes, nil
}

// writeGPT writes the primary GPT header at LBA 1 and the partition
// entry array immediately after it, within the 32 KiB system area (spec
// §4.11 step 4). The backup tail is written separately by
// BuildBackupTail, once the image's total block count is known.
func writeGPT(buf []byte, reqs []PartitionRequest, allowOverlap, gapFill bool) error {
	entryBytes, err := BuildGPTEntries(reqs, allowOverlap, gapFill)
	if err != nil {
		return err
	}
	entryArrayLBA := uint32(2) // 2048-byte block units, within the system area

	entriesOff := 1024 // LBA 2 in 512-byte sectors
	if entriesOff+len(entryBytes) > len(buf) {
		return errors.Wrap(isoerr.ErrLayout, "sysarea: GPT entry array overflows system area")
	}
	copy(buf[entriesOff:], entryBytes)

	headerOff := 512 // LBA 1
	header := make([]byte, gptHeaderSize)
	diskGUID := uuid.New()
	fillGPTHeader(header, diskGUID, entryArrayLBA, uint32(len(entryBytes)/gptEntrySize), CRC32(entryBytes))
	copy(buf[headerOff:headerOff+gptHeaderSize], header)
	return nil
}

func fillGPTHeader(header []byte, diskGUID uuid.UUID, entryArrayLBA, numEntries, entryArrayCRC uint32) {
	copy(header[0:8], []byte(gptSignature))
	binary.LittleEndian.PutUint32(header[8:12], gptRevision)
	binary.LittleEndian.PutUint32(header[12:16], gptHeaderSize)
	// header CRC (offset 16) computed last, over the header with this
	// field zeroed.
	binary.LittleEndian.PutUint32(header[24:32], 1) // current LBA
	// backup LBA (32:40) filled by the caller once total block count is known
	guidBytes, _ := diskGUID.MarshalBinary()
	copy(header[56:72], guidBytes)
	binary.LittleEndian.PutUint32(header[72:76], entryArrayLBA*4) // LBA 2 (2048-block) -> 512-sector units
	binary.LittleEndian.PutUint32(header[80:84], numEntries)
	binary.LittleEndian.PutUint32(header[84:88], gptEntrySize)
	binary.LittleEndian.PutUint32(header[88:92], entryArrayCRC)

	binary.LittleEndian.PutUint32(header[16:20], 0)
	crc := CRC32(header[:gptHeaderSize])
	binary.LittleEndian.PutUint32(header[16:20], crc)
}

func writeGPTEntry(entry []byte, req PartitionRequest) {
	typeGUID := gptTypeGUID(req.APMType)
	uniqueGUID := uuid.New()
	typeBytes, _ := typeGUID.MarshalBinary()
	uniqueBytes, _ := uniqueGUID.MarshalBinary()
	copy(entry[0:16], typeBytes)
	copy(entry[16:32], uniqueBytes)
	binary.LittleEndian.PutUint64(entry[32:40], uint64(req.StartBlock)*4)
	binary.LittleEndian.PutUint64(entry[40:48], uint64(req.StartBlock+req.BlockCount-1)*4)
	name := req.Name
	if name == "" {
		name = "Basic Data"
	}
	units := []uint16{}
	for _, r := range name {
		units = append(units, uint16(r))
	}
	for i, u := range units {
		if i*2+2 > 72 {
			break
		}
		binary.LittleEndian.PutUint16(entry[56+i*2:58+i*2], u)
	}
}

// gptTypeGUID resolves an APM-style type string to a GPT partition-type
// GUID; unrecognised types fall back to the "Basic Data" GUID, per spec
// §4.11's "filled with a GapN entry of type Basic Data" default.
func gptTypeGUID(apmType string) uuid.UUID {
	switch apmType {
	case "Apple_HFS":
		return uuid.MustParse("48465300-0000-11AA-AA11-00306543ECAC")
	default:
		return uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")
	}
}

func fillGapsGPT(sorted []PartitionRequest) []PartitionRequest {
	var out []PartitionRequest
	cursor := uint32(0)
	gapN := 0
	for _, e := range sorted {
		if e.StartBlock > cursor {
			out = append(out, PartitionRequest{
				StartBlock: cursor,
				BlockCount: e.StartBlock - cursor,
				Name:       fmt.Sprintf("Gap%d", gapN),
			})
			gapN++
		}
		out = append(out, e)
		cursor = e.StartBlock + e.BlockCount
	}
	return out
}

// BuildBackupTail renders the GPT backup tail written at the image's end
// (spec §4.11 step 5): a copy of the entry array followed by a patched
// header with current/backup LBAs swapped and the partition-array LBA
// pointing at the backup entries.
func BuildBackupTail(entries []byte, totalBlocks uint32) []byte {
	numEntries := uint32(len(entries) / gptEntrySize)
	entryArraySectors512 := (len(entries) + 511) / 512
	backupEntriesLBA512 := uint64(totalBlocks)*4 - uint64(entryArraySectors512) - 1

	out := make([]byte, len(entries)+512)
	copy(out, entries)

	header := out[len(entries) : len(entries)+gptHeaderSize]
	copy(header[0:8], []byte(gptSignature))
	binary.LittleEndian.PutUint32(header[8:12], gptRevision)
	binary.LittleEndian.PutUint32(header[12:16], gptHeaderSize)
	binary.LittleEndian.PutUint64(header[24:32], uint64(totalBlocks)*4-1) // current LBA = backup's own LBA
	binary.LittleEndian.PutUint64(header[32:40], 1)                      // backup LBA = primary header LBA
	binary.LittleEndian.PutUint64(header[72:80], backupEntriesLBA512)
	binary.LittleEndian.PutUint32(header[80:84], numEntries)
	binary.LittleEndian.PutUint32(header[84:88], gptEntrySize)
	binary.LittleEndian.PutUint32(header[88:92], CRC32(entries))

	binary.LittleEndian.PutUint32(header[16:20], 0)
	crc := CRC32(header[:gptHeaderSize])
	binary.LittleEndian.PutUint32(header[16:20], crc)
	return out
}
