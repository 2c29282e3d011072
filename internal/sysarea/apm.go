package sysarea

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

const apmBlockSize = 512
const apmEntrySignature = 0x5450 // "PM" big-endian

// writeAPM writes an Apple Partition Map: a driver descriptor record at
// block 0, then one entry block per partition at blocks 1..n, sorted by
// start block with synthesised "GapN" entries filling gaps unless
// gapFill is disabled (spec §4.11 step 2).
func writeAPM(buf []byte, reqs []PartitionRequest, gapFill bool) error {
	sorted := make([]PartitionRequest, len(reqs))
	copy(sorted, reqs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartBlock < sorted[j].StartBlock })

	entries := sorted
	if gapFill {
		entries = fillGapsAPM(sorted)
	}

	// Driver descriptor record at block 0 (signature "ER", block size 512).
	ddr := buf[0:apmBlockSize]
	binary.BigEndian.PutUint16(ddr[0:2], 0x4552) // "ER"
	binary.BigEndian.PutUint16(ddr[2:4], apmBlockSize)

	total := len(entries) + 1 // + the map's own self-describing entry
	for i, e := range entries {
		blockOff := (i + 1) * apmBlockSize
		if blockOff+apmBlockSize > len(buf) {
			return errors.Wrap(isoerr.ErrLayout, "sysarea: APM entries overflow system area")
		}
		entry := buf[blockOff : blockOff+apmBlockSize]
		binary.BigEndian.PutUint16(entry[0:2], apmEntrySignature)
		binary.BigEndian.PutUint32(entry[4:8], uint32(total))
		binary.BigEndian.PutUint32(entry[8:12], e.StartBlock)
		binary.BigEndian.PutUint32(entry[12:16], e.BlockCount)
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("Gap%d", i)
		}
		copy(entry[16:48], []byte(name))
		typ := e.APMType
		if typ == "" {
			typ = "Apple_Free"
		}
		copy(entry[48:80], []byte(typ))
	}
	return nil
}

// fillGapsAPM inserts synthesised "GapN" entries covering any space
// between consecutive sorted partitions.
func fillGapsAPM(sorted []PartitionRequest) []PartitionRequest {
	var out []PartitionRequest
	cursor := uint32(0)
	gapN := 0
	for _, e := range sorted {
		if e.StartBlock > cursor {
			out = append(out, PartitionRequest{
				StartBlock: cursor,
				BlockCount: e.StartBlock - cursor,
				Name:       fmt.Sprintf("Gap%d", gapN),
				APMType:    "Apple_Free",
			})
			gapN++
		}
		out = append(out, e)
		cursor = e.StartBlock + e.BlockCount
	}
	return out
}
