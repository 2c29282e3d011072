package hfsplus

import (
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/filesrc"
	"github.com/discforge/isoforge/internal/isoerr"
	"github.com/discforge/isoforge/internal/viewtree"
)

// SectorSize mirrors writerpipe.SectorSize; this package does not import
// writerpipe to avoid a cycle (writerpipe would need to import hfsplus to
// wire it in, which internal/image does instead).
const SectorSize = 2048

// Writer implements the writerpipe.Writer capability set for the HFS+
// volume embedded inside an APM/GPT "Apple_HFS" partition (spec §4.6). It
// contributes no ECMA-119 volume descriptor of its own — the partition
// it lives in is described by internal/sysarea instead — so WriteVolDesc
// always returns nil.
type Writer struct {
	Tree  *viewtree.Tree
	Files *filesrc.Registry
	Now   time.Time
	Bless BlessTable

	startLBA    uint32
	volHeaderLBA uint32
	catalogLBA  uint32
	catalogSize int
	extentsLBA  uint32
	extentsSize int
	bitmapLBA   uint32
	bitmapSize  int
	altHeaderLBA uint32
	totalBlocks uint32

	catalogBytes []byte
	extentsBytes []byte
	bitmapBytes  []byte
	headerBytes  []byte
}

func NewWriter(tree *viewtree.Tree, files *filesrc.Registry, now time.Time) *Writer {
	return &Writer{Tree: tree, Files: files, Now: now}
}

func (w *Writer) Name() string { return "hfsplus" }

// ComputeDataBlocks lays out, in order: 2 reserved boot blocks, the
// primary volume header, the catalog B-tree, the extents-overflow
// B-tree, the allocation bitmap, the alternate volume header, and one
// reserved tail block (spec §4.6 step 4's write order, adapted to this
// writer's own block cursor rather than a fixed-size partition).
func (w *Writer) ComputeDataBlocks(cursor uint32) (uint32, error) {
	w.startLBA = cursor
	lba := cursor + 2 // boot blocks
	w.volHeaderLBA = lba
	lba++

	cnids := AssignCNIDs(w.Tree)
	now := HFSTime(w.Now)
	dataOf := func(idx viewtree.NodeIndex) (start, blocks uint32, size uint64) {
		key := w.Tree.Node(idx).FileSourceKey
		sections := w.Files.Sections(key)
		if len(sections) == 0 {
			return 0, 0, 0
		}
		s := sections[0]
		return s.Block, (s.Size + SectorSize - 1) / SectorSize, uint64(s.Size)
	}
	entries := BuildEntries(w.Tree, cnids, now, dataOf)
	records := BuildLeafRecords(entries)
	w.catalogBytes = BuildCatalogBTree(records)
	w.catalogSize = len(w.catalogBytes)

	w.catalogLBA = lba
	catalogBlocks := uint32((w.catalogSize + SectorSize - 1) / SectorSize)
	lba += catalogBlocks

	w.extentsBytes = BuildEmptyExtentsBTree()
	w.extentsSize = len(w.extentsBytes)
	w.extentsLBA = lba
	lba += uint32((w.extentsSize + SectorSize - 1) / SectorSize)

	// Provisional total, refined below once the bitmap's own size
	// (which depends on the total) is known — one fixed-point iteration
	// is enough since the bitmap grows far slower than the image.
	provisionalTotal := lba + 2
	bitmapBlocks := (provisionalTotal + 8*SectorSize - 2) / (8*SectorSize - 1)
	if bitmapBlocks == 0 {
		bitmapBlocks = 1
	}
	w.bitmapLBA = lba
	lba += bitmapBlocks

	w.altHeaderLBA = lba
	lba++
	lba++ // reserved tail block

	w.totalBlocks = lba - cursor
	return lba, nil
}

func (w *Writer) WriteVolDesc() ([]byte, error) { return nil, nil }

// WriteData emits, in LBA order: boot blocks, primary volume header,
// catalog B-tree, extents B-tree, allocation bitmap, alternate volume
// header (spec §4.6 step 4).
func (w *Writer) WriteData(out io.Writer) error {
	if _, err := out.Write(make([]byte, 2*SectorSize)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "hfsplus: writing boot blocks")
	}

	now := HFSTime(w.Now)
	header := &VolumeHeader{
		CreateDate: now, ModifyDate: now, BackupDate: 0, CheckedDate: now,
		BlockSize: SectorSize, TotalBlocks: w.totalBlocks,
		NextAllocation: w.bitmapLBA, NextCatalogID: firstUserCatalogID,
		AllocationFile: ForkData{LogicalSize: uint64(bitmapBytesLen(w.totalBlocks)), ClumpSize: SectorSize, TotalBlocks: bitmapBlocksLen(w.totalBlocks), StartBlock: w.bitmapLBA, BlockCount: bitmapBlocksLen(w.totalBlocks)},
		ExtentsFile:    ForkData{LogicalSize: uint64(w.extentsSize), ClumpSize: SectorSize, TotalBlocks: sectorsFor(w.extentsSize), StartBlock: w.extentsLBA, BlockCount: sectorsFor(w.extentsSize)},
		CatalogFile:    ForkData{LogicalSize: uint64(w.catalogSize), ClumpSize: SectorSize, TotalBlocks: sectorsFor(w.catalogSize), StartBlock: w.catalogLBA, BlockCount: sectorsFor(w.catalogSize)},
	}
	w.headerBytes = header.Marshal()
	w.Bless.Apply(w.headerBytes)
	if _, err := out.Write(padSector(w.headerBytes)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "hfsplus: writing volume header")
	}

	if _, err := out.Write(padSector(w.catalogBytes)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "hfsplus: writing catalog B-tree")
	}
	if _, err := out.Write(padSector(w.extentsBytes)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "hfsplus: writing extents B-tree")
	}

	w.bitmapBytes = AllocationBitmap(w.totalBlocks, [][2]uint32{
		{0, 2 + 1 + sectorsFor(w.catalogSize) + sectorsFor(w.extentsSize) + bitmapBlocksLen(w.totalBlocks) + 2},
	})
	if _, err := out.Write(padSector(w.bitmapBytes)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "hfsplus: writing allocation bitmap")
	}

	if _, err := out.Write(padSector(w.headerBytes)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "hfsplus: writing alternate volume header")
	}
	if _, err := out.Write(make([]byte, SectorSize)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "hfsplus: writing reserved tail block")
	}
	return nil
}

func (w *Writer) FreeData() error { return nil }

// PartitionRange returns the block range this writer reserved (valid only
// after ComputeDataBlocks has run), for an orchestrator building the
// system area's Apple_HFS partition entry around it.
func (w *Writer) PartitionRange() (start, blocks uint32) { return w.startLBA, w.totalBlocks }

func sectorsFor(n int) uint32 { return uint32((n + SectorSize - 1) / SectorSize) }

func bitmapBlocksLen(totalBlocks uint32) uint32 {
	bytes := (totalBlocks + 7) / 8
	return sectorsFor(int(bytes))
}

func bitmapBytesLen(totalBlocks uint32) uint32 { return (totalBlocks + 7) / 8 }

func padSector(data []byte) []byte {
	rem := len(data) % SectorSize
	if rem == 0 {
		return data
	}
	out := make([]byte, len(data)+(SectorSize-rem))
	copy(out, data)
	return out
}
