package viewtree

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

// SectorSize is the logical block size used throughout the core, per
// spec §1.
const SectorSize = 2048

// pathTableDirNum is tracked out-of-band (not on Node) because it is only
// meaningful during layout; AssignPathTableNumbers fills ptNums, indexed
// by NodeIndex.
type Layout struct {
	t      *Tree
	ptNums map[NodeIndex]uint16

	DirExtentBytes map[NodeIndex]uint32
	DirRecordSizes map[NodeIndex]int // this node's own DR size as a child entry

	PathTableL []byte
	PathTableM []byte
}

// AssignPathTableNumbers numbers every directory in pre-order (root = 1),
// matching the L-Type path table's required ordering (ECMA-119 §9.4) and
// the teacher's scanDirectoryRecursive numbering scheme.
func AssignPathTableNumbers(t *Tree) map[NodeIndex]uint16 {
	nums := map[NodeIndex]uint16{t.Root(): 1}
	next := uint16(2)
	var walk func(idx NodeIndex)
	walk = func(idx NodeIndex) {
		for _, c := range t.Node(idx).Children {
			if !t.Node(c).IsDir {
				continue
			}
			nums[c] = next
			next++
			walk(c)
		}
	}
	walk(t.Root())
	return nums
}

// ComputeSizes fills in each node's own directory-record size (as it will
// appear in its parent's listing) and, for directories, the total
// byte size of that directory's listing extent, rounded up to SectorSize
// (spec §4.2).
func ComputeSizes(t *Tree) map[NodeIndex]int {
	drSizes := make(map[NodeIndex]int, t.Len())
	var walk func(idx NodeIndex)
	walk = func(idx NodeIndex) {
		node := t.Node(idx)
		isRoot := idx == t.Root()
		ident := IdentifierBytes(t.View, node.Name, isRoot, false)
		drSizes[idx] = DirRecordSizeWithSystemUse(ident, ChildSystemUse(t, idx))
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(t.Root())
	return drSizes
}

// ComputeDirExtents sums self ("."), parent (".."), and every child's
// directory-record size for each directory, rounding up to SectorSize.
func ComputeDirExtents(t *Tree, drSizes map[NodeIndex]int) map[NodeIndex]uint32 {
	extents := make(map[NodeIndex]uint32, t.Len())
	dotIdent := IdentifierBytes(t.View, "", true, false)
	dotDotIdent := IdentifierBytes(t.View, "", false, true)

	var walk func(idx NodeIndex)
	walk = func(idx NodeIndex) {
		node := t.Node(idx)
		if node.IsDir {
			dotSize := DirRecordSizeWithSystemUse(dotIdent, DotSystemUse(t, idx))
			dotDotSize := DirRecordSizeWithSystemUse(dotDotIdent, DotDotSystemUse(t, idx))
			total := dotSize + dotDotSize
			for _, c := range node.Children {
				total += drSizes[c]
			}
			sectors := (uint32(total) + SectorSize - 1) / SectorSize
			if sectors == 0 {
				sectors = 1
			}
			extents[idx] = sectors * SectorSize
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(t.Root())
	return extents
}

// AssignDirLBAs assigns LBAs to every directory's listing extent in
// pre-order traversal (spec §4.2 "LBA assignment in pass 1: directories
// in pre-order traversal..."), returning the next free LBA.
func AssignDirLBAs(t *Tree, extents map[NodeIndex]uint32, startLBA uint32) uint32 {
	lba := startLBA
	var walk func(idx NodeIndex)
	walk = func(idx NodeIndex) {
		node := t.Node(idx)
		if node.IsDir {
			node.LBA = lba
			node.ExtentBytes = extents[idx]
			lba += extents[idx] / SectorSize
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(t.Root())
	return lba
}

// BuildPathTables renders the L-Type and M-Type path tables for t, in
// directory-number order, after AssignPathTableNumbers and AssignDirLBAs
// have run.
func BuildPathTables(t *Tree, ptNums map[NodeIndex]uint16) (l, m []byte) {
	type dirRef struct {
		idx    NodeIndex
		ptNum  uint16
		parent uint16
	}
	var dirs []dirRef
	for idx := range ptNums {
		parentPT := uint16(1)
		if idx != t.Root() {
			parentPT = ptNums[t.Node(idx).Parent]
		}
		dirs = append(dirs, dirRef{idx: idx, ptNum: ptNums[idx], parent: parentPT})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].ptNum < dirs[j].ptNum })

	var lBuf, mBuf []byte
	for _, d := range dirs {
		node := t.Node(d.idx)
		var ident []byte
		if d.idx == t.Root() {
			ident = []byte{0x00}
		} else {
			ident = IdentifierBytes(t.View, node.Name, false, false)
		}
		lBuf = append(lBuf, MarshalPathTableRecord(ident, node.LBA, d.parent, false)...)
		mBuf = append(mBuf, MarshalPathTableRecord(ident, node.LBA, d.parent, true)...)
	}
	return lBuf, mBuf
}

// PathTableSectors returns the sector count a path table of byteLen bytes
// occupies.
func PathTableSectors(byteLen int) uint32 {
	return (uint32(byteLen) + SectorSize - 1) / SectorSize
}

// BuildDirectoryListing renders the complete directory-record bytes for
// one directory: "." then ".." then every child, sorted by the view's
// collation (spec §4.2/§4.5). Children's LBAs must already be assigned —
// for files, lba/size are supplied via lbaOf/sizeOf, which the caller
// resolves through the filesrc registry.
func BuildDirectoryListing(t *Tree, dir NodeIndex, now time.Time, lbaOf func(NodeIndex) uint32, sizeOf func(NodeIndex) uint32) ([]byte, error) {
	node := t.Node(dir)
	if !node.IsDir {
		return nil, errors.Wrapf(isoerr.ErrInvalidInput, "viewtree: node %d is not a directory", dir)
	}

	var out []byte
	selfLBA, selfSize := node.LBA, node.ExtentBytes
	out = append(out, MarshalDirectoryRecord(DirectoryRecordFields{
		LBA: selfLBA, DataLength: selfSize, RecordingTime: now,
		Flags: DirFlagDirectory,
	}, IdentifierBytes(t.View, "", true, false), DotSystemUse(t, dir))...)

	parent := node.Parent
	if dir == t.Root() {
		parent = t.Root()
	}
	parentNode := t.Node(parent)
	out = append(out, MarshalDirectoryRecord(DirectoryRecordFields{
		LBA: parentNode.LBA, DataLength: parentNode.ExtentBytes, RecordingTime: now,
		Flags: DirFlagDirectory,
	}, IdentifierBytes(t.View, "", false, true), DotDotSystemUse(t, dir))...)

	for _, c := range node.Children {
		child := t.Node(c)
		flags := byte(0)
		lba, size := lbaOf(c), sizeOf(c)
		if child.IsDir {
			flags |= DirFlagDirectory
			lba, size = child.LBA, child.ExtentBytes
		}
		out = append(out, MarshalDirectoryRecord(DirectoryRecordFields{
			LBA: lba, DataLength: size, RecordingTime: now, Flags: flags,
		}, IdentifierBytes(t.View, child.Name, false, false), ChildSystemUse(t, c))...)
	}
	return out, nil
}
