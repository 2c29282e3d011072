package writerpipe

import (
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/filesrc"
	"github.com/discforge/isoforge/internal/isoerr"
	"github.com/discforge/isoforge/internal/viewtree"
)

// TreeWriter is the shared implementation backing the ECMA-119, Joliet,
// and ISO 9660:1999 writers: each owns one viewtree.Tree and produces the
// same shape of output (path tables, directory listings, one volume
// descriptor), differing only in which descriptor-marshaling function
// wraps the shared integer/timestamp layout (spec §4.5/§4.6).
type TreeWriter struct {
	kind string
	Tree *viewtree.Tree
	Opts VolumeDescOpts

	Files *filesrc.Registry

	ptNums     map[viewtree.NodeIndex]uint16
	drSizes    map[viewtree.NodeIndex]int
	dirExtents map[viewtree.NodeIndex]uint32
	pathTableL []byte
	pathTableM []byte
	startLBA   uint32
	nextLBA    uint32

	lPT1, mPT1 uint32
	lPT2, mPT2 uint32

	renderVD func(tw *TreeWriter) ([]byte, error)
}

// VolumeDescOpts carries the descriptive strings shared by every volume
// descriptor (spec §6.3's per-view identifier fields).
type VolumeDescOpts struct {
	SystemID       string
	VolumeID       string
	VolumeSetID    string
	PublisherID    string
	DataPreparerID string
	ApplicationID  string
	EscapeSequence [3]byte // Joliet only
	Now            time.Time
}

// NewECMA119Writer builds the TreeWriter for the mandatory primary view.
func NewECMA119Writer(tree *viewtree.Tree, files *filesrc.Registry, opts VolumeDescOpts) *TreeWriter {
	tw := &TreeWriter{kind: "ecma119", Tree: tree, Opts: opts, Files: files}
	tw.renderVD = renderPrimaryVD
	return tw
}

// NewJolietWriter builds the TreeWriter for the Joliet supplementary view.
func NewJolietWriter(tree *viewtree.Tree, files *filesrc.Registry, opts VolumeDescOpts) *TreeWriter {
	tw := &TreeWriter{kind: "joliet", Tree: tree, Opts: opts, Files: files}
	tw.renderVD = renderJolietVD
	return tw
}

// NewISO1999Writer builds the TreeWriter for the ISO 9660:1999 enhanced
// view (same layout as ECMA-119, VD type 2 with version byte 2 per spec
// §6.2 "2 CD001 1/2 (SVD/EVD)").
func NewISO1999Writer(tree *viewtree.Tree, files *filesrc.Registry, opts VolumeDescOpts) *TreeWriter {
	tw := &TreeWriter{kind: "iso1999", Tree: tree, Opts: opts, Files: files}
	tw.renderVD = renderEnhancedVD
	return tw
}

func (tw *TreeWriter) Name() string { return tw.kind }

// ComputeDataBlocks assigns path-table numbers, directory-record sizes,
// directory extents, and directory LBAs in pre-order (spec §4.2's
// "directories in pre-order traversal" pass 1 rule), then reserves the
// sectors for both path tables (first and second/backup copy), matching
// the teacher's calculateLayout ordering.
func (tw *TreeWriter) ComputeDataBlocks(cursor uint32) (uint32, error) {
	tw.startLBA = cursor
	tw.ptNums = viewtree.AssignPathTableNumbers(tw.Tree)
	tw.drSizes = viewtree.ComputeSizes(tw.Tree)
	tw.dirExtents = viewtree.ComputeDirExtents(tw.Tree, tw.drSizes)

	// Path tables are placed before directory content, as the teacher's
	// builder writes them in that relative order.
	tw.pathTableL, tw.pathTableM = viewtree.BuildPathTables(tw.Tree, tw.ptNums)
	ptSectors := viewtree.PathTableSectors(len(tw.pathTableL))

	lba := cursor
	lPT1, mPT1 := lba, lba+ptSectors
	lba += 2 * ptSectors // two copies each of L and M would double this; spec keeps one copy pair + backup
	lPT2, mPT2 := lba, lba+ptSectors
	lba += 2 * ptSectors

	next := viewtree.AssignDirLBAs(tw.Tree, tw.dirExtents, lba)

	tw.lPT1, tw.mPT1, tw.lPT2, tw.mPT2 = lPT1, mPT1, lPT2, mPT2
	tw.nextLBA = next
	return next, nil
}

func (tw *TreeWriter) WriteVolDesc() ([]byte, error) {
	if tw.renderVD == nil {
		return nil, nil
	}
	return tw.renderVD(tw)
}

// WriteData emits both path tables then every directory's listing, in
// path-table order, resolving file LBAs/sizes through the file-source
// registry (spec §4.2/§4.5).
func (tw *TreeWriter) WriteData(w io.Writer) error {
	if _, err := w.Write(padToSectors(tw.pathTableL)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "writerpipe: writing L path table")
	}
	if _, err := w.Write(padToSectors(tw.pathTableM)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "writerpipe: writing M path table")
	}
	if _, err := w.Write(padToSectors(tw.pathTableL)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "writerpipe: writing L path table backup")
	}
	if _, err := w.Write(padToSectors(tw.pathTableM)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "writerpipe: writing M path table backup")
	}

	lbaOf := func(idx viewtree.NodeIndex) uint32 {
		key := tw.Tree.Node(idx).FileSourceKey
		if sections := tw.Files.Sections(key); len(sections) > 0 {
			return sections[0].Block
		}
		return 0
	}
	sizeOf := func(idx viewtree.NodeIndex) uint32 {
		key := tw.Tree.Node(idx).FileSourceKey
		if sections := tw.Files.Sections(key); len(sections) > 0 {
			return sections[0].Size
		}
		return 0
	}

	return tw.walkWriteDirs(w, tw.Tree.Root(), lbaOf, sizeOf)
}

func (tw *TreeWriter) walkWriteDirs(w io.Writer, dir viewtree.NodeIndex, lbaOf, sizeOf func(viewtree.NodeIndex) uint32) error {
	listing, err := viewtree.BuildDirectoryListing(tw.Tree, dir, tw.Opts.Now, lbaOf, sizeOf)
	if err != nil {
		return err
	}
	if _, err := w.Write(padToSectors(listing)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "writerpipe: writing directory listing")
	}
	for _, c := range tw.Tree.Node(dir).Children {
		if tw.Tree.Node(c).IsDir {
			if err := tw.walkWriteDirs(w, c, lbaOf, sizeOf); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tw *TreeWriter) FreeData() error { return nil }

func padToSectors(data []byte) []byte {
	rem := len(data) % SectorSize
	if rem == 0 {
		return data
	}
	out := make([]byte, len(data)+(SectorSize-rem))
	copy(out, data)
	return out
}

func renderPrimaryVD(tw *TreeWriter) ([]byte, error) {
	root := tw.Tree.Node(tw.Tree.Root())
	rootDR := viewtree.MarshalDirectoryRecord(viewtree.DirectoryRecordFields{
		LBA: root.LBA, DataLength: root.ExtentBytes, RecordingTime: tw.Opts.Now,
		Flags: viewtree.DirFlagDirectory,
	}, viewtree.IdentifierBytes(tw.Tree.View, "", true, false), viewtree.DotSystemUse(tw.Tree, tw.Tree.Root()))

	return MarshalPrimaryLike(PrimaryDescriptorFields{
		VDType: vdTypePrimary, Version: 1,
		SystemID: tw.Opts.SystemID, VolumeID: tw.Opts.VolumeID,
		VolumeSpaceSize: tw.nextLBA,
		PathTableSize:   uint32(len(tw.pathTableL)),
		LPathTableLBA:   tw.lPT1, LPathTableLBA2: tw.lPT2,
		MPathTableLBA: tw.mPT1, MPathTableLBA2: tw.mPT2,
		RootDirRecord:  rootDR,
		VolumeSetID:    tw.Opts.VolumeSetID,
		PublisherID:    tw.Opts.PublisherID,
		DataPreparerID: tw.Opts.DataPreparerID,
		ApplicationID:  tw.Opts.ApplicationID,
		Now:            tw.Opts.Now,
	}), nil
}

func renderEnhancedVD(tw *TreeWriter) ([]byte, error) {
	root := tw.Tree.Node(tw.Tree.Root())
	rootDR := viewtree.MarshalDirectoryRecord(viewtree.DirectoryRecordFields{
		LBA: root.LBA, DataLength: root.ExtentBytes, RecordingTime: tw.Opts.Now,
		Flags: viewtree.DirFlagDirectory,
	}, viewtree.IdentifierBytes(tw.Tree.View, "", true, false), viewtree.DotSystemUse(tw.Tree, tw.Tree.Root()))

	return MarshalPrimaryLike(PrimaryDescriptorFields{
		VDType: vdTypeSupplementary, Version: 2,
		SystemID: tw.Opts.SystemID, VolumeID: tw.Opts.VolumeID,
		VolumeSpaceSize: tw.nextLBA,
		PathTableSize:   uint32(len(tw.pathTableL)),
		LPathTableLBA:   tw.lPT1, LPathTableLBA2: tw.lPT2,
		MPathTableLBA: tw.mPT1, MPathTableLBA2: tw.mPT2,
		RootDirRecord:  rootDR,
		VolumeSetID:    tw.Opts.VolumeSetID,
		PublisherID:    tw.Opts.PublisherID,
		DataPreparerID: tw.Opts.DataPreparerID,
		ApplicationID:  tw.Opts.ApplicationID,
		Now:            tw.Opts.Now,
	}), nil
}

func renderJolietVD(tw *TreeWriter) ([]byte, error) {
	root := tw.Tree.Node(tw.Tree.Root())
	rootDR := viewtree.MarshalDirectoryRecord(viewtree.DirectoryRecordFields{
		LBA: root.LBA, DataLength: root.ExtentBytes, RecordingTime: tw.Opts.Now,
		Flags: viewtree.DirFlagDirectory,
	}, viewtree.IdentifierBytes(tw.Tree.View, "", true, false), viewtree.DotSystemUse(tw.Tree, tw.Tree.Root()))

	return MarshalSupplementary(JolietDescriptorFields{
		SystemID: tw.Opts.SystemID, VolumeID: tw.Opts.VolumeID,
		VolumeSpaceSize: tw.nextLBA,
		PathTableSize:   uint32(len(tw.pathTableL)),
		LPathTableLBA:   tw.lPT1, LPathTableLBA2: tw.lPT2,
		MPathTableLBA: tw.mPT1, MPathTableLBA2: tw.mPT2,
		RootDirRecord:  rootDR,
		EscapeSequence: tw.Opts.EscapeSequence,
		Now:            tw.Opts.Now,
	}), nil
}
