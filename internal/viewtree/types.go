// Package viewtree builds one derived view tree (ECMA-119, Joliet,
// ISO 9660:1999, or HFS+) from a logicaltree.Arena: name translation and
// mangling, view-specific sort order, directory-record/path-table sizing,
// deep-path relocation, and hard-link inode assignment (spec §3, §4.1-§4.4).
//
// Grounded on the teacher's iso9660/layout.go and iso9660/records.go,
// generalized from a single hard-coded ECMA-119+Joliet pair driven
// straight off a filesystem scan into a view-parameterized builder that
// operates on an already-built logicaltree.Arena.
package viewtree

import (
	"github.com/discforge/isoforge/internal/logicaltree"
)

// View identifies which filesystem view a Tree was built for.
type View int

const (
	ViewECMA119 View = iota
	ViewJoliet
	ViewISO9660v2
	ViewHFSPlus
)

// Level is the ECMA-119 interchange level (ignored for non-ECMA119 views).
type Level int

const (
	Level1 Level = iota + 1
	Level2
	Level3
)

// NodeIndex indexes into a Tree's node arena. The zero value is the root.
type NodeIndex int

// Node is one view-tree entry: a translated name plus the layout fields
// the writer pipeline needs to emit directory records and path tables.
type Node struct {
	Logical logicaltree.NodeIndex
	IsDir   bool

	Parent   NodeIndex
	Children []NodeIndex

	Name       string // translated, mangled, final on-disk identifier (sans ";1")
	CmpKey     string // collation key used to sort/mangle (case-folded for HFS+)
	IsVersion1 bool   // append ";1" when marshalling (ECMA-119 level 1/2 files)

	// Placeholder/relocation bookkeeping (ECMA-119 deep-path relocation).
	IsPlaceholder   bool
	IsRelocated     bool      // true on the directory itself once moved under RelocationDir
	RelocatedTarget NodeIndex // for placeholders: the node's new home
	RealParent      NodeIndex // for relocated directories: original parent

	// Hard-link identity.
	InodeNumber uint32
	LinkCount   uint32

	// POSIX metadata and Rock Ridge source data, copied from the logical
	// node at build time (spec §4.1 "RR CE budget", §4.9) rather than kept
	// as a live arena reference, since relocation/mangling freely
	// reallocate and reorder the tree.
	PosixName  string
	Attrs      logicaltree.Attrs
	Attributes []logicaltree.Attribute
	IsSymlink  bool
	LinkTarget string

	// Layout, filled in during the layout pass (internal/viewtree/layout.go
	// and the writer pipeline that calls it).
	LBA           uint32
	ExtentBytes   uint32
	DirRecordSize int

	// FileSourceKey identifies the dedup bucket this node's data belongs to
	// (files only); the filesrc registry resolves it to an extent.
	FileSourceKey string
}

// Tree is one complete view tree: an arena of Nodes plus the options that
// shaped it.
type Tree struct {
	View    View
	Opts    Options
	Nodes   []Node
	nextPTN uint16 // next path-table directory number to assign
}

// Options configures name translation, relaxation, and relocation for one
// Tree build.
type Options struct {
	Level           Level
	Relax           uint8 // namecodec.Relaxation bitset, passed through opaquely
	AllowDeepPaths  bool
	OmitVersions    bool
	Hardlinks       bool
	RelocationDir   string // default "RR_MOVED"
	MaxPathChars    int    // 255 for ECMA-119, 240/-- for Joliet, 207 for v2
	MaxNameChars    int    // view-specific identifier length budget
	JolietLongNames bool

	// Rock Ridge / SUSP system-use emission (ECMA-119 view only; spec
	// §3 "hidden-mask RR bit", §4.1 "RR CE budget", §4.3, §6.3).
	RockRidge     bool
	RRIP110Compat bool // suppress AAIP entirely; RRIP-1.10 predates AAIP (spec "rrip-1.10-compat")
	RRIP110PXIno  bool // include PX's file-serial-number subfield (spec "rrip-1.10-px-ino")
	AAIP          bool // emit AAIP "AL" extended-attribute fields (spec §4.9)
	AAIPSUSP110   bool // stamp AAIP fields with the SUSP-1.10-era version byte (spec "aaip-susp-1.10")
}

// Root returns the root node's index (always 0).
func (t *Tree) Root() NodeIndex { return 0 }

// Node returns a pointer to the node at idx.
func (t *Tree) Node(idx NodeIndex) *Node { return &t.Nodes[idx] }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.Nodes) }

func (t *Tree) addChild(parent NodeIndex, n Node) NodeIndex {
	n.Parent = parent
	t.Nodes = append(t.Nodes, n)
	idx := NodeIndex(len(t.Nodes) - 1)
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, idx)
	return idx
}
