// Package logicaltree holds the in-memory logical tree that drives image
// production: directories, files, symlinks, specials, and a boot-catalog
// placeholder, exactly as handed down from a higher-level image-model
// layer. Nodes are arena-owned rather than linked by pointers, so
// relocation and re-parenting during view-tree construction only ever
// rewrites an index (see DESIGN.md, "cyclic ownership" decision).
package logicaltree

import (
	"time"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

// Kind enumerates the logical node kinds.
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
	KindSymlink
	KindSpecial
	KindBootCatalogPlaceholder
)

// View identifies one of the filesystem views a node can be hidden from.
type View int

const (
	ViewECMA119 View = iota
	ViewJoliet
	ViewHFSPlus
	ViewFAT
	ViewRockRidge
	viewCount
)

// HiddenMask is a per-view hidden bitset, one bit per View.
type HiddenMask uint8

func (m HiddenMask) Hidden(v View) bool { return m&(1<<uint(v)) != 0 }

func (m *HiddenMask) SetHidden(v View, hidden bool) {
	if hidden {
		*m |= 1 << uint(v)
	} else {
		*m &^= 1 << uint(v)
	}
}

// Attrs holds the POSIX metadata carried by every logical node.
type Attrs struct {
	Mode  uint32
	UID   uint32
	GID   uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// Identity is the (fs_id, dev_id, source_ino) tuple used for file-source
// dedup and hard-link bucketing (spec §4.4).
type Identity struct {
	FSID   uint64
	DevID  uint64
	SrcIno uint64
}

// ContentStream is the narrow interface a file node's data source exposes
// to the writer pipeline: open/read/close, a repeatable size query, and an
// identity for dedup, mirroring the external stream-reader collaborator
// the core treats as opaque.
type ContentStream interface {
	Open() error
	Read(p []byte) (int, error)
	Close() error
	Size() (int64, error)
	Identity() (Identity, error)
}

// Attribute is one arbitrary (name, value) pair in a node's extensible
// attribute bag (spec §3, consumed by the AAIP codec).
type Attribute struct {
	Name  string
	Value []byte
}

// FinderInfo carries the HFS+ type/creator codes for a node, when set.
type FinderInfo struct {
	Type    [4]byte
	Creator [4]byte
	Valid   bool
}

// NodeIndex is an arena-relative reference to a Node. The zero value
// refers to the root.
type NodeIndex int

const NoParent NodeIndex = -1

// Node is one logical-tree entry. Nodes never own their parent or
// children by pointer; all relationships are NodeIndex values resolved
// through the owning Arena.
type Node struct {
	Kind Kind
	Name string

	Parent   NodeIndex
	Children []NodeIndex

	Attrs      Attrs
	Hidden     HiddenMask
	Attributes []Attribute
	Finder     FinderInfo

	Stream     ContentStream // files only
	LinkTarget string        // symlinks only
	Rdev       uint64        // specials only
}

// Arena owns every logical node created for one image build. It is the
// single allocation point for NodeIndex values; callers hold indices, not
// pointers, so the tree can be freely re-walked without aliasing concerns.
type Arena struct {
	nodes []Node
}

// NewArena creates an arena with a root directory node already inserted at
// index 0, parented to itself per the teacher's root-indexing convention.
func NewArena() *Arena {
	a := &Arena{}
	a.nodes = append(a.nodes, Node{
		Kind:   KindDirectory,
		Name:   "",
		Parent: 0,
	})
	return a
}

// Root returns the root node's index (always 0).
func (a *Arena) Root() NodeIndex { return 0 }

// Node returns a pointer into the arena's backing slice. The pointer is
// invalidated by any subsequent AddChild call that triggers a reallocation;
// callers that need a stable reference across mutations should re-resolve
// by NodeIndex.
func (a *Arena) Node(idx NodeIndex) *Node { return &a.nodes[idx] }

// Len returns the number of nodes in the arena, including the root.
func (a *Arena) Len() int { return len(a.nodes) }

// AddChild appends a new node as a child of parent and returns its index.
func (a *Arena) AddChild(parent NodeIndex, n Node) (NodeIndex, error) {
	if int(parent) < 0 || int(parent) >= len(a.nodes) {
		return 0, errors.Wrapf(isoerr.ErrInvalidInput, "logicaltree: parent index %d out of range", parent)
	}
	n.Parent = parent
	a.nodes = append(a.nodes, n)
	idx := NodeIndex(len(a.nodes) - 1)
	a.nodes[parent].Children = append(a.nodes[parent].Children, idx)
	return idx, nil
}

// Reparent moves idx from its current parent's child list to newParent's,
// rewriting only index fields — the arena-ownership re-parenting operation
// deep relocation and HFS+ symlink-rewrite rely on.
func (a *Arena) Reparent(idx, newParent NodeIndex) error {
	if int(idx) < 0 || int(idx) >= len(a.nodes) {
		return errors.Wrapf(isoerr.ErrInvalidInput, "logicaltree: node index %d out of range", idx)
	}
	if int(newParent) < 0 || int(newParent) >= len(a.nodes) {
		return errors.Wrapf(isoerr.ErrInvalidInput, "logicaltree: parent index %d out of range", newParent)
	}
	old := a.nodes[idx].Parent
	oldChildren := a.nodes[old].Children
	for i, c := range oldChildren {
		if c == idx {
			a.nodes[old].Children = append(oldChildren[:i], oldChildren[i+1:]...)
			break
		}
	}
	a.nodes[idx].Parent = newParent
	a.nodes[newParent].Children = append(a.nodes[newParent].Children, idx)
	return nil
}

// Depth returns idx's distance from the root (root = 0), matching the
// tree-builder contract's "current depth (root = 1)" convention when
// callers add one.
func (a *Arena) Depth(idx NodeIndex) int {
	depth := 0
	for idx != 0 {
		idx = a.nodes[idx].Parent
		depth++
	}
	return depth
}

// Path renders the slash-separated logical path to idx from the root,
// without a leading or trailing slash component beyond the root itself.
func (a *Arena) Path(idx NodeIndex) string {
	var parts []string
	for idx != 0 {
		parts = append([]string{a.nodes[idx].Name}, parts...)
		idx = a.nodes[idx].Parent
	}
	if len(parts) == 0 {
		return "/"
	}
	out := ""
	for _, p := range parts {
		out += "/" + p
	}
	return out
}

// Walk performs a depth-first, pre-order walk starting at idx, invoking fn
// with the node's index and accumulated depth (root call depth = 0). Walk
// stops and returns fn's error immediately if fn returns non-nil.
func (a *Arena) Walk(idx NodeIndex, fn func(idx NodeIndex, depth int) error) error {
	return a.walk(idx, 0, fn)
}

func (a *Arena) walk(idx NodeIndex, depth int, fn func(NodeIndex, int) error) error {
	if err := fn(idx, depth); err != nil {
		return err
	}
	for _, c := range a.nodes[idx].Children {
		if err := a.walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}
