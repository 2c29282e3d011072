package viewtree

import (
	"sort"

	"github.com/discforge/isoforge/internal/logicaltree"
)

// identityKey is the hard-link bucketing key (spec §4.4): nodes sharing it
// share an inode number and a link count.
type identityKey struct {
	fsID, devID, srcIno uint64
	attrHash            uint64
	xattrHash           uint64
	fileSourceKey        string
}

// AssignHardlinks buckets t's file nodes by identity and mints a fresh
// 32-bit inode number per bucket, starting from firstInode (an
// image-scoped counter supplied by the caller, per spec §4.4 step 4).
// Buckets are visited in tree order so inode assignment is deterministic
// across runs of the same tree.
func AssignHardlinks(t *Tree, arena *logicaltree.Arena, enabled bool, firstInode uint32) uint32 {
	type entry struct {
		idx NodeIndex
		key identityKey
	}
	var entries []entry

	var walk func(idx NodeIndex)
	walk = func(idx NodeIndex) {
		for _, c := range t.Node(idx).Children {
			node := t.Node(c)
			if !node.IsDir && !node.IsPlaceholder {
				key := identityOf(arena, node.Logical)
				if !enabled {
					// force every node into its own bucket by keying on its
					// own tree index, which is unique by construction
					key.fileSourceKey = key.fileSourceKey + "#" + nodeIdxString(c)
				}
				entries = append(entries, entry{idx: c, key: key})
			}
			if node.IsDir {
				walk(c)
			}
		}
	}
	walk(t.Root())

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].key.less(entries[j].key)
	})

	next := firstInode
	i := 0
	for i < len(entries) {
		j := i + 1
		for j < len(entries) && entries[j].key == entries[i].key {
			j++
		}
		bucketSize := uint32(j - i)
		inode := next
		next++
		for k := i; k < j; k++ {
			n := t.Node(entries[k].idx)
			n.InodeNumber = inode
			n.LinkCount = bucketSize
		}
		i = j
	}
	return next
}

func identityOf(arena *logicaltree.Arena, logIdx logicaltree.NodeIndex) identityKey {
	node := arena.Node(logIdx)
	var ident logicaltree.Identity
	if node.Stream != nil {
		ident, _ = node.Stream.Identity()
	}
	return identityKey{
		fsID:   ident.FSID,
		devID:  ident.DevID,
		srcIno: ident.SrcIno,
		attrHash: hashAttrs(node),
	}
}

func hashAttrs(node *logicaltree.Node) uint64 {
	var h uint64 = 1469598103934665603 // FNV offset basis
	mix := func(v uint64) {
		h ^= v
		h *= 1099511628211 // FNV prime
	}
	mix(uint64(node.Attrs.Mode))
	mix(uint64(node.Attrs.UID))
	mix(uint64(node.Attrs.GID))
	mix(uint64(node.Attrs.Mtime.Unix()))
	for _, a := range node.Attributes {
		for _, b := range []byte(a.Name) {
			mix(uint64(b))
		}
	}
	return h
}

func (k identityKey) less(o identityKey) bool {
	if k.fsID != o.fsID {
		return k.fsID < o.fsID
	}
	if k.devID != o.devID {
		return k.devID < o.devID
	}
	if k.srcIno != o.srcIno {
		return k.srcIno < o.srcIno
	}
	if k.attrHash != o.attrHash {
		return k.attrHash < o.attrHash
	}
	if k.xattrHash != o.xattrHash {
		return k.xattrHash < o.xattrHash
	}
	return k.fileSourceKey < o.fileSourceKey
}

func nodeIdxString(idx NodeIndex) string {
	const digits = "0123456789"
	if idx == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	n := int(idx)
	for n > 0 {
		i--
		buf[i] = digits[n%10]
		n /= 10
	}
	return string(buf[i:])
}
