package hfsplus

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/discforge/isoforge/internal/namecodec"
	"github.com/discforge/isoforge/internal/viewtree"
)

const (
	kBTLeafNode   int8 = -1
	kBTIndexNode  int8 = 0
	kBTHeaderNode int8 = 1
)

const (
	kHFSPlusFolderRecord       = 1
	kHFSPlusFileRecord         = 2
	kHFSPlusFolderThreadRecord = 3
	kHFSPlusFileThreadRecord   = 4
)

const rootParentID = 1
const rootFolderID = 2
const firstUserCatalogID = 16

// CatalogEntry is one flattened (folder or file) node ready for catalog
// record emission, built from a viewtree.Tree with ViewHFSPlus (spec
// §4.6 step 1: "Flattens directories and files to leaf records ordered
// by (parent_cnid, case-fold name)").
type CatalogEntry struct {
	CNID       uint32
	ParentCNID uint32
	Name       string // decomposed (NFD) display name
	CmpKey     string // case-fold comparison key
	IsFolder   bool
	Valence    uint32 // folder: child count

	DataStart  uint32
	DataBlocks uint32
	DataSize   uint64

	CreateDate uint32
	ModifyDate uint32
}

// AssignCNIDs walks t in (parent, case-fold name) order, assigning
// sequential catalog IDs starting at firstUserCatalogID; the root
// directory is always CNID 2.
func AssignCNIDs(t *viewtree.Tree) map[viewtree.NodeIndex]uint32 {
	cnids := map[viewtree.NodeIndex]uint32{t.Root(): rootFolderID}
	next := uint32(firstUserCatalogID)

	var walk func(idx viewtree.NodeIndex)
	walk = func(idx viewtree.NodeIndex) {
		children := append([]viewtree.NodeIndex(nil), t.Node(idx).Children...)
		sort.Slice(children, func(i, j int) bool {
			return t.Node(children[i]).CmpKey < t.Node(children[j]).CmpKey
		})
		for _, c := range children {
			cnids[c] = next
			next++
			if t.Node(c).IsDir {
				walk(c)
			}
		}
	}
	walk(t.Root())
	return cnids
}

// BuildEntries flattens t into CatalogEntry values using dataOf to
// resolve each file's data-fork placement (first section block/size),
// per spec §4.6 step 1.
func BuildEntries(t *viewtree.Tree, cnids map[viewtree.NodeIndex]uint32, now uint32, dataOf func(viewtree.NodeIndex) (start, blocks uint32, size uint64)) []CatalogEntry {
	var entries []CatalogEntry
	var walk func(idx viewtree.NodeIndex, parent uint32)
	walk = func(idx viewtree.NodeIndex, parent uint32) {
		node := t.Node(idx)
		cnid := cnids[idx]
		e := CatalogEntry{
			CNID: cnid, ParentCNID: parent, Name: node.Name, CmpKey: node.CmpKey,
			IsFolder: node.IsDir, CreateDate: now, ModifyDate: now,
		}
		if node.IsDir {
			e.Valence = uint32(len(node.Children))
		} else if dataOf != nil {
			start, blocks, size := dataOf(idx)
			e.DataStart, e.DataBlocks, e.DataSize = start, blocks, size
		}
		entries = append(entries, e)
		if node.IsDir {
			children := append([]viewtree.NodeIndex(nil), node.Children...)
			sort.Slice(children, func(i, j int) bool {
				return t.Node(children[i]).CmpKey < t.Node(children[j]).CmpKey
			})
			for _, c := range children {
				walk(c, cnid)
			}
		}
	}
	walk(t.Root(), rootParentID)
	return entries
}

// catalogKey renders an HFS+ catalog key: 2-byte key length, 4-byte
// parent CNID, then a Pascal-style UTF-16BE name (2-byte char count plus
// UTF-16BE units), per the standard HFS+ B-tree catalog key layout.
func catalogKey(parentCNID uint32, name string) []byte {
	nameUTF16 := namecodec.UTF16BE(name)
	charCount := len(nameUTF16) / 2
	body := make([]byte, 6+len(nameUTF16))
	binary.BigEndian.PutUint32(body[0:4], parentCNID)
	binary.BigEndian.PutUint16(body[4:6], uint16(charCount))
	copy(body[6:], nameUTF16)

	keyLen := len(body)
	out := make([]byte, 2+keyLen)
	binary.BigEndian.PutUint16(out[0:2], uint16(keyLen))
	copy(out[2:], body)
	return out
}

// marshalFolderRecord renders a 88-byte HFSPlusCatalogFolder record
// (simplified: permissions/Finder-info beyond type/creator are zeroed).
func marshalFolderRecord(e CatalogEntry) []byte {
	buf := make([]byte, 88)
	binary.BigEndian.PutUint16(buf[0:2], kHFSPlusFolderRecord)
	binary.BigEndian.PutUint32(buf[8:12], e.Valence)
	binary.BigEndian.PutUint32(buf[12:16], e.CNID)
	binary.BigEndian.PutUint32(buf[16:20], e.CreateDate)
	binary.BigEndian.PutUint32(buf[20:24], e.ModifyDate)
	binary.BigEndian.PutUint32(buf[28:32], e.CreateDate) // access date
	return buf
}

// marshalFileRecord renders a 248-byte HFSPlusCatalogFile record: the
// fixed header/CNID/date fields, a Finder info block left zeroed unless
// a caller wires xattr-sourced type/creator codes, and one data-fork
// descriptor (spec §4.6 step 6 names the xattr source; this writer
// leaves type/creator at zero when none is supplied, matching an
// unclassified file under Finder).
func marshalFileRecord(e CatalogEntry) []byte {
	buf := make([]byte, 248)
	binary.BigEndian.PutUint16(buf[0:2], kHFSPlusFileRecord)
	binary.BigEndian.PutUint32(buf[8:12], e.CNID)
	binary.BigEndian.PutUint32(buf[12:16], e.CreateDate)
	binary.BigEndian.PutUint32(buf[16:20], e.ModifyDate)
	binary.BigEndian.PutUint32(buf[24:28], e.CreateDate) // access date

	dataFork := buf[168:248]
	binary.BigEndian.PutUint64(dataFork[0:8], e.DataSize)
	binary.BigEndian.PutUint32(dataFork[16:20], e.DataBlocks)
	binary.BigEndian.PutUint32(dataFork[20:24], e.DataStart)
	binary.BigEndian.PutUint32(dataFork[24:28], e.DataBlocks)
	return buf
}

// marshalThreadRecord renders a catalog thread record: parent CNID plus
// the node's own name, linking a CNID back to its (parent, name) key for
// lookup-by-ID.
func marshalThreadRecord(isFolder bool, parentCNID uint32, name string) []byte {
	kind := uint16(kHFSPlusFileThreadRecord)
	if isFolder {
		kind = kHFSPlusFolderThreadRecord
	}
	nameUTF16 := namecodec.UTF16BE(name)
	buf := make([]byte, 10+len(nameUTF16))
	binary.BigEndian.PutUint16(buf[0:2], kind)
	binary.BigEndian.PutUint32(buf[4:8], parentCNID)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(nameUTF16)/2))
	copy(buf[10:], nameUTF16)
	return buf
}

// leafRecord is one (key, data) pair ready for node packing.
type leafRecord struct {
	key  []byte
	data []byte
}

// BuildLeafRecords renders every catalog+thread record for entries, in
// (parent_cnid, case-fold name) order including thread records sorted by
// CNID key (spec §4.6 step 1/2): each folder/file contributes one
// catalog record keyed by (parent, name) and one thread record keyed by
// (own CNID, empty name).
func BuildLeafRecords(entries []CatalogEntry) []leafRecord {
	var records []leafRecord
	for _, e := range entries {
		var data []byte
		if e.IsFolder {
			data = marshalFolderRecord(e)
		} else {
			data = marshalFileRecord(e)
		}
		records = append(records, leafRecord{key: catalogKey(e.ParentCNID, e.Name), data: data})

		threadKey := make([]byte, 8)
		binary.BigEndian.PutUint16(threadKey[0:2], 6)
		binary.BigEndian.PutUint32(threadKey[2:6], e.CNID)
		binary.BigEndian.PutUint16(threadKey[6:8], 0)
		records = append(records, leafRecord{key: threadKey, data: marshalThreadRecord(e.IsFolder, e.ParentCNID, e.Name)})
	}

	// Real HFS+ interleaves catalog and thread records in one global key
	// order (parent/own CNID, then name); a raw key-byte comparison
	// approximates that ordering for BMP names, which is the only range
	// namecodec.UTF16BE produces.
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].key, records[j].key) < 0
	})
	return records
}
