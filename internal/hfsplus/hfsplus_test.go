package hfsplus

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/discforge/isoforge/internal/filesrc"
	"github.com/discforge/isoforge/internal/logicaltree"
	"github.com/discforge/isoforge/internal/viewtree"
)

type memStream struct {
	data []byte
	off  int
}

func (m *memStream) Open() error                            { m.off = 0; return nil }
func (m *memStream) Close() error                            { return nil }
func (m *memStream) Size() (int64, error)                    { return int64(len(m.data)), nil }
func (m *memStream) Identity() (logicaltree.Identity, error) { return logicaltree.Identity{}, nil }
func (m *memStream) Read(p []byte) (int, error) {
	if m.off >= len(m.data) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.off:])
	m.off += n
	return n, nil
}

func buildHFSTree(t *testing.T) (*viewtree.Tree, *filesrc.Registry) {
	arena := logicaltree.NewArena()
	_, err := arena.AddChild(arena.Root(), logicaltree.Node{Kind: logicaltree.KindFile, Name: "readme.txt"})
	if err != nil {
		t.Fatalf("add child: %v", err)
	}
	dir, err := arena.AddChild(arena.Root(), logicaltree.Node{Kind: logicaltree.KindDirectory, Name: "docs"})
	if err != nil {
		t.Fatalf("add dir: %v", err)
	}
	if _, err := arena.AddChild(dir, logicaltree.Node{Kind: logicaltree.KindFile, Name: "notes.txt"}); err != nil {
		t.Fatalf("add nested child: %v", err)
	}

	tree, err := viewtree.Build(arena, viewtree.ViewHFSPlus, viewtree.Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := viewtree.Mangle(tree); err != nil {
		t.Fatalf("mangle: %v", err)
	}

	files := filesrc.New()
	var assignKeys func(idx viewtree.NodeIndex)
	assignKeys = func(idx viewtree.NodeIndex) {
		node := tree.Node(idx)
		if !node.IsDir {
			key, err := files.Register(&memStream{data: []byte("hello hfs+ world")}, node.Name)
			if err != nil {
				t.Fatalf("register: %v", err)
			}
			node.FileSourceKey = key
			return
		}
		for _, c := range node.Children {
			assignKeys(c)
		}
	}
	assignKeys(tree.Root())
	if _, err := files.Assign(32, 0); err != nil {
		t.Fatalf("assign: %v", err)
	}
	return tree, files
}

func TestAssignCNIDsRootIsTwoAndUserEntriesStartAtSixteen(t *testing.T) {
	tree, _ := buildHFSTree(t)
	cnids := AssignCNIDs(tree)

	if cnids[tree.Root()] != rootFolderID {
		t.Fatalf("root CNID = %d, want %d", cnids[tree.Root()], rootFolderID)
	}
	seen := map[uint32]bool{}
	for idx, cnid := range cnids {
		if idx == tree.Root() {
			continue
		}
		if cnid < firstUserCatalogID {
			t.Fatalf("user CNID %d below firstUserCatalogID", cnid)
		}
		if seen[cnid] {
			t.Fatalf("duplicate CNID %d", cnid)
		}
		seen[cnid] = true
	}
}

func TestBuildLeafRecordsGloballySortedByKey(t *testing.T) {
	tree, files := buildHFSTree(t)
	cnids := AssignCNIDs(tree)
	dataOf := func(idx viewtree.NodeIndex) (uint32, uint32, uint64) {
		sections := files.Sections(tree.Node(idx).FileSourceKey)
		if len(sections) == 0 {
			return 0, 0, 0
		}
		return sections[0].Block, 1, uint64(sections[0].Size)
	}
	entries := BuildEntries(tree, cnids, 0, dataOf)
	records := BuildLeafRecords(entries)

	if len(records) != 2*len(entries) {
		t.Fatalf("expected one catalog + one thread record per entry, got %d records for %d entries", len(records), len(entries))
	}
	for i := 1; i < len(records); i++ {
		if bytes.Compare(records[i-1].key, records[i].key) > 0 {
			t.Fatalf("records not sorted at index %d", i)
		}
	}
}

func TestPackLeafNodesLinksForwardAndBackward(t *testing.T) {
	tree, files := buildHFSTree(t)
	cnids := AssignCNIDs(tree)
	dataOf := func(idx viewtree.NodeIndex) (uint32, uint32, uint64) { return 0, 0, 0 }
	_ = files
	entries := BuildEntries(tree, cnids, 0, dataOf)
	records := BuildLeafRecords(entries)

	nodes, first, last := packLeafNodes(records, 1)
	if len(nodes) == 0 {
		t.Fatalf("expected at least one leaf node")
	}
	if first != 1 {
		t.Fatalf("first leaf = %d, want 1", first)
	}
	if last != first+uint32(len(nodes))-1 {
		t.Fatalf("last leaf = %d, want %d", last, first+uint32(len(nodes))-1)
	}
	if len(nodes[0]) != NodeSize {
		t.Fatalf("node size = %d, want %d", len(nodes[0]), NodeSize)
	}
}

func TestVolumeHeaderMarshalRoundTripsFixedFields(t *testing.T) {
	h := &VolumeHeader{BlockSize: 2048, TotalBlocks: 100, NextCatalogID: firstUserCatalogID}
	buf := h.Marshal()
	if len(buf) != 512 {
		t.Fatalf("header length = %d, want 512", len(buf))
	}
	if string(buf[0:2]) != "H+" {
		t.Fatalf("missing H+ signature")
	}
	if buf[2] != 0 || buf[3] != 4 {
		t.Fatalf("expected version 4")
	}
}

func TestAllocationBitmapMarksUsedRanges(t *testing.T) {
	buf := AllocationBitmap(16, [][2]uint32{{0, 3}})
	if buf[0]&0xE0 != 0xE0 {
		t.Fatalf("expected top 3 bits set, got %08b", buf[0])
	}
	if buf[0]&0x1F != 0 {
		t.Fatalf("expected remaining bits clear, got %08b", buf[0])
	}
}

func TestBlessTableAppliesToFinderInfoBlock(t *testing.T) {
	header := make([]byte, 512)
	var bless BlessTable
	bless[BlessSystemFolder] = 0x12345678
	bless.Apply(header)

	got := uint32(header[76])<<24 | uint32(header[77])<<16 | uint32(header[78])<<8 | uint32(header[79])
	if got != 0x12345678 {
		t.Fatalf("Finder info CNID = %#x, want %#x", got, 0x12345678)
	}
}

func TestWriterProducesSectorAlignedData(t *testing.T) {
	tree, files := buildHFSTree(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWriter(tree, files, now)
	w.Bless[BlessSystemFolder] = 16

	cursor, err := w.ComputeDataBlocks(32)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if cursor <= 32 {
		t.Fatalf("expected cursor to advance, got %d", cursor)
	}

	var out bytes.Buffer
	if err := w.WriteData(&out); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out.Len()%SectorSize != 0 {
		t.Fatalf("output not sector-aligned: %d bytes", out.Len())
	}
	if out.Len() != int(cursor-32)*SectorSize {
		t.Fatalf("written bytes %d != reserved blocks %d * sector size", out.Len(), cursor-32)
	}

	header := out.Bytes()[2*SectorSize : 2*SectorSize+512]
	if string(header[0:2]) != "H+" {
		t.Fatalf("missing H+ signature in written stream")
	}
}
