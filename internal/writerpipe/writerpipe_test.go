package writerpipe

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

func (m *memStream) Open() error                              { m.off = 0; return nil }
func (m *memStream) Close() error                              { return nil }
func (m *memStream) Size() (int64, error)                      { return int64(len(m.data)), nil }
func (m *memStream) Identity() (logicaltree.Identity, error)   { return logicaltree.Identity{}, nil }
func (m *memStream) Read(p []byte) (int, error) {
	if m.off >= len(m.data) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.off:])
	m.off += n
	return n, nil
}

func buildTree(t *testing.T) (*viewtree.Tree, *filesrc.Registry) {
	arena := logicaltree.NewArena()
	_, err := arena.AddChild(arena.Root(), logicaltree.Node{Kind: logicaltree.KindFile, Name: "hello.txt"})
	if err != nil {
		t.Fatalf("add child: %v", err)
	}

	tree, err := viewtree.Build(arena, viewtree.ViewECMA119, viewtree.Options{Level: viewtree.Level1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := viewtree.Mangle(tree); err != nil {
		t.Fatalf("mangle: %v", err)
	}

	files := filesrc.New()
	child := tree.Node(tree.Root()).Children[0]
	key, err := files.Register(&memStream{data: []byte("hello world")}, "hello.txt")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	tree.Node(child).FileSourceKey = key
	return tree, files
}

func TestPipelineRunProducesSectorAlignedImage(t *testing.T) {
	tree, files := buildTree(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ecma := NewECMA119Writer(tree, files, VolumeDescOpts{VolumeID: "TESTVOL", Now: now})
	fsw := NewFileDataWriter(files)
	pad := NewZeroPadWriter(16)

	p := &Pipeline{Writers: []Writer{ecma, fsw, ChecksumWriter{}, pad}, Now: now}

	systemArea := make([]byte, 16*SectorSize)
	var out bytes.Buffer
	cursor, digest, err := p.Run(&out, systemArea)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if cursor == 0 {
		t.Fatalf("expected nonzero final cursor")
	}
	if out.Len()%SectorSize != 0 {
		t.Fatalf("output not sector-aligned: %d bytes", out.Len())
	}
	if digest == ([16]byte{}) {
		t.Fatalf("expected nonzero digest")
	}

	pvdOff := 16 * SectorSize
	pvd := out.Bytes()[pvdOff : pvdOff+SectorSize]
	if pvd[0] != vdTypePrimary {
		t.Fatalf("expected PVD type byte, got %d", pvd[0])
	}
	if string(pvd[1:6]) != "CD001" {
		t.Fatalf("missing CD001 signature")
	}
}

func TestPredictSizeMatchesRunCursor(t *testing.T) {
	tree, files := buildTree(t)
	ecma := NewECMA119Writer(tree, files, VolumeDescOpts{VolumeID: "TESTVOL"})
	fsw := NewFileDataWriter(files)
	p := &Pipeline{Writers: []Writer{ecma, fsw}}

	predicted, err := p.PredictSize(16)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	tree2, files2 := buildTree(t)
	ecma2 := NewECMA119Writer(tree2, files2, VolumeDescOpts{VolumeID: "TESTVOL"})
	fsw2 := NewFileDataWriter(files2)
	p2 := &Pipeline{Writers: []Writer{ecma2, fsw2}}
	var out bytes.Buffer
	cursor, _, err := p2.Run(&out, make([]byte, 16*SectorSize))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if cursor != predicted {
		t.Fatalf("predicted cursor %d != run cursor %d", predicted, cursor)
	}
}
