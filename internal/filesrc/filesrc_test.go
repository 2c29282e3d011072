package filesrc

import (
	"testing"

	"github.com/discforge/isoforge/internal/logicaltree"
)

type fakeStream struct {
	size int64
	id   logicaltree.Identity
}

func (f *fakeStream) Open() error                             { return nil }
func (f *fakeStream) Read(p []byte) (int, error)               { return 0, nil }
func (f *fakeStream) Close() error                              { return nil }
func (f *fakeStream) Size() (int64, error)                      { return f.size, nil }
func (f *fakeStream) Identity() (logicaltree.Identity, error) { return f.id, nil }

func TestRegisterDedupsByIdentity(t *testing.T) {
	r := New()
	id := logicaltree.Identity{FSID: 1, DevID: 2, SrcIno: 3}
	k1, err := r.Register(&fakeStream{size: 100, id: id}, "a")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	k2, err := r.Register(&fakeStream{size: 100, id: id}, "b")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("expected same dedup key, got %q and %q", k1, k2)
	}
	if len(r.ordered) != 1 {
		t.Fatalf("expected 1 distinct entry, got %d", len(r.ordered))
	}
}

func TestAssignSplitsMultiExtentFiles(t *testing.T) {
	r := New()
	big := int64(ExtentSize) + 1000
	key, err := r.Register(&fakeStream{size: big}, "big")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	next, err := r.Assign(100, SentinelEmptyFileLegacy)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	sections := r.Sections(key)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if next <= 100 {
		t.Fatalf("LBA cursor did not advance")
	}
}

func TestAssignEmptyFileUsesSentinel(t *testing.T) {
	r := New()
	key, err := r.Register(&fakeStream{size: 0}, "empty")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Assign(50, SentinelEmptyFileLegacy); err != nil {
		t.Fatalf("assign: %v", err)
	}
	sections := r.Sections(key)
	if len(sections) != 1 || sections[0].Block != 0 {
		t.Fatalf("expected legacy block 0, got %+v", sections)
	}
}
