package logicaltree

import (
	"os"
	"path/filepath"
	"testing"
)

func TestArenaReparentUpdatesIndicesOnly(t *testing.T) {
	a := NewArena()
	dirA, err := a.AddChild(a.Root(), Node{Kind: KindDirectory, Name: "a"})
	if err != nil {
		t.Fatalf("add dirA: %v", err)
	}
	dirB, err := a.AddChild(a.Root(), Node{Kind: KindDirectory, Name: "b"})
	if err != nil {
		t.Fatalf("add dirB: %v", err)
	}
	file, err := a.AddChild(dirA, Node{Kind: KindFile, Name: "f.txt"})
	if err != nil {
		t.Fatalf("add file: %v", err)
	}

	if got := a.Path(file); got != "/a/f.txt" {
		t.Fatalf("path before reparent: %q", got)
	}

	if err := a.Reparent(file, dirB); err != nil {
		t.Fatalf("reparent: %v", err)
	}
	if got := a.Path(file); got != "/b/f.txt" {
		t.Fatalf("path after reparent: %q", got)
	}
	if len(a.Node(dirA).Children) != 0 {
		t.Fatalf("dirA still lists reparented child: %v", a.Node(dirA).Children)
	}
	if len(a.Node(dirB).Children) != 1 {
		t.Fatalf("dirB missing reparented child: %v", a.Node(dirB).Children)
	}
}

func TestArenaWalkPreOrder(t *testing.T) {
	a := NewArena()
	dirA, _ := a.AddChild(a.Root(), Node{Kind: KindDirectory, Name: "a"})
	_, _ = a.AddChild(dirA, Node{Kind: KindFile, Name: "f1"})
	_, _ = a.AddChild(dirA, Node{Kind: KindFile, Name: "f2"})

	var visited []string
	err := a.Walk(a.Root(), func(idx NodeIndex, depth int) error {
		visited = append(visited, a.Node(idx).Name)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	want := []string{"", "a", "f1", "f2"}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited[%d] = %q, want %q", i, visited[i], want[i])
		}
	}
}

func TestFromDirScansRealTree(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "hello.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	a, err := FromDir(root)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}

	var names []string
	err = a.Walk(a.Root(), func(idx NodeIndex, depth int) error {
		names = append(names, a.Node(idx).Name)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("got %d nodes, want 3: %v", len(names), names)
	}
}
