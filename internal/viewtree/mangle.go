package viewtree

import (
	"sort"

	"github.com/discforge/isoforge/internal/namecodec"
)

// Mangle walks every directory in t and resolves duplicate translated
// names among its children (spec §4.1 steps 1-5), then sorts children by
// the view's collation. HFS+ trees mangle by case-folded comparison key
// rather than by the raw translated name.
func Mangle(t *Tree) error {
	return mangleRecursive(t, t.Root())
}

func mangleRecursive(t *Tree, dir NodeIndex) error {
	node := t.Node(dir)
	if len(node.Children) == 0 {
		return nil
	}

	names := make([]string, len(node.Children))
	for i, c := range node.Children {
		names[i] = t.Node(c).Name
	}

	maxLen := t.Opts.MaxNameChars
	if maxLen == 0 {
		maxLen = 31
	}
	mangled, err := namecodec.Mangle(names, maxLen)
	if err != nil {
		return err
	}
	for i, c := range node.Children {
		t.Node(c).Name = mangled[i]
		if t.View == ViewHFSPlus {
			_, key := namecodec.ToHFS(mangled[i])
			t.Node(c).CmpKey = key
		} else {
			t.Node(c).CmpKey = mangled[i]
		}
	}

	sort.SliceStable(node.Children, func(i, j int) bool {
		return t.Node(node.Children[i]).CmpKey < t.Node(node.Children[j]).CmpKey
	})

	for _, c := range node.Children {
		if t.Node(c).IsDir {
			if err := mangleRecursive(t, c); err != nil {
				return err
			}
		}
	}
	return nil
}
