package viewtree

import "github.com/discforge/isoforge/internal/logicaltree"

// Relocate implements spec §4.3: directories whose depth exceeds 8 (or
// whose path length exceeds the budget) under !AllowDeepPaths are moved
// under a relocation directory, leaving a zero-data placeholder at their
// original position. Only meaningful for ECMA-119 trees; a no-op
// otherwise, since Joliet/ISO9660:1999/HFS+ do not carry the ECMA-119
// depth-8 restriction (spec §4.6).
func Relocate(t *Tree) error {
	if t.View != ViewECMA119 || t.Opts.AllowDeepPaths {
		return nil
	}

	var relocDir NodeIndex = -1
	ensureRelocDir := func() NodeIndex {
		if relocDir >= 0 {
			return relocDir
		}
		name := t.Opts.RelocationDir
		if name == "" {
			name = "RR_MOVED"
		}
		relocDir = t.addChild(t.Root(), Node{
			IsDir:  true,
			Name:   name,
			CmpKey: name,
			// RR_MOVED carries no real filesystem counterpart; give it a
			// plain rwxr-xr-x directory mode so PX has something sane to
			// report (spec §4.3 "RE marker").
			Attrs: logicaltree.Attrs{Mode: 0040555},
		})
		return relocDir
	}

	var deep []NodeIndex
	collectDeep(t, t.Root(), 1, 0, &deep)

	for _, idx := range deep {
		origParent := t.Node(idx).Parent
		orig := t.Node(idx)
		placeholder := Node{
			Logical:         orig.Logical,
			IsDir:           true,
			Name:            orig.Name,
			CmpKey:          orig.CmpKey,
			IsPlaceholder:   true,
			RelocatedTarget: idx,
			Parent:          origParent,
			// A placeholder stands in for the relocated directory at its
			// original path; it needs the same Rock Ridge identity (PX/TF)
			// so the CL entry's target looks like the real directory.
			PosixName:  orig.PosixName,
			Attrs:      orig.Attrs,
			Attributes: orig.Attributes,
		}
		// Append the placeholder node. This may reallocate t.Nodes, so no
		// pointer obtained before this point may be reused afterwards —
		// every later step re-resolves nodes by index via t.Node.
		t.Nodes = append(t.Nodes, placeholder)
		phIdx := NodeIndex(len(t.Nodes) - 1)

		// Replace the child slot in the original parent with the
		// placeholder, without disturbing the parent's other child indices.
		for i, c := range t.Node(origParent).Children {
			if c == idx {
				t.Node(origParent).Children[i] = phIdx
				break
			}
		}

		dest := ensureRelocDir()
		t.Node(idx).RealParent = origParent
		t.Node(idx).IsRelocated = true
		t.Node(idx).Parent = dest
		t.Node(dest).Children = append(t.Node(dest).Children, idx)
	}

	if relocDir >= 0 {
		return mangleRecursive(t, relocDir)
	}
	return nil
}

// collectDeep finds directories that violate the depth/path budget,
// depth-first, without descending further into an already-flagged
// subtree (its whole contents move with it).
func collectDeep(t *Tree, idx NodeIndex, depth int, pathLen int, out *[]NodeIndex) {
	node := t.Node(idx)
	for _, c := range node.Children {
		child := t.Node(c)
		if !child.IsDir {
			continue
		}
		childPathLen := pathLen + len(child.Name) + 1
		if depth+1 > 8 || childPathLen > 255 {
			*out = append(*out, c)
			continue
		}
		collectDeep(t, c, depth+1, childPathLen, out)
	}
}
