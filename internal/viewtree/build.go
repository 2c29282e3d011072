package viewtree

import (
	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
	"github.com/discforge/isoforge/internal/logicaltree"
	"github.com/discforge/isoforge/internal/namecodec"
)

// Build walks arena depth-first and emits a Tree for the given view,
// honouring each node's per-view hidden mask, per spec §4.2's "contract
// per call": logical root, current depth (root = 1), current path length.
func Build(arena *logicaltree.Arena, view View, opts Options) (*Tree, error) {
	t := &Tree{View: view, Opts: opts, nextPTN: 2}
	t.Nodes = []Node{{Logical: arena.Root(), IsDir: true, Name: ""}}
	if err := buildRecursive(t, arena, arena.Root(), t.Root(), 1, 0); err != nil {
		return nil, err
	}
	return t, nil
}

func buildRecursive(t *Tree, arena *logicaltree.Arena, logIdx logicaltree.NodeIndex, viewParent NodeIndex, depth int, pathLen int) error {
	node := arena.Node(logIdx)
	for _, childLog := range node.Children {
		child := arena.Node(childLog)

		if hiddenFor(t.View, child.Hidden) {
			continue
		}
		if child.Kind == logicaltree.KindSymlink || child.Kind == logicaltree.KindSpecial {
			if t.View != ViewHFSPlus && !hasRockRidge(t.Opts) {
				continue // warn-and-ignore when Rock Ridge / HFS+ can't carry it
			}
		}
		if child.Kind == logicaltree.KindBootCatalogPlaceholder {
			continue // only materialised by the El Torito writer, never the generic walk
		}

		name, err := translateName(t.View, t.Opts, child.Name, child.Kind == logicaltree.KindDirectory)
		if err != nil {
			return err
		}

		childPathLen := pathLen + len(name) + 1
		if t.View == ViewECMA119 && !t.Opts.AllowDeepPaths {
			if depth+1 > 8 || childPathLen > 255 {
				return errors.Wrapf(isoerr.ImgPathWrong, "viewtree: %q exceeds depth/path budget", name)
			}
		}

		n := Node{
			Logical:    childLog,
			IsDir:      child.Kind == logicaltree.KindDirectory,
			Name:       name,
			PosixName:  child.Name,
			Attrs:      child.Attrs,
			Attributes: child.Attributes,
			IsSymlink:  child.Kind == logicaltree.KindSymlink,
			LinkTarget: child.LinkTarget,
		}
		idx := t.addChild(viewParent, n)

		if n.IsDir {
			if err := buildRecursive(t, arena, childLog, idx, depth+1, childPathLen); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasRockRidge(opts Options) bool {
	// Rock Ridge is an ECMA-119 extension layered onto the same tree; the
	// option surface (internal/image) decides whether to set it via its
	// own dedicated bit, independent of the namecodec.Relaxation bitset
	// OmitVersion shares with the rest of the name-policy switches.
	return opts.RockRidge
}

func hiddenFor(view View, mask logicaltree.HiddenMask) bool {
	switch view {
	case ViewECMA119, ViewISO9660v2:
		return mask.Hidden(logicaltree.ViewECMA119)
	case ViewJoliet:
		return mask.Hidden(logicaltree.ViewJoliet)
	case ViewHFSPlus:
		return mask.Hidden(logicaltree.ViewHFSPlus)
	}
	return false
}

func translateName(view View, opts Options, src string, isDir bool) (string, error) {
	switch view {
	case ViewJoliet:
		max := 64
		if opts.JolietLongNames {
			max = 103
		}
		return namecodec.ToJoliet(src, max), nil
	case ViewHFSPlus:
		decomposed, _ := namecodec.ToHFS(src)
		return decomposed, nil
	case ViewISO9660v2:
		// ISO 9660:1999 drops version numbers and relaxes the character set
		// (spec §4.6); modelled as Level 3 + NoForceDot + OmitVersion.
		return namecodec.ToDName(src, namecodec.Level3, namecodec.Relaxation(opts.Relax)|namecodec.NoForceDot|namecodec.OmitVersion, isDir)
	default: // ViewECMA119
		out, err := namecodec.ToDName(src, namecodec.Level(opts.Level), namecodec.Relaxation(opts.Relax), isDir)
		if err != nil {
			return "", err
		}
		// ToDName only appends ";1" for Level 1; Level 2/3 files carry a
		// version suffix too unless the relaxation set omits it.
		if !isDir && opts.Level != Level1 && namecodec.Relaxation(opts.Relax)&(namecodec.OmitVersion|namecodec.Max37Chars) == 0 {
			out += ";1"
		}
		return out, nil
	}
}
