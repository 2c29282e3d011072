package logicaltree

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

// fileStream is a ContentStream backed by a real file on the local
// filesystem, used by FromDir for CLI and test convenience in place of the
// external stream-reader collaborator the core otherwise treats as opaque.
type fileStream struct {
	path string
	f    *os.File
	fsID uint64
}

func (s *fileStream) Open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return errors.Wrapf(isoerr.ErrResource, "opening %s: %v", s.path, err)
	}
	s.f = f
	return nil
}

func (s *fileStream) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *fileStream) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}

func (s *fileStream) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *fileStream) Identity() (Identity, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return Identity{}, err
	}
	return Identity{FSID: s.fsID, DevID: 0, SrcIno: fileInoOf(info)}, nil
}

// FromDir walks a local directory tree depth-first, the same traversal
// shape as the teacher's ScanSourceDirectory/scanDirectoryRecursive, and
// populates a fresh Arena from it. Unlike the teacher, which coupled the
// scan directly to directory-record assembly, this only produces logical
// nodes: translation, mangling, and layout are the tree builders'
// responsibility.
func FromDir(root string) (*Arena, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(isoerr.ErrInvalidInput, "logicaltree: resolving %s: %v", root, err)
	}
	a := NewArena()
	if err := scanRecursive(a, absRoot, a.Root(), 1); err != nil {
		return nil, err
	}
	return a, nil
}

func scanRecursive(a *Arena, diskPath string, parent NodeIndex, fsID uint64) error {
	entries, err := os.ReadDir(diskPath)
	if err != nil {
		return errors.Wrapf(isoerr.ErrResource, "logicaltree: reading %s: %v", diskPath, err)
	}
	for _, entry := range entries {
		full := filepath.Join(diskPath, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return errors.Wrapf(isoerr.ErrResource, "logicaltree: stat %s: %v", full, err)
		}

		attrs := Attrs{
			Mode:  uint32(info.Mode().Perm()),
			Mtime: info.ModTime(),
		}

		switch {
		case entry.IsDir():
			idx, err := a.AddChild(parent, Node{Kind: KindDirectory, Name: entry.Name(), Attrs: attrs})
			if err != nil {
				return err
			}
			if err := scanRecursive(a, full, idx, fsID); err != nil {
				return err
			}
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(full)
			if err != nil {
				return errors.Wrapf(isoerr.ErrResource, "logicaltree: readlink %s: %v", full, err)
			}
			if _, err := a.AddChild(parent, Node{Kind: KindSymlink, Name: entry.Name(), Attrs: attrs, LinkTarget: target}); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			stream := &fileStream{path: full, fsID: fsID}
			if _, err := a.AddChild(parent, Node{Kind: KindFile, Name: entry.Name(), Attrs: attrs, Stream: stream}); err != nil {
				return err
			}
		default:
			if _, err := a.AddChild(parent, Node{Kind: KindSpecial, Name: entry.Name(), Attrs: attrs}); err != nil {
				return err
			}
		}
	}
	return nil
}
