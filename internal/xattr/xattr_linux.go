//go:build linux

package xattr

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/discforge/isoforge/internal/aaip"
	"github.com/discforge/isoforge/internal/isoerr"
)

type linuxSource struct{}

// NewSource returns the platform adapter for the running GOOS.
func NewSource() Source { return linuxSource{} }

func (linuxSource) Supported() bool { return true }

func (linuxSource) Attrs(path string, followSymlink bool) ([]aaip.Pair, error) {
	names, err := listNames(path, followSymlink)
	if err != nil {
		return nil, err
	}
	pairs := make([]aaip.Pair, 0, len(names))
	for _, name := range names {
		value, err := getValue(path, name, followSymlink)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, aaip.Pair{Name: name, Value: value})
	}
	return pairs, nil
}

// listNames runs the standard two-call xattr listing idiom: size the
// buffer with a nil destination, then fill it (aaip-os-linux.c's
// aaip_get_attr_list does the same dance around listxattr/llistxattr).
func listNames(path string, followSymlink bool) ([]string, error) {
	size, err := rawList(path, followSymlink, nil)
	if err != nil {
		return nil, errors.Wrap(isoerr.ErrResource, "xattr: listxattr size query for "+path)
	}
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := rawList(path, followSymlink, buf)
	if err != nil {
		return nil, errors.Wrap(isoerr.ErrResource, "xattr: listxattr fill for "+path)
	}
	return splitNames(buf[:n]), nil
}

func rawList(path string, followSymlink bool, dest []byte) (int, error) {
	if followSymlink {
		return unix.Listxattr(path, dest)
	}
	return unix.Llistxattr(path, dest)
}

func rawGet(path, name string, followSymlink bool, dest []byte) (int, error) {
	if followSymlink {
		return unix.Getxattr(path, name, dest)
	}
	return unix.Lgetxattr(path, name, dest)
}

// splitNames breaks a NUL-separated attribute-name list, as returned by
// listxattr(2), into individual strings.
func splitNames(buf []byte) []string {
	var names []string
	for _, part := range bytes.Split(buf, []byte{0}) {
		if len(part) > 0 {
			names = append(names, string(part))
		}
	}
	return names
}

func getValue(path, name string, followSymlink bool) ([]byte, error) {
	size, err := rawGet(path, name, followSymlink, nil)
	if err != nil {
		return nil, errors.Wrap(isoerr.ErrResource, "xattr: getxattr size query for "+name)
	}
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := rawGet(path, name, followSymlink, buf)
	if err != nil {
		return nil, errors.Wrap(isoerr.ErrResource, "xattr: getxattr fill for "+name)
	}
	return buf[:n], nil
}
