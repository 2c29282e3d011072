//go:build !linux

package xattr

import "github.com/discforge/isoforge/internal/aaip"

// dummySource mirrors aaip-os-dummy.c: no ACL/xattr support compiled in,
// aaip_local_attr_support always returns 0.
type dummySource struct{}

// NewSource returns the platform adapter for the running GOOS.
func NewSource() Source { return dummySource{} }

func (dummySource) Supported() bool { return false }

func (dummySource) Attrs(path string, followSymlink bool) ([]aaip.Pair, error) {
	return nil, nil
}
