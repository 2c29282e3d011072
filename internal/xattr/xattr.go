// Package xattr provides the platform-specific local-filesystem ACL/xattr
// adapter (spec §9 "platform-specific ACL/xattr adapters"): reading a
// file's extended attributes into AAIP pairs ready for internal/aaip's
// wire encoding.
//
// Grounded on original_source/libisofs/aaip-os-linux.c (the Linux adapter:
// listxattr/getxattr, two-call size-then-fill) and aaip-os-dummy.c (the
// always-unsupported fallback for every other platform).
package xattr

import "github.com/discforge/isoforge/internal/aaip"

// Source reads one file's extended attributes from the local filesystem.
// On Linux, POSIX ACLs are themselves exposed as the xattr names
// system.posix_acl_access/system.posix_acl_default; this adapter surfaces
// them as ordinary pairs rather than decoding their binary ACL format,
// since nothing in the pack provides a pure-Go ACL text decoder (see
// DESIGN.md) — internal/aaip's ACL text codec is exercised directly by
// callers that already hold ACL text from another source.
type Source interface {
	// Supported reports whether this adapter can read attributes at all
	// on the running platform (aaip_local_attr_support, spec §9).
	Supported() bool

	// Attrs returns every extended attribute of path as AAIP pairs.
	// followSymlink selects inspecting path itself (false, the default
	// for AAIP's "do not follow" policy) or its target (true).
	Attrs(path string, followSymlink bool) ([]aaip.Pair, error)
}
