package viewtree

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/discforge/isoforge/internal/aaip"
	"github.com/discforge/isoforge/internal/logicaltree"
)

// suspFieldVersion is the System Use Entry version byte carried by every
// Rock Ridge field this package emits (RRIP-1.12, the only revision the
// "RR" entries below are grounded on); AAIP fields carry their own
// version byte via aaip.EncodeVersion instead.
const suspFieldVersion = 1

// suspField renders one SUSP system-use entry: a 2-byte signature, a
// 1-byte total length, a 1-byte version, then payload (other_examples'
// rockridge.go field layout comments; SUSP §5.1).
func suspField(sig string, payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	buf[0], buf[1] = sig[0], sig[1]
	buf[2] = byte(4 + len(payload))
	buf[3] = suspFieldVersion
	copy(buf[4:], payload)
	return buf
}

// bothEndian32 renders v as 4 bytes little-endian followed by 4 bytes
// big-endian, the same both-endian convention MarshalDirectoryRecord uses
// for LBA/DataLength (ECMA-119 §9.1, mirrored by RRIP's PX/CL/PL fields).
func bothEndian32(v uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], v)
	binary.BigEndian.PutUint32(buf[4:8], v)
	return buf
}

// pxEntry renders a PX field: POSIX mode, link count, uid, gid, and
// (when includeSerial, spec "rrip-1.10-px-ino") a 5th both-endian
// subfield for the file serial number — the RRIP-1.12 PX layout rather
// than RRIP-1.10's 4-subfield form (other_examples' PX entry comment).
func pxEntry(attrs logicaltree.Attrs, linkCount, ino uint32, includeSerial bool) []byte {
	var payload []byte
	payload = append(payload, bothEndian32(attrs.Mode)...)
	payload = append(payload, bothEndian32(linkCount)...)
	payload = append(payload, bothEndian32(attrs.UID)...)
	payload = append(payload, bothEndian32(attrs.GID)...)
	if includeSerial {
		payload = append(payload, bothEndian32(ino)...)
	}
	return suspField("PX", payload)
}

// shortDate renders a 7-byte ECMA-119 date/time record (the same layout
// MarshalDirectoryRecord uses for RecordingTime), RRIP's TF entry's
// per-timestamp encoding.
func shortDate(t time.Time) []byte {
	t = t.UTC()
	return []byte{
		byte(t.Year() - 1900), byte(t.Month()), byte(t.Day()),
		byte(t.Hour()), byte(t.Minute()), byte(t.Second()), 0,
	}
}

const (
	tfModification = 1 << 1
	tfAccess       = 1 << 2
	tfAttributes   = 1 << 3
)

// tfEntry renders a TF field carrying modification, access, and
// attribute-change (ctime) timestamps (RRIP §4.1.6).
func tfEntry(attrs logicaltree.Attrs) []byte {
	payload := []byte{tfModification | tfAccess | tfAttributes}
	payload = append(payload, shortDate(attrs.Mtime)...)
	payload = append(payload, shortDate(attrs.Atime)...)
	payload = append(payload, shortDate(attrs.Ctime)...)
	return suspField("TF", payload)
}

// nmMaxLen bounds a single NM/SL field's payload; this package does not
// implement SUSP Continuation Area (CE) chaining, so a name or symlink
// target too long for one field is dropped rather than truncated mid
// record (see DESIGN.md).
const nmMaxLen = 250

// nmEntry renders an NM field carrying the node's original (pre-mangling)
// POSIX name.
func nmEntry(name string) []byte {
	if name == "" || len(name)+1 > nmMaxLen {
		return nil
	}
	payload := append([]byte{0}, []byte(name)...)
	return suspField("NM", payload)
}

const (
	slCompContinue = 1 << 0
	slCompCurrent  = 1 << 1
	slCompParent   = 1 << 2
	slCompRoot     = 1 << 3
)

// slEntry renders an SL field: a flags byte followed by one
// (flags, length, component) record per path component, flagging "." and
// ".." components instead of spelling them out (RRIP §4.1.3.1).
func slEntry(target string) []byte {
	if target == "" {
		return nil
	}
	var comps []byte
	if strings.HasPrefix(target, "/") {
		comps = append(comps, slCompRoot, 0)
		target = strings.TrimPrefix(target, "/")
	}
	for _, part := range strings.Split(target, "/") {
		switch part {
		case "":
			continue
		case ".":
			comps = append(comps, slCompCurrent, 0)
		case "..":
			comps = append(comps, slCompParent, 0)
		default:
			comps = append(comps, 0, byte(len(part)))
			comps = append(comps, part...)
		}
	}
	payload := append([]byte{0}, comps...)
	if len(payload)+1 > nmMaxLen {
		return nil
	}
	return suspField("SL", payload)
}

// clEntry renders a CL field on a relocated directory's placeholder,
// pointing at the relocated directory's own LBA (RRIP §4.1.5.1).
func clEntry(targetLBA uint32) []byte {
	return suspField("CL", bothEndian32(targetLBA))
}

// plEntry renders a PL field on a relocated directory's ".." entry,
// pointing back at its real (pre-relocation) parent's LBA (RRIP §4.1.5.2).
func plEntry(realParentLBA uint32) []byte {
	return suspField("PL", bothEndian32(realParentLBA))
}

// reEntry renders an RE field, marking an entry inside the relocation
// directory as the true location of a relocated directory (RRIP §4.1.5.3).
func reEntry() []byte {
	return suspField("RE", nil)
}

// spEntry renders the SP field the root directory's "." entry carries to
// announce SUSP is in effect (SUSP §5.3): the fixed 0xBE 0xEF check bytes
// plus a one-byte "bytes skipped" field, left at zero.
func spEntry() []byte {
	return suspField("SP", []byte{0xBE, 0xEF, 0x00})
}

// aaipSystemUse renders attributes as a run of AAIP "AL" fields, or nil
// when there are none to carry (spec §4.9).
func aaipSystemUse(attributes []logicaltree.Attribute, version byte) []byte {
	if len(attributes) == 0 {
		return nil
	}
	pairs := make([]aaip.Pair, len(attributes))
	for i, a := range attributes {
		pairs[i] = aaip.Pair{Name: a.Name, Value: a.Value}
	}
	return aaip.EncodeVersion(pairs, version)
}

// rrLinkCount resolves the POSIX link count RRIP's PX field should report
// for idx: the hard-link bucket size AssignHardlinks computed for files,
// or a POSIX-minimum 2 for directories, which this tree never tracks a
// real link count for (see DESIGN.md "directory link count" decision).
func rrLinkCount(t *Tree, idx NodeIndex) uint32 {
	node := t.Node(idx)
	if node.LinkCount > 0 {
		return node.LinkCount
	}
	if node.IsDir {
		return 2
	}
	return 1
}

// pxTfSystemUse renders the PX and TF fields every Rock Ridge entry
// carries, regardless of what else it carries.
func (t *Tree) pxTfSystemUse(attrs logicaltree.Attrs, linkCount, ino uint32) []byte {
	var out []byte
	out = append(out, pxEntry(attrs, linkCount, ino, t.Opts.RRIP110PXIno)...)
	out = append(out, tfEntry(attrs)...)
	return out
}

// DotSystemUse renders the system-use bytes for dir's own "." entry:
// PX/TF for dir itself, plus the root-only SP entry that announces SUSP.
func DotSystemUse(t *Tree, dir NodeIndex) []byte {
	if t.View != ViewECMA119 || !t.Opts.RockRidge {
		return nil
	}
	node := t.Node(dir)
	var out []byte
	if dir == t.Root() {
		out = append(out, spEntry()...)
	}
	out = append(out, t.pxTfSystemUse(node.Attrs, rrLinkCount(t, dir), node.InodeNumber)...)
	return out
}

// DotDotSystemUse renders the system-use bytes for dir's ".." entry:
// PX/TF for dir's parent, plus a PL field when dir was relocated, since
// ".." must still resolve to dir's real (pre-relocation) parent's LBA
// even though the tree now parents it under the relocation directory
// (RRIP §4.1.5.2).
func DotDotSystemUse(t *Tree, dir NodeIndex) []byte {
	if t.View != ViewECMA119 || !t.Opts.RockRidge {
		return nil
	}
	node := t.Node(dir)
	parent := node.Parent
	if node.IsRelocated {
		parent = node.RealParent
	}
	if dir == t.Root() {
		parent = t.Root()
	}
	parentNode := t.Node(parent)

	out := t.pxTfSystemUse(parentNode.Attrs, rrLinkCount(t, parent), parentNode.InodeNumber)
	if node.IsRelocated {
		out = append(out, plEntry(parentNode.LBA)...)
	}
	return out
}

// ChildSystemUse renders the system-use bytes for child's entry as listed
// in its parent's directory listing: PX/TF always; NM when the on-disk
// name was translated/mangled away from the original POSIX name; SL for
// symlinks; CL on a relocation placeholder; RE on a directory listed
// inside the relocation directory; and AAIP "AL" fields when extended
// attributes are enabled (spec §4.1, §4.3, §4.9).
func ChildSystemUse(t *Tree, child NodeIndex) []byte {
	if t.View != ViewECMA119 || !t.Opts.RockRidge {
		return nil
	}
	node := t.Node(child)

	if node.IsPlaceholder {
		target := t.Node(node.RelocatedTarget)
		var out []byte
		out = append(out, t.pxTfSystemUse(node.Attrs, rrLinkCount(t, node.RelocatedTarget), target.InodeNumber)...)
		if node.PosixName != "" && node.PosixName != node.Name {
			out = append(out, nmEntry(node.PosixName)...)
		}
		out = append(out, clEntry(target.LBA)...)
		return out
	}

	out := t.pxTfSystemUse(node.Attrs, rrLinkCount(t, child), node.InodeNumber)
	if node.PosixName != "" && node.PosixName != node.Name {
		out = append(out, nmEntry(node.PosixName)...)
	}
	if node.IsSymlink {
		out = append(out, slEntry(node.LinkTarget)...)
	}
	if node.IsRelocated {
		out = append(out, reEntry()...)
	}
	if t.Opts.AAIP && !t.Opts.RRIP110Compat && len(node.Attributes) > 0 {
		version := byte(2)
		if t.Opts.AAIPSUSP110 {
			version = 1
		}
		out = append(out, aaipSystemUse(node.Attributes, version)...)
	}
	return out
}
