package aaip

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

// ACLEntry is one line of a POSIX.1e ACL: "tag:qualifier:rwx".
type ACLEntry struct {
	Tag       ACLTag
	Qualifier uint32 // uid/gid, only meaningful for TagUser/TagGroup
	Read      bool
	Write     bool
	Execute   bool
}

// ACLTag enumerates the six POSIX.1e ACL entry tag types, encoded in the
// AAIP ACL value's tag byte (spec §4.9, grounded on aaip_0_2.c's
// aaip_encode_acl table).
type ACLTag byte

const (
	TagUserObj ACLTag = iota + 1
	TagUser
	TagGroupObj
	TagGroup
	TagMask
	TagOther
)

func (t ACLTag) String() string {
	switch t {
	case TagUserObj:
		return "user"
	case TagUser:
		return "user"
	case TagGroupObj:
		return "group"
	case TagGroup:
		return "group"
	case TagMask:
		return "mask"
	case TagOther:
		return "other"
	}
	return "?"
}

func (e ACLEntry) permBits() byte {
	var b byte
	if e.Read {
		b |= 1 << 2
	}
	if e.Write {
		b |= 1 << 1
	}
	if e.Execute {
		b |= 1 << 0
	}
	return b
}

func permString(b byte) string {
	r, w, x := "-", "-", "-"
	if b&(1<<2) != 0 {
		r = "r"
	}
	if b&(1<<1) != 0 {
		w = "w"
	}
	if b&(1<<0) != 0 {
		x = "x"
	}
	return r + w + x
}

// EncodeACL serialises ACL entries into an AAIP "isofs.posix_acl" value:
// one byte of entry count is implicit in the stream length; each entry is
// [tag byte][perm byte][qualifier uint32 LE] for USER/GROUP entries, or
// [tag byte][perm byte] for the three singleton tags.
func EncodeACL(entries []ACLEntry) []byte {
	sorted := make([]ACLEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Tag != sorted[j].Tag {
			return sorted[i].Tag < sorted[j].Tag
		}
		return sorted[i].Qualifier < sorted[j].Qualifier
	})

	var out []byte
	for _, e := range sorted {
		out = append(out, byte(e.Tag), e.permBits())
		if e.Tag == TagUser || e.Tag == TagGroup {
			var q [4]byte
			binary.LittleEndian.PutUint32(q[:], e.Qualifier)
			out = append(out, q[:]...)
		}
	}
	return out
}

// DecodeACL parses an AAIP ACL value back into entries.
func DecodeACL(data []byte) ([]ACLEntry, error) {
	var entries []ACLEntry
	for len(data) >= 2 {
		tag := ACLTag(data[0])
		perm := data[1]
		data = data[2:]
		e := ACLEntry{
			Tag:     tag,
			Read:    perm&(1<<2) != 0,
			Write:   perm&(1<<1) != 0,
			Execute: perm&(1<<0) != 0,
		}
		if tag == TagUser || tag == TagGroup {
			if len(data) < 4 {
				return nil, errors.Wrap(isoerr.ErrInconsistency, "aaip: truncated ACL qualifier")
			}
			e.Qualifier = binary.LittleEndian.Uint32(data[:4])
			data = data[4:]
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FormatACLText renders entries as POSIX "setfacl -m" style text,
// e.g. "user::rwx,group::r-x,other::r--".
func FormatACLText(entries []ACLEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		qual := ""
		if e.Tag == TagUser || e.Tag == TagGroup {
			qual = strconv.FormatUint(uint64(e.Qualifier), 10)
		}
		parts = append(parts, fmt.Sprintf("%s:%s:%s", e.Tag, qual, permString(e.permBits())))
	}
	return strings.Join(parts, ",")
}

// ParseACLText parses POSIX ACL text into entries.
func ParseACLText(text string) ([]ACLEntry, error) {
	var entries []ACLEntry
	for _, field := range strings.Split(text, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		parts := strings.SplitN(field, ":", 3)
		if len(parts) != 3 {
			return nil, errors.Wrapf(isoerr.ErrInvalidInput, "aaip: malformed ACL entry %q", field)
		}
		tag, isNamed, err := parseTagName(parts[0])
		if err != nil {
			return nil, err
		}
		var qual uint32
		if isNamed {
			if parts[1] == "" {
				tag = singletonOf(tag)
			} else {
				n, err := strconv.ParseUint(parts[1], 10, 32)
				if err != nil {
					return nil, errors.Wrapf(isoerr.ErrInvalidInput, "aaip: bad ACL qualifier %q", parts[1])
				}
				qual = uint32(n)
			}
		}
		perm := parts[2]
		if len(perm) != 3 {
			return nil, errors.Wrapf(isoerr.ErrInvalidInput, "aaip: bad ACL permissions %q", perm)
		}
		entries = append(entries, ACLEntry{
			Tag:       tag,
			Qualifier: qual,
			Read:      perm[0] == 'r',
			Write:     perm[1] == 'w',
			Execute:   perm[2] == 'x',
		})
	}
	return entries, nil
}

func parseTagName(s string) (tag ACLTag, isNamedKind bool, err error) {
	switch s {
	case "user":
		return TagUser, true, nil
	case "group":
		return TagGroup, true, nil
	case "mask":
		return TagMask, false, nil
	case "other":
		return TagOther, false, nil
	}
	return 0, false, errors.Wrapf(isoerr.ErrInvalidInput, "aaip: unknown ACL tag %q", s)
}

// singletonOf maps a named-kind tag with an empty qualifier field to its
// "_obj" singleton counterpart (user:: -> owning user, group:: -> owning
// group), matching POSIX ACL text conventions.
func singletonOf(tag ACLTag) ACLTag {
	switch tag {
	case TagUser:
		return TagUserObj
	case TagGroup:
		return TagGroupObj
	}
	return tag
}
