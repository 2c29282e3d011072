package namecodec

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// ToHFS decomposes src to normalised UTF-16 and computes a case-folded
// comparison key, per spec §4.1/§4.6. Decomposition uses
// golang.org/x/text/unicode/norm's canonical (NFD) form, the Go-idiomatic
// replacement for HFS+'s bespoke decomposition tables; the case-fold key
// uses simple Unicode case folding (strings.ToLower over the decomposed
// form), a documented simplification of Apple's fast-unicode-compare table
// — see DESIGN.md.
func ToHFS(src string) (decomposed string, cmpKey string) {
	decomposed = norm.NFD.String(src)
	cmpKey = strings.ToLower(decomposed)
	return decomposed, cmpKey
}

// UTF16BE encodes s (already decomposed) as big-endian UTF-16, the HFS+ Unicode
// string wire format.
func UTF16BE(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := new(bytes.Buffer)
	for _, u := range units {
		_ = binary.Write(buf, binary.BigEndian, u)
	}
	return buf.Bytes()
}

// CompareHFS orders two names by their HFS+ case-folded comparison key,
// matching the catalog B-tree's (parent_cnid, case-fold name) order
// (spec §4.6 step 1).
func CompareHFS(a, b string) int {
	_, ka := ToHFS(a)
	_, kb := ToHFS(b)
	return strings.Compare(ka, kb)
}
