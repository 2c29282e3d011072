// Package aaip implements the Arbitrary Attribute Interchange Protocol
// codec (spec §4.9): encoding/decoding of (name, value) extended-attribute
// pairs and POSIX ACL text into SUSP "AL" system-use fields, plus a
// streaming decoder state machine. Grounded on
// original_source/libisofs/aaip_0_2.c and the RockRidge field layouts in
// other_examples/a07b00a3_rstms-iso-kit__pkg-rockridge-rockridge.go.go.
package aaip

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

// Pair is one extended-attribute (name, value) entry.
type Pair struct {
	Name  string
	Value []byte
}

// fieldHeaderLen is the 5-byte "AL"|length|version|continue header of one
// AAIP field.
const fieldHeaderLen = 5

// fieldBodyLen is the usable payload inside one 255-byte field.
const fieldBodyLen = 255 - fieldHeaderLen

// Namespace prefix codes (spec §4.9): a name's first byte in 1..6 selects
// one of these five expansions, or (code 1) signals a literal escape for a
// name whose real first byte collides with this reserved range.
var namespaceByCode = map[byte]string{
	2: "system.",
	3: "user.",
	4: "isofs.",
	5: "trusted.",
	6: "security.",
}

const literalEscape = 0x01

func encodeName(name string) []byte {
	for code, prefix := range namespaceByCode {
		if prefix != "" && len(name) > len(prefix) && name[:len(prefix)] == prefix {
			return append([]byte{code}, []byte(name[len(prefix):])...)
		}
	}
	if len(name) > 0 && name[0] >= 1 && name[0] <= 6 {
		return append([]byte{literalEscape}, []byte(name)...)
	}
	return []byte(name)
}

func decodeName(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", errors.Wrap(isoerr.ErrInconsistency, "empty AAIP name component")
	}
	code := raw[0]
	if code == literalEscape {
		return string(raw[1:]), nil
	}
	if prefix, ok := namespaceByCode[code]; ok {
		return prefix + string(raw[1:]), nil
	}
	return string(raw), nil
}

// component record flags: bit0 continuation, bit1 isValue (an extension of
// the spec's single-bit flags byte used to disambiguate name vs. value
// components within one pair's record run — see DESIGN.md).
const (
	flagContinue = 1 << 0
	flagIsValue  = 1 << 1
)

// Encode serialises pairs into a sequence of 255-byte AAIP fields, using
// the current AAIP field version (2).
func Encode(pairs []Pair) []byte {
	return EncodeVersion(pairs, 2)
}

// EncodeVersion is Encode with an explicit AAIP field version byte,
// letting a caller request the SUSP-1.10-era draft's version (1) instead
// of the current AAIP revision's version (2) (spec §6.3
// "aaip-susp-1.10").
func EncodeVersion(pairs []Pair, version byte) []byte {
	var components bytes.Buffer
	for _, p := range pairs {
		writeChunks(&components, encodeName(p.Name), 0)
		writeChunks(&components, p.Value, flagIsValue)
	}
	return packFields(components.Bytes(), version)
}

// writeChunks splits data into <=250-byte component records, each prefixed
// by its flags and length byte, continuation-flagging every record but the
// last.
func writeChunks(w *bytes.Buffer, data []byte, extraFlags byte) {
	if len(data) == 0 {
		w.WriteByte(extraFlags)
		w.WriteByte(0)
		return
	}
	for len(data) > 0 {
		n := len(data)
		if n > 255 {
			n = 255
		}
		flags := extraFlags
		if n < len(data) {
			flags |= flagContinue
		}
		w.WriteByte(flags)
		w.WriteByte(byte(n))
		w.Write(data[:n])
		data = data[n:]
	}
}

// packFields packs a flat component-record stream into 255-byte AAIP
// fields, chaining them with the 5-byte field header's continuation byte.
func packFields(components []byte, version byte) []byte {
	var out bytes.Buffer
	for i := 0; i < len(components) || i == 0; {
		n := len(components) - i
		if n > fieldBodyLen {
			n = fieldBodyLen
		}
		cont := byte(0)
		if i+n < len(components) {
			cont = 1
		}
		out.WriteString("AL")
		out.WriteByte(byte(fieldHeaderLen + n))
		out.WriteByte(version)
		out.WriteByte(cont)
		if n > 0 {
			out.Write(components[i : i+n])
		}
		i += n
		if n == 0 {
			break
		}
	}
	return out.Bytes()
}

// Decode parses a complete sequence of packed AAIP fields back into pairs.
// Use Decoder for a streaming, partial-input-tolerant variant.
func Decode(data []byte) ([]Pair, error) {
	d := NewDecoder()
	if err := d.Write(data); err != nil {
		return nil, err
	}
	d.Finish()
	return d.Pairs(), d.Err()
}
