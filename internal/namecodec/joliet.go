package namecodec

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// ToJoliet truncates src to the Joliet UCS-2 character budget (64 by
// default, 103 under joliet_long_names per spec §4.6/§6.3) and returns it as
// a Go string; UCS2BE encodes it to wire bytes at marshal time.
func ToJoliet(src string, maxChars int) string {
	runes := []rune(src)
	if len(runes) > maxChars {
		runes = runes[:maxChars]
	}
	return string(runes)
}

// UCS2BE encodes s as big-endian UCS-2, the Joliet wire format.
func UCS2BE(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := new(bytes.Buffer)
	for _, u := range units {
		_ = binary.Write(buf, binary.BigEndian, u)
	}
	return buf.Bytes()
}
