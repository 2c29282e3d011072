package aaip

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pairs := []Pair{
		{Name: "user.comment", Value: []byte("hello world")},
		{Name: "isofs.cx", Value: []byte{0x01, 0x02, 0x03, 0x04}},
		{Name: "trusted.selinux", Value: bytes.Repeat([]byte("x"), 600)},
	}
	encoded := Encode(pairs)
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(pairs) {
		t.Fatalf("got %d pairs, want %d", len(got), len(pairs))
	}
	for i, p := range pairs {
		if got[i].Name != p.Name {
			t.Fatalf("pair %d: name %q, want %q", i, got[i].Name, p.Name)
		}
		if !bytes.Equal(got[i].Value, p.Value) {
			t.Fatalf("pair %d: value mismatch", i)
		}
	}
}

func TestEncodeDecodeEmptyValue(t *testing.T) {
	pairs := []Pair{{Name: "system.flag", Value: nil}}
	got, err := Decode(Encode(pairs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "system.flag" || len(got[0].Value) != 0 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestDecoderStreamingArbitraryChunks(t *testing.T) {
	pairs := []Pair{
		{Name: "user.a", Value: []byte("1")},
		{Name: "user.b", Value: []byte("22")},
	}
	encoded := Encode(pairs)
	d := NewDecoder()
	for i := 0; i < len(encoded); i += 3 {
		end := i + 3
		if end > len(encoded) {
			end = len(encoded)
		}
		if err := d.Write(encoded[i:end]); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
	}
	d.Finish()
	if err := d.Err(); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	got := d.Pairs()
	if len(got) != 2 || got[0].Name != "user.a" || got[1].Name != "user.b" {
		t.Fatalf("unexpected pairs: %+v", got)
	}
}

func TestNamespacePrefixRoundTrip(t *testing.T) {
	for _, name := range []string{"system.foo", "user.bar", "isofs.cx", "trusted.x", "security.y", "plain"} {
		raw := encodeName(name)
		back, err := decodeName(raw)
		if err != nil {
			t.Fatalf("decodeName(%q): %v", name, err)
		}
		if back != name {
			t.Fatalf("round trip %q -> %q", name, back)
		}
	}
}

func TestACLTextRoundTrip(t *testing.T) {
	text := "user::rwx,user:1000:rw-,group::r-x,group:100:r--,mask::rwx,other::r--"
	entries, err := ParseACLText(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	encoded := EncodeACL(entries)
	back, err := DecodeACL(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(back) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(back), len(entries))
	}
	rendered := FormatACLText(back)
	if !strings.Contains(rendered, "rwx") {
		t.Fatalf("rendered text missing expected permissions: %q", rendered)
	}
}
