package sysarea

import (
	"encoding/binary"
	"testing"
)

func TestMBRHonoursDesiredSlotAndFillsRest(t *testing.T) {
	c := New()
	c.MBR = []MBRRequest{
		{StartBlock: 100, BlockCount: 50, TypeCode: 0x83, DesiredSlot: 3},
		{StartBlock: 0, BlockCount: 16, TypeCode: 0x00},
	}
	buf, err := c.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if buf[mbrSignatureOffset] != 0x55 || buf[mbrSignatureOffset+1] != 0xAA {
		t.Fatalf("missing MBR signature")
	}
	slot3 := buf[mbrPartitionTableOffset+2*16 : mbrPartitionTableOffset+3*16]
	if slot3[4] != 0x83 {
		t.Fatalf("slot 3 type byte = %#x, want 0x83", slot3[4])
	}
	slot1 := buf[mbrPartitionTableOffset : mbrPartitionTableOffset+16]
	if lba := binary.LittleEndian.Uint32(slot1[8:12]); lba != 0 {
		t.Fatalf("unassigned request should fill slot 1, got start lba %d", lba)
	}
}

func TestAPMFillsGaps(t *testing.T) {
	c := New()
	c.APM = []APMRequest{
		{StartBlock: 10, BlockCount: 5, Name: "data", APMType: "Apple_HFS"},
	}
	buf, err := c.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	gapEntry := buf[apmBlockSize : apmBlockSize*2]
	if sig := binary.BigEndian.Uint16(gapEntry[0:2]); sig != apmEntrySignature {
		t.Fatalf("gap entry missing signature: %#x", sig)
	}
	name := string(gapEntry[16:20])
	if name != "Gap0" {
		t.Fatalf("gap name = %q, want Gap0", name)
	}
	dataEntry := buf[apmBlockSize*2 : apmBlockSize*3]
	if start := binary.BigEndian.Uint32(dataEntry[8:12]); start != 10 {
		t.Fatalf("data entry start = %d, want 10", start)
	}
}

func TestGPTCRC32MatchesKnownVector(t *testing.T) {
	// "123456789" -> 0xCBF43926 is the standard CRC-32/ISO-HDLC check
	// value, which this implementation's polynomial and reflection match.
	got := CRC32([]byte("123456789"))
	if got != 0xCBF43926 {
		t.Fatalf("CRC32 = %#x, want 0xcbf43926", got)
	}
}

func TestGPTOverlapRejectedUnlessAllowed(t *testing.T) {
	c := New()
	c.GPT = []GPTRequest{
		{StartBlock: 0, BlockCount: 10},
		{StartBlock: 5, BlockCount: 10},
	}
	if _, err := c.Build(); err == nil {
		t.Fatalf("expected overlap error")
	}
	c.AllowGPTOverlap = true
	if _, err := c.Build(); err != nil {
		t.Fatalf("build with overlap allowed: %v", err)
	}
}

func TestGPTHeaderCRCSelfVerifies(t *testing.T) {
	c := New()
	c.GapFill = false
	c.GPT = []GPTRequest{{StartBlock: 0, BlockCount: 10}}
	buf, err := c.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	header := make([]byte, gptHeaderSize)
	copy(header, buf[512:512+gptHeaderSize])
	storedCRC := binary.LittleEndian.Uint32(header[16:20])
	binary.LittleEndian.PutUint32(header[16:20], 0)
	if got := CRC32(header); got != storedCRC {
		t.Fatalf("header CRC self-check failed: got %#x, want %#x", got, storedCRC)
	}
}

func TestSUNLabelChecksumZeroesOut(t *testing.T) {
	buf, err := BuildSUNLabel([]PartitionRequest{{StartBlock: 0, BlockCount: 100, TypeCode: 2}}, DefaultGeometry)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(buf) != sunLabelSize {
		t.Fatalf("wrong size: %d", len(buf))
	}
	var checksum uint16
	for i := 0; i < sunLabelSize; i += 2 {
		checksum ^= binary.BigEndian.Uint16(buf[i : i+2])
	}
	if checksum != 0 {
		t.Fatalf("SUN label checksum did not zero out: %#x", checksum)
	}
}

func TestBuildMIPSVariantsDifferByByteOrder(t *testing.T) {
	be := BuildMIPS(MIPSBigEndian, 20, 4096)
	le := BuildMIPS(MIPSLittleEndian, 20, 4096)
	if binary.BigEndian.Uint32(be[0:4]) != 0x0be5a941 {
		t.Fatalf("BE magic mismatch")
	}
	if binary.LittleEndian.Uint32(le[0:4]) != 0x0be5a941 {
		t.Fatalf("LE magic mismatch")
	}
	chrp := BuildMIPS(MIPSCHRP, 20, 4096)
	if string(chrp[0:4]) != "CHRP" {
		t.Fatalf("CHRP magic missing")
	}
}
