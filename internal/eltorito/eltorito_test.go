package eltorito

import (
	"encoding/binary"
	"testing"
)

func TestMarshalValidationEntryChecksumsToZero(t *testing.T) {
	c := New()
	if err := c.AddImage(BootImage{PlatformID: 0, Bootable: true, MediaType: MediaNoEmulation, LBA: 100, SectorCount: 4}); err != nil {
		t.Fatalf("add image: %v", err)
	}
	data, err := c.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var sum uint16
	for i := 0; i < 32; i += 2 {
		sum += binary.LittleEndian.Uint16(data[i : i+2])
	}
	if sum != 0 {
		t.Fatalf("validation entry checksum did not zero the word sum: %d", sum)
	}
	if data[30] != 0x55 || data[31] != 0xAA {
		t.Fatalf("missing 0x55 0xAA key bytes")
	}
	if len(data) != 2048 {
		t.Fatalf("catalog block wrong size: %d", len(data))
	}
}

func TestMarshalWithSections(t *testing.T) {
	c := New()
	_ = c.AddImage(BootImage{PlatformID: 0, Bootable: true, LBA: 10})
	_ = c.AddImage(BootImage{PlatformID: 0xEF, Bootable: true, LBA: 20})
	data, err := c.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(data) != 2048 {
		t.Fatalf("wrong size: %d", len(data))
	}
}

func TestPatchISOLINUXWritesFields(t *testing.T) {
	img := make([]byte, 128)
	PatchISOLINUX(img, 16, 32)
	if got := binary.LittleEndian.Uint32(img[8:12]); got != 16 {
		t.Fatalf("pvd lba = %d", got)
	}
	if got := binary.LittleEndian.Uint32(img[12:16]); got != 32 {
		t.Fatalf("boot image lba = %d", got)
	}
	if got := binary.LittleEndian.Uint32(img[16:20]); got != 128 {
		t.Fatalf("image length = %d", got)
	}
}

func TestPatchGRUB2WritesSectorUnits(t *testing.T) {
	img := make([]byte, 512)
	PatchGRUB2(img, 100)
	got := binary.LittleEndian.Uint64(img[grub2OffsetPatch : grub2OffsetPatch+8])
	if got != 400 {
		t.Fatalf("got %d, want 400", got)
	}
}
