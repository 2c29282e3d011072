package eltorito

import "encoding/binary"

// PatchISOLINUX applies the ISOLINUX boot-info-table patch at byte offset
// 8 of a boot image (56 bytes total), per spec §4.7: PVD LBA, boot-image
// LBA, image length, and a checksum over the remainder of the image.
func PatchISOLINUX(image []byte, pvdLBA, bootImageLBA uint32) {
	if len(image) < 64 {
		return
	}
	binary.LittleEndian.PutUint32(image[8:12], pvdLBA)
	binary.LittleEndian.PutUint32(image[12:16], bootImageLBA)
	binary.LittleEndian.PutUint32(image[16:20], uint32(len(image)))

	var sum uint32
	for off := 64; off+4 <= len(image); off += 4 {
		sum += binary.LittleEndian.Uint32(image[off : off+4])
	}
	if rem := len(image) % 4; rem != 0 {
		start := len(image) - rem
		var tail [4]byte
		copy(tail[:], image[start:])
		sum += binary.LittleEndian.Uint32(tail[:])
	}
	binary.LittleEndian.PutUint32(image[20:24], sum)
}

// grub2OffsetPatch is the fixed byte offset, within a GRUB2 boot image,
// where the boot-image LBA (in 512-byte units) is written as a
// little-endian 64-bit value, per spec §4.7.
const grub2OffsetPatch = 0x1f0

// PatchGRUB2 applies the GRUB2 offset patch: the boot image's LBA,
// expressed in 512-byte sectors, as a little-endian uint64 at a fixed
// position.
func PatchGRUB2(image []byte, bootImageLBA uint32) {
	sectorUnits := uint64(bootImageLBA) * (2048 / 512)
	if len(image) < grub2OffsetPatch+8 {
		return
	}
	binary.LittleEndian.PutUint64(image[grub2OffsetPatch:grub2OffsetPatch+8], sectorUnits)
}
