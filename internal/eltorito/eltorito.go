// Package eltorito builds the El Torito boot catalog (spec §4.7): a
// validation entry, a default entry, and section header/entry pairs for
// additional boot images, plus the ISOLINUX boot-info-table and GRUB2
// offset patches applied to boot image content before it is registered
// as a file source.
//
// Grounded on original_source/libisofs/eltorito.c's catalog and
// boot-image-patch layout; there is no teacher equivalent (the teacher
// never produces a bootable image), so this package follows the original
// C implementation's byte layout directly, rendered in the teacher's
// fixed-size-struct-plus-marshal style (see internal/viewtree/records.go).
package eltorito

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

// MaxBootImages is the fixed upper bound on registered boot images (spec
// §4.7: "up to a fixed number of images (at least 32)").
const MaxBootImages = 32

const entrySize = 32

// MediaType enumerates the El Torito default/section entry media types.
type MediaType byte

const (
	MediaNoEmulation MediaType = 0
	Media1_2MB       MediaType = 1
	Media1_44MB      MediaType = 2
	Media2_88MB      MediaType = 3
	MediaHardDisk    MediaType = 4
)

// BootImage describes one registered boot image: its platform, bootable
// media parameters, and where its content lives in the image.
type BootImage struct {
	PlatformID   byte
	IDString     [28]byte
	Bootable     bool
	MediaType    MediaType
	LoadSegment  uint16
	SystemType   byte
	SectorCount  uint16
	LBA          uint32
}

// Catalog accumulates boot images and renders the boot catalog's single
// 2048-byte block.
type Catalog struct {
	images []BootImage
}

// New creates an empty catalog. The first AddImage call becomes the
// default entry; every subsequent call becomes a section entry grouped
// under a section header by (PlatformID, IDString).
func New() *Catalog { return &Catalog{} }

// AddImage registers one boot image, failing once MaxBootImages is
// reached.
func (c *Catalog) AddImage(img BootImage) error {
	if len(c.images) >= MaxBootImages {
		return errors.Wrapf(isoerr.ErrLayout, "eltorito: catalog already holds %d images", MaxBootImages)
	}
	c.images = append(c.images, img)
	return nil
}

// Marshal renders the complete boot catalog content: a validation entry,
// the default entry, then one section header plus its entries per
// distinct (PlatformID, IDString) group among the remaining images,
// zero-padded to 2048 bytes (spec §4.7).
func (c *Catalog) Marshal() ([]byte, error) {
	if len(c.images) == 0 {
		return nil, errors.Wrap(isoerr.ErrInvalidInput, "eltorito: catalog has no boot images")
	}
	out := make([]byte, 0, 2048)
	out = append(out, validationEntry(c.images[0].PlatformID, c.images[0].IDString)...)
	out = append(out, defaultEntry(c.images[0])...)

	rest := c.images[1:]
	i := 0
	for i < len(rest) {
		j := i + 1
		for j < len(rest) && rest[j].PlatformID == rest[i].PlatformID && rest[j].IDString == rest[i].IDString {
			j++
		}
		group := rest[i:j]
		isLast := j == len(rest)
		out = append(out, sectionHeader(group[len(group)-1].PlatformID, len(group), isLast, group[0].IDString)...)
		for _, img := range group {
			out = append(out, sectionEntry(img)...)
		}
		i = j
	}

	if len(out) > 2048 {
		return nil, errors.Wrap(isoerr.ErrLayout, "eltorito: boot catalog exceeds one block")
	}
	padded := make([]byte, 2048)
	copy(padded, out)
	return padded, nil
}

// validationEntry renders the 32-byte validation entry with a checksum
// chosen so the sum of all 16-bit little-endian words is zero, and the
// 0x55 0xAA key-byte pair (spec §4.7).
func validationEntry(platformID byte, idString [28]byte) []byte {
	e := make([]byte, entrySize)
	e[0] = 1 // header ID
	e[1] = platformID
	copy(e[4:28], idString[:])
	e[30], e[31] = 0x55, 0xAA
	var sum uint16
	for i := 0; i < entrySize; i += 2 {
		sum += binary.LittleEndian.Uint16(e[i : i+2])
	}
	checksum := uint16(0) - sum
	binary.LittleEndian.PutUint16(e[28:30], checksum)
	return e
}

func defaultEntry(img BootImage) []byte {
	e := make([]byte, entrySize)
	if img.Bootable {
		e[0] = 0x88
	} else {
		e[0] = 0x00
	}
	e[1] = byte(img.MediaType)
	binary.LittleEndian.PutUint16(e[2:4], img.LoadSegment)
	e[4] = img.SystemType
	e[5] = 0
	binary.LittleEndian.PutUint16(e[6:8], img.SectorCount)
	binary.LittleEndian.PutUint32(e[8:12], img.LBA)
	return e
}

// sectionHeader renders a §2.3 section header: header ID (0x90 if more
// sections follow, 0x91 for the last), platform id, entry count, and an
// identifier string.
func sectionHeader(platformID byte, numEntries int, isLast bool, idString [28]byte) []byte {
	h := make([]byte, entrySize)
	if isLast {
		h[0] = 0x91
	} else {
		h[0] = 0x90
	}
	h[1] = platformID
	binary.LittleEndian.PutUint16(h[2:4], uint16(numEntries))
	copy(h[4:], idString[:])
	return h
}

// sectionEntry renders a §2.4 section entry, structurally identical to
// the default entry but for an additional boot image.
func sectionEntry(img BootImage) []byte {
	return defaultEntry(img)
}
