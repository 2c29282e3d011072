package image

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/eltorito"
	"github.com/discforge/isoforge/internal/filesrc"
	"github.com/discforge/isoforge/internal/isoerr"
	"github.com/discforge/isoforge/internal/logicaltree"
	"github.com/discforge/isoforge/internal/writerpipe"
)

// bootImageStream wraps a boot image's raw bytes with a lazily-applied
// ISOLINUX/GRUB2 patch (spec §4.7): the patch needs the PVD LBA (fixed
// at 16) and this image's own file-data LBA, which filesrc only
// resolves after every writer's ComputeDataBlocks has run, so it cannot
// be applied at registration time. Size() is patch-independent — the
// patch only rewrites bytes already present — so registering this
// stream never perturbs pass 1's layout.
type bootImageStream struct {
	raw  []byte
	once sync.Once

	patchISOLINUX bool
	patchGRUB2    bool
	pvdLBA        uint32
	bootLBA       func() uint32

	reader *bytes.Reader
}

func newBootImageStream(raw []byte, patchISOLINUX, patchGRUB2 bool, pvdLBA uint32, bootLBA func() uint32) *bootImageStream {
	return &bootImageStream{raw: raw, patchISOLINUX: patchISOLINUX, patchGRUB2: patchGRUB2, pvdLBA: pvdLBA, bootLBA: bootLBA}
}

func (b *bootImageStream) Open() error {
	b.once.Do(func() {
		if b.patchISOLINUX {
			eltorito.PatchISOLINUX(b.raw, b.pvdLBA, b.bootLBA())
		}
		if b.patchGRUB2 {
			eltorito.PatchGRUB2(b.raw, b.bootLBA())
		}
	})
	b.reader = bytes.NewReader(b.raw)
	return nil
}

func (b *bootImageStream) Read(p []byte) (int, error) { return b.reader.Read(p) }

func (b *bootImageStream) Close() error { b.reader = nil; return nil }

func (b *bootImageStream) Size() (int64, error) { return int64(len(b.raw)), nil }

func (b *bootImageStream) Identity() (logicaltree.Identity, error) { return logicaltree.Identity{}, nil }

// loadBootImage reads a boot image file from disk whole, since El
// Torito images are small (floppy-emulation sizes or a handful of
// sectors) and need in-place byte patching before registration.
func loadBootImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(isoerr.ErrInvalidInput, "image: reading boot image %s: %v", path, err)
	}
	return data, nil
}

// eltoritoWriter adapts eltorito.Catalog into the writerpipe.Writer
// capability set (spec §4.12 step 3's "El Torito (if any)" slot). It
// reserves its own catalog block in pass 1; the boot images themselves
// are ordinary filesrc entries, resolved here at WriteVolDesc/WriteData
// time once every writer's ComputeDataBlocks has already run, since
// Pipeline.Run completes all of pass 1 before any writer's pass 2/3
// methods execute.
type eltoritoWriter struct {
	Files *filesrc.Registry
	PVDLBA uint32

	specs []eltoritoImageSpec

	catalogLBA  uint32
	catalogBytes []byte
}

type eltoritoImageSpec struct {
	key       string
	img       eltorito.BootImage
	imageSize int64
}

func newEltoritoWriter(files *filesrc.Registry, pvdLBA uint32) *eltoritoWriter {
	return &eltoritoWriter{Files: files, PVDLBA: pvdLBA}
}

func (e *eltoritoWriter) addImage(key string, img eltorito.BootImage) {
	e.specs = append(e.specs, eltoritoImageSpec{key: key, img: img})
}

func (e *eltoritoWriter) Name() string { return "eltorito" }

func (e *eltoritoWriter) ComputeDataBlocks(cursor uint32) (uint32, error) {
	e.catalogLBA = cursor
	return cursor + 1, nil
}

func (e *eltoritoWriter) resolveImages() (*eltorito.Catalog, error) {
	cat := eltorito.New()
	for _, spec := range e.specs {
		sections := e.Files.Sections(spec.key)
		if len(sections) == 0 {
			return nil, errors.Wrapf(isoerr.ErrInconsistency, "image: boot image %q never assigned a file-data section", spec.key)
		}
		img := spec.img
		img.LBA = sections[0].Block
		img.SectorCount = uint16((sections[0].Size + 511) / 512)
		if err := cat.AddImage(img); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func (e *eltoritoWriter) WriteVolDesc() ([]byte, error) {
	if len(e.specs) == 0 {
		return nil, nil
	}
	cat, err := e.resolveImages()
	if err != nil {
		return nil, err
	}
	e.catalogBytes, err = cat.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "image: marshalling El Torito catalog")
	}
	return writerpipe.MarshalBootRecordVD(e.catalogLBA), nil
}

func (e *eltoritoWriter) WriteData(w io.Writer) error {
	if len(e.specs) == 0 {
		return nil
	}
	if _, err := w.Write(e.catalogBytes); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "image: writing El Torito catalog")
	}
	return nil
}

func (e *eltoritoWriter) FreeData() error { return nil }
