package image

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
	"github.com/discforge/isoforge/internal/writerpipe"
)

// appendedPartitionWriter streams one whole external partition image
// (PReP, EFI System, or a user-supplied appended image) after the ISO
// filesystem content (spec §6.3 "Partitions": "up to 8 appended
// partition image paths"). It owns no volume descriptor of its own —
// the partition it occupies is described entirely by the system area.
type appendedPartitionWriter struct {
	path     string
	typeCode byte

	startLBA uint32
	blocks   uint32
}

func newAppendedPartitionWriter(path string, typeCode byte) *appendedPartitionWriter {
	return &appendedPartitionWriter{path: path, typeCode: typeCode}
}

func (a *appendedPartitionWriter) Name() string { return "appended:" + a.path }

func (a *appendedPartitionWriter) ComputeDataBlocks(cursor uint32) (uint32, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return 0, errors.Wrapf(isoerr.ErrInvalidInput, "image: stat appended partition %s: %v", a.path, err)
	}
	a.startLBA = cursor
	a.blocks = uint32((info.Size() + writerpipe.SectorSize - 1) / writerpipe.SectorSize)
	return cursor + a.blocks, nil
}

func (a *appendedPartitionWriter) WriteVolDesc() ([]byte, error) { return nil, nil }

func (a *appendedPartitionWriter) WriteData(w io.Writer) error {
	f, err := os.Open(a.path)
	if err != nil {
		return errors.Wrapf(isoerr.ErrInvalidInput, "image: opening appended partition %s: %v", a.path, err)
	}
	defer f.Close()

	written, err := io.Copy(w, f)
	if err != nil {
		return errors.Wrap(isoerr.ErrWrite, "image: writing appended partition data")
	}
	if rem := written % writerpipe.SectorSize; rem != 0 {
		if _, err := w.Write(make([]byte, writerpipe.SectorSize-rem)); err != nil {
			return errors.Wrap(isoerr.ErrWrite, "image: padding appended partition to sector boundary")
		}
	}
	return nil
}

func (a *appendedPartitionWriter) FreeData() error { return nil }

// PartitionRange returns the block range this writer reserved (valid
// only after ComputeDataBlocks has run), for the system-area builder.
func (a *appendedPartitionWriter) PartitionRange() (start, blocks uint32) { return a.startLBA, a.blocks }
