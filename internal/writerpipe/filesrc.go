package writerpipe

import (
	"io"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/filesrc"
	"github.com/discforge/isoforge/internal/isoerr"
)

// FileDataWriter streams the deduplicated file-content region (spec
// §4.12 step 3's "filesrc (file-data region)"): pass 1 lays out every
// registered entry's sections via filesrc.Registry.Assign, pass 3 copies
// each entry's stream bytes in registration order.
type FileDataWriter struct {
	Files          *filesrc.Registry
	EmptyFileBlock uint32

	startLBA uint32
	nextLBA  uint32
}

func NewFileDataWriter(files *filesrc.Registry) *FileDataWriter {
	return &FileDataWriter{Files: files}
}

func (f *FileDataWriter) Name() string { return "filesrc" }

func (f *FileDataWriter) ComputeDataBlocks(cursor uint32) (uint32, error) {
	f.startLBA = cursor
	f.Files.SortForLayout()
	next, err := f.Files.Assign(cursor, f.EmptyFileBlock)
	if err != nil {
		return 0, err
	}
	f.nextLBA = next
	return next, nil
}

func (f *FileDataWriter) WriteVolDesc() ([]byte, error) { return nil, nil }

func (f *FileDataWriter) WriteData(w io.Writer) error {
	for _, key := range f.Files.OrderedKeys() {
		entry := f.Files.Get(key)
		if entry == nil || entry.Stream == nil {
			continue
		}
		if err := f.copyEntry(w, entry); err != nil {
			return err
		}
	}
	return nil
}

func (f *FileDataWriter) copyEntry(w io.Writer, entry *filesrc.Entry) error {
	if err := entry.Stream.Open(); err != nil {
		return errors.Wrapf(isoerr.ErrWrite, "writerpipe: opening file source: %v", err)
	}
	defer entry.Stream.Close()

	var written int64
	buf := make([]byte, SectorSize*8)
	for {
		n, err := entry.Stream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return errors.Wrap(isoerr.ErrWrite, "writerpipe: writing file data")
			}
			written += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(isoerr.ErrWrite, "writerpipe: reading file source: %v", err)
		}
	}
	if rem := written % SectorSize; rem != 0 {
		if _, err := w.Write(make([]byte, SectorSize-rem)); err != nil {
			return errors.Wrap(isoerr.ErrWrite, "writerpipe: padding file data to sector boundary")
		}
	}
	return nil
}

func (f *FileDataWriter) FreeData() error { return nil }
