package writerpipe

import (
	"io"

	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
	"github.com/discforge/isoforge/internal/sysarea"
)

// ChecksumWriter reserves no blocks of its own; it exists to satisfy the
// Writer interface slot spec §4.12 step 3 lists between "filesrc" and
// "trailing zero/tail" for the image-wide MD5 tag, which Pipeline.Run
// actually computes by wrapping the sink in an io.MultiWriter. Keeping it
// as a named no-op writer documents the step's position in the ordered
// list even though Pipeline itself owns the hashing.
type ChecksumWriter struct{}

func (ChecksumWriter) Name() string { return "checksum" }

func (ChecksumWriter) ComputeDataBlocks(cursor uint32) (uint32, error) { return cursor, nil }

func (ChecksumWriter) WriteVolDesc() ([]byte, error) { return nil, nil }

func (ChecksumWriter) WriteData(w io.Writer) error { return nil }

func (ChecksumWriter) FreeData() error { return nil }

// ZeroPadWriter pads the image out to a multiple of AlignBlocks, used for
// cylinder alignment (spec §4.11 step 7: "Cylinder-align the image size
// by increasing tail_blocks to a multiple of heads x sectors x 512
// bytes").
type ZeroPadWriter struct {
	AlignBlocks uint32

	startLBA uint32
	padBlocks uint32
}

func NewZeroPadWriter(alignBlocks uint32) *ZeroPadWriter {
	if alignBlocks == 0 {
		alignBlocks = 1
	}
	return &ZeroPadWriter{AlignBlocks: alignBlocks}
}

func (z *ZeroPadWriter) Name() string { return "zero-pad" }

func (z *ZeroPadWriter) ComputeDataBlocks(cursor uint32) (uint32, error) {
	z.startLBA = cursor
	rem := cursor % z.AlignBlocks
	if rem == 0 {
		z.padBlocks = 0
		return cursor, nil
	}
	z.padBlocks = z.AlignBlocks - rem
	return cursor + z.padBlocks, nil
}

func (z *ZeroPadWriter) WriteVolDesc() ([]byte, error) { return nil, nil }

func (z *ZeroPadWriter) WriteData(w io.Writer) error {
	if z.padBlocks == 0 {
		return nil
	}
	if _, err := w.Write(make([]byte, int(z.padBlocks)*SectorSize)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "writerpipe: writing tail padding")
	}
	return nil
}

func (z *ZeroPadWriter) FreeData() error { return nil }

// GPTTailWriter appends the GPT backup (header + entry array) at the
// image's end once the final block count is known (spec §4.11 step 5).
// It reserves no blocks itself in pass 1; ZeroPadWriter/the orchestrator
// must run after the total block count settles, then the orchestrator
// calls Finalize with that count before WriteData is invoked.
type GPTTailWriter struct {
	Entries []byte // the primary GPT partition-entry array bytes

	totalBlocks uint32
}

func NewGPTTailWriter(entries []byte) *GPTTailWriter {
	return &GPTTailWriter{Entries: entries}
}

func (g *GPTTailWriter) Name() string { return "gpt-tail" }

func (g *GPTTailWriter) ComputeDataBlocks(cursor uint32) (uint32, error) {
	tailBytes := len(g.Entries) + 512
	tailBlocks := uint32((tailBytes + SectorSize - 1) / SectorSize)
	g.totalBlocks = cursor + tailBlocks
	return g.totalBlocks, nil
}

func (g *GPTTailWriter) WriteVolDesc() ([]byte, error) { return nil, nil }

func (g *GPTTailWriter) WriteData(w io.Writer) error {
	if len(g.Entries) == 0 {
		return nil
	}
	tail := sysarea.BuildBackupTail(g.Entries, g.totalBlocks)
	if _, err := w.Write(padToSectors(tail)); err != nil {
		return errors.Wrap(isoerr.ErrWrite, "writerpipe: writing GPT backup tail")
	}
	return nil
}

func (g *GPTTailWriter) FreeData() error { return nil }
