package image

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/discforge/isoforge/internal/logicaltree"
	"github.com/discforge/isoforge/internal/writerpipe"
)

func writeSourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.TXT"), []byte("hello world\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "notes.txt"), []byte("some notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "EMPTY.TXT"), nil, 0o644))
	return root
}

func TestBuildProducesSectorAlignedImageMatchingPredictSize(t *testing.T) {
	root := writeSourceTree(t)

	opts := DefaultOptions()
	opts.Joliet = true
	opts.VolumeID = "TESTVOL"

	img, err := NewImage(root, opts)
	require.NoError(t, err)

	predicted, err := img.PredictSize()
	require.NoError(t, err)
	require.Greater(t, predicted, uint32(sysAreaBlocksForTest))

	var buf bytes.Buffer
	result, err := img.Build(&buf)
	require.NoError(t, err)

	require.Equal(t, predicted, result.TotalBlocks, "PredictSize and Build must agree on block count when no GPT tail is appended")
	require.Equal(t, int(result.TotalBlocks)*writerpipe.SectorSize, buf.Len(), "written image must be exactly TotalBlocks sectors")
	require.Zero(t, buf.Len()%writerpipe.SectorSize)

	var zero [16]byte
	require.NotEqual(t, zero, result.MD5, "MD5 digest must be populated")
}

func TestBuildIsDeterministicAcrossRuns(t *testing.T) {
	root := writeSourceTree(t)
	opts := DefaultOptions()

	img1, err := NewImage(root, opts)
	require.NoError(t, err)
	var buf1 bytes.Buffer
	res1, err := img1.Build(&buf1)
	require.NoError(t, err)

	img2, err := NewImage(root, opts)
	require.NoError(t, err)
	var buf2 bytes.Buffer
	res2, err := img2.Build(&buf2)
	require.NoError(t, err)

	require.Equal(t, res1.TotalBlocks, res2.TotalBlocks)
	require.Equal(t, res1.MD5, res2.MD5)
	require.True(t, bytes.Equal(buf1.Bytes(), buf2.Bytes()))
}

func TestBuildWithAppendedPartitionReservesRangeInSystemArea(t *testing.T) {
	root := writeSourceTree(t)

	partPath := filepath.Join(t.TempDir(), "efi.img")
	require.NoError(t, os.WriteFile(partPath, bytes.Repeat([]byte{0xAB}, 3*writerpipe.SectorSize), 0o644))

	opts := DefaultOptions()
	opts.EFIBootImagePath = partPath

	img, err := NewImage(root, opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := img.Build(&buf)
	require.NoError(t, err)
	require.Zero(t, buf.Len()%writerpipe.SectorSize)
	require.Equal(t, int(result.TotalBlocks)*writerpipe.SectorSize, buf.Len())
}

func TestMarkHiddenFlagsMatchingEntryAcrossViews(t *testing.T) {
	root := writeSourceTree(t)
	opts := DefaultOptions()
	opts.HideNames = []string{"notes.txt", "", ".", "missing.txt"}

	img, err := NewImage(root, opts)
	require.NoError(t, err)

	var sawHidden bool
	err = img.Arena.Walk(img.Arena.Root(), func(idx logicaltree.NodeIndex, depth int) error {
		n := img.Arena.Node(idx)
		if n.Name == "notes.txt" {
			require.True(t, n.Hidden.Hidden(logicaltree.ViewECMA119))
			require.True(t, n.Hidden.Hidden(logicaltree.ViewJoliet))
			sawHidden = true
		}
		return nil
	})
	require.NoError(t, err)
	require.True(t, sawHidden, "notes.txt must have been visited")
}

// sysAreaBlocksForTest mirrors sysarea.SystemAreaBlocks without importing
// the package just for this one bound-check constant.
const sysAreaBlocksForTest = 16
