package image

import (
	"crypto/md5"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/discforge/isoforge/internal/eltorito"
	"github.com/discforge/isoforge/internal/filesrc"
	"github.com/discforge/isoforge/internal/hfsplus"
	"github.com/discforge/isoforge/internal/logicaltree"
	"github.com/discforge/isoforge/internal/namecodec"
	"github.com/discforge/isoforge/internal/sysarea"
	"github.com/discforge/isoforge/internal/viewtree"
	"github.com/discforge/isoforge/internal/writerpipe"
)

var log = logrus.WithField("component", "image")

// Image is one frozen build: a scanned source tree, one viewtree.Tree
// per enabled view, and the shared file-source registry every view's
// file nodes resolve their data through (spec §3/§4.12).
type Image struct {
	Opts  Options
	Arena *logicaltree.Arena
	Files *filesrc.Registry

	ecma119 *viewtree.Tree
	joliet  *viewtree.Tree
	iso1999 *viewtree.Tree
	hfs     *viewtree.Tree

	bootSpecs []eltoritoImageSpec
}

// BuildResult reports the settled block count and whole-image MD5
// digest of a completed build (spec §6.2's session-end checksum tag).
type BuildResult struct {
	TotalBlocks uint32
	MD5         [16]byte
}

// NewImage scans sourceDir into a logical tree, registers every file's
// content stream with a shared file-source registry, and builds one
// view tree per enabled view — everything pass 1 onward needs frozen
// before a build starts (spec §5: "all image-model data read by the
// writer task is frozen before the task starts").
func NewImage(sourceDir string, opts Options) (*Image, error) {
	arena, err := logicaltree.FromDir(sourceDir)
	if err != nil {
		return nil, err
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	img := &Image{Opts: opts, Arena: arena, Files: filesrc.New()}
	img.markHidden(opts.HideNames)

	if err := img.registerBootImages(); err != nil {
		return nil, err
	}
	keyByLogical, err := img.registerFileStreams()
	if err != nil {
		return nil, err
	}
	if err := img.buildTrees(keyByLogical); err != nil {
		return nil, err
	}
	return img, nil
}

// markHidden flags every entry whose on-disk name matches one of names
// as hidden across every view (grounded on the teacher CLI's "-H" flag
// and ISOBuilder.MarkFileNamesAsHidden). A name that matches nothing,
// or names a navigational/empty entry, only warns — hiding is cosmetic,
// never a reason to fail a build.
func (img *Image) markHidden(names []string) {
	views := []logicaltree.View{
		logicaltree.ViewECMA119, logicaltree.ViewJoliet, logicaltree.ViewHFSPlus,
		logicaltree.ViewFAT, logicaltree.ViewRockRidge,
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			log.Warn("markHidden: cannot hide an empty filename")
			continue
		}
		if name == "." || name == ".." {
			log.Warnf("markHidden: cannot hide navigational entry %q", name)
			continue
		}

		found := false
		_ = img.Arena.Walk(img.Arena.Root(), func(idx logicaltree.NodeIndex, depth int) error {
			if idx == img.Arena.Root() {
				return nil
			}
			n := img.Arena.Node(idx)
			if n.Name == name {
				for _, v := range views {
					n.Hidden.SetHidden(v, true)
				}
				found = true
			}
			return nil
		})
		if !found {
			log.Warnf("markHidden: no entry named %q found to hide", name)
		}
	}
}

// registerFileStreams walks the arena once, registering every file
// node's content stream under its logical path as the dedup fallback
// key, and returns the logical-node -> filesrc-key map each view tree
// needs to populate its own Node.FileSourceKey fields.
func (img *Image) registerFileStreams() (map[logicaltree.NodeIndex]string, error) {
	keyByLogical := make(map[logicaltree.NodeIndex]string)
	err := img.Arena.Walk(img.Arena.Root(), func(idx logicaltree.NodeIndex, depth int) error {
		n := img.Arena.Node(idx)
		if n.Kind != logicaltree.KindFile {
			return nil
		}

		var sum [16]byte
		var haveSum bool
		if img.Opts.RecordFileMD5 || img.Opts.PreCompareFileMD5 {
			var err error
			sum, err = hashStream(n.Stream)
			if err != nil {
				return err
			}
			haveSum = true
		}
		if img.Opts.RecordFileMD5 {
			// isofs.cx: per-file MD5 recorded as an AAIP extended attribute
			// (spec "isofs.cx per-file checksum xattr"), independent of the
			// whole-session tag BuildResult.MD5 reports.
			n.Attributes = append(n.Attributes, logicaltree.Attribute{
				Name:  "isofs.cx",
				Value: append([]byte(nil), sum[:]...),
			})
		}

		var key string
		var err error
		if img.Opts.PreCompareFileMD5 && haveSum {
			key, err = img.Files.RegisterByHash(n.Stream, sum)
		} else {
			key, err = img.Files.Register(n.Stream, img.Arena.Path(idx))
		}
		if err != nil {
			return err
		}
		keyByLogical[idx] = key
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keyByLogical, nil
}

// hashStream computes the MD5 digest of a content stream's full bytes,
// opening and closing it itself; a nil stream hashes to the zero digest.
func hashStream(s logicaltree.ContentStream) ([16]byte, error) {
	var sum [16]byte
	if s == nil {
		return sum, nil
	}
	if err := s.Open(); err != nil {
		return sum, err
	}
	defer s.Close()

	h := md5.New()
	buf := make([]byte, 64*1024)
	for {
		n, rerr := s.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return sum, rerr
		}
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// registerBootImages loads every configured El Torito boot image,
// wraps it in a lazily-patched content stream, and registers it as an
// ordinary file source — the image's bytes flow through
// writerpipe.FileDataWriter exactly like any other file, with the
// ISOLINUX/GRUB2 patch applied the first time the stream is opened
// (spec §4.7).
func (img *Image) registerBootImages() error {
	for _, bi := range img.Opts.BootImages {
		raw, err := loadBootImage(bi.Path)
		if err != nil {
			return err
		}

		var key string
		stream := newBootImageStream(raw, bi.PatchISOLINUX, bi.PatchGRUB2, 16, func() uint32 {
			sections := img.Files.Sections(key)
			if len(sections) == 0 {
				return 0
			}
			return sections[0].Block
		})
		key, err = img.Files.Register(stream, bi.Path)
		if err != nil {
			return err
		}

		img.bootSpecs = append(img.bootSpecs, eltoritoImageSpec{
			key: key,
			img: eltorito.BootImage{
				PlatformID:  bi.PlatformID,
				IDString:    bi.IDString,
				Bootable:    bi.Bootable,
				MediaType:   eltorito.MediaType(bi.MediaType),
				LoadSegment: bi.LoadSegment,
				SystemType:  bi.SystemType,
			},
		})
	}
	return nil
}

// buildTrees constructs one viewtree.Tree per enabled view. Each tree
// is built tolerating deep paths, relocated under the option's real
// AllowDeepPaths setting, hard-link-assigned, then mangled — the same
// Build-then-Relocate-then-Mangle order internal/viewtree's own tests
// exercise, since Build itself rejects deep paths outright when
// AllowDeepPaths is already false.
func (img *Image) buildTrees(keyByLogical map[logicaltree.NodeIndex]string) error {
	build := func(view viewtree.View, vopts viewtree.Options) (*viewtree.Tree, error) {
		tolerant := vopts
		tolerant.AllowDeepPaths = true
		tree, err := viewtree.Build(img.Arena, view, tolerant)
		if err != nil {
			return nil, err
		}
		tree.Opts = vopts
		if err := viewtree.Relocate(tree); err != nil {
			return nil, err
		}
		viewtree.AssignHardlinks(tree, img.Arena, vopts.Hardlinks, 1)
		if err := viewtree.Mangle(tree); err != nil {
			return nil, err
		}
		for i := range tree.Nodes {
			if tree.Nodes[i].IsDir {
				continue
			}
			if key, ok := keyByLogical[tree.Nodes[i].Logical]; ok {
				tree.Nodes[i].FileSourceKey = key
			}
		}
		return tree, nil
	}

	ecmaOpts := viewtree.Options{
		Level:          viewtree.Level(img.Opts.Level),
		Relax:          uint8(img.Opts.Relax()),
		AllowDeepPaths: img.Opts.AllowDeepPaths,
		OmitVersions:   img.Opts.OmitVersion,
		Hardlinks:      img.Opts.Hardlinks,
		RelocationDir:  img.Opts.RelocationDirName,
		MaxPathChars:   255,
		MaxNameChars:   maxNameCharsFor(viewtree.ViewECMA119, img.Opts),

		RockRidge:     img.Opts.RockRidge,
		RRIP110Compat: img.Opts.RRIP110Compat,
		RRIP110PXIno:  img.Opts.RRIP110PXIno,
		AAIP:          img.Opts.AAIP && !img.Opts.RRIP110Compat,
		AAIPSUSP110:   img.Opts.AAIPSUSP110,
	}
	var err error
	img.ecma119, err = build(viewtree.ViewECMA119, ecmaOpts)
	if err != nil {
		return errors.Wrap(err, "image: building ECMA-119 view")
	}

	if img.Opts.Joliet {
		jOpts := ecmaOpts
		jOpts.JolietLongNames = img.Opts.JolietLongNames
		jOpts.MaxPathChars = 240
		if img.Opts.JolietLongerPaths {
			jOpts.MaxPathChars = 0 // unlimited; Relocate only acts on ViewECMA119 anyway
		}
		jOpts.MaxNameChars = maxNameCharsFor(viewtree.ViewJoliet, img.Opts)
		img.joliet, err = build(viewtree.ViewJoliet, jOpts)
		if err != nil {
			return errors.Wrap(err, "image: building Joliet view")
		}
	}

	if img.Opts.ISO9660v2 {
		vOpts := ecmaOpts
		vOpts.MaxPathChars = 207
		vOpts.MaxNameChars = maxNameCharsFor(viewtree.ViewISO9660v2, img.Opts)
		img.iso1999, err = build(viewtree.ViewISO9660v2, vOpts)
		if err != nil {
			return errors.Wrap(err, "image: building ISO 9660:1999 view")
		}
	}

	if img.Opts.HFSPlus {
		hOpts := viewtree.Options{Hardlinks: img.Opts.Hardlinks, MaxNameChars: maxNameCharsFor(viewtree.ViewHFSPlus, img.Opts)}
		img.hfs, err = build(viewtree.ViewHFSPlus, hOpts)
		if err != nil {
			return errors.Wrap(err, "image: building HFS+ view")
		}
	}
	return nil
}

func maxNameCharsFor(view viewtree.View, o Options) int {
	switch view {
	case viewtree.ViewJoliet:
		if o.JolietLongNames {
			return 103
		}
		return 64
	case viewtree.ViewISO9660v2:
		return 207
	case viewtree.ViewHFSPlus:
		return 255
	default:
		if o.Max37CharNames {
			return 37
		}
		if o.Level == namecodec.Level1 {
			return 11
		}
		return 31
	}
}

// buildWriters assembles the registered writer list in the documented
// order (spec §4.12 step 3): ECMA-119, El Torito, Joliet, ISO 9660:1999,
// HFS+, filesrc, checksum, cylinder-align padding. Appended partitions
// (PReP/EFI/user-supplied) are returned separately since their block
// ranges feed the system area rather than the volume descriptor chain.
func (img *Image) buildWriters() (writers []writerpipe.Writer, hfsWriter *hfsplus.Writer, appended []*appendedPartitionWriter) {
	vdOpts := writerpipe.VolumeDescOpts{
		SystemID: img.Opts.SystemID, VolumeID: img.Opts.VolumeID, VolumeSetID: img.Opts.VolumeSetID,
		PublisherID: img.Opts.PublisherID, DataPreparerID: img.Opts.DataPreparerID, ApplicationID: img.Opts.ApplicationID,
		Now: img.Opts.Now,
	}

	writers = append(writers, writerpipe.NewECMA119Writer(img.ecma119, img.Files, vdOpts))

	if len(img.bootSpecs) > 0 {
		eltWriter := newEltoritoWriter(img.Files, 16)
		for _, s := range img.bootSpecs {
			eltWriter.addImage(s.key, s.img)
		}
		writers = append(writers, eltWriter)
	}

	if img.joliet != nil {
		jOpts := vdOpts
		jOpts.EscapeSequence = img.Opts.JolietEscapeSequence
		writers = append(writers, writerpipe.NewJolietWriter(img.joliet, img.Files, jOpts))
	}

	if img.iso1999 != nil {
		writers = append(writers, writerpipe.NewISO1999Writer(img.iso1999, img.Files, vdOpts))
	}

	if img.hfs != nil {
		hfsWriter = hfsplus.NewWriter(img.hfs, img.Files, img.Opts.Now)
		writers = append(writers, hfsWriter)
	}

	writers = append(writers, writerpipe.NewFileDataWriter(img.Files))

	if img.Opts.PRePImagePath != "" {
		w := newAppendedPartitionWriter(img.Opts.PRePImagePath, 0x41)
		appended = append(appended, w)
		writers = append(writers, w)
	}
	if img.Opts.EFIBootImagePath != "" {
		w := newAppendedPartitionWriter(img.Opts.EFIBootImagePath, 0xEF)
		appended = append(appended, w)
		writers = append(writers, w)
	}
	for _, ap := range img.Opts.AppendedPartitions {
		w := newAppendedPartitionWriter(ap.Path, ap.TypeCode)
		appended = append(appended, w)
		writers = append(writers, w)
	}

	writers = append(writers, writerpipe.ChecksumWriter{})

	if img.Opts.CylinderAlign {
		align := img.Opts.Geometry.Heads * img.Opts.Geometry.SectorsPerTrk * 512 / writerpipe.SectorSize
		writers = append(writers, writerpipe.NewZeroPadWriter(align))
	}

	return writers, hfsWriter, appended
}

// buildSystemArea renders the 32 KiB system area from every writer's
// reserved partition range (spec §4.11): HFS+ goes into APM and GPT
// (Apple does not use MBR-style partitioning), PReP/EFI/user-appended
// partitions go into MBR and GPT. Called only after a probe
// PredictSize pass has populated every writer's internal LBA state, so
// PartitionRange() is meaningful.
func (img *Image) buildSystemArea(hfsWriter *hfsplus.Writer, appended []*appendedPartitionWriter) ([]byte, []byte, error) {
	comp := sysarea.New()
	comp.Geometry = img.Opts.Geometry
	comp.AllowGPTOverlap = img.Opts.AllowGPTOverlap

	var apmReqs, mbrReqs, gptReqs []sysarea.PartitionRequest

	if hfsWriter != nil {
		start, blocks := hfsWriter.PartitionRange()
		req := sysarea.PartitionRequest{StartBlock: start, BlockCount: blocks, Name: "HFS", APMType: "Apple_HFS"}
		apmReqs = append(apmReqs, req)
		gptReqs = append(gptReqs, req)
	}

	for _, w := range appended {
		start, blocks := w.PartitionRange()
		req := sysarea.PartitionRequest{StartBlock: start, BlockCount: blocks, Name: w.path, TypeCode: w.typeCode}
		mbrReqs = append(mbrReqs, req)
		gptReqs = append(gptReqs, req)
	}

	comp.APM = apmReqs
	comp.MBR = mbrReqs
	comp.GPT = gptReqs

	sysAreaBytes, err := comp.Build()
	if err != nil {
		return nil, nil, err
	}

	var gptEntries []byte
	if len(gptReqs) > 0 {
		gptEntries, err = sysarea.BuildGPTEntries(gptReqs, img.Opts.AllowGPTOverlap, comp.GapFill)
		if err != nil {
			return nil, nil, err
		}
	}
	return sysAreaBytes, gptEntries, nil
}

// PredictSize runs pass 1 only (spec §5/§9's will_cancel pre-run,
// surfaced here instead of a boolean flag on Build): it returns the
// final block cursor, excluding any GPT backup tail, without
// registering a system area or spawning a write task.
func (img *Image) PredictSize() (uint32, error) {
	writers, _, _ := img.buildWriters()
	pipe := &writerpipe.Pipeline{Writers: writers, Now: img.Opts.Now}
	return pipe.PredictSize(sysarea.SystemAreaBlocks)
}

// Build runs the full three-pass pipeline (spec §4.12): a probe
// PredictSize pass first, so the system area can be built from every
// writer's settled partition range (HFS+, appended partitions), then
// the real Pipeline.Run, which safely re-runs pass 1 from scratch —
// filesrc.Registry.Assign's per-entry "already assigned" guard and
// every other writer's ComputeDataBlocks being a pure function of the
// cursor make that rerun idempotent.
func (img *Image) Build(sink io.Writer) (*BuildResult, error) {
	writers, hfsWriter, appended := img.buildWriters()

	probe := &writerpipe.Pipeline{Writers: writers, Now: img.Opts.Now}
	if _, err := probe.PredictSize(sysarea.SystemAreaBlocks); err != nil {
		return nil, errors.Wrap(err, "image: probe layout pass")
	}

	sysAreaBytes, gptEntries, err := img.buildSystemArea(hfsWriter, appended)
	if err != nil {
		return nil, errors.Wrap(err, "image: building system area")
	}

	if len(gptEntries) > 0 {
		// Placed last: GPTTailWriter.ComputeDataBlocks derives totalBlocks
		// from the cursor after every prior writer plus its own reserved
		// tail, so list position alone resolves the GPT chicken-and-egg
		// problem without a separate finalize step.
		writers = append(writers, writerpipe.NewGPTTailWriter(gptEntries))
	}

	pipe := &writerpipe.Pipeline{Writers: writers, Now: img.Opts.Now}
	totalBlocks, digest, err := pipe.Run(sink, sysAreaBytes)
	if err != nil {
		return nil, err
	}
	return &BuildResult{TotalBlocks: totalBlocks, MD5: digest}, nil
}
