// Package image implements the orchestrator that ties every writer
// package into one ordered build (spec §4.12): it scans a source tree,
// builds one viewtree.Tree per enabled view, wires a shared
// filesrc.Registry, constructs the system area once enough of the
// layout is known, and drives a writerpipe.Pipeline into a ring-buffer
// backed sink.
//
// Grounded on the teacher's ISOBuilder/Options (iso9660/builder.go,
// iso9660/options.go): the same scan -> layout -> system-area ->
// volume-descriptors -> path-tables -> directories -> file-data ->
// finalize shape, generalized from one hardcoded ECMA-119+Joliet pair
// into the full multi-view, multi-partition-scheme pipeline the other
// internal packages already implement.
package image

import (
	"time"

	"github.com/discforge/isoforge/internal/namecodec"
	"github.com/discforge/isoforge/internal/sysarea"
)

// PermPolicy selects how a permission field (uid, gid, file mode, dir
// mode, timestamps) is replaced on output (spec §6.3).
type PermPolicy int

const (
	PermKeep PermPolicy = iota
	PermDefault
	PermFixed
)

// PermissionOptions carries one replaceable permission field's policy
// and fixed value, when PermFixed is selected.
type PermissionOptions struct {
	UID       PermPolicy
	GID       PermPolicy
	FileMode  PermPolicy
	DirMode   PermPolicy
	Timestamp PermPolicy

	FixedUID      uint32
	FixedGID      uint32
	FixedFileMode uint32
	FixedDirMode  uint32
	FixedTime     time.Time
}

// BootImageOption describes one El Torito boot image to register, plus
// the content patch (if any) it needs before it is registered as a
// file source (spec §4.7).
type BootImageOption struct {
	Path        string
	PlatformID  byte
	IDString    [28]byte
	Bootable    bool
	MediaType   int // eltorito.MediaType, kept as int to avoid an import cycle in option wiring
	LoadSegment uint16
	SystemType  byte

	PatchISOLINUX bool
	PatchGRUB2    bool
}

// AppendedPartition is one of up to 8 extra partition images appended
// after the ISO filesystem content (spec §6.3 "Partitions").
type AppendedPartition struct {
	Path     string
	TypeCode byte
}

// Options is the full build-time option surface (spec §6.3), with
// defaults matching spec §6.3's documented fallbacks.
type Options struct {
	// Core views.
	Level         namecodec.Level
	RockRidge     bool
	Joliet        bool
	ISO9660v2     bool
	HFSPlus       bool
	Hardlinks     bool
	AAIP          bool
	RecordSessionMD5 bool
	RecordFileMD5    bool
	PreCompareFileMD5 bool

	// Name policy (spec §4.1, folded into namecodec.Relaxation via Relax()).
	OmitVersion      bool
	AllowDeepPaths   bool
	AllowLongerPaths bool
	Max37CharNames   bool
	NoForceDots      bool
	AllowLowercase   bool
	AllowFullASCII   bool
	Allow7BitASCII   bool
	RelaxedVolAtts   bool
	JolietLongerPaths bool
	JolietLongNames   bool
	UntranslatedNameLen int // 0..96; >0 implies namecodec.Untranslated
	DirIDExtension      bool

	// Rock Ridge specifics.
	RRIP110Compat bool
	RRIP110PXIno  bool
	AAIPSUSP110   bool
	DirRecMTime   bool

	RelocationDirName string
	AutoRelocMark     bool

	// HideNames flags entries whose original on-disk filename matches any
	// of these names as hidden (all views' Hidden bit), mirroring the
	// teacher CLI's "-H" flag.
	HideNames []string

	Perms PermissionOptions

	// Timing.
	Now            time.Time
	AlwaysGMT      bool
	SourceMTime    bool
	VolumeUUID     string // 16-digit decimal override; empty = derive from Now

	// Output.
	Charset        string
	Appendable     bool
	MSBlock        uint32
	OverwriteBuffer uint32
	FIFOBlocks     int
	TailBlocks     uint32

	// Identification (ECMA-119/Joliet/ISO9660:1999 share these strings;
	// Joliet gets its own escape sequence, spec §6.2).
	SystemID       string
	VolumeID       string
	VolumeSetID    string
	PublisherID    string
	DataPreparerID string
	ApplicationID  string
	JolietEscapeSequence [3]byte

	// Boot (spec §6.3 "Boot").
	BootImages       []BootImageOption
	CylinderAlign    bool
	PartitionOffset  uint32
	Geometry         sysarea.Geometry

	// Partitions (spec §6.3 "Partitions").
	PRePImagePath      string
	EFIBootImagePath   string
	PromoteEFIBootImage bool
	AppendedPartitions []AppendedPartition
	SUNLabel           string
	HFSBlockSize       uint32
	APMBlockSize       uint32

	AllowGPTOverlap bool
}

// DefaultOptions returns the documented default option set: level 1,
// no extensions beyond the mandatory ECMA-119 view, 64-block FIFO,
// block-0 empty-file convention left to filesrc's own default.
func DefaultOptions() Options {
	return Options{
		Level:             namecodec.Level1,
		RelocationDirName: "RR_MOVED",
		AutoRelocMark:     true,
		FIFOBlocks:        2 * 1024, // 4 MiB
		Geometry:          sysarea.DefaultGeometry,
		HFSBlockSize:      2048,
		APMBlockSize:      2048,
		SystemID:          "",
		VolumeID:          "",
		JolietEscapeSequence: [3]byte{0x25, 0x2F, 0x45},
	}
}

// Relax folds the boolean name-policy switches into the bitset
// internal/namecodec expects. Rock Ridge is threaded to internal/viewtree
// through its own Options.RockRidge field, independent of this bitset, so
// turning it on never silently forces OmitVersion (spec §4.1/§4.2).
func (o Options) Relax() namecodec.Relaxation {
	var r namecodec.Relaxation
	if o.AllowLowercase {
		r |= namecodec.AllowLowercase
	}
	if o.AllowFullASCII {
		r |= namecodec.AllowFullASCII
	}
	if o.Allow7BitASCII {
		r |= namecodec.Allow7BitASCII
	}
	if o.Max37CharNames {
		r |= namecodec.Max37Chars
	}
	if o.NoForceDots {
		r |= namecodec.NoForceDot
	}
	if o.DirIDExtension {
		r |= namecodec.AllowDirIDExt
	}
	if o.UntranslatedNameLen > 0 {
		r |= namecodec.Untranslated
	}
	if o.OmitVersion {
		r |= namecodec.OmitVersion
	}
	return r
}
