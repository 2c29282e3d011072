// Package filesrc implements the file-source registry of spec §3/§4.12: a
// deduplicated set of content sources keyed by identity tuple, each
// assigned one or more extents in the image's file-data region. A single
// file source is written exactly once regardless of how many view nodes
// (ECMA-119, Joliet, ISO 9660:1999, HFS+) reference it.
//
// Grounded on the dedup hook implied by the teacher's fileEntry model
// (iso9660/types.go keeps iso9660Sector/jolietSector equal for file
// entries, i.e. a single content placement shared across views) and on
// spec §3's red-black-tree-keyed description; a sorted slice plus a map
// index gives the same ordered-identity lookup semantics an RB-tree would
// without pulling in a separate container library the pack does not use
// for this purpose.
package filesrc

import (
	"encoding/hex"
	"sort"

	"github.com/discforge/isoforge/internal/logicaltree"
)

// ExtentSize is the per-record-size cap for ISO 9660 level 3 multi-extent
// files (spec §4.5): 0xFFFFF800 bytes, the largest length that still
// rounds down to a whole number of 2048-byte sectors.
const ExtentSize = 0xFFFFF800

// Section is one contiguous placement of a file source's data: a starting
// logical block and a byte size.
type Section struct {
	Block uint32
	Size  uint32
}

// sentinel block values a Section's first block may carry before pass 1
// completes (spec §3).
const (
	SentinelReserved        uint32 = 0xFFFFFFFF
	SentinelExternalPart    uint32 = 0xFFFFFFFE
	SentinelEmptyFileLegacy uint32 = 0 // legacy empty-file block 0
)

// Entry is one file-source registry record: an identity, its sections,
// and a sort weight used to order the file-data region.
type Entry struct {
	Key      string
	Identity logicaltree.Identity
	Stream   logicaltree.ContentStream
	Sections []Section
	Weight   int64
	assigned bool
}

// Registry deduplicates content sources by identity tuple. Multiple view
// nodes referencing the same identity resolve to the same Entry.
type Registry struct {
	byKey   map[string]*Entry
	ordered []*Entry // insertion order, re-sorted by Weight before layout
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byKey: make(map[string]*Entry)}
}

// keyOf derives the dedup key from an identity tuple. Nodes with a zero
// identity (streams that can't report one, or directories) are never
// deduplicated against each other — each such registration gets a unique
// key via the caller-supplied fallback.
func keyOf(id logicaltree.Identity, fallback string) string {
	if id == (logicaltree.Identity{}) {
		return "uniq:" + fallback
	}
	return "id:" + itoa(id.FSID) + ":" + itoa(id.DevID) + ":" + itoa(id.SrcIno)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Register looks up or creates the Entry for a file node's content
// stream, returning its dedup key. fallback must be unique per call site
// (e.g. the node's logical path) to keep identity-less streams distinct.
func (r *Registry) Register(stream logicaltree.ContentStream, fallback string) (string, error) {
	var id logicaltree.Identity
	if stream != nil {
		var err error
		id, err = stream.Identity()
		if err != nil {
			return "", err
		}
	}
	key := keyOf(id, fallback)
	if e, ok := r.byKey[key]; ok {
		return e.Key, nil
	}
	e := &Entry{Key: key, Identity: id, Stream: stream}
	r.byKey[key] = e
	r.ordered = append(r.ordered, e)
	return key, nil
}

// RegisterByHash looks up or creates the Entry for a content digest key,
// bypassing the identity-tuple comparison Register uses (spec
// "pre-compare-file-md5"): two streams with matching hashes dedup to the
// same Entry even when their source identity tuples differ, e.g. copies
// living on different devices.
func (r *Registry) RegisterByHash(stream logicaltree.ContentStream, hash [16]byte) (string, error) {
	key := "hash:" + hex.EncodeToString(hash[:])
	if e, ok := r.byKey[key]; ok {
		return e.Key, nil
	}
	var id logicaltree.Identity
	if stream != nil {
		var err error
		id, err = stream.Identity()
		if err != nil {
			return "", err
		}
	}
	e := &Entry{Key: key, Identity: id, Stream: stream}
	r.byKey[key] = e
	r.ordered = append(r.ordered, e)
	return key, nil
}

// Get returns the Entry for key, or nil if unregistered.
func (r *Registry) Get(key string) *Entry { return r.byKey[key] }

// OrderedKeys returns every registered entry's key in the registry's
// current order (registration order, or layout order after
// SortForLayout), for callers that must stream entries in the same
// sequence their sections were assigned.
func (r *Registry) OrderedKeys() []string {
	keys := make([]string, len(r.ordered))
	for i, e := range r.ordered {
		keys[i] = e.Key
	}
	return keys
}

// Sections returns key's assigned sections, or nil before layout.
func (r *Registry) Sections(key string) []Section {
	if e := r.byKey[key]; e != nil {
		return e.Sections
	}
	return nil
}

// SortForLayout orders entries by Weight (ascending), then by
// registration order for entries with equal weight, preparing a
// deterministic file-data region layout.
func (r *Registry) SortForLayout() {
	sort.SliceStable(r.ordered, func(i, j int) bool {
		return r.ordered[i].Weight < r.ordered[j].Weight
	})
}

// Assign walks entries in their current (post-SortForLayout) order,
// querying each stream's size, splitting files larger than ExtentSize
// into multiple sections (ISO level 3 multi-extent, spec §4.5), and
// advancing startLBA. emptyFileBlock selects the sentinel used for
// zero-length files: SentinelEmptyFileLegacy (block 0) or the first
// block of the file-data region, per the option-controlled mode spec
// §3 describes.
//
// Calling Assign more than once with the same startLBA is safe: entries
// already assigned keep their existing sections rather than being
// resized, but their block span is still folded into the returned
// cursor, so a second call (e.g. Pipeline.Run's internal re-layout
// after an orchestrator's own probe PredictSize pass) reports the same
// nextLBA the first call did.
func (r *Registry) Assign(startLBA uint32, emptyFileBlock uint32) (nextLBA uint32, err error) {
	lba := startLBA
	firstDataBlock := startLBA
	for _, e := range r.ordered {
		if e.assigned {
			for _, sec := range e.Sections {
				lba += (sec.Size + 2047) / 2048
			}
			continue
		}
		var size int64
		if e.Stream != nil {
			size, err = e.Stream.Size()
			if err != nil {
				return 0, err
			}
		}
		if size == 0 {
			e.Sections = []Section{{Block: emptyBlockFor(emptyFileBlock, firstDataBlock), Size: 0}}
			e.assigned = true
			continue
		}
		remaining := size
		for remaining > 0 {
			n := remaining
			if n > ExtentSize {
				n = ExtentSize
			}
			sectors := (uint32(n) + 2047) / 2048
			e.Sections = append(e.Sections, Section{Block: lba, Size: uint32(n)})
			lba += sectors
			remaining -= n
		}
		e.assigned = true
	}
	return lba, nil
}

func emptyBlockFor(mode uint32, firstDataBlock uint32) uint32 {
	if mode == SentinelEmptyFileLegacy {
		return 0
	}
	return firstDataBlock
}
