// Package sysarea composes the 32 KiB system area (spec §4.11): Apple
// Partition Map, MBR, GPT (with backup tail), and SUN Disk Label, all
// describing the same underlying image content from whichever partition
// scheme a reader's platform expects.
//
// Grounded on original_source/libisofs/system_area.c and
// make_isohybrid_mbr.c for field layout; there is no teacher equivalent.
package sysarea

import (
	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

// SystemAreaBlocks is the fixed 16-block (32 KiB) reserved area at the
// start of every image (spec §1/§4.12).
const SystemAreaBlocks = 16

// SystemAreaBytes is SystemAreaBlocks worth of 2048-byte blocks.
const SystemAreaBytes = SystemAreaBlocks * 2048

// PartitionRequest is one entry an upstream writer asks the composer to
// place: a partition occupying [StartBlock, StartBlock+BlockCount) with a
// name/type and, optionally, a specific MBR slot.
type PartitionRequest struct {
	StartBlock  uint32
	BlockCount  uint32
	Name        string
	TypeCode    byte   // MBR partition type byte
	DesiredSlot int    // 0 = no preference, else 1..4
	APMType     string // Apple Partition Map type string, e.g. "Apple_HFS"
}

// Geometry is the CHS geometry used for MBR partition-size computation.
type Geometry struct {
	Heads         uint32
	SectorsPerTrk uint32
}

// DefaultGeometry is the spec's documented fallback (64 heads x 32
// sectors/track).
var DefaultGeometry = Geometry{Heads: 64, SectorsPerTrk: 32}

// Composer accumulates partition requests and renders the system area.
type Composer struct {
	Template []byte // optional; copied in as the starting buffer
	MBR      []MBRRequest
	APM      []APMRequest
	GPT      []GPTRequest
	Geometry Geometry

	AllowGPTOverlap bool
	GapFill         bool
}

// New creates a Composer with the documented default geometry and gap
// filling enabled.
func New() *Composer {
	return &Composer{Geometry: DefaultGeometry, GapFill: true}
}

// MBRRequest is one MBR partition slot request.
type MBRRequest = PartitionRequest

// APMRequest is one Apple Partition Map entry request.
type APMRequest = PartitionRequest

// GPTRequest is one GPT partition entry request.
type GPTRequest = PartitionRequest

// Build renders the full 32 KiB system-area buffer, in the documented
// step order: template/zero, APM, MBR, GPT (spec §4.11 steps 1-4). SUN
// labels and MIPS variants are alternatives to MBR selected by the caller
// invoking BuildSUNLabel/BuildMIPS instead of Build.
func (c *Composer) Build() ([]byte, error) {
	buf := make([]byte, SystemAreaBytes)
	if c.Template != nil {
		copy(buf, c.Template)
	}

	if len(c.APM) > 0 {
		if err := writeAPM(buf, c.APM, c.GapFill); err != nil {
			return nil, err
		}
	}
	if len(c.MBR) > 0 {
		if err := writeMBR(buf, c.MBR, c.Geometry); err != nil {
			return nil, err
		}
	}
	if len(c.GPT) > 0 {
		if err := writeGPT(buf, c.GPT, c.AllowGPTOverlap, c.GapFill); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func must(cond bool, msg string) error {
	if !cond {
		return errors.Wrap(isoerr.ErrLayout, msg)
	}
	return nil
}
