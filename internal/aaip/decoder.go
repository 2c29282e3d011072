package aaip

import (
	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

// stage tracks which half of the current pair's component run the decoder
// is accumulating.
type stage int

const (
	stageName stage = iota
	stageValue
)

// Decoder is a streaming AAIP field parser: it accepts AAIP-field bytes in
// arbitrary-size chunks (never requiring a complete field or a complete
// attribute pair up front) and yields (name, value) pairs as they
// complete. Grounded on the incremental SUSP continuation-area reader
// shape in the teacher's directory-record walk (iso9660/records.go) and on
// aaip_0_2.c's node-by-node decode loop.
type Decoder struct {
	pending []byte // raw field-body bytes not yet consumed into a component
	pairs   []Pair

	stage     stage
	nameBuf   []byte
	valueBuf  []byte
	haveName  bool
	err       error
	truncated bool
}

// NewDecoder returns a ready-to-use streaming decoder.
func NewDecoder() *Decoder {
	return &Decoder{stage: stageName}
}

// Write feeds raw AAIP field bytes (possibly spanning multiple fields, and
// possibly a partial field) into the decoder. It never blocks and accepts
// any chunk size.
func (d *Decoder) Write(p []byte) error {
	if d.err != nil {
		return d.err
	}
	d.pending = append(d.pending, p...)
	for {
		body, rest, ok, err := stripFieldHeader(d.pending)
		if err != nil {
			d.err = err
			return err
		}
		if !ok {
			return nil
		}
		d.pending = rest
		if err := d.consumeComponents(body); err != nil {
			d.err = err
			return err
		}
	}
}

// stripFieldHeader removes one complete 255-byte-or-shorter AAIP field
// ("AL"|length|version|continue) from the front of buf, returning its body
// and the remainder. ok is false if buf does not yet hold a complete
// field.
func stripFieldHeader(buf []byte) (body, rest []byte, ok bool, err error) {
	if len(buf) < fieldHeaderLen {
		return nil, buf, false, nil
	}
	if buf[0] != 'A' || buf[1] != 'L' {
		return nil, nil, false, errors.Wrap(isoerr.ErrInconsistency, "aaip: bad field signature")
	}
	length := int(buf[2])
	if length < fieldHeaderLen {
		return nil, nil, false, errors.Wrap(isoerr.ErrInconsistency, "aaip: field length too small")
	}
	if len(buf) < length {
		return nil, buf, false, nil
	}
	return buf[fieldHeaderLen:length], buf[length:], true, nil
}

// consumeComponents walks one field body's component records, accumulating
// into the current pair's name/value buffers and emitting a completed pair
// when a value component without the continuation flag closes it.
func (d *Decoder) consumeComponents(body []byte) error {
	for len(body) >= 2 {
		flags := body[0]
		n := int(body[1])
		body = body[2:]
		if len(body) < n {
			return errors.Wrap(isoerr.ErrInconsistency, "aaip: component overruns field body")
		}
		chunk := body[:n]
		body = body[n:]

		isValue := flags&flagIsValue != 0
		cont := flags&flagContinue != 0

		if isValue {
			d.valueBuf = append(d.valueBuf, chunk...)
			if !cont {
				d.emitPair()
			}
		} else {
			d.nameBuf = append(d.nameBuf, chunk...)
			if !cont {
				d.haveName = true
			}
		}
	}
	return nil
}

func (d *Decoder) emitPair() {
	if !d.haveName {
		// Value closed before any name component: malformed input.
		// Synthesize an empty name rather than dropping the value, so a
		// truncated stream still surfaces recovered data.
		d.truncated = true
	}
	name, err := decodeName(d.nameBuf)
	if err != nil {
		name = string(d.nameBuf)
	}
	value := make([]byte, len(d.valueBuf))
	copy(value, d.valueBuf)
	d.pairs = append(d.pairs, Pair{Name: name, Value: value})
	d.nameBuf = nil
	d.valueBuf = nil
	d.haveName = false
}

// Finish signals end of input. Any in-flight, never-closed value component
// is flushed as a final pair so a truncated AAIP stream still yields
// whatever data it managed to carry.
func (d *Decoder) Finish() {
	if len(d.valueBuf) > 0 || d.haveName {
		d.truncated = true
		d.emitPair()
	}
}

// Pairs returns the attribute pairs decoded so far.
func (d *Decoder) Pairs() []Pair { return d.pairs }

// Truncated reports whether Finish had to close a dangling component run.
func (d *Decoder) Truncated() bool { return d.truncated }

// Err returns the first decode error encountered, if any.
func (d *Decoder) Err() error { return d.err }
