// Package ring implements the bounded producer/consumer byte buffer that
// synchronises the writer task with the sink's reader task (spec §4.10,
// §5). It wraps github.com/djherbis/nio's pipe-over-bounded-buffer (the
// same pairing direktiv-vorteil uses to stream container layers) with the
// richer status model and fill-level query the spec requires on top of
// plain io.Pipe semantics.
package ring

import (
	"io"
	"sync"

	"github.com/djherbis/buffer"
	"github.com/djherbis/nio"
	"github.com/pkg/errors"

	"github.com/discforge/isoforge/internal/isoerr"
)

// Status is the producer/consumer relationship's lifecycle state.
type Status int

const (
	StatusActive Status = iota
	StatusEnding
	StatusFailing
	StatusAbandoned
	StatusEnded
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusEnding:
		return "ending"
	case StatusFailing:
		return "failing"
	case StatusAbandoned:
		return "abandoned"
	case StatusEnded:
		return "ended"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MinCapacityBlocks is the minimum ring-buffer capacity the spec allows,
// in 2048-byte blocks.
const MinCapacityBlocks = 32

// BlockSize is the logical block size in bytes (spec §1).
const BlockSize = 2048

// Buffer is the bounded FIFO shared between exactly one producer ("writer")
// and one consumer ("reader").
type Buffer struct {
	buf buffer.Buffer
	r   *nio.PipeReader
	w   *nio.PipeWriter

	mu          sync.Mutex
	writerDone  bool
	readerDone  bool
	writerErr   error
	readerErr   error
	bytesRead   int64
	timesFull   int64
	timesEmpty  int64
}

// New creates a ring buffer with the given capacity in logical blocks.
// capacityBlocks is clamped up to MinCapacityBlocks.
func New(capacityBlocks int) *Buffer {
	if capacityBlocks < MinCapacityBlocks {
		capacityBlocks = MinCapacityBlocks
	}
	b := buffer.New(int64(capacityBlocks) * BlockSize)
	r, w := nio.NewPipe(b)
	return &Buffer{buf: b, r: r, w: w}
}

// Write is called by the producer. It blocks while the buffer is full until
// the reader frees space or closes. Returns the short-write error wrapped
// with isoerr.ErrWrite if the reader has closed (abandoned/aborted).
func (rb *Buffer) Write(p []byte) (int, error) {
	if rb.buf.Cap()-rb.buf.Len() == 0 {
		rb.mu.Lock()
		rb.timesFull++
		rb.mu.Unlock()
	}
	n, err := rb.w.Write(p)
	if err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return n, errors.Wrap(isoerr.ErrWrite, "ring buffer closed by reader")
		}
		return n, errors.Wrap(isoerr.ErrWrite, err.Error())
	}
	return n, nil
}

// Read is called by the consumer. It blocks while the buffer is empty until
// data arrives or the writer closes (EOF).
func (rb *Buffer) Read(p []byte) (int, error) {
	if rb.buf.Len() == 0 {
		rb.mu.Lock()
		rb.timesEmpty++
		rb.mu.Unlock()
	}
	n, err := rb.r.Read(p)
	rb.mu.Lock()
	rb.bytesRead += int64(n)
	rb.mu.Unlock()
	return n, err
}

// WriterClose signals EOF (err == nil) or failure (err != nil) to the
// reader and wakes it.
func (rb *Buffer) WriterClose(err error) error {
	rb.mu.Lock()
	rb.writerDone = true
	rb.writerErr = err
	rb.mu.Unlock()
	return rb.w.CloseWithError(err)
}

// ReaderClose signals abandonment (err == nil, e.g. a user cancel) or an
// I/O failure (err != nil) on the consumer side and wakes the writer. The
// final status distinguishes "abandoned" (no bytes consumed yet) from
// "aborted" (some bytes already delivered) per spec §5.
func (rb *Buffer) ReaderClose(err error) error {
	rb.mu.Lock()
	rb.readerDone = true
	rb.readerErr = err
	rb.mu.Unlock()
	return rb.r.CloseWithError(err)
}

// Status reports the current lifecycle phase and the number of free bytes
// in the buffer.
func (rb *Buffer) Status() (Status, int64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	free := rb.buf.Cap() - rb.buf.Len()
	switch {
	case rb.readerDone && rb.readerErr == nil && rb.bytesRead == 0:
		return StatusAbandoned, free
	case rb.readerDone && rb.readerErr == nil:
		return StatusAborted, free
	case rb.readerDone && rb.readerErr != nil:
		return StatusAborted, free
	case rb.writerDone && rb.writerErr != nil:
		return StatusFailing, free
	case rb.writerDone && rb.readerDone:
		return StatusEnded, free
	case rb.writerDone:
		return StatusEnding, free
	default:
		return StatusActive, free
	}
}

// Counters returns the times-full/times-empty diagnostic counters (spec
// §4.10).
func (rb *Buffer) Counters() (timesFull, timesEmpty int64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.timesFull, rb.timesEmpty
}
