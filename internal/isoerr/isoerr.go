// Package isoerr enumerates the abstract error kinds of the image-production
// engine (spec §7) as sentinel values, wrapped at each call site with
// github.com/pkg/errors so callers can recover the kind with errors.Is while
// still seeing the wrapping context in the message.
package isoerr

import "github.com/pkg/errors"

// Sentinel kinds. Wrap one of these with errors.Wrap(ErrX, "detail") at the
// point of failure; callers test with errors.Is(err, isoerr.ErrLayout).
var (
	// ErrInvalidInput covers bad paths, unknown charsets, names too long in
	// untranslated mode, and boot images that are not regular files or too
	// small to patch.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLayout covers impossible layouts: path too deep/long without
	// relaxation, mangling width exhausted, too many partition-table or
	// El Torito entries, forbidden partition overlap, overwrite buffer or
	// FIFO too small.
	ErrLayout = errors.New("layout impossible")

	// ErrWrite covers sink cancellation, short reads from a content source,
	// a ring buffer closed under the writer, and writer/pass assertion
	// failures (block-cursor mismatch between pass 1 and pass 3).
	ErrWrite = errors.New("write error")

	// ErrInconsistency covers unmangleable duplicate names and isofs.cx
	// xattr mismatches on appendable images.
	ErrInconsistency = errors.New("inconsistency")

	// ErrResource covers allocation failure; present for completeness since
	// Go reports this via panic/OOM rather than a returned error in
	// practice, but call sites that pre-size large buffers check here.
	ErrResource = errors.New("resource exhausted")
)

// MangleTooManyFiles is returned by the name mangler (spec §4.1 step 5) when
// the numeric-suffix digit budget (up to 7 digits) is exhausted for a single
// directory's collision run.
var MangleTooManyFiles = errors.Wrap(ErrLayout, "MANGLE_TOO_MUCH_FILES")

// ImgPathWrong is returned by a view-tree builder (spec §4.2) when, absent
// the relevant relaxation, a path exceeds the depth or length budget of its
// view.
var ImgPathWrong = errors.Wrap(ErrLayout, "FILE_IMGPATH_WRONG")

// GPTOverlap is returned by the GPT composer (spec §4.11 step 4) when two
// requested partition entries overlap and overlap has not been explicitly
// allowed.
var GPTOverlap = errors.Wrap(ErrLayout, "BOOT_GPT_OVERLAP")
