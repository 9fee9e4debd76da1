// pkg/quilt/quilt.go

// Package quilt provides a byte buffer that tracks random-access writes
// into a logically contiguous stream and reassembles the stream once all
// positions have been filled.
package quilt

import (
	"cmp"
	"iter"
	"slices"

	"BytesQuilt/pkg/utils"

	"github.com/pkg/errors"
)

var logger = utils.GetLogger("bytesquilt")

var (
	// ErrNotEnoughSpace means a fill was larger than the gap reserved for it.
	ErrNotEnoughSpace = errors.New("not enough space in buffer segment")

	// ErrWouldOverwrite means a write targeted bytes already received.
	ErrWouldOverwrite = errors.New("would overwrite previously received data")

	// ErrIncomplete means Assemble was called while gaps remain.
	ErrIncomplete = errors.New("buffer still has missing segments")
)

// Quilt accepts writes at arbitrary, possibly out-of-order byte offsets.
// Ranges below the frontier are tracked in an ordered ledger of received
// and missing segments; the live tail holds the contiguous bytes arriving
// at the frontier. A Quilt must not be shared between goroutines without
// external locking.
type Quilt struct {
	tailOffset int       // frontier: the ledger covers [0, tailOffset)
	segments   []segment // ordered by offset, contiguous, disjoint
	tail       []byte    // received bytes for [tailOffset, tailOffset+len(tail))
}

// New creates an empty Quilt.
func New() *Quilt {
	return &Quilt{}
}

// WithCapacity creates an empty Quilt whose tail has room for n bytes.
// The capacity is a performance hint only; writes past it still succeed.
func WithCapacity(n int) *Quilt {
	return &Quilt{tail: make([]byte, 0, n)}
}

// PutAt transfers src into the quilt at the given offset, counted from the
// beginning of the stream. Offset must be non-negative.
//
// A write below the frontier must land inside a missing segment: it fills
// the gap, splitting it when src covers only part of the reserved range.
// A write past the live edge freezes the tail, records the skipped range
// as missing and returns it; this is the only point at which a gap is
// reported. Any other write appends to the tail, including offsets that
// fall strictly inside the tail's span (the caller owns offset bookkeeping
// past the frontier). Zero-length writes are no-ops.
//
// Failed calls leave the quilt unchanged.
func (q *Quilt) PutAt(offset int, src []byte) (*MissingSegment, error) {
	if offset < 0 {
		panic("quilt: negative offset")
	}
	if len(src) == 0 {
		return nil, nil
	}
	switch {
	case offset < q.tailOffset:
		return nil, q.backfill(offset, src)
	case offset > q.tailOffset+len(q.tail):
		gap := q.openGap(offset)
		q.tail = append(q.tail, src...)
		return &gap, nil
	case offset == q.tailOffset && len(q.tail) > 0:
		return nil, ErrWouldOverwrite
	default:
		q.tail = append(q.tail, src...)
		return nil, nil
	}
}

// backfill lands a write inside the finalized ledger.
func (q *Quilt) backfill(offset int, src []byte) error {
	i, exact := slices.BinarySearchFunc(q.segments, offset, func(s segment, off int) int {
		return cmp.Compare(s.offset, off)
	})
	if exact {
		return q.fill(i, src)
	}
	// The ledger starts at offset zero and has no holes, so i > 0 and the
	// write starts strictly inside the previous entry's reserved range.
	prev := &q.segments[i-1]
	if prev.status == statusReceived {
		return ErrWouldOverwrite
	}
	at := offset - prev.offset
	if cap(prev.buf)-at < len(src) {
		return ErrNotEnoughSpace
	}
	// Split the gap at the write offset. Both halves are views of the same
	// backing array, so nothing is copied.
	rest := prev.buf[at:at:cap(prev.buf)]
	prev.buf = prev.buf[:0:at]
	q.segments = slices.Insert(q.segments, i, missingSeg(offset, rest))
	return q.fill(i, src)
}

// fill writes src into ledger entry i, which starts exactly at the write
// offset and must still be missing.
func (q *Quilt) fill(i int, src []byte) error {
	seg := &q.segments[i]
	if seg.status == statusReceived {
		return ErrWouldOverwrite
	}
	switch c := cap(seg.buf); {
	case c < len(src):
		return ErrNotEnoughSpace
	case c == len(src):
		seg.buf = append(seg.buf, src...)
		seg.status = statusReceived
	default:
		// Partial fill: the entry becomes a received prefix and the rest
		// of its reserved range becomes a new gap over the same array.
		rest := seg.buf[len(src):len(src):c]
		restOffset := seg.offset + len(src)
		seg.buf = append(seg.buf[:0:len(src)], src...)
		seg.status = statusReceived
		q.segments = slices.Insert(q.segments, i+1, missingSeg(restOffset, rest))
	}
	return nil
}

// openGap freezes the live tail into the ledger, records [frontier, offset)
// as a missing segment and moves the frontier to offset, leaving an empty
// tail behind. Returns the recorded gap.
func (q *Quilt) openGap(offset int) MissingSegment {
	if n := len(q.tail); n > 0 {
		q.segments = append(q.segments, receivedSeg(q.tailOffset, q.tail[:n:n]))
		q.tail = q.tail[n:n:cap(q.tail)]
		q.tailOffset += n
	}
	gap := MissingSegment{Offset: q.tailOffset, Length: offset - q.tailOffset}
	// Carve the gap and the new tail out of the tail's spare capacity when
	// it fits, so in-order delivery into a sized quilt stays in one
	// allocation.
	var buf []byte
	if cap(q.tail) >= gap.Length {
		buf = q.tail[:0:gap.Length]
		q.tail = q.tail[gap.Length:gap.Length:cap(q.tail)]
	} else {
		buf = make([]byte, 0, gap.Length)
	}
	q.segments = append(q.segments, missingSeg(gap.Offset, buf))
	q.tailOffset = offset
	logger.Debugf("gap opened at %d (%d bytes missing)", gap.Offset, gap.Length)
	return gap
}

// MissingSegments returns an iterator over every gap in ascending offset
// order. The live tail is never reported; it has no gaps by construction.
// The quilt must not be modified while iterating; collect the values first
// when backfilling.
func (q *Quilt) MissingSegments() iter.Seq[MissingSegment] {
	return func(yield func(MissingSegment) bool) {
		for i := range q.segments {
			if m, ok := q.segments[i].missing(); ok {
				if !yield(m) {
					return
				}
			}
		}
	}
}

// Len returns the number of bytes received so far.
func (q *Quilt) Len() int {
	n := len(q.tail)
	for i := range q.segments {
		n += len(q.segments[i].buf)
	}
	return n
}

// Frontier returns the offset where the live tail begins.
func (q *Quilt) Frontier() int {
	return q.tailOffset
}

// Assemble concatenates all segments and the tail into one contiguous byte
// slice and consumes the quilt; it must not be used afterwards. If any
// segment is still missing it fails with ErrIncomplete and the quilt is
// left intact, so the caller can keep backfilling.
func (q *Quilt) Assemble() ([]byte, error) {
	total := 0
	for i := range q.segments {
		seg := &q.segments[i]
		if seg.status == statusMissing {
			logger.Errorf("assemble with a missing segment at %d (%d bytes)", seg.offset, cap(seg.buf))
			return nil, ErrIncomplete
		}
		total += len(seg.buf)
	}
	if len(q.segments) == 0 {
		out := q.tail
		*q = Quilt{}
		return out, nil
	}
	out := make([]byte, 0, total+len(q.tail))
	for i := range q.segments {
		out = append(out, q.segments[i].buf...)
	}
	out = append(out, q.tail...)
	*q = Quilt{}
	return out, nil
}
