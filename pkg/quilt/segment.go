// pkg/quilt/segment.go

package quilt

import "iter"

type status int8

const (
	statusMissing status = iota
	statusReceived
)

// segment is one ledger entry: a contiguous sub-range of the stream
// starting at offset. cap(buf) is the reserved length, len(buf) the bytes
// written so far. A missing segment always has len(buf) == 0.
type segment struct {
	status status
	offset int
	buf    []byte
}

func missingSeg(offset int, buf []byte) segment {
	return segment{status: statusMissing, offset: offset, buf: buf}
}

func receivedSeg(offset int, buf []byte) segment {
	return segment{status: statusReceived, offset: offset, buf: buf}
}

func (s *segment) missing() (MissingSegment, bool) {
	if s.status != statusMissing {
		return MissingSegment{}, false
	}
	return MissingSegment{Offset: s.offset, Length: cap(s.buf)}, true
}

// MissingSegment describes a reserved but unfilled range of the stream.
// It is a plain value and holds no reference into the quilt.
type MissingSegment struct {
	Offset int
	Length int
}

// OffsetsFor returns the absolute start offsets of all frameSize-sized
// frames that fit inside this segment, in ascending order. A trailing
// partial frame is not represented; callers handle the remainder
// themselves. frameSize must be positive.
func (m MissingSegment) OffsetsFor(frameSize int) iter.Seq[int] {
	return func(yield func(int) bool) {
		frames := m.Length / frameSize
		for i := 0; i < frames; i++ {
			if !yield(m.Offset + i*frameSize) {
				return
			}
		}
	}
}
