package vision

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

// SampleStatus classifies the outcome of a single non-blocking read.
type SampleStatus int

const (
	// StatusFresh means a new frame was read successfully.
	StatusFresh SampleStatus = iota

	// StatusUnchanged means the segment was readable but the frame counter
	// has not advanced since the last read (or the read was torn and we
	// gave up for this tick).
	StatusUnchanged

	// StatusUnavailable means the segment is not mapped: the producer has
	// not started yet or has crashed.
	StatusUnavailable
)

// String returns a human-readable status name.
func (s SampleStatus) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusUnchanged:
		return "unchanged"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ErrSegmentSize is returned when a segment buffer has the wrong length.
var ErrSegmentSize = errors.New("vision segment must be exactly 44 bytes")

// readRetries bounds how many times a torn or in-progress read is retried
// within one tick before giving up.
const readRetries = 3

// Segment is a 44-byte seqlock-protected region shared with the vision
// producer. Bytes must return a 4-byte aligned slice of SegmentSize bytes.
type Segment interface {
	Bytes() []byte
	Close() error
}

// Source is the capability the coordinator consumes: a non-blocking read of
// the latest vision sample.
type Source interface {
	Read() (FaceSample, SampleStatus)
}

func seqWord(buf []byte) *uint32 {
	return (*uint32)(unsafe.Pointer(&buf[0]))
}

// Writer publishes samples into a segment using the seqlock protocol:
// bump the counter to odd, write the payload, bump back to even. A reader
// that observes an odd counter, or different counters before and after its
// copy, discards the read.
type Writer struct {
	seg Segment
	seq uint32
}

// NewWriter wraps a segment for publishing.
func NewWriter(seg Segment) (*Writer, error) {
	if len(seg.Bytes()) != SegmentSize {
		return nil, ErrSegmentSize
	}
	return &Writer{seg: seg}, nil
}

// Write publishes one sample. Never blocks.
func (w *Writer) Write(s FaceSample) {
	buf := w.seg.Bytes()

	w.seq++
	atomic.StoreUint32(seqWord(buf), w.seq) // odd: write in progress
	encodePayload(buf[SeqSize:], s)
	w.seq++
	atomic.StoreUint32(seqWord(buf), w.seq) // even: stable
}

// Close releases the underlying segment.
func (w *Writer) Close() error {
	return w.seg.Close()
}

// Reader consumes samples from a segment. It is the SampleLink of the
// coordinator: Read never blocks and fails fast on contention.
type Reader struct {
	seg       Segment
	lastFrame uint32
	haveFrame bool
}

// NewReader wraps a segment for consuming. A nil segment yields a reader
// that always reports StatusUnavailable; Attach can supply one later.
func NewReader(seg Segment) (*Reader, error) {
	if seg != nil && len(seg.Bytes()) != SegmentSize {
		return nil, ErrSegmentSize
	}
	return &Reader{seg: seg}, nil
}

// Attach replaces the segment, e.g. after the producer restarted.
func (r *Reader) Attach(seg Segment) {
	r.seg = seg
	r.haveFrame = false
}

// Detach drops the segment; subsequent reads report StatusUnavailable.
func (r *Reader) Detach() {
	if r.seg != nil {
		r.seg.Close()
		r.seg = nil
	}
}

// Read performs the seqlock read protocol with bounded retries.
func (r *Reader) Read() (FaceSample, SampleStatus) {
	if r.seg == nil {
		return FaceSample{}, StatusUnavailable
	}
	buf := r.seg.Bytes()

	var payload [PayloadSize]byte
	for attempt := 0; attempt < readRetries; attempt++ {
		seq1 := atomic.LoadUint32(seqWord(buf))
		if seq1&1 != 0 {
			// Writer is mid-update.
			continue
		}
		copy(payload[:], buf[SeqSize:])
		seq2 := atomic.LoadUint32(seqWord(buf))
		if seq1 != seq2 {
			// Torn read.
			continue
		}

		s := decodePayload(payload[:])
		if r.haveFrame && s.FrameCounter == r.lastFrame {
			return FaceSample{}, StatusUnchanged
		}
		r.lastFrame = s.FrameCounter
		r.haveFrame = true
		return s, StatusFresh
	}

	// Retries exhausted under writer contention. Treat like no new data;
	// the next tick will try again.
	return FaceSample{}, StatusUnchanged
}

// Close releases the underlying segment.
func (r *Reader) Close() error {
	if r.seg == nil {
		return nil
	}
	return r.seg.Close()
}

// memorySegment is an in-process segment used by tests and the simulated
// vision feed. Backed by a uint32 array to guarantee alignment.
type memorySegment struct {
	words [SegmentSize / 4]uint32
}

// NewMemorySegment returns a Segment that lives in this process.
func NewMemorySegment() Segment {
	return &memorySegment{}
}

func (m *memorySegment) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.words[0])), SegmentSize)
}

func (m *memorySegment) Close() error { return nil }
