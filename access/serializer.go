package access

import (
	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/types"
)

// Written reports the bytes a finished value occupies.
type Written struct {
	Stack int
	Heap  int
}

// Total is the buffer length needed to hold the value.
func (w Written) Total() int {
	return w.Stack + w.Heap
}

// Serializer writes one value. The stack region of the value is
// output[start:start+stack]; heap payloads follow it in write order.
//
// Writes that fall outside output are dropped but still advance the
// cursors, so Finish can report the exact shortfall.
type Serializer struct {
	output []byte
	start  int // first byte of the stack region
	stack  int // reserved stack bytes
	pos    int // stack cursor relative to start
	heap   int // absolute heap cursor
}

// NewSerializer starts a value at output[offset:] with a stack region of
// the given size.
func NewSerializer(offset int, output []byte, stack int) *Serializer {
	s := newSerializer(offset, output, stack)
	return &s
}

func newSerializer(offset int, output []byte, stack int) Serializer {
	return Serializer{
		output: output,
		start:  offset,
		stack:  stack,
		heap:   offset + stack,
	}
}

// StackLeft is the unwritten part of the reserved stack region.
func (s *Serializer) StackLeft() int {
	return s.stack - s.pos
}

// Stack reserves the next n stack bytes and returns them for writing.
// It returns nil when the bytes fall outside the output buffer; the
// reservation is counted either way.
func (s *Serializer) Stack(n int) ([]byte, error) {
	if s.pos+n > s.stack {
		return nil, errors.New(errors.PhaseEncode, errors.KindSizeMismatch).
			Detail("stack write of %d bytes at %d exceeds reserved %d", n, s.pos, s.stack).
			Build()
	}
	at := s.start + s.pos
	s.pos += n
	if at+n > len(s.output) {
		return nil, nil
	}
	return s.output[at : at+n], nil
}

// WriteBytes copies b at the stack cursor. Leaf formulas use it for their
// payload; inside a reference the stack region being filled lies in the
// parent's heap.
func (s *Serializer) WriteBytes(b []byte) error {
	dst, err := s.Stack(len(b))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// pad zeroes the next n stack bytes.
func (s *Serializer) pad(n int) error {
	dst, err := s.Stack(n)
	if err != nil {
		return err
	}
	clear(dst)
	return nil
}

// WriteValue encodes v as f at the stack cursor. Bounded formulas take
// exactly MaxStackSize bytes; the unused tail of the slot is zeroed.
func WriteValue[T any](s *Serializer, f Encoder[T], v T) error {
	slot := SlotSize(f, v)
	if s.pos+slot > s.stack {
		return errors.New(errors.PhaseEncode, errors.KindSizeMismatch).
			Formula(Describe(f)).
			Detail("field of %d bytes at %d exceeds reserved stack %d", slot, s.pos, s.stack).
			Build()
	}

	field := newSerializer(s.start+s.pos, s.output, slot)
	field.heap = s.heap
	if err := f.Serialize(v, &field); err != nil {
		return err
	}
	if err := field.pad(field.StackLeft()); err != nil {
		return err
	}

	s.pos += slot
	s.heap = field.heap
	return nil
}

// WriteRef places v at the heap cursor as its own value and writes the
// reference pair (offset, length) at the stack cursor. The offset is
// measured from the first byte of the reference.
func WriteRef[T any](s *Serializer, w types.Width, f Encoder[T], v T) error {
	target := s.heap
	length := f.StackSize(v)

	inner := newSerializer(target, s.output, length)
	if err := f.Serialize(v, &inner); err != nil {
		return err
	}
	if err := inner.pad(inner.StackLeft()); err != nil {
		return err
	}
	s.heap = inner.heap

	offset := target - (s.start + s.pos)
	if uint64(offset) > w.Max() {
		return errors.Overflow(errors.PhaseEncode, nil, offset, w.String())
	}
	if uint64(length) > w.Max() {
		return errors.Overflow(errors.PhaseEncode, nil, length, w.String())
	}

	dst, err := s.Stack(w.RefSize())
	if err != nil {
		return err
	}
	if dst != nil {
		types.EncodeRef(dst, w, uint64(offset), uint64(length))
	}
	return nil
}

// Finish closes the value. When the output was too short it returns an
// error of kind buffer_too_small carrying the number of missing bytes.
func (s *Serializer) Finish() (Written, error) {
	if err := s.pad(s.StackLeft()); err != nil {
		return Written{}, err
	}
	written := Written{Stack: s.stack, Heap: s.heap - s.start - s.stack}
	if s.heap > len(s.output) {
		return written, errors.BufferTooSmall(s.heap - len(s.output))
	}
	return written, nil
}
