package access

import (
	"iter"

	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/types"
)

// Deserializer is a read cursor over the window [pos, end) of an immutable
// input. References are resolved against the whole input so a nested
// deserializer can reach heap bytes outside its parent's window.
type Deserializer struct {
	input []byte
	pos   int
	end   int
}

// NewDeserializer returns a deserializer whose window is all of input.
func NewDeserializer(input []byte) *Deserializer {
	return &Deserializer{input: input, end: len(input)}
}

// Window returns a deserializer over input[start:end] that can still
// resolve references into the rest of input.
func Window(input []byte, start, end int) (Deserializer, error) {
	if start < 0 || start > end || end > len(input) {
		return Deserializer{}, errors.OutOfBounds(errors.PhaseDecode, nil, end, len(input))
	}
	return Deserializer{input: input, pos: start, end: end}, nil
}

// Remaining is the number of unread bytes in the window.
func (d *Deserializer) Remaining() int {
	return d.end - d.pos
}

// Input returns the full input the deserializer was created over.
func (d *Deserializer) Input() []byte {
	return d.input
}

// Offset is the absolute position of the cursor within Input.
func (d *Deserializer) Offset() int {
	return d.pos
}

// Read returns the next n bytes of the window and advances past them.
func (d *Deserializer) Read(n int) ([]byte, error) {
	if n < 0 || n > d.end-d.pos {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, d.pos+n, d.end)
	}
	b := d.input[d.pos : d.pos+n : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadAllBytes returns the rest of the window without copying.
func (d *Deserializer) ReadAllBytes() []byte {
	b := d.input[d.pos:d.end:d.end]
	d.pos = d.end
	return b
}

// Sub splits the next n bytes off as their own window.
func (d *Deserializer) Sub(n int) (Deserializer, error) {
	if n < 0 || n > d.end-d.pos {
		return Deserializer{}, errors.OutOfBounds(errors.PhaseDecode, nil, d.pos+n, d.end)
	}
	sub := Deserializer{input: d.input, pos: d.pos, end: d.pos + n}
	d.pos += n
	return sub, nil
}

// rest hands the remaining window to a trailing unbounded field.
func (d *Deserializer) rest() Deserializer {
	sub := *d
	d.pos = d.end
	return sub
}

// Deref reads a reference at the cursor and returns a deserializer over
// exactly the bytes it points to.
func (d *Deserializer) Deref(w types.Width) (Deserializer, error) {
	at := d.pos
	b, err := d.Read(w.RefSize())
	if err != nil {
		return Deserializer{}, err
	}
	offset, length := types.DecodeRef(b, w)

	limit := uint64(len(d.input) - at)
	if offset > limit || length > limit-offset {
		return Deserializer{}, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
			Detail("reference at %d to +%d (%d bytes) exceeds input of %d bytes", at, offset, length, len(d.input)).
			Value(offset + length).
			Build()
	}
	start := at + int(offset)
	return Deserializer{input: d.input, pos: start, end: start + int(length)}, nil
}

// Finish returns the number of unread bytes left in the window. Trailing
// bytes are not an error.
func (d *Deserializer) Finish() int {
	return d.Remaining()
}

// window carves the bytes a field of f occupies out of d.
func (d *Deserializer) window(f Formula) (Deserializer, error) {
	if n, ok := f.MaxStackSize(); ok {
		return d.Sub(n)
	}
	return d.rest(), nil
}

// ReadValue decodes a field of f at the cursor. Bounded formulas consume
// their whole slot; unbounded ones consume the rest of the window.
func ReadValue[T any](d *Deserializer, f Decoder[T]) (T, error) {
	sub, err := d.window(f)
	if err != nil {
		var zero T
		return zero, err
	}
	return f.Deserialize(&sub)
}

// ReadValueInPlace is ReadValue refilling place.
func ReadValueInPlace[T any](d *Deserializer, f Decoder[T], place *T) error {
	sub, err := d.window(f)
	if err != nil {
		return err
	}
	return f.DeserializeInPlace(place, &sub)
}

// SkipValue validates and steps over a field of f.
func SkipValue(d *Deserializer, f Formula) error {
	sub, err := d.window(f)
	if err != nil {
		return err
	}
	return f.Validate(&sub)
}

// ElementSlot returns the slot width of a slice element formula. It panics
// for unbounded or zero-sized elements, which cannot form a counted run.
func ElementSlot(f Formula) int {
	n, ok := f.MaxStackSize()
	if !ok {
		panic("access: slice element formula must be bounded: " + Describe(f))
	}
	if n == 0 {
		panic("access: slice element formula must not be zero-sized: " + Describe(f))
	}
	return n
}

// SliceLen returns how many elements of slot bytes fill the window.
func (d *Deserializer) SliceLen(slot int) (int, error) {
	rem := d.Remaining()
	if rem%slot != 0 {
		return 0, errors.SizeMismatch(errors.PhaseDecode, nil, rem, slot)
	}
	return rem / slot, nil
}

// SliceIter yields the elements of a contiguous run of slots. It moves
// forward only; restart by calling IntoIter on the original window again.
type SliceIter[T any] struct {
	d    Deserializer
	f    Decoder[T]
	left int
}

// IntoIter decodes the rest of d's window as a sequence of f elements.
func IntoIter[T any](d *Deserializer, f Decoder[T]) (*SliceIter[T], error) {
	n, err := d.SliceLen(ElementSlot(f))
	if err != nil {
		return nil, err
	}
	return &SliceIter[T]{d: d.rest(), f: f, left: n}, nil
}

// Len is the number of elements not yet returned.
func (it *SliceIter[T]) Len() int {
	return it.left
}

// Next decodes the next element. ok is false once the run is exhausted.
func (it *SliceIter[T]) Next() (v T, ok bool, err error) {
	if it.left == 0 {
		return v, false, nil
	}
	it.left--
	v, err = ReadValue(&it.d, it.f)
	if err != nil {
		it.left = 0
		return v, false, err
	}
	return v, true, nil
}

// All ranges over the remaining elements. Iteration stops after the first
// error, which is yielded with the zero value.
func (it *SliceIter[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, ok, err := it.Next()
			if err != nil {
				yield(v, err)
				return
			}
			if !ok || !yield(v, nil) {
				return
			}
		}
	}
}
