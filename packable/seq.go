package packable

import (
	"fmt"

	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/types"
)

// SliceFormula packs elements contiguously, one slot each. The element
// count is implied by the window length.
type SliceFormula[T any] struct {
	elem access.Codec[T]
	slot int
}

// Slice returns the formula for a run of elem values. It panics if elem is
// unbounded or zero-sized.
func Slice[T any](elem access.Codec[T]) SliceFormula[T] {
	return SliceFormula[T]{elem: elem, slot: access.ElementSlot(elem)}
}

// Vec is a slice stored behind a reference.
func Vec[T any](elem access.Codec[T]) RefFormula[[]T] {
	return Ref[[]T](Slice(elem))
}

// VecWidth is Vec with an explicit reference width.
func VecWidth[T any](elem access.Codec[T], w types.Width) RefFormula[[]T] {
	return RefWidth[[]T](Slice(elem), w)
}

func (SliceFormula[T]) MaxStackSize() (int, bool) { return 0, false }
func (SliceFormula[T]) ExactSize() bool           { return false }
func (s SliceFormula[T]) Heapless() bool          { return s.elem.Heapless() }
func (s SliceFormula[T]) NonRef() access.Formula  { return s }
func (s SliceFormula[T]) StackSize(v []T) int     { return len(v) * s.slot }
func (s SliceFormula[T]) Elem() access.Codec[T]   { return s.elem }

func (s SliceFormula[T]) String() string {
	return "slice(" + access.Describe(s.elem) + ")"
}

func (s SliceFormula[T]) SizeHint(v []T) (int, bool) {
	if n, ok := access.FastSize(s.elem); ok {
		return n * len(v), true
	}
	total := 0
	for _, e := range v {
		n, ok := access.FieldSizeHint(s.elem, e)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func (s SliceFormula[T]) Serialize(v []T, ser *access.Serializer) error {
	for _, e := range v {
		if err := access.WriteValue(ser, s.elem, e); err != nil {
			return err
		}
	}
	return nil
}

func (s SliceFormula[T]) Deserialize(d *access.Deserializer) ([]T, error) {
	var out []T
	err := s.DeserializeInPlace(&out, d)
	return out, err
}

func (s SliceFormula[T]) DeserializeInPlace(place *[]T, d *access.Deserializer) error {
	it, err := access.IntoIter(d, s.elem)
	if err != nil {
		return err
	}
	out := (*place)[:0]
	if cap(out) < it.Len() {
		out = make([]T, 0, it.Len())
	}
	for v, err := range it.All() {
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	*place = out
	return nil
}

func (s SliceFormula[T]) Validate(d *access.Deserializer) error {
	n, err := d.SliceLen(s.slot)
	if err != nil {
		return err
	}
	for range n {
		if err := access.SkipValue(d, s.elem); err != nil {
			return err
		}
	}
	return nil
}

// ArrayFormula is a fixed number of element slots.
type ArrayFormula[T any] struct {
	elem access.Codec[T]
	slot int
	n    int
}

// Array returns the formula for exactly n elems. Encoding a slice of any
// other length panics.
func Array[T any](elem access.Codec[T], n int) ArrayFormula[T] {
	if n < 0 {
		panic("packable: negative array length")
	}
	max, ok := elem.MaxStackSize()
	if !ok {
		panic("packable: array element formula must be bounded: " + access.Describe(elem))
	}
	return ArrayFormula[T]{elem: elem, slot: max, n: n}
}

func (a ArrayFormula[T]) MaxStackSize() (int, bool) { return a.n * a.slot, true }
func (a ArrayFormula[T]) ExactSize() bool           { return true }
func (a ArrayFormula[T]) Heapless() bool            { return a.n == 0 || a.elem.Heapless() }
func (a ArrayFormula[T]) NonRef() access.Formula    { return a }
func (a ArrayFormula[T]) StackSize([]T) int         { return a.n * a.slot }

func (a ArrayFormula[T]) String() string {
	return fmt.Sprintf("array[%d](%s)", a.n, access.Describe(a.elem))
}

func (a ArrayFormula[T]) check(v []T) {
	if len(v) != a.n {
		panic(fmt.Sprintf("packable: array of %d encoded from %d elements", a.n, len(v)))
	}
}

func (a ArrayFormula[T]) SizeHint(v []T) (int, bool) {
	a.check(v)
	total := 0
	for _, e := range v {
		n, ok := access.FieldSizeHint(a.elem, e)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func (a ArrayFormula[T]) Serialize(v []T, s *access.Serializer) error {
	a.check(v)
	for _, e := range v {
		if err := access.WriteValue(s, a.elem, e); err != nil {
			return err
		}
	}
	return nil
}

func (a ArrayFormula[T]) Deserialize(d *access.Deserializer) ([]T, error) {
	out := make([]T, a.n)
	for i := range out {
		v, err := access.ReadValue(d, a.elem)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (a ArrayFormula[T]) DeserializeInPlace(place *[]T, d *access.Deserializer) error {
	if cap(*place) < a.n {
		*place = make([]T, a.n)
	}
	*place = (*place)[:a.n]
	for i := range *place {
		if err := access.ReadValueInPlace(d, a.elem, &(*place)[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a ArrayFormula[T]) Validate(d *access.Deserializer) error {
	for range a.n {
		if err := access.SkipValue(d, a.elem); err != nil {
			return err
		}
	}
	return nil
}
