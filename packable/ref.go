package packable

import (
	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/types"
)

// RefFormula stores its target in the heap region and keeps an
// (offset, length) pair on the stack.
type RefFormula[T any] struct {
	inner access.Codec[T]
	width types.Width
}

// Ref wraps f in a reference of the default width.
func Ref[T any](f access.Codec[T]) RefFormula[T] {
	return RefWidth(f, types.WidthDefault)
}

// RefWidth wraps f in a reference whose offset and length use w.
func RefWidth[T any](f access.Codec[T], w types.Width) RefFormula[T] {
	if !w.Valid() {
		panic("packable: invalid reference width " + w.String())
	}
	return RefFormula[T]{inner: f, width: w}
}

func (r RefFormula[T]) MaxStackSize() (int, bool) { return r.width.RefSize(), true }
func (RefFormula[T]) ExactSize() bool             { return true }
func (RefFormula[T]) Heapless() bool              { return false }
func (r RefFormula[T]) NonRef() access.Formula    { return r.inner }
func (r RefFormula[T]) StackSize(T) int           { return r.width.RefSize() }
func (r RefFormula[T]) Width() types.Width        { return r.width }

func (r RefFormula[T]) String() string {
	return "ref<" + r.width.String() + ">(" + access.Describe(r.inner) + ")"
}

func (r RefFormula[T]) SizeHint(v T) (int, bool) {
	n, ok := r.inner.SizeHint(v)
	if !ok {
		return 0, false
	}
	return r.width.RefSize() + n, true
}

func (r RefFormula[T]) Serialize(v T, s *access.Serializer) error {
	return access.WriteRef(s, r.width, r.inner, v)
}

func (r RefFormula[T]) Deserialize(d *access.Deserializer) (T, error) {
	sub, err := d.Deref(r.width)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.inner.Deserialize(&sub)
}

func (r RefFormula[T]) DeserializeInPlace(place *T, d *access.Deserializer) error {
	sub, err := d.Deref(r.width)
	if err != nil {
		return err
	}
	return r.inner.DeserializeInPlace(place, &sub)
}

func (r RefFormula[T]) Validate(d *access.Deserializer) error {
	sub, err := d.Deref(r.width)
	if err != nil {
		return err
	}
	return r.inner.Validate(&sub)
}
