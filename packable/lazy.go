package packable

import (
	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/types"
)

// reference is implemented by formulas whose stack footprint is a single
// (offset, length) pair.
type reference interface {
	Width() types.Width
}

// LazyFormula shares the wire layout of its inner formula but decodes to an
// undecoded handle. Encoding a handle decodes it and re-encodes the value.
type LazyFormula[T any] struct {
	inner access.Codec[T]
}

// Lazy defers decoding of values of f until Get is called on the handle.
func Lazy[T any](f access.Codec[T]) LazyFormula[T] {
	return LazyFormula[T]{inner: f}
}

func (l LazyFormula[T]) MaxStackSize() (int, bool) { return l.inner.MaxStackSize() }
func (l LazyFormula[T]) ExactSize() bool           { return l.inner.ExactSize() }
func (l LazyFormula[T]) Heapless() bool            { return l.inner.Heapless() }
func (l LazyFormula[T]) NonRef() access.Formula    { return l.inner.NonRef() }
func (l LazyFormula[T]) String() string            { return "lazy(" + access.Describe(l.inner) + ")" }

// Inner returns the formula used to encode plain values.
func (l LazyFormula[T]) Inner() access.Codec[T] { return l.inner }

func (l LazyFormula[T]) value(v *access.Lazy[T]) T {
	if v == nil {
		var zero T
		return zero
	}
	t, err := v.Get()
	if err != nil {
		var zero T
		return zero
	}
	return t
}

func (l LazyFormula[T]) StackSize(v *access.Lazy[T]) int {
	return l.inner.StackSize(l.value(v))
}

func (l LazyFormula[T]) SizeHint(v *access.Lazy[T]) (int, bool) {
	return l.inner.SizeHint(l.value(v))
}

func (l LazyFormula[T]) Serialize(v *access.Lazy[T], s *access.Serializer) error {
	if v == nil {
		var zero T
		return l.inner.Serialize(zero, s)
	}
	t, err := v.Get()
	if err != nil {
		return err
	}
	return l.inner.Serialize(t, s)
}

// check bounds-checks a window before a handle is made from it: a value of
// exact size must fit, and a reference must point inside the input. The
// target itself is not read.
func (l LazyFormula[T]) check(d *access.Deserializer) error {
	if n, ok := l.inner.MaxStackSize(); ok && l.inner.ExactSize() && d.Remaining() < n {
		return errors.OutOfBounds(errors.PhaseDecode, nil, d.Offset()+n, d.Offset()+d.Remaining())
	}
	if r, ok := l.inner.(reference); ok {
		at := *d
		if _, err := at.Deref(r.Width()); err != nil {
			return err
		}
	}
	return nil
}

// Validate performs the checks Deserialize does. The content is checked
// only when the handle is decoded.
func (l LazyFormula[T]) Validate(d *access.Deserializer) error { return l.check(d) }

// Deserialize captures the window without decoding it.
func (l LazyFormula[T]) Deserialize(d *access.Deserializer) (*access.Lazy[T], error) {
	if err := l.check(d); err != nil {
		return nil, err
	}
	return access.NewLazy[T](*d, l.inner), nil
}

func (l LazyFormula[T]) DeserializeInPlace(place **access.Lazy[T], d *access.Deserializer) error {
	if err := l.check(d); err != nil {
		return err
	}
	*place = access.NewLazy[T](*d, l.inner)
	return nil
}
