package packable

import (
	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/types"
)

const (
	tagAbsent  = 0
	tagPresent = 1
)

// OptionFormula encodes a nullable value as a 4-byte tag followed by the
// value's slot when present. A nil pointer is absent.
type OptionFormula[T any] struct {
	inner access.Codec[T]
}

// Option wraps f so that values may be absent.
func Option[T any](f access.Codec[T]) OptionFormula[T] {
	return OptionFormula[T]{inner: f}
}

func (o OptionFormula[T]) MaxStackSize() (int, bool) {
	n, ok := o.inner.MaxStackSize()
	if !ok {
		return 0, false
	}
	return types.DiscriminantSize + n, true
}

func (o OptionFormula[T]) ExactSize() bool {
	n, ok := o.inner.MaxStackSize()
	return ok && n == 0
}

func (o OptionFormula[T]) Heapless() bool         { return o.inner.Heapless() }
func (o OptionFormula[T]) NonRef() access.Formula { return o }
func (o OptionFormula[T]) String() string         { return "option(" + access.Describe(o.inner) + ")" }

func (o OptionFormula[T]) StackSize(v *T) int {
	if v == nil {
		return types.DiscriminantSize
	}
	return types.DiscriminantSize + access.SlotSize(o.inner, *v)
}

func (o OptionFormula[T]) SizeHint(v *T) (int, bool) {
	if v == nil {
		return types.DiscriminantSize, true
	}
	n, ok := access.FieldSizeHint(o.inner, *v)
	return types.DiscriminantSize + n, ok
}

func (o OptionFormula[T]) Serialize(v *T, s *access.Serializer) error {
	var tag [types.DiscriminantSize]byte
	if v == nil {
		types.EncodeDiscriminant(tag[:], tagAbsent)
		return s.WriteBytes(tag[:])
	}
	types.EncodeDiscriminant(tag[:], tagPresent)
	if err := s.WriteBytes(tag[:]); err != nil {
		return err
	}
	return access.WriteValue(s, o.inner, *v)
}

func (o OptionFormula[T]) present(d *access.Deserializer) (bool, error) {
	b, err := d.Read(types.DiscriminantSize)
	if err != nil {
		return false, err
	}
	switch tag := types.DecodeDiscriminant(b); tag {
	case tagAbsent:
		return false, nil
	case tagPresent:
		return true, nil
	default:
		return false, errors.InvalidDiscriminant(errors.PhaseDecode, nil, tag, 2)
	}
}

func (o OptionFormula[T]) Deserialize(d *access.Deserializer) (*T, error) {
	ok, err := o.present(d)
	if err != nil || !ok {
		return nil, err
	}
	v, err := access.ReadValue(d, o.inner)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DeserializeInPlace reuses the pointee of *place when the value is present.
func (o OptionFormula[T]) DeserializeInPlace(place **T, d *access.Deserializer) error {
	ok, err := o.present(d)
	if err != nil {
		return err
	}
	if !ok {
		*place = nil
		return nil
	}
	if *place == nil {
		*place = new(T)
	}
	return access.ReadValueInPlace(d, o.inner, *place)
}

func (o OptionFormula[T]) Validate(d *access.Deserializer) error {
	ok, err := o.present(d)
	if err != nil || !ok {
		return err
	}
	return access.SkipValue(d, o.inner)
}
