// Package scheme builds formulas at runtime. A Scheme encodes and decodes
// dynamically typed values (any) with the same wire layout as the static
// formulas in package packable, so bytes written by one can be read by the
// other.
package scheme

import (
	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/packable"
	"golang.org/x/exp/constraints"
)

// Scheme is a formula over dynamic values.
//
// Decoded values use these Go types:
//
//	bool, intN, uintN, floatN   the exact Go type of the scheme
//	string                      string
//	bytes                       []byte
//	unit                        nil
//	vec, array, tuple           []any
//	option                      nil or the inner value
//	record                      *types.OrderedMapAny in declaration order
//	enum                        *types.OrderedMapAny holding one variant
//	map                         map[string]any
type Scheme interface {
	access.Codec[any]
	String() string
}

func mismatch(v any, s Scheme) error {
	return errors.TypeMismatch(errors.PhaseEncode, nil, v, s.String())
}

// SchemeInt encodes any integral number that fits T.
type SchemeInt[T constraints.Integer] struct{}

func (SchemeInt[T]) codec() packable.IntFormula[T] { return packable.Int[T]() }

func (s SchemeInt[T]) MaxStackSize() (int, bool)             { return s.codec().MaxStackSize() }
func (SchemeInt[T]) ExactSize() bool                         { return true }
func (SchemeInt[T]) Heapless() bool                          { return true }
func (s SchemeInt[T]) NonRef() access.Formula                { return s }
func (s SchemeInt[T]) String() string                        { return s.codec().String() }
func (s SchemeInt[T]) StackSize(any) int                     { return s.codec().StackSize(0) }
func (s SchemeInt[T]) SizeHint(any) (int, bool)              { return s.codec().SizeHint(0) }
func (s SchemeInt[T]) Validate(d *access.Deserializer) error { return s.codec().Validate(d) }

func (s SchemeInt[T]) Serialize(v any, ser *access.Serializer) error {
	n, ok := coerceInteger[T](v)
	if !ok {
		if _, numeric := toInt64(v); numeric {
			return errors.Overflow(errors.PhaseEncode, nil, v, s.String())
		}
		if _, numeric := toUint64(v); numeric {
			return errors.Overflow(errors.PhaseEncode, nil, v, s.String())
		}
		return mismatch(v, s)
	}
	return s.codec().Serialize(n, ser)
}

func (s SchemeInt[T]) Deserialize(d *access.Deserializer) (any, error) {
	n, err := s.codec().Deserialize(d)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s SchemeInt[T]) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

// SchemeFloat encodes any number as T.
type SchemeFloat[T constraints.Float] struct{}

func (SchemeFloat[T]) codec() packable.FloatFormula[T] { return packable.Float[T]() }

func (s SchemeFloat[T]) MaxStackSize() (int, bool)             { return s.codec().MaxStackSize() }
func (SchemeFloat[T]) ExactSize() bool                         { return true }
func (SchemeFloat[T]) Heapless() bool                          { return true }
func (s SchemeFloat[T]) NonRef() access.Formula                { return s }
func (s SchemeFloat[T]) String() string                        { return s.codec().String() }
func (s SchemeFloat[T]) StackSize(any) int                     { return s.codec().StackSize(0) }
func (s SchemeFloat[T]) SizeHint(any) (int, bool)              { return s.codec().SizeHint(0) }
func (s SchemeFloat[T]) Validate(d *access.Deserializer) error { return s.codec().Validate(d) }

func (s SchemeFloat[T]) Serialize(v any, ser *access.Serializer) error {
	f, ok := coerceFloat[T](v)
	if !ok {
		return mismatch(v, s)
	}
	return s.codec().Serialize(f, ser)
}

func (s SchemeFloat[T]) Deserialize(d *access.Deserializer) (any, error) {
	f, err := s.codec().Deserialize(d)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s SchemeFloat[T]) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

type SchemeBool struct{}

func (SchemeBool) MaxStackSize() (int, bool)             { return 1, true }
func (SchemeBool) ExactSize() bool                       { return true }
func (SchemeBool) Heapless() bool                        { return true }
func (s SchemeBool) NonRef() access.Formula              { return s }
func (SchemeBool) String() string                        { return "bool" }
func (SchemeBool) StackSize(any) int                     { return 1 }
func (SchemeBool) SizeHint(any) (int, bool)              { return 1, true }
func (SchemeBool) Validate(d *access.Deserializer) error { return packable.Bool.Validate(d) }

func (s SchemeBool) Serialize(v any, ser *access.Serializer) error {
	b, ok := v.(bool)
	if !ok {
		return mismatch(v, s)
	}
	return packable.Bool.Serialize(b, ser)
}

func (SchemeBool) Deserialize(d *access.Deserializer) (any, error) {
	b, err := packable.Bool.Deserialize(d)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s SchemeBool) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

// SchemeString is a UTF-8 string behind a reference. View decodes without
// copying, so the result aliases the input.
type SchemeString struct {
	View bool
}

func (s SchemeString) codec() packable.RefFormula[string] {
	if s.View {
		return packable.StringView
	}
	return packable.String
}

func (s SchemeString) MaxStackSize() (int, bool)             { return s.codec().MaxStackSize() }
func (SchemeString) ExactSize() bool                         { return true }
func (SchemeString) Heapless() bool                          { return false }
func (s SchemeString) NonRef() access.Formula                { return s.codec().NonRef() }
func (s SchemeString) String() string                        { return s.codec().String() }
func (s SchemeString) StackSize(any) int                     { return s.codec().StackSize("") }
func (s SchemeString) Validate(d *access.Deserializer) error { return s.codec().Validate(d) }

func (s SchemeString) SizeHint(v any) (int, bool) {
	str, ok := v.(string)
	if !ok {
		return 0, false
	}
	return s.codec().SizeHint(str)
}

func (s SchemeString) Serialize(v any, ser *access.Serializer) error {
	str, ok := v.(string)
	if !ok {
		return mismatch(v, s)
	}
	return s.codec().Serialize(str, ser)
}

func (s SchemeString) Deserialize(d *access.Deserializer) (any, error) {
	str, err := s.codec().Deserialize(d)
	if err != nil {
		return nil, err
	}
	return str, nil
}

func (s SchemeString) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

// SchemeBytes is an owned byte blob behind a reference. Encoding also
// accepts base64 text and lists of byte values.
type SchemeBytes struct{}

func (SchemeBytes) MaxStackSize() (int, bool)             { return packable.BlobOwned.MaxStackSize() }
func (SchemeBytes) ExactSize() bool                       { return true }
func (SchemeBytes) Heapless() bool                        { return false }
func (SchemeBytes) NonRef() access.Formula                { return packable.BlobOwned.NonRef() }
func (SchemeBytes) String() string                        { return packable.BlobOwned.String() }
func (SchemeBytes) StackSize(any) int                     { return packable.BlobOwned.StackSize(nil) }
func (SchemeBytes) Validate(d *access.Deserializer) error { return packable.BlobOwned.Validate(d) }

func (SchemeBytes) SizeHint(v any) (int, bool) {
	b, ok := coerceBytes(v)
	if !ok {
		return 0, false
	}
	return packable.BlobOwned.SizeHint(b)
}

func (s SchemeBytes) Serialize(v any, ser *access.Serializer) error {
	b, ok := coerceBytes(v)
	if !ok {
		return mismatch(v, s)
	}
	return packable.BlobOwned.Serialize(b, ser)
}

func (SchemeBytes) Deserialize(d *access.Deserializer) (any, error) {
	b, err := packable.BlobOwned.Deserialize(d)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s SchemeBytes) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

// SchemeUnit occupies no bytes and decodes to nil.
type SchemeUnit struct{}

func (SchemeUnit) MaxStackSize() (int, bool)           { return 0, true }
func (SchemeUnit) ExactSize() bool                     { return true }
func (SchemeUnit) Heapless() bool                      { return true }
func (s SchemeUnit) NonRef() access.Formula            { return s }
func (SchemeUnit) String() string                      { return "unit" }
func (SchemeUnit) StackSize(any) int                   { return 0 }
func (SchemeUnit) SizeHint(any) (int, bool)            { return 0, true }
func (SchemeUnit) Validate(*access.Deserializer) error { return nil }

func (s SchemeUnit) Serialize(v any, _ *access.Serializer) error {
	switch v.(type) {
	case nil, struct{}:
		return nil
	}
	return mismatch(v, s)
}

func (SchemeUnit) Deserialize(*access.Deserializer) (any, error) { return nil, nil }

func (SchemeUnit) DeserializeInPlace(place *any, _ *access.Deserializer) error {
	*place = nil
	return nil
}

var (
	SBool       = SchemeBool{}
	SInt8       = SchemeInt[int8]{}
	SInt16      = SchemeInt[int16]{}
	SInt32      = SchemeInt[int32]{}
	SInt64      = SchemeInt[int64]{}
	SUint8      = SchemeInt[uint8]{}
	SUint16     = SchemeInt[uint16]{}
	SUint32     = SchemeInt[uint32]{}
	SUint64     = SchemeInt[uint64]{}
	SFloat32    = SchemeFloat[float32]{}
	SFloat64    = SchemeFloat[float64]{}
	SString     = SchemeString{}
	SStringView = SchemeString{View: true}
	SBytes      = SchemeBytes{}
	SUnit       = SchemeUnit{}
)

func decodeInto(s Scheme, place *any, d *access.Deserializer) error {
	v, err := s.Deserialize(d)
	if err != nil {
		return err
	}
	*place = v
	return nil
}
