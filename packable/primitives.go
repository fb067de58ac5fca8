package packable

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/vlovich/alkahest/access"
)

// IntFormula encodes an integer as its little-endian two's complement bytes.
type IntFormula[T constraints.Integer] struct{}

// Int returns the formula for integer type T.
func Int[T constraints.Integer]() IntFormula[T] { return IntFormula[T]{} }

var (
	U8  = Int[uint8]()
	U16 = Int[uint16]()
	U32 = Int[uint32]()
	U64 = Int[uint64]()
	I8  = Int[int8]()
	I16 = Int[int16]()
	I32 = Int[int32]()
	I64 = Int[int64]()
)

func (IntFormula[T]) size() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func (f IntFormula[T]) MaxStackSize() (int, bool) { return f.size(), true }
func (IntFormula[T]) ExactSize() bool             { return true }
func (IntFormula[T]) Heapless() bool              { return true }
func (f IntFormula[T]) NonRef() access.Formula    { return f }
func (f IntFormula[T]) StackSize(T) int           { return f.size() }
func (f IntFormula[T]) SizeHint(T) (int, bool)    { return f.size(), true }

func (f IntFormula[T]) String() string {
	var zero T
	if ^zero < zero {
		return fmt.Sprintf("i%d", f.size()*8)
	}
	return fmt.Sprintf("u%d", f.size()*8)
}

func (f IntFormula[T]) Serialize(v T, s *access.Serializer) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return s.WriteBytes(b[:f.size()])
}

func (f IntFormula[T]) Deserialize(d *access.Deserializer) (T, error) {
	b, err := d.Read(f.size())
	if err != nil {
		return 0, err
	}
	switch len(b) {
	case 1:
		return T(int8(b[0])), nil
	case 2:
		return T(int16(binary.LittleEndian.Uint16(b))), nil
	case 4:
		return T(int32(binary.LittleEndian.Uint32(b))), nil
	default:
		return T(int64(binary.LittleEndian.Uint64(b))), nil
	}
}

func (f IntFormula[T]) DeserializeInPlace(place *T, d *access.Deserializer) (err error) {
	*place, err = f.Deserialize(d)
	return err
}

func (f IntFormula[T]) Validate(d *access.Deserializer) error {
	_, err := d.Read(f.size())
	return err
}

// FloatFormula encodes IEEE 754 values.
type FloatFormula[T constraints.Float] struct{}

// Float returns the formula for floating point type T.
func Float[T constraints.Float]() FloatFormula[T] { return FloatFormula[T]{} }

var (
	F32 = Float[float32]()
	F64 = Float[float64]()
)

func (FloatFormula[T]) size() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func (f FloatFormula[T]) MaxStackSize() (int, bool) { return f.size(), true }
func (FloatFormula[T]) ExactSize() bool             { return true }
func (FloatFormula[T]) Heapless() bool              { return true }
func (f FloatFormula[T]) NonRef() access.Formula    { return f }
func (f FloatFormula[T]) StackSize(T) int           { return f.size() }
func (f FloatFormula[T]) SizeHint(T) (int, bool)    { return f.size(), true }
func (f FloatFormula[T]) String() string            { return fmt.Sprintf("f%d", f.size()*8) }

func (f FloatFormula[T]) Serialize(v T, s *access.Serializer) error {
	var b [8]byte
	if f.size() == 4 {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
	} else {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(float64(v)))
	}
	return s.WriteBytes(b[:f.size()])
}

func (f FloatFormula[T]) Deserialize(d *access.Deserializer) (T, error) {
	b, err := d.Read(f.size())
	if err != nil {
		return 0, err
	}
	if len(b) == 4 {
		return T(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	}
	return T(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
}

func (f FloatFormula[T]) DeserializeInPlace(place *T, d *access.Deserializer) (err error) {
	*place, err = f.Deserialize(d)
	return err
}

func (f FloatFormula[T]) Validate(d *access.Deserializer) error {
	_, err := d.Read(f.size())
	return err
}

// BoolFormula is one byte; any non-zero byte decodes as true.
type BoolFormula struct{}

var Bool = BoolFormula{}

func (BoolFormula) MaxStackSize() (int, bool) { return 1, true }
func (BoolFormula) ExactSize() bool           { return true }
func (BoolFormula) Heapless() bool            { return true }
func (f BoolFormula) NonRef() access.Formula  { return f }
func (BoolFormula) StackSize(bool) int        { return 1 }
func (BoolFormula) SizeHint(bool) (int, bool) { return 1, true }
func (BoolFormula) String() string            { return "bool" }

func (BoolFormula) Serialize(v bool, s *access.Serializer) error {
	var b [1]byte
	if v {
		b[0] = 1
	}
	return s.WriteBytes(b[:])
}

func (BoolFormula) Deserialize(d *access.Deserializer) (bool, error) {
	b, err := d.Read(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (f BoolFormula) DeserializeInPlace(place *bool, d *access.Deserializer) (err error) {
	*place, err = f.Deserialize(d)
	return err
}

func (BoolFormula) Validate(d *access.Deserializer) error {
	_, err := d.Read(1)
	return err
}

// UnitFormula occupies no bytes.
type UnitFormula struct{}

var Unit = UnitFormula{}

func (UnitFormula) MaxStackSize() (int, bool)                          { return 0, true }
func (UnitFormula) ExactSize() bool                                    { return true }
func (UnitFormula) Heapless() bool                                     { return true }
func (f UnitFormula) NonRef() access.Formula                           { return f }
func (UnitFormula) StackSize(struct{}) int                             { return 0 }
func (UnitFormula) SizeHint(struct{}) (int, bool)                      { return 0, true }
func (UnitFormula) String() string                                     { return "unit" }
func (UnitFormula) Serialize(struct{}, *access.Serializer) error       { return nil }
func (UnitFormula) Deserialize(*access.Deserializer) (struct{}, error) { return struct{}{}, nil }
func (UnitFormula) DeserializeInPlace(*struct{}, *access.Deserializer) error {
	return nil
}
func (UnitFormula) Validate(*access.Deserializer) error { return nil }
