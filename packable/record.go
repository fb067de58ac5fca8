package packable

import (
	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
)

// RecordField binds one field of a Go struct T to a formula.
type RecordField[T any] interface {
	Name() string
	Formula() access.Formula
	slot(v *T) int
	sizeHint(v *T) (int, bool)
	write(v *T, s *access.Serializer) error
	read(v *T, d *access.Deserializer) error
}

type field[T, V any] struct {
	name string
	f    access.Codec[V]
	get  func(*T) *V
}

// Field declares a record field encoded with f. get returns the address of
// the field inside a record value.
func Field[T, V any](name string, f access.Codec[V], get func(*T) *V) RecordField[T] {
	if get == nil {
		panic("packable: field " + name + " has no accessor")
	}
	return field[T, V]{name: name, f: f, get: get}
}

func (fl field[T, V]) Name() string            { return fl.name }
func (fl field[T, V]) Formula() access.Formula { return fl.f }

func (fl field[T, V]) slot(v *T) int {
	return access.SlotSize(fl.f, *fl.get(v))
}

func (fl field[T, V]) sizeHint(v *T) (int, bool) {
	return access.FieldSizeHint(fl.f, *fl.get(v))
}

func (fl field[T, V]) write(v *T, s *access.Serializer) error {
	return access.WriteValue(s, fl.f, *fl.get(v))
}

func (fl field[T, V]) read(v *T, d *access.Deserializer) error {
	return access.ReadValueInPlace(d, fl.f, fl.get(v))
}

type ignored[T any] struct {
	name string
	f    access.Formula
}

// Ignore declares a field present on the wire that a decode-only view
// validates and steps over. Records containing it cannot encode.
func Ignore[T any](name string, f access.Formula) RecordField[T] {
	return ignored[T]{name: name, f: f}
}

func (ig ignored[T]) Name() string            { return ig.name }
func (ig ignored[T]) Formula() access.Formula { return ig.f }

func (ig ignored[T]) slot(*T) int {
	n, _ := ig.f.MaxStackSize()
	return n
}

func (ig ignored[T]) sizeHint(*T) (int, bool) { return 0, false }

func (ig ignored[T]) write(*T, *access.Serializer) error {
	return errors.New(errors.PhaseEncode, errors.KindInvalidData).
		Formula(access.Describe(ig.f)).
		Detail("field is decode-only").
		Build()
}

func (ig ignored[T]) read(_ *T, d *access.Deserializer) error {
	return access.SkipValue(d, ig.f)
}

// RecordFormula encodes a struct as its fields in declaration order.
type RecordFormula[T any] struct {
	layout
	name   string
	fields []RecordField[T]
}

// Record declares the layout of struct T. It panics on duplicate field
// names or an unbounded field that is not last.
func Record[T any](name string, fields ...RecordField[T]) RecordFormula[T] {
	names := make([]string, len(fields))
	formulas := make([]access.Formula, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for i, fl := range fields {
		if _, dup := seen[fl.Name()]; dup {
			panic("packable: record " + name + ": duplicate field " + fl.Name())
		}
		seen[fl.Name()] = struct{}{}
		names[i] = fl.Name()
		formulas[i] = fl.Formula()
	}
	return RecordFormula[T]{
		layout: fieldLayout("record "+name, names, formulas),
		name:   name,
		fields: fields,
	}
}

func (r RecordFormula[T]) NonRef() access.Formula   { return r }
func (r RecordFormula[T]) Fields() []RecordField[T] { return r.fields }

func (r RecordFormula[T]) String() string {
	fs := make([]access.Formula, len(r.fields))
	for i, fl := range r.fields {
		fs[i] = fl.Formula()
	}
	return describeFields(r.name, fs...)
}

func (r RecordFormula[T]) StackSize(v T) int {
	n := 0
	for _, fl := range r.fields {
		n += fl.slot(&v)
	}
	return n
}

func (r RecordFormula[T]) SizeHint(v T) (int, bool) {
	total := 0
	for _, fl := range r.fields {
		n, ok := fl.sizeHint(&v)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func (r RecordFormula[T]) Serialize(v T, s *access.Serializer) error {
	for _, fl := range r.fields {
		if err := fl.write(&v, s); err != nil {
			return errors.AtPath(err, fl.Name())
		}
	}
	return nil
}

func (r RecordFormula[T]) Deserialize(d *access.Deserializer) (v T, err error) {
	err = r.DeserializeInPlace(&v, d)
	return v, err
}

func (r RecordFormula[T]) DeserializeInPlace(place *T, d *access.Deserializer) error {
	for _, fl := range r.fields {
		if err := fl.read(place, d); err != nil {
			return errors.AtPath(err, fl.Name())
		}
	}
	return nil
}

func (r RecordFormula[T]) Validate(d *access.Deserializer) error {
	for _, fl := range r.fields {
		if err := access.SkipValue(d, fl.Formula()); err != nil {
			return errors.AtPath(err, fl.Name())
		}
	}
	return nil
}
