package packable

import (
	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/types"
)

// EnumVariant is one case of a tagged union over T.
type EnumVariant[T any] interface {
	Name() string
	Formula() access.Formula
	match(v T) bool
	slot(v T) int
	sizeHint(v T) (int, bool)
	write(v T, s *access.Serializer) error
	read(d *access.Deserializer) (T, error)
}

type variant[T, V any] struct {
	name   string
	f      access.Codec[V]
	wrap   func(V) T
	unwrap func(T) (V, bool)
}

// Variant declares a case whose payload V is encoded with f. unwrap
// reports whether a T belongs to this case.
func Variant[T, V any](name string, f access.Codec[V], wrap func(V) T, unwrap func(T) (V, bool)) EnumVariant[T] {
	return variant[T, V]{name: name, f: f, wrap: wrap, unwrap: unwrap}
}

// Case is Variant for an interface T implemented by the payload type V.
func Case[T, V any](name string, f access.Codec[V]) EnumVariant[T] {
	return Variant(name, f,
		func(v V) T { return any(v).(T) },
		func(t T) (V, bool) {
			v, ok := any(t).(V)
			return v, ok
		})
}

func (vr variant[T, V]) Name() string            { return vr.name }
func (vr variant[T, V]) Formula() access.Formula { return vr.f }

func (vr variant[T, V]) match(v T) bool {
	_, ok := vr.unwrap(v)
	return ok
}

func (vr variant[T, V]) slot(v T) int {
	p, _ := vr.unwrap(v)
	return access.SlotSize(vr.f, p)
}

func (vr variant[T, V]) sizeHint(v T) (int, bool) {
	p, _ := vr.unwrap(v)
	return access.FieldSizeHint(vr.f, p)
}

func (vr variant[T, V]) write(v T, s *access.Serializer) error {
	p, _ := vr.unwrap(v)
	return access.WriteValue(s, vr.f, p)
}

func (vr variant[T, V]) read(d *access.Deserializer) (T, error) {
	p, err := access.ReadValue(d, vr.f)
	if err != nil {
		var zero T
		return zero, err
	}
	return vr.wrap(p), nil
}

// EnumFormula encodes a u32 discriminant, the variant's index, followed by
// the variant's payload.
type EnumFormula[T any] struct {
	name     string
	variants []EnumVariant[T]
	max      int
	bounded  bool
	exact    bool
	heapless bool
}

// Enum declares the variants of T in discriminant order. It panics on an
// empty or duplicate variant list.
func Enum[T any](name string, variants ...EnumVariant[T]) EnumFormula[T] {
	if len(variants) == 0 {
		panic("packable: enum " + name + " has no variants")
	}
	e := EnumFormula[T]{name: name, variants: variants, bounded: true, exact: true, heapless: true}
	seen := make(map[string]struct{}, len(variants))
	for i, vr := range variants {
		if _, dup := seen[vr.Name()]; dup {
			panic("packable: enum " + name + ": duplicate variant " + vr.Name())
		}
		seen[vr.Name()] = struct{}{}

		f := vr.Formula()
		n, ok := f.MaxStackSize()
		e.bounded = e.bounded && ok
		if i > 0 && n != e.max {
			e.exact = false
		}
		e.max = max(e.max, n)
		e.heapless = e.heapless && f.Heapless()
	}
	e.exact = e.exact && e.bounded
	return e
}

func (e EnumFormula[T]) MaxStackSize() (int, bool) {
	if !e.bounded {
		return 0, false
	}
	return types.DiscriminantSize + e.max, true
}

func (e EnumFormula[T]) ExactSize() bool        { return e.exact }
func (e EnumFormula[T]) Heapless() bool         { return e.heapless }
func (e EnumFormula[T]) NonRef() access.Formula { return e }

func (e EnumFormula[T]) String() string {
	fs := make([]access.Formula, len(e.variants))
	for i, vr := range e.variants {
		fs[i] = vr.Formula()
	}
	return describeFields("enum "+e.name, fs...)
}

func (e EnumFormula[T]) index(v T) (int, error) {
	for i, vr := range e.variants {
		if vr.match(v) {
			return i, nil
		}
	}
	return 0, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
		Formula(e.name).
		Value(v).
		Detail("no variant matches %T", v).
		Build()
}

func (e EnumFormula[T]) StackSize(v T) int {
	i, err := e.index(v)
	if err != nil {
		return types.DiscriminantSize
	}
	return types.DiscriminantSize + e.variants[i].slot(v)
}

func (e EnumFormula[T]) SizeHint(v T) (int, bool) {
	i, err := e.index(v)
	if err != nil {
		return 0, false
	}
	n, ok := e.variants[i].sizeHint(v)
	return types.DiscriminantSize + n, ok
}

func (e EnumFormula[T]) Serialize(v T, s *access.Serializer) error {
	i, err := e.index(v)
	if err != nil {
		return err
	}
	var tag [types.DiscriminantSize]byte
	types.EncodeDiscriminant(tag[:], uint32(i))
	if err := s.WriteBytes(tag[:]); err != nil {
		return err
	}
	return errors.AtPath(e.variants[i].write(v, s), e.variants[i].Name())
}

func (e EnumFormula[T]) variant(d *access.Deserializer) (EnumVariant[T], error) {
	b, err := d.Read(types.DiscriminantSize)
	if err != nil {
		return nil, err
	}
	disc := types.DecodeDiscriminant(b)
	if uint64(disc) >= uint64(len(e.variants)) {
		return nil, errors.InvalidDiscriminant(errors.PhaseDecode, []string{e.name}, disc, len(e.variants))
	}
	return e.variants[disc], nil
}

func (e EnumFormula[T]) Deserialize(d *access.Deserializer) (T, error) {
	vr, err := e.variant(d)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := vr.read(d)
	return v, errors.AtPath(err, vr.Name())
}

func (e EnumFormula[T]) DeserializeInPlace(place *T, d *access.Deserializer) (err error) {
	*place, err = e.Deserialize(d)
	return err
}

func (e EnumFormula[T]) Validate(d *access.Deserializer) error {
	vr, err := e.variant(d)
	if err != nil {
		return err
	}
	return errors.AtPath(access.SkipValue(d, vr.Formula()), vr.Name())
}
