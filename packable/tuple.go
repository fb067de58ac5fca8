package packable

import (
	"strings"

	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
)

// layout holds the static shape of a sequence of fields. Every bounded
// field takes its full slot, so a composite is exact whenever it is bounded.
type layout struct {
	max      int
	bounded  bool
	heapless bool
}

// fieldLayout checks that only the last field is unbounded and sums the
// slots. It panics on a malformed definition.
func fieldLayout(owner string, names []string, fields []access.Formula) layout {
	l := layout{bounded: true, heapless: true}
	for i, f := range fields {
		n, ok := f.MaxStackSize()
		if !ok {
			if i != len(fields)-1 {
				panic("packable: " + owner + ": unbounded field " + names[i] + " must be last or behind a reference")
			}
			l.bounded = false
		}
		l.max += n
		l.heapless = l.heapless && f.Heapless()
	}
	return l
}

func (l layout) MaxStackSize() (int, bool) {
	if !l.bounded {
		return 0, false
	}
	return l.max, true
}

func (l layout) ExactSize() bool { return l.bounded }
func (l layout) Heapless() bool  { return l.heapless }

func describeFields(kind string, fields ...access.Formula) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = access.Describe(f)
	}
	return kind + "(" + strings.Join(parts, ", ") + ")"
}

// T2 is a pair value.
type T2[A, B any] struct {
	V0 A
	V1 B
}

// T3 is a triple value.
type T3[A, B, C any] struct {
	V0 A
	V1 B
	V2 C
}

// Tuple2Formula lays out two fields in order.
type Tuple2Formula[A, B any] struct {
	layout
	a access.Codec[A]
	b access.Codec[B]
}

func Tuple2[A, B any](a access.Codec[A], b access.Codec[B]) Tuple2Formula[A, B] {
	return Tuple2Formula[A, B]{
		layout: fieldLayout("tuple", []string{"0", "1"}, []access.Formula{a, b}),
		a:      a,
		b:      b,
	}
}

func (t Tuple2Formula[A, B]) NonRef() access.Formula { return t }
func (t Tuple2Formula[A, B]) String() string         { return describeFields("tuple", t.a, t.b) }

func (t Tuple2Formula[A, B]) StackSize(v T2[A, B]) int {
	return access.SlotSize(t.a, v.V0) + access.SlotSize(t.b, v.V1)
}

func (t Tuple2Formula[A, B]) SizeHint(v T2[A, B]) (int, bool) {
	n0, ok0 := access.FieldSizeHint(t.a, v.V0)
	n1, ok1 := access.FieldSizeHint(t.b, v.V1)
	return n0 + n1, ok0 && ok1
}

func (t Tuple2Formula[A, B]) Serialize(v T2[A, B], s *access.Serializer) error {
	if err := access.WriteValue(s, t.a, v.V0); err != nil {
		return errors.AtPath(err, "0")
	}
	return errors.AtPath(access.WriteValue(s, t.b, v.V1), "1")
}

func (t Tuple2Formula[A, B]) Deserialize(d *access.Deserializer) (v T2[A, B], err error) {
	err = t.DeserializeInPlace(&v, d)
	return v, err
}

func (t Tuple2Formula[A, B]) DeserializeInPlace(place *T2[A, B], d *access.Deserializer) error {
	if err := access.ReadValueInPlace(d, t.a, &place.V0); err != nil {
		return errors.AtPath(err, "0")
	}
	return errors.AtPath(access.ReadValueInPlace(d, t.b, &place.V1), "1")
}

func (t Tuple2Formula[A, B]) Validate(d *access.Deserializer) error {
	if err := access.SkipValue(d, t.a); err != nil {
		return errors.AtPath(err, "0")
	}
	return errors.AtPath(access.SkipValue(d, t.b), "1")
}

// Tuple3Formula lays out three fields in order.
type Tuple3Formula[A, B, C any] struct {
	layout
	a access.Codec[A]
	b access.Codec[B]
	c access.Codec[C]
}

func Tuple3[A, B, C any](a access.Codec[A], b access.Codec[B], c access.Codec[C]) Tuple3Formula[A, B, C] {
	return Tuple3Formula[A, B, C]{
		layout: fieldLayout("tuple", []string{"0", "1", "2"}, []access.Formula{a, b, c}),
		a:      a,
		b:      b,
		c:      c,
	}
}

func (t Tuple3Formula[A, B, C]) NonRef() access.Formula { return t }
func (t Tuple3Formula[A, B, C]) String() string         { return describeFields("tuple", t.a, t.b, t.c) }

func (t Tuple3Formula[A, B, C]) StackSize(v T3[A, B, C]) int {
	return access.SlotSize(t.a, v.V0) + access.SlotSize(t.b, v.V1) + access.SlotSize(t.c, v.V2)
}

func (t Tuple3Formula[A, B, C]) SizeHint(v T3[A, B, C]) (int, bool) {
	n0, ok0 := access.FieldSizeHint(t.a, v.V0)
	n1, ok1 := access.FieldSizeHint(t.b, v.V1)
	n2, ok2 := access.FieldSizeHint(t.c, v.V2)
	return n0 + n1 + n2, ok0 && ok1 && ok2
}

func (t Tuple3Formula[A, B, C]) Serialize(v T3[A, B, C], s *access.Serializer) error {
	if err := access.WriteValue(s, t.a, v.V0); err != nil {
		return errors.AtPath(err, "0")
	}
	if err := access.WriteValue(s, t.b, v.V1); err != nil {
		return errors.AtPath(err, "1")
	}
	return errors.AtPath(access.WriteValue(s, t.c, v.V2), "2")
}

func (t Tuple3Formula[A, B, C]) Deserialize(d *access.Deserializer) (v T3[A, B, C], err error) {
	err = t.DeserializeInPlace(&v, d)
	return v, err
}

func (t Tuple3Formula[A, B, C]) DeserializeInPlace(place *T3[A, B, C], d *access.Deserializer) error {
	if err := access.ReadValueInPlace(d, t.a, &place.V0); err != nil {
		return errors.AtPath(err, "0")
	}
	if err := access.ReadValueInPlace(d, t.b, &place.V1); err != nil {
		return errors.AtPath(err, "1")
	}
	return errors.AtPath(access.ReadValueInPlace(d, t.c, &place.V2), "2")
}

func (t Tuple3Formula[A, B, C]) Validate(d *access.Deserializer) error {
	if err := access.SkipValue(d, t.a); err != nil {
		return errors.AtPath(err, "0")
	}
	if err := access.SkipValue(d, t.b); err != nil {
		return errors.AtPath(err, "1")
	}
	return errors.AtPath(access.SkipValue(d, t.c), "2")
}
