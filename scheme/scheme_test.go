package scheme

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/packable"
	"github.com/vlovich/alkahest/types"
)

type user struct {
	ID   uint32
	Name string
	Tags []uint16
}

var staticUser = packable.Record[user]("user",
	packable.Field[user, uint32]("id", packable.U32, func(u *user) *uint32 { return &u.ID }),
	packable.Field[user, string]("name", packable.String, func(u *user) *string { return &u.Name }),
	packable.Field[user, []uint16]("tags", packable.Vec[uint16](packable.U16), func(u *user) *[]uint16 { return &u.Tags }),
)

var dynamicUser = SRecord("user", []string{"id", "name", "tags"}, SUint32, SString, SVec(SUint16))

func TestRecord_MatchesStaticLayout(t *testing.T) {
	want, err := access.Marshal(staticUser, user{ID: 7, Name: "ann", Tags: []uint16{1, 2}})
	require.NoError(t, err)

	got, err := access.Marshal[any](dynamicUser, map[string]any{
		"id":   7,
		"name": "ann",
		"tags": []any{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	n, ok := dynamicUser.MaxStackSize()
	assert.True(t, ok)
	assert.Equal(t, 20, n)

	v, err := access.Deserialize[any](dynamicUser, got)
	require.NoError(t, err)
	rec := v.(*types.OrderedMapAny)
	assert.Equal(t, []string{"id", "name", "tags"}, rec.Keys())
	assert.Equal(t, uint32(7), types.GetAs[uint32](rec, "id"))
	assert.Equal(t, "ann", types.GetAs[string](rec, "name"))
	assert.Equal(t, []any{uint16(1), uint16(2)}, types.GetAs[[]any](rec, "tags"))

	back, err := access.Deserialize(staticUser, got)
	require.NoError(t, err)
	assert.Equal(t, user{ID: 7, Name: "ann", Tags: []uint16{1, 2}}, back)

	again, err := access.Marshal[any](dynamicUser, rec)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestRecord_TruncatedHeap(t *testing.T) {
	buf, err := access.Marshal[any](dynamicUser, map[string]any{"id": 1, "name": "ann", "tags": []any{9}})
	require.NoError(t, err)
	require.NoError(t, access.Validate(dynamicUser, buf))

	err = access.Validate(dynamicUser, buf[:len(buf)-1])
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)
	_, err = access.Deserialize[any](dynamicUser, buf[:len(buf)-1])
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)
}

func TestRecord_EncodeErrors(t *testing.T) {
	buf := make([]byte, 64)

	_, err := access.Serialize[any](dynamicUser, map[string]any{"id": 1, "name": "x"}, buf)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindInvalidData, e.Kind)
	assert.Equal(t, []string{"tags"}, e.Path)

	_, err = access.Serialize[any](dynamicUser, map[string]any{"id": 1, "name": "x", "tags": []any{}, "extra": 1}, buf)
	e, ok = errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindInvalidData, e.Kind)

	_, err = access.Serialize[any](dynamicUser, map[string]any{"id": -1, "name": "x", "tags": []any{}}, buf)
	assert.ErrorIs(t, err, errors.ErrOverflow)
	e, _ = errors.As(err)
	assert.Equal(t, []string{"id"}, e.Path)

	_, err = access.Serialize[any](dynamicUser, []any{1, "x"}, buf)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)

	_, err = access.Serialize[any](dynamicUser, map[string]any{"id": 1, "name": "x", "tags": []any{70000}}, buf)
	assert.ErrorIs(t, err, errors.ErrOverflow)
}

func TestRecord_OptionalFieldMayBeMissing(t *testing.T) {
	s := SRecord("p", []string{"a", "b"}, SUint8, SOption(SUint8))
	buf, err := access.Marshal[any](s, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0}, buf)

	v, err := access.Deserialize[any](s, buf)
	require.NoError(t, err)
	assert.True(t, types.NewOrderedMapAny(types.OPAny("a", uint8(1)), types.OPAny("b", nil)).Equal(v.(*types.OrderedMapAny)))
}

func TestRecord_Panics(t *testing.T) {
	assert.Panics(t, func() { SRecord("r", []string{"a", "a"}, SBool, SBool) })
	assert.Panics(t, func() { SRecord("r", []string{"a"}, SBool, SBool) })
	assert.Panics(t, func() { SVec(SUnit) })
	assert.Panics(t, func() { SEnum("e", nil) })
	assert.Panics(t, func() { SArray(SBool, -1) })
}

func TestPrimitives_Coercion(t *testing.T) {
	cases := []struct {
		s    Scheme
		in   any
		want any
	}{
		{SInt8, -3, int8(-3)},
		{SInt16, float64(1000), int16(1000)},
		{SInt32, int64(-70000), int32(-70000)},
		{SInt64, float32(8), int64(8)},
		{SUint8, uint64(255), uint8(255)},
		{SUint16, 65535, uint16(65535)},
		{SUint32, float64(4e9), uint32(4e9)},
		{SUint64, uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{SFloat32, 2, float32(2)},
		{SFloat64, 1.25, 1.25},
		{SBool, true, true},
		{SString, "héllo", "héllo"},
		{SStringView, "view", "view"},
		{SBytes, []byte{1, 2}, []byte{1, 2}},
		{SBytes, "AQID", []byte{1, 2, 3}},
		{SBytes, []any{4, 5}, []byte{4, 5}},
		{SUnit, nil, nil},
	}
	for _, c := range cases {
		t.Run(c.s.String(), func(t *testing.T) {
			buf, err := access.Marshal[any](c.s, c.in)
			require.NoError(t, err)
			got, err := access.Deserialize[any](c.s, buf)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestPrimitives_Rejects(t *testing.T) {
	buf := make([]byte, 16)
	cases := []struct {
		s   Scheme
		in  any
		err error
	}{
		{SInt8, 300, errors.ErrOverflow},
		{SUint32, -1, errors.ErrOverflow},
		{SInt32, "7", errors.ErrTypeMismatch},
		{SInt32, 1.5, errors.ErrTypeMismatch},
		{SFloat64, "x", errors.ErrTypeMismatch},
		{SBool, 1, errors.ErrTypeMismatch},
		{SString, []byte("x"), errors.ErrTypeMismatch},
		{SBytes, "not base64!", errors.ErrTypeMismatch},
		{SUnit, 0, errors.ErrTypeMismatch},
	}
	for _, c := range cases {
		_, err := access.Serialize[any](c.s, c.in, buf)
		assert.ErrorIs(t, err, c.err, "%s <- %v", c.s, c.in)
	}
}

func TestCoerceInteger_Bounds(t *testing.T) {
	_, ok := coerceInteger[int8](127)
	assert.True(t, ok)
	_, ok = coerceInteger[int8](128)
	assert.False(t, ok)
	_, ok = coerceInteger[uint64](-1)
	assert.False(t, ok)
	_, ok = coerceInteger[int64](uint64(math.MaxUint64))
	assert.False(t, ok)
	_, ok = coerceInteger[int64](math.Inf(1))
	assert.False(t, ok)

	u, ok := parseUint("18446744073709551615")
	assert.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), u)
	_, ok = parseUint("18446744073709551616")
	assert.False(t, ok)
}

func TestEnum_ExternallyTagged(t *testing.T) {
	shape := SEnum("shape", []string{"circle", "rect", "empty"},
		SFloat64, STuple(SFloat32, SFloat32), SUnit)
	n, ok := shape.MaxStackSize()
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	assert.False(t, shape.ExactSize())

	buf, err := access.Marshal[any](shape, "empty")
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0}, buf)
	v, err := access.Deserialize[any](shape, buf)
	require.NoError(t, err)
	assert.True(t, types.NewOrderedMapAny(types.OPAny("empty", nil)).Equal(v.(*types.OrderedMapAny)))

	buf, err = access.Marshal[any](shape, map[string]any{"rect": []any{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0x80, 0x3f, 0, 0, 0, 0x40}, buf)
	v, err = access.Deserialize[any](shape, buf)
	require.NoError(t, err)
	rect, _ := v.(*types.OrderedMapAny).Get("rect")
	assert.Equal(t, []any{float32(1), float32(2)}, rect)

	v, err = access.Deserialize[any](shape, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xf8, 0x3f})
	require.NoError(t, err)
	circle, _ := v.(*types.OrderedMapAny).Get("circle")
	assert.Equal(t, 1.5, circle)

	_, err = access.Deserialize[any](shape, []byte{3, 0, 0, 0})
	assert.ErrorIs(t, err, errors.ErrInvalidDiscriminant)

	out := make([]byte, 16)
	_, err = access.Serialize[any](shape, "triangle", out)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
	_, err = access.Serialize[any](shape, "circle", out)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindInvalidData, e.Kind)
	_, err = access.Serialize[any](shape, map[string]any{"circle": 1, "rect": nil}, out)
	e, ok = errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindInvalidData, e.Kind)
}

func TestOption_Layout(t *testing.T) {
	s := SOption(SUint32)
	buf, err := access.Marshal[any](s, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)

	buf, err = access.Marshal[any](s, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 5, 0, 0, 0}, buf)
	v, err := access.Deserialize[any](s, buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), v)

	_, err = access.Deserialize[any](s, []byte{2, 0, 0, 0})
	assert.ErrorIs(t, err, errors.ErrInvalidDiscriminant)
}

func TestMap_MatchesStaticLayout(t *testing.T) {
	want, err := access.Marshal(packable.Map[string, uint8](packable.String, packable.U8), map[string]uint8{"b": 2, "a": 1})
	require.NoError(t, err)

	s := SMap(SUint8)
	got, err := access.Marshal[any](s, map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ordered, err := access.Marshal[any](s, types.NewOrderedMapAny(types.OPAny("b", 2), types.OPAny("a", 1)))
	require.NoError(t, err)
	assert.Equal(t, want, ordered)

	v, err := access.Deserialize[any](s, got)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": uint8(1), "b": uint8(2)}, v)
}

func TestArrayAndTuple(t *testing.T) {
	arr := SArray(SUint16, 3)
	buf, err := access.Marshal[any](arr, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, buf)
	v, err := access.Deserialize[any](arr, buf)
	require.NoError(t, err)
	assert.Equal(t, []any{uint16(1), uint16(2), uint16(3)}, v)

	_, err = access.Serialize[any](arr, []any{1}, make([]byte, 8))
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindInvalidData, e.Kind)

	tup := STuple(SUint8, SOption(SUint8), SString)
	n, ok := tup.MaxStackSize()
	assert.True(t, ok)
	assert.Equal(t, 1+5+8, n)

	buf, err = access.Marshal[any](tup, []any{1, nil, "z"})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		1,
		0, 0, 0, 0, 0, // absent option, padded to its slot
		8, 0, 0, 0, 1, 0, 0, 0,
		'z',
	}, buf)

	var place any
	d := access.NewDeserializer(buf)
	require.NoError(t, tup.DeserializeInPlace(&place, d))
	assert.Equal(t, []any{uint8(1), nil, "z"}, place)

	_, err = access.Deserialize[any](tup, buf[:5])
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)
}

func TestVec_Nested(t *testing.T) {
	s := SVec(SVec(SInt8))
	buf, err := access.Marshal[any](s, []any{[]any{1, -1}, []any{}})
	require.NoError(t, err)

	static, err := access.Marshal(packable.Vec[[]int8](packable.Vec[int8](packable.I8)), [][]int8{{1, -1}, {}})
	require.NoError(t, err)
	assert.Equal(t, static, buf)

	v, err := access.Deserialize[any](s, buf)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{int8(1), int8(-1)}, []any{}}, v)
}

func TestScheme_Describe(t *testing.T) {
	assert.Contains(t, access.Describe(SUint16), "u16")
	assert.Contains(t, access.Describe(dynamicUser), "user(")
	assert.Contains(t, access.Describe(SOption(SBool)), "option(")
}

func TestComposite_FormulaBuiltOnce(t *testing.T) {
	vec := SVec(SUint16)
	require.NotNil(t, vec.vec)
	assert.Equal(t, *vec.vec, vec.codec())

	arr := SArray(SUint8, 2)
	require.NotNil(t, arr.arr)
	assert.Equal(t, *arr.arr, arr.codec())

	opt := SOption(SUint32)
	require.NotNil(t, opt.opt)
	assert.Equal(t, *opt.opt, opt.codec())

	m := SMap(SBool)
	require.NotNil(t, m.m)
	assert.Equal(t, *m.m, m.codec())

	built, err := BuildScheme(SchemeJSON{Type: "vec", Schema: []SchemeJSON{{Type: "uint16"}}})
	require.NoError(t, err)
	require.IsType(t, SchemeVec{}, built)
	assert.NotNil(t, built.(SchemeVec).vec)

	// a literal still encodes the same bytes
	want, err := access.Marshal[any](vec, []any{1, 2})
	require.NoError(t, err)
	got, err := access.Marshal[any](SchemeVec{Elem: SUint16}, []any{1, 2})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
