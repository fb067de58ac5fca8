package access

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/types"
)

// u32 and raw are minimal formulas; the full set lives in packable.
type u32 struct{}

func (u32) MaxStackSize() (int, bool) { return 4, true }
func (u32) ExactSize() bool           { return true }
func (u32) Heapless() bool            { return true }
func (f u32) NonRef() Formula         { return f }
func (u32) StackSize(uint32) int      { return 4 }
func (u32) SizeHint(uint32) (int, bool) {
	return 4, true
}
func (u32) Serialize(v uint32, s *Serializer) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return s.WriteBytes(b[:])
}
func (u32) Deserialize(d *Deserializer) (uint32, error) {
	b, err := d.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}
func (f u32) DeserializeInPlace(p *uint32, d *Deserializer) (err error) {
	*p, err = f.Deserialize(d)
	return err
}
func (u32) Validate(d *Deserializer) error {
	_, err := d.Read(4)
	return err
}

type raw struct{}

func (raw) MaxStackSize() (int, bool)               { return 0, false }
func (raw) ExactSize() bool                         { return false }
func (raw) Heapless() bool                          { return true }
func (f raw) NonRef() Formula                       { return f }
func (raw) StackSize(v []byte) int                  { return len(v) }
func (raw) SizeHint(v []byte) (int, bool)           { return len(v), true }
func (raw) Serialize(v []byte, s *Serializer) error { return s.WriteBytes(v) }
func (raw) Deserialize(d *Deserializer) ([]byte, error) {
	return d.ReadAllBytes(), nil
}
func (raw) DeserializeInPlace(p *[]byte, d *Deserializer) error {
	*p = d.ReadAllBytes()
	return nil
}
func (raw) Validate(d *Deserializer) error {
	d.ReadAllBytes()
	return nil
}

// blob is raw behind a reference of a chosen width.
type blob struct{ w types.Width }

func (b blob) MaxStackSize() (int, bool)     { return b.w.RefSize(), true }
func (blob) ExactSize() bool                 { return true }
func (blob) Heapless() bool                  { return false }
func (blob) NonRef() Formula                 { return raw{} }
func (b blob) StackSize([]byte) int          { return b.w.RefSize() }
func (b blob) SizeHint(v []byte) (int, bool) { return b.w.RefSize() + len(v), true }
func (b blob) Serialize(v []byte, s *Serializer) error {
	return WriteRef[[]byte](s, b.w, raw{}, v)
}
func (b blob) Deserialize(d *Deserializer) ([]byte, error) {
	sub, err := d.Deref(b.w)
	if err != nil {
		return nil, err
	}
	return sub.ReadAllBytes(), nil
}
func (b blob) DeserializeInPlace(p *[]byte, d *Deserializer) (err error) {
	*p, err = b.Deserialize(d)
	return err
}
func (b blob) Validate(d *Deserializer) error {
	_, err := d.Deref(b.w)
	return err
}

func TestFastSize(t *testing.T) {
	n, ok := FastSize(u32{})
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	_, ok = FastSize(raw{})
	assert.False(t, ok)

	_, ok = FastSize(blob{})
	assert.False(t, ok, "references touch the heap")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "access.u32 stack<=4 exact heapless", Describe(u32{}))
	assert.Equal(t, "access.raw stack=unbounded heapless", Describe(raw{}))
}

func TestSerialize_Leaf(t *testing.T) {
	buf := make([]byte, 4)
	w, err := Serialize[uint32](u32{}, 0xAABBCCDD, buf)
	require.NoError(t, err)
	assert.Equal(t, Written{Stack: 4, Heap: 0}, w)
	assert.Equal(t, []byte{0xDD, 0xCC, 0xBB, 0xAA}, buf)
}

func TestWriteRef_Layout(t *testing.T) {
	buf := make([]byte, 10)
	w, err := Serialize[[]byte](blob{}, []byte("hi"), buf)
	require.NoError(t, err)
	assert.Equal(t, Written{Stack: 8, Heap: 2}, w)

	expected := []byte{
		0x08, 0x00, 0x00, 0x00, // offset from the reference to the heap
		0x02, 0x00, 0x00, 0x00, // length
		'h', 'i',
	}
	assert.Equal(t, expected, buf)

	got, err := Deserialize[[]byte](blob{}, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
	assert.Same(t, &buf[8], &got[0], "decoding borrows from the input")
}

func TestWriteRef_NarrowWidth(t *testing.T) {
	f := blob{w: types.Width8}
	buf := make([]byte, 5)
	_, err := Serialize[[]byte](f, []byte("abc"), buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x03, 'a', 'b', 'c'}, buf)

	_, err = Serialize[[]byte](f, make([]byte, 300), make([]byte, 400))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrOverflow)
}

func TestSerialize_BufferTooSmall(t *testing.T) {
	buf := make([]byte, 3)
	_, err := Serialize[[]byte](blob{}, []byte("hello"), buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBufferTooSmall)

	extra, ok := NeedsMoreSpace(err)
	require.True(t, ok)
	assert.Equal(t, 10, extra)

	buf = make([]byte, len(buf)+extra)
	w, err := Serialize[[]byte](blob{}, []byte("hello"), buf)
	require.NoError(t, err)
	assert.Equal(t, 13, w.Total())
}

func TestSerialize_NilOutputMeasures(t *testing.T) {
	w, err := Serialize[[]byte](blob{}, []byte("measure"), nil)
	extra, ok := NeedsMoreSpace(err)
	require.True(t, ok)
	assert.Equal(t, 15, extra)
	assert.Equal(t, 15, w.Total())
}

func TestWriteValue_PadsSlot(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	s := NewSerializer(0, buf, 6)
	require.NoError(t, WriteValue[[]byte](s, raw{}, []byte{1, 2}))
	w, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, 6, w.Stack)
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 0}, buf, "unwritten stack is zeroed")
}

func TestWriteValue_ExceedsReservedStack(t *testing.T) {
	s := NewSerializer(0, make([]byte, 8), 2)
	err := WriteValue[uint32](s, u32{}, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(errors.KindSizeMismatch))
}

func TestNewSerializer_Offset(t *testing.T) {
	buf := make([]byte, 4+10)
	s := NewSerializer(4, buf, 8)
	require.NoError(t, blob{}.Serialize([]byte("hi"), s))
	w, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, Written{Stack: 8, Heap: 2}, w)

	got, err := Deserialize[[]byte](blob{}, buf[4:])
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestDeref_OutOfBounds(t *testing.T) {
	buf := make([]byte, 10)
	_, err := Serialize[[]byte](blob{}, []byte("hi"), buf)
	require.NoError(t, err)

	_, err = Deserialize[[]byte](blob{}, buf[:9])
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)

	huge := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	_, err = Deserialize[[]byte](blob{}, huge)
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)

	_, err = Deserialize[[]byte](blob{}, huge[:5])
	assert.ErrorIs(t, err, errors.ErrOutOfBounds, "reference itself truncated")
}

func TestDeserializer_ReadAndFinish(t *testing.T) {
	d := NewDeserializer([]byte{1, 2, 3, 4, 5})
	b, err := d.Read(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)
	assert.Equal(t, 3, d.Remaining())
	assert.Equal(t, 2, d.Offset())

	_, err = d.Read(4)
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)

	sub, err := d.Sub(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, sub.ReadAllBytes())
	assert.Equal(t, 1, d.Finish(), "trailing bytes are reported, not rejected")
}

func TestReadValue_Slots(t *testing.T) {
	input := []byte{
		7, 0, 0, 0,
		9, 0, 0, 0,
		'r', 'e', 's', 't',
	}
	d := NewDeserializer(input)
	a, err := ReadValue[uint32](d, u32{})
	require.NoError(t, err)
	require.NoError(t, SkipValue(d, u32{}))
	rest, err := ReadValue[[]byte](d, raw{})
	require.NoError(t, err)

	assert.Equal(t, uint32(7), a)
	assert.Equal(t, "rest", string(rest))
	assert.Zero(t, d.Remaining())
}

func TestIntoIter(t *testing.T) {
	input := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	it, err := IntoIter[uint32](NewDeserializer(input), u32{})
	require.NoError(t, err)
	assert.Equal(t, 3, it.Len())

	first, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(1), first)
	assert.Equal(t, 2, it.Len())

	var rest []uint32
	for v, err := range it.All() {
		require.NoError(t, err)
		rest = append(rest, v)
	}
	assert.Equal(t, []uint32{2, 3}, rest)

	_, ok, err = it.Next()
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = IntoIter[uint32](NewDeserializer(input[:7]), u32{})
	assert.ErrorIs(t, err, errors.ErrSizeMismatch)
}

func TestIntoIter_UnboundedElementPanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = IntoIter[[]byte](NewDeserializer(nil), raw{})
	})
}

func TestSkipping(t *testing.T) {
	f := Skipping(blob{})
	assert.Contains(t, Describe(f), "skip(access.blob stack<=8 exact)")

	buf := make([]byte, 10)
	_, err := Serialize[[]byte](blob{}, []byte("hi"), buf)
	require.NoError(t, err)

	_, err = Deserialize(f, buf)
	assert.NoError(t, err)
	_, err = Deserialize(f, buf[:9])
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)
}

func TestLazy(t *testing.T) {
	buf := make([]byte, 12)
	_, err := Serialize[[]byte](blob{}, []byte("lazy"), buf)
	require.NoError(t, err)

	l := NewLazy[[]byte](*NewDeserializer(buf), blob{})
	assert.Equal(t, buf, l.Bytes())
	require.NoError(t, l.Validate())

	v, err := l.Get()
	require.NoError(t, err)
	assert.Equal(t, "lazy", string(v))

	var place []byte
	require.NoError(t, l.GetInPlace(&place))
	assert.Equal(t, "lazy", string(place))
}

func TestSerializedSizeAndMarshal(t *testing.T) {
	n, err := SerializedSize[[]byte](blob{}, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	out, err := Marshal[[]byte](blob{}, []byte("abc"))
	require.NoError(t, err)
	assert.Len(t, out, 11)
	assert.Equal(t, []byte{8, 0, 0, 0, 3, 0, 0, 0, 'a', 'b', 'c'}, out)
}

func TestMarshal_Oversized(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	payload := make([]byte, 40000)
	payload[len(payload)-1] = 7
	out, err := Marshal[[]byte](raw{}, payload)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
	assert.Equal(t, 1, logs.FilterMessageSnippet("exceed pooled sizes").Len())

	_, err = Marshal[[]byte](raw{}, payload[:10])
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}

func TestSerializeGrow(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	payload := make([]byte, 100)
	out, err := SerializeGrow[[]byte](blob{}, payload, make([]byte, 16), DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, out, 108)
	assert.Equal(t, 1, logs.Len(), "one retry after the first attempt")

	_, err = SerializeGrow[[]byte](blob{}, payload, make([]byte, 16), Options{MaxRetries: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBufferTooSmall)
	assert.Contains(t, err.Error(), "gave up")

	out, err = SerializeGrow[uint32](u32{}, 5, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0, 0, 0}, out)
}

func TestDeserializeWithStack(t *testing.T) {
	input := []byte{1, 0, 0, 0, 2, 0, 0, 0, 0xEE, 0xEE}
	got, err := DeserializeWithStack[[]byte](raw{}, input, 8)
	require.NoError(t, err)
	assert.Len(t, got, 8)

	_, err = DeserializeWithStack[[]byte](raw{}, input, 11)
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(u32{}, []byte{1, 2, 3, 4}))
	assert.ErrorIs(t, Validate(u32{}, []byte{1, 2}), errors.ErrOutOfBounds)
}
