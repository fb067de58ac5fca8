package packable

import (
	"encoding/binary"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/types"
)

// DefaultMaxInflatedSize bounds the decompressed size Compressed accepts
// from a blob header unless WithMaxSize says otherwise.
const DefaultMaxInflatedSize = 64 << 20

// Compression is a block codec for Compressed payloads.
type Compression interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	// Decompress inflates src into exactly size bytes. size comes from
	// untrusted input; implementations check it against src before
	// allocating where the format allows.
	Decompress(src []byte, size int) ([]byte, error)
}

func inflatedMismatch(codec string, got, size int) error {
	return errors.New(errors.PhaseDecode, errors.KindSizeMismatch).
		Detail("%s: payload inflates to %d bytes, header says %d", codec, got, size).
		Build()
}

// Snappy compresses with the snappy block format.
type Snappy struct{}

func (Snappy) Name() string { return "snappy" }

func (Snappy) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (Snappy) Decompress(src []byte, size int) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, inflatedMismatch("snappy", n, size)
	}
	return snappy.Decode(make([]byte, size), src)
}

// LZ4 compresses with the LZ4 block format. Incompressible input is
// stored raw behind a one byte mode prefix.
type LZ4 struct{}

const (
	lz4Raw   = 0
	lz4Block = 1

	// lz4MaxRatio bounds how far one compressed byte can expand.
	lz4MaxRatio = 255
)

func (LZ4) Name() string { return "lz4" }

func (LZ4) Compress(src []byte) ([]byte, error) {
	var c lz4.Compressor
	buf := make([]byte, 1+lz4.CompressBlockBound(len(src)))
	n, err := c.CompressBlock(src, buf[1:])
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(src) {
		buf = append(buf[:1], src...)
		buf[0] = lz4Raw
		return buf, nil
	}
	buf[0] = lz4Block
	return buf[:1+n], nil
}

func (LZ4) Decompress(src []byte, size int) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, nil, "lz4: empty payload")
	}
	if src[0] == lz4Raw {
		if len(src)-1 != size {
			return nil, inflatedMismatch("lz4", len(src)-1, size)
		}
		return append([]byte(nil), src[1:]...), nil
	}
	if size > lz4MaxRatio*(len(src)-1) {
		return nil, inflatedMismatch("lz4", lz4MaxRatio*(len(src)-1), size)
	}
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(src[1:], out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// Zstd compresses with zstandard. Encoder and decoder are created on first
// use and shared; both are safe for concurrent EncodeAll/DecodeAll. The
// decoder never holds more than DefaultMaxInflatedSize bytes.
type Zstd struct{}

var zstdCodec struct {
	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

func zstdInit() error {
	zstdCodec.once.Do(func() {
		zstdCodec.enc, zstdCodec.err = zstd.NewWriter(nil)
		if zstdCodec.err != nil {
			return
		}
		zstdCodec.dec, zstdCodec.err = zstd.NewReader(nil,
			zstd.WithDecoderMaxMemory(DefaultMaxInflatedSize))
	})
	return zstdCodec.err
}

func (Zstd) Name() string { return "zstd" }

func (Zstd) Compress(src []byte) ([]byte, error) {
	if err := zstdInit(); err != nil {
		return nil, err
	}
	return zstdCodec.enc.EncodeAll(src, nil), nil
}

func (Zstd) Decompress(src []byte, size int) ([]byte, error) {
	if err := zstdInit(); err != nil {
		return nil, err
	}
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return nil, err
	}
	if h.HasFCS && h.FrameContentSize != uint64(size) {
		return nil, inflatedMismatch("zstd", int(min(h.FrameContentSize, uint64(DefaultMaxInflatedSize+1))), size)
	}
	return zstdCodec.dec.DecodeAll(src, make([]byte, 0, size))
}

// compressedHeader prefixes the compressed bytes with the inner root's
// stack size and the uncompressed length.
const compressedHeader = 8

// CompressedFormula stores the complete encoding of a value, compressed, as
// a byte blob behind a reference. Decoded values borrow from a private
// decompressed buffer, not from the input.
type CompressedFormula[T any] struct {
	inner access.Codec[T]
	codec Compression
	width types.Width
	limit int
}

// Compressed wraps f so that its encoding is compressed with c.
func Compressed[T any](f access.Codec[T], c Compression) CompressedFormula[T] {
	return CompressedFormula[T]{inner: f, codec: c, width: types.WidthDefault, limit: DefaultMaxInflatedSize}
}

// WithMaxSize returns a copy that rejects blobs inflating to more than n
// bytes.
func (c CompressedFormula[T]) WithMaxSize(n int) CompressedFormula[T] {
	c.limit = n
	return c
}

func (c CompressedFormula[T]) MaxStackSize() (int, bool) { return c.width.RefSize(), true }
func (CompressedFormula[T]) ExactSize() bool             { return true }
func (CompressedFormula[T]) Heapless() bool              { return false }
func (c CompressedFormula[T]) NonRef() access.Formula    { return BytesOwned }
func (c CompressedFormula[T]) StackSize(T) int           { return c.width.RefSize() }
func (c CompressedFormula[T]) Width() types.Width        { return c.width }

func (c CompressedFormula[T]) String() string {
	return c.codec.Name() + "(" + access.Describe(c.inner) + ")"
}

// SizeHint is unknown until the value has been compressed.
func (CompressedFormula[T]) SizeHint(T) (int, bool) { return 0, false }

func (c CompressedFormula[T]) encode(v T) ([]byte, error) {
	raw, err := access.Marshal(c.inner, v)
	if err != nil {
		return nil, err
	}
	packed, err := c.codec.Compress(raw)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindCompression, err, c.codec.Name())
	}
	blob := make([]byte, compressedHeader, compressedHeader+len(packed))
	binary.LittleEndian.PutUint32(blob, uint32(c.inner.StackSize(v)))
	binary.LittleEndian.PutUint32(blob[4:], uint32(len(raw)))
	return append(blob, packed...), nil
}

func (c CompressedFormula[T]) Serialize(v T, s *access.Serializer) error {
	blob, err := c.encode(v)
	if err != nil {
		return err
	}
	return access.WriteRef[[]byte](s, c.width, Bytes, blob)
}

// inflate follows the reference and returns the decompressed encoding and
// the stack size of its root.
func (c CompressedFormula[T]) inflate(d *access.Deserializer) ([]byte, int, error) {
	sub, err := d.Deref(c.width)
	if err != nil {
		return nil, 0, err
	}
	blob := sub.ReadAllBytes()
	if len(blob) < compressedHeader {
		return nil, 0, errors.OutOfBounds(errors.PhaseDecode, nil, compressedHeader, len(blob))
	}
	stack := int(binary.LittleEndian.Uint32(blob))
	size := int(binary.LittleEndian.Uint32(blob[4:]))
	if size > c.limit {
		return nil, 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(size).
			Detail("%s: inflated size %d exceeds limit %d", c.codec.Name(), size, c.limit).
			Build()
	}
	raw, err := c.codec.Decompress(blob[compressedHeader:], size)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, 0, err
		}
		return nil, 0, errors.Wrap(errors.PhaseDecode, errors.KindCompression, err, c.codec.Name())
	}
	if len(raw) != size {
		return nil, 0, errors.New(errors.PhaseDecode, errors.KindSizeMismatch).
			Detail("%s: inflated %d bytes, header says %d", c.codec.Name(), len(raw), size).
			Build()
	}
	return raw, stack, nil
}

func (c CompressedFormula[T]) Deserialize(d *access.Deserializer) (T, error) {
	raw, stack, err := c.inflate(d)
	if err != nil {
		var zero T
		return zero, err
	}
	return access.DeserializeWithStack(c.inner, raw, stack)
}

func (c CompressedFormula[T]) DeserializeInPlace(place *T, d *access.Deserializer) error {
	raw, stack, err := c.inflate(d)
	if err != nil {
		return err
	}
	w, err := access.Window(raw, 0, stack)
	if err != nil {
		return err
	}
	return c.inner.DeserializeInPlace(place, &w)
}

func (c CompressedFormula[T]) Validate(d *access.Deserializer) error {
	raw, stack, err := c.inflate(d)
	if err != nil {
		return err
	}
	w, err := access.Window(raw, 0, stack)
	if err != nil {
		return err
	}
	return c.inner.Validate(&w)
}
