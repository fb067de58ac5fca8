package access

import (
	"fmt"

	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/utils"
)

var scratch = utils.NewBufferPool()

// Options tune the encode drivers that allocate on the caller's behalf.
type Options struct {
	// MaxRetries bounds how many times SerializeGrow enlarges its buffer.
	MaxRetries int
	// InitialSize is the first buffer size tried when no size hint exists.
	InitialSize int
}

// DefaultOptions returns the options used by Marshal.
func DefaultOptions() Options {
	return Options{MaxRetries: 4, InitialSize: 256}
}

// Serialize writes v as the root value at the start of output. The root is
// not padded to its formula's maximum stack size.
func Serialize[T any](f Encoder[T], v T, output []byte) (Written, error) {
	s := newSerializer(0, output, f.StackSize(v))
	if err := f.Serialize(v, &s); err != nil {
		return Written{}, err
	}
	return s.Finish()
}

// NeedsMoreSpace extracts the byte shortfall from a buffer_too_small error.
func NeedsMoreSpace(err error) (int, bool) {
	e, ok := errors.As(err)
	if !ok || e.Kind != errors.KindBufferTooSmall {
		return 0, false
	}
	n, ok := e.Value.(int)
	return n, ok
}

// SerializedSize returns the exact number of bytes v encodes to.
func SerializedSize[T any](f Encoder[T], v T) (int, error) {
	if n, ok := f.SizeHint(v); ok {
		return n, nil
	}
	written, err := Serialize(f, v, nil)
	if err != nil {
		if _, short := NeedsMoreSpace(err); !short {
			return 0, err
		}
	}
	return written.Total(), nil
}

// SerializeGrow encodes v into buf, growing it when the encoding does not
// fit. It returns the buffer trimmed to the encoded length.
func SerializeGrow[T any](f Encoder[T], v T, buf []byte, opts Options) ([]byte, error) {
	if len(buf) == 0 {
		size := opts.InitialSize
		if n, ok := f.SizeHint(v); ok {
			size = n
		}
		buf = make([]byte, size)
	}
	for attempt := 0; ; attempt++ {
		written, err := Serialize(f, v, buf)
		if err == nil {
			return buf[:written.Total()], nil
		}
		extra, short := NeedsMoreSpace(err)
		if !short {
			return nil, err
		}
		if attempt >= opts.MaxRetries {
			return nil, fmt.Errorf("serialize %s: gave up after %d retries: %w", Describe(f), attempt, err)
		}
		debugf("serialize %s: buffer of %d bytes short by %d, retrying", Describe(f), len(buf), extra)
		buf = make([]byte, len(buf)+extra)
	}
}

// Marshal encodes v into a freshly allocated slice of the exact size. The
// encode runs in a pooled scratch buffer.
func Marshal[T any](f Encoder[T], v T) ([]byte, error) {
	size, err := SerializedSize(f, v)
	if err != nil {
		return nil, err
	}
	if utils.SizeIndex(size) < 0 && size > 0 {
		debugf("marshal %s: %d bytes exceed pooled sizes, allocating", Describe(f), size)
	}
	work := scratch.AcquireZeroed(size)
	defer scratch.Release(work)

	if _, err := Serialize(f, v, work); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, work)
	return out, nil
}

// Deserialize decodes the root value of input.
func Deserialize[T any](f Decoder[T], input []byte) (T, error) {
	d := Deserializer{input: input, end: len(input)}
	return f.Deserialize(&d)
}

// DeserializeInPlace decodes the root value of input into place.
func DeserializeInPlace[T any](f Decoder[T], input []byte, place *T) error {
	d := Deserializer{input: input, end: len(input)}
	return f.DeserializeInPlace(place, &d)
}

// DeserializeWithStack decodes a root value whose stack region is the
// first stack bytes of input. Unbounded roots followed by heap payloads
// need it, since their stack size is not recorded in the buffer.
func DeserializeWithStack[T any](f Decoder[T], input []byte, stack int) (T, error) {
	d, err := Window(input, 0, stack)
	if err != nil {
		var zero T
		return zero, err
	}
	return f.Deserialize(&d)
}

// Validate checks that input holds a well-formed root value of f.
func Validate(f Formula, input []byte) error {
	d := Deserializer{input: input, end: len(input)}
	return f.Validate(&d)
}
