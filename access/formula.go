package access

import (
	"fmt"
	"strings"
)

// Formula describes the binary layout of a value independently of the Go
// type it is encoded from. All methods are pure functions of the formula.
type Formula interface {
	// MaxStackSize returns the largest stack footprint of any value, or
	// false when the footprint depends on the value (unbounded).
	MaxStackSize() (int, bool)
	// ExactSize reports whether every value uses exactly MaxStackSize bytes.
	ExactSize() bool
	// Heapless reports whether values never write to the heap region.
	Heapless() bool
	// NonRef strips one reference layer. Non-reference formulas return themselves.
	NonRef() Formula
	// Validate walks one value at the cursor of d, performing every check a
	// full decode would, without materializing it.
	Validate(d *Deserializer) error
}

// Encoder encodes values of type T as a Formula.
type Encoder[T any] interface {
	Formula
	// StackSize is the stack footprint of v before slot padding.
	StackSize(v T) int
	Serialize(v T, s *Serializer) error
	// SizeHint is the total stack and heap size of v when it is known
	// without encoding.
	SizeHint(v T) (int, bool)
}

// Decoder decodes values of type T from a Formula.
type Decoder[T any] interface {
	Formula
	Deserialize(d *Deserializer) (T, error)
	// DeserializeInPlace refills place, reusing its storage where possible.
	DeserializeInPlace(place *T, d *Deserializer) error
}

// Codec is a formula usable in both directions for T.
type Codec[T any] interface {
	Encoder[T]
	Decoder[T]
}

// FastSize returns the encoded size shared by every value of f. It is only
// defined for bounded, exact and heapless formulas.
func FastSize(f Formula) (int, bool) {
	n, ok := f.MaxStackSize()
	if !ok || !f.ExactSize() || !f.Heapless() {
		return 0, false
	}
	return n, true
}

// SlotSize is the stack footprint f occupies as a field holding v: the
// declared maximum for bounded formulas, the value's own size otherwise.
func SlotSize[T any](f Encoder[T], v T) int {
	if n, ok := f.MaxStackSize(); ok {
		return n
	}
	return f.StackSize(v)
}

// FieldSizeHint is SizeHint adjusted for slot padding.
func FieldSizeHint[T any](f Encoder[T], v T) (int, bool) {
	n, ok := f.SizeHint(v)
	if !ok {
		return 0, false
	}
	if max, bounded := f.MaxStackSize(); bounded {
		n += max - f.StackSize(v)
	}
	return n, true
}

// Describe renders a one-line summary of f for logs and error messages.
func Describe(f Formula) string {
	var b strings.Builder
	if s, ok := f.(fmt.Stringer); ok {
		b.WriteString(s.String())
	} else {
		fmt.Fprintf(&b, "%T", f)
	}
	if n, ok := f.MaxStackSize(); ok {
		fmt.Fprintf(&b, " stack<=%d", n)
	} else {
		b.WriteString(" stack=unbounded")
	}
	if f.ExactSize() {
		b.WriteString(" exact")
	}
	if f.Heapless() {
		b.WriteString(" heapless")
	}
	return b.String()
}
