package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Width is the byte width of each half of a reference pair (offset, length).
// It bounds the largest addressable payload and the total heap size.
type Width uint8

const (
	WidthDefault Width = 0 // same as Width32
	Width8       Width = 1
	Width16      Width = 2
	Width32      Width = 4
	Width64      Width = 8
)

// DiscriminantSize is the byte size of enum and option tags.
const DiscriminantSize = 4

// Size returns the byte width of one usize value
func (w Width) Size() int {
	if w == WidthDefault {
		return 4
	}
	return int(w)
}

// RefSize returns the stack footprint of a reference pair
func (w Width) RefSize() int {
	return 2 * w.Size()
}

// Max returns the largest value representable in this width
func (w Width) Max() uint64 {
	switch w.Size() {
	case 1:
		return math.MaxUint8
	case 2:
		return math.MaxUint16
	case 4:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}

// Valid reports whether w is one of the supported widths
func (w Width) Valid() bool {
	switch w {
	case WidthDefault, Width8, Width16, Width32, Width64:
		return true
	}
	return false
}

// String returns the human-readable name of the width
func (w Width) String() string {
	if !w.Valid() {
		return fmt.Sprintf("invalid(%d)", uint8(w))
	}
	return fmt.Sprintf("u%d", w.Size()*8)
}

// PutUsize writes v little-endian using w.Size() bytes of b.
// The caller has checked v <= w.Max().
func PutUsize(b []byte, w Width, v uint64) {
	switch w.Size() {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
}

// Usize reads a little-endian value of w.Size() bytes from b
func Usize(b []byte, w Width) uint64 {
	switch w.Size() {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// EncodeRef writes a reference pair into b[:w.RefSize()]
func EncodeRef(b []byte, w Width, offset, length uint64) {
	PutUsize(b, w, offset)
	PutUsize(b[w.Size():], w, length)
}

// DecodeRef splits a reference pair into offset and length
func DecodeRef(b []byte, w Width) (offset, length uint64) {
	return Usize(b, w), Usize(b[w.Size():], w)
}

// EncodeDiscriminant writes an enum or option tag
func EncodeDiscriminant(b []byte, disc uint32) {
	binary.LittleEndian.PutUint32(b, disc)
}

// DecodeDiscriminant reads an enum or option tag
func DecodeDiscriminant(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
