package packable

import (
	"unicode/utf8"
	"unsafe"

	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
)

// BytesFormula is a raw byte run filling the rest of its window.
type BytesFormula struct {
	owned bool
}

var (
	// Bytes decodes to a slice of the input; no copy is made.
	Bytes = BytesFormula{}
	// BytesOwned decodes to a fresh copy.
	BytesOwned = BytesFormula{owned: true}

	Blob      = Ref[[]byte](Bytes)
	BlobOwned = Ref[[]byte](BytesOwned)
)

func (BytesFormula) MaxStackSize() (int, bool)     { return 0, false }
func (BytesFormula) ExactSize() bool               { return false }
func (BytesFormula) Heapless() bool                { return true }
func (f BytesFormula) NonRef() access.Formula      { return f }
func (BytesFormula) StackSize(v []byte) int        { return len(v) }
func (BytesFormula) SizeHint(v []byte) (int, bool) { return len(v), true }

func (f BytesFormula) String() string {
	if f.owned {
		return "bytes(owned)"
	}
	return "bytes"
}

func (BytesFormula) Serialize(v []byte, s *access.Serializer) error {
	return s.WriteBytes(v)
}

func (f BytesFormula) Deserialize(d *access.Deserializer) ([]byte, error) {
	b := d.ReadAllBytes()
	if f.owned {
		return append([]byte(nil), b...), nil
	}
	return b, nil
}

func (f BytesFormula) DeserializeInPlace(place *[]byte, d *access.Deserializer) error {
	b := d.ReadAllBytes()
	if f.owned {
		*place = append((*place)[:0], b...)
	} else {
		*place = b
	}
	return nil
}

func (BytesFormula) Validate(d *access.Deserializer) error {
	d.ReadAllBytes()
	return nil
}

// StrFormula is UTF-8 text filling the rest of its window.
type StrFormula struct {
	view bool
}

var (
	// Str decodes to a copied string.
	Str = StrFormula{}
	// StrView decodes to a string sharing memory with the input. The input
	// must not be modified while the string is in use.
	StrView = StrFormula{view: true}

	String     = Ref[string](Str)
	StringView = Ref[string](StrView)
)

func (StrFormula) MaxStackSize() (int, bool)     { return 0, false }
func (StrFormula) ExactSize() bool               { return false }
func (StrFormula) Heapless() bool                { return true }
func (f StrFormula) NonRef() access.Formula      { return f }
func (StrFormula) StackSize(v string) int        { return len(v) }
func (StrFormula) SizeHint(v string) (int, bool) { return len(v), true }

func (f StrFormula) String() string {
	if f.view {
		return "str(view)"
	}
	return "str"
}

func (StrFormula) Serialize(v string, s *access.Serializer) error {
	dst, err := s.Stack(len(v))
	if err != nil {
		return err
	}
	copy(dst, v)
	return nil
}

func (f StrFormula) Deserialize(d *access.Deserializer) (string, error) {
	b := d.ReadAllBytes()
	if !utf8.Valid(b) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, nil, b)
	}
	if len(b) == 0 {
		return "", nil
	}
	if f.view {
		return unsafe.String(unsafe.SliceData(b), len(b)), nil
	}
	return string(b), nil
}

func (f StrFormula) DeserializeInPlace(place *string, d *access.Deserializer) (err error) {
	*place, err = f.Deserialize(d)
	return err
}

func (StrFormula) Validate(d *access.Deserializer) error {
	b := d.ReadAllBytes()
	if !utf8.Valid(b) {
		return errors.InvalidUTF8(errors.PhaseDecode, nil, b)
	}
	return nil
}
