package scheme

import (
	"fmt"
	"strings"

	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
	"github.com/vlovich/alkahest/packable"
	"github.com/vlovich/alkahest/types"
)

func checkElem(elem Scheme, zeroOK bool) error {
	n, ok := elem.MaxStackSize()
	if !ok {
		return errors.InvalidScheme("element must be bounded: "+access.Describe(elem), nil)
	}
	if n == 0 && !zeroOK {
		return errors.InvalidScheme("element must not be zero-sized: "+access.Describe(elem), nil)
	}
	return nil
}

// checkFields validates a named field list. names may be nil for tuples.
func checkFields(names []string, schema []Scheme) error {
	if names != nil && len(names) != len(schema) {
		return errors.InvalidScheme(fmt.Sprintf("%d field names for %d schemes", len(names), len(schema)), nil)
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return errors.InvalidScheme("duplicate field "+n, nil)
		}
		seen[n] = struct{}{}
	}
	for i, s := range schema {
		if _, ok := s.MaxStackSize(); !ok && i != len(schema)-1 {
			return errors.InvalidScheme(fmt.Sprintf("unbounded field %d must be last or behind a reference", i), nil)
		}
	}
	return nil
}

func sumMax(schema []Scheme) (int, bool) {
	total := 0
	for _, s := range schema {
		n, ok := s.MaxStackSize()
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func allHeapless(schema []Scheme) bool {
	for _, s := range schema {
		if !s.Heapless() {
			return false
		}
	}
	return true
}

func describe(kind string, schema []Scheme) string {
	parts := make([]string, len(schema))
	for i, s := range schema {
		parts[i] = access.Describe(s)
	}
	return kind + "(" + strings.Join(parts, ", ") + ")"
}

func slotsSize(schema []Scheme, values []any) int {
	n := 0
	for i, s := range schema {
		n += access.SlotSize[any](s, values[i])
	}
	return n
}

func slotsHint(schema []Scheme, values []any) (int, bool) {
	total := 0
	for i, s := range schema {
		n, ok := access.FieldSizeHint[any](s, values[i])
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

// SchemeVec is a growable sequence behind a reference. Build it with SVec;
// a literal works but rebuilds its formula on every call.
type SchemeVec struct {
	Elem Scheme

	vec *packable.RefFormula[[]any]
}

// SVec panics when elem is unbounded or zero-sized.
func SVec(elem Scheme) SchemeVec {
	if err := checkElem(elem, false); err != nil {
		panic(err)
	}
	vec := packable.Vec[any](elem)
	return SchemeVec{Elem: elem, vec: &vec}
}

func (s SchemeVec) codec() packable.RefFormula[[]any] {
	if s.vec == nil {
		return packable.Vec[any](s.Elem)
	}
	return *s.vec
}

func (s SchemeVec) MaxStackSize() (int, bool) { return types.WidthDefault.RefSize(), true }
func (SchemeVec) ExactSize() bool             { return true }
func (SchemeVec) Heapless() bool              { return false }
func (s SchemeVec) NonRef() access.Formula    { return s.codec().NonRef() }
func (s SchemeVec) String() string            { return s.codec().String() }
func (s SchemeVec) StackSize(any) int         { return types.WidthDefault.RefSize() }

func (s SchemeVec) Validate(d *access.Deserializer) error { return s.codec().Validate(d) }

func (s SchemeVec) SizeHint(v any) (int, bool) {
	list, ok := toSlice(v)
	if !ok {
		return 0, false
	}
	return s.codec().SizeHint(list)
}

func (s SchemeVec) Serialize(v any, ser *access.Serializer) error {
	list, ok := toSlice(v)
	if !ok {
		return mismatch(v, s)
	}
	return s.codec().Serialize(list, ser)
}

func (s SchemeVec) Deserialize(d *access.Deserializer) (any, error) {
	list, err := s.codec().Deserialize(d)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []any{}
	}
	return list, nil
}

func (s SchemeVec) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

// SchemeArray is exactly Len inline element slots.
type SchemeArray struct {
	Elem Scheme
	Len  int

	arr *packable.ArrayFormula[any]
}

// SArray panics when elem is unbounded or n is negative.
func SArray(elem Scheme, n int) SchemeArray {
	if n < 0 {
		panic(errors.InvalidScheme("negative array length", nil))
	}
	if err := checkElem(elem, true); err != nil {
		panic(err)
	}
	arr := packable.Array[any](elem, n)
	return SchemeArray{Elem: elem, Len: n, arr: &arr}
}

func (s SchemeArray) codec() packable.ArrayFormula[any] {
	if s.arr == nil {
		return packable.Array[any](s.Elem, s.Len)
	}
	return *s.arr
}

func (s SchemeArray) MaxStackSize() (int, bool) { return s.codec().MaxStackSize() }
func (SchemeArray) ExactSize() bool             { return true }
func (s SchemeArray) Heapless() bool            { return s.codec().Heapless() }
func (s SchemeArray) NonRef() access.Formula    { return s }
func (s SchemeArray) String() string            { return s.codec().String() }
func (s SchemeArray) StackSize(any) int         { return s.codec().StackSize(nil) }

func (s SchemeArray) Validate(d *access.Deserializer) error { return s.codec().Validate(d) }

func (s SchemeArray) values(v any) ([]any, error) {
	list, ok := toSlice(v)
	if !ok {
		return nil, mismatch(v, s)
	}
	if len(list) != s.Len {
		return nil, errors.InvalidData(errors.PhaseEncode, nil,
			fmt.Sprintf("array of %d encoded from %d elements", s.Len, len(list)))
	}
	return list, nil
}

func (s SchemeArray) SizeHint(v any) (int, bool) {
	list, err := s.values(v)
	if err != nil {
		return 0, false
	}
	return s.codec().SizeHint(list)
}

func (s SchemeArray) Serialize(v any, ser *access.Serializer) error {
	list, err := s.values(v)
	if err != nil {
		return err
	}
	return s.codec().Serialize(list, ser)
}

func (s SchemeArray) Deserialize(d *access.Deserializer) (any, error) {
	list, err := s.codec().Deserialize(d)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s SchemeArray) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

// SchemeOption is a 4-byte presence tag followed by the inner slot. nil is
// absent.
type SchemeOption struct {
	Inner Scheme

	opt *packable.OptionFormula[any]
}

func SOption(inner Scheme) SchemeOption {
	opt := packable.Option[any](inner)
	return SchemeOption{Inner: inner, opt: &opt}
}

func (s SchemeOption) codec() packable.OptionFormula[any] {
	if s.opt == nil {
		return packable.Option[any](s.Inner)
	}
	return *s.opt
}

func (s SchemeOption) MaxStackSize() (int, bool) { return s.codec().MaxStackSize() }
func (s SchemeOption) ExactSize() bool           { return s.codec().ExactSize() }
func (s SchemeOption) Heapless() bool            { return s.Inner.Heapless() }
func (s SchemeOption) NonRef() access.Formula    { return s }
func (s SchemeOption) String() string            { return s.codec().String() }

func (s SchemeOption) Validate(d *access.Deserializer) error { return s.codec().Validate(d) }

func optional(v any) *any {
	if v == nil {
		return nil
	}
	return &v
}

func (s SchemeOption) StackSize(v any) int        { return s.codec().StackSize(optional(v)) }
func (s SchemeOption) SizeHint(v any) (int, bool) { return s.codec().SizeHint(optional(v)) }

func (s SchemeOption) Serialize(v any, ser *access.Serializer) error {
	return s.codec().Serialize(optional(v), ser)
}

func (s SchemeOption) Deserialize(d *access.Deserializer) (any, error) {
	p, err := s.codec().Deserialize(d)
	if err != nil || p == nil {
		return nil, err
	}
	return *p, nil
}

func (s SchemeOption) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

// SchemeMap is a string-keyed map stored as key-sorted pairs behind a
// reference.
type SchemeMap struct {
	Value Scheme

	m *packable.MapFormula[string, any]
}

// SMap panics when value is unbounded.
func SMap(value Scheme) SchemeMap {
	if err := checkElem(value, true); err != nil {
		panic(err)
	}
	m := packable.Map[string, any](packable.String, value)
	return SchemeMap{Value: value, m: &m}
}

func (s SchemeMap) codec() packable.MapFormula[string, any] {
	if s.m == nil {
		return packable.Map[string, any](packable.String, s.Value)
	}
	return *s.m
}

func (s SchemeMap) MaxStackSize() (int, bool) { return types.WidthDefault.RefSize(), true }
func (SchemeMap) ExactSize() bool             { return true }
func (SchemeMap) Heapless() bool              { return false }
func (s SchemeMap) NonRef() access.Formula    { return s.codec().NonRef() }
func (s SchemeMap) String() string            { return s.codec().String() }
func (s SchemeMap) StackSize(any) int         { return types.WidthDefault.RefSize() }

func (s SchemeMap) Validate(d *access.Deserializer) error { return s.codec().Validate(d) }

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case *types.OrderedMapAny:
		out := make(map[string]any, m.Len())
		for k, e := range m.ItemsIter() {
			out[k] = e
		}
		return out, true
	}
	return nil, false
}

func (s SchemeMap) SizeHint(v any) (int, bool) {
	m, ok := toMap(v)
	if !ok {
		return 0, false
	}
	return s.codec().SizeHint(m)
}

func (s SchemeMap) Serialize(v any, ser *access.Serializer) error {
	m, ok := toMap(v)
	if !ok {
		return mismatch(v, s)
	}
	return s.codec().Serialize(m, ser)
}

func (s SchemeMap) Deserialize(d *access.Deserializer) (any, error) {
	m, err := s.codec().Deserialize(d)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s SchemeMap) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

// SchemeTuple lays out its elements inline in order. Values are []any.
type SchemeTuple struct {
	Schema []Scheme
}

// STuple panics when an unbounded element is not last.
func STuple(schema ...Scheme) SchemeTuple {
	if err := checkFields(nil, schema); err != nil {
		panic(err)
	}
	return SchemeTuple{Schema: schema}
}

func (s SchemeTuple) MaxStackSize() (int, bool) { return sumMax(s.Schema) }
func (s SchemeTuple) ExactSize() bool {
	_, ok := sumMax(s.Schema)
	return ok
}
func (s SchemeTuple) Heapless() bool         { return allHeapless(s.Schema) }
func (s SchemeTuple) NonRef() access.Formula { return s }
func (s SchemeTuple) String() string         { return describe("tuple", s.Schema) }

func (s SchemeTuple) values(v any) ([]any, error) {
	list, ok := toSlice(v)
	if !ok {
		return nil, mismatch(v, s)
	}
	if len(list) != len(s.Schema) {
		return nil, errors.InvalidData(errors.PhaseEncode, nil,
			fmt.Sprintf("tuple of %d encoded from %d elements", len(s.Schema), len(list)))
	}
	return list, nil
}

func (s SchemeTuple) StackSize(v any) int {
	list, err := s.values(v)
	if err != nil {
		return 0
	}
	return slotsSize(s.Schema, list)
}

func (s SchemeTuple) SizeHint(v any) (int, bool) {
	list, err := s.values(v)
	if err != nil {
		return 0, false
	}
	return slotsHint(s.Schema, list)
}

func (s SchemeTuple) Serialize(v any, ser *access.Serializer) error {
	list, err := s.values(v)
	if err != nil {
		return err
	}
	for i, f := range s.Schema {
		if err := access.WriteValue[any](ser, f, list[i]); err != nil {
			return errors.AtPath(err, fmt.Sprint(i))
		}
	}
	return nil
}

func (s SchemeTuple) Deserialize(d *access.Deserializer) (any, error) {
	out := make([]any, len(s.Schema))
	for i, f := range s.Schema {
		v, err := access.ReadValue[any](d, f)
		if err != nil {
			return nil, errors.AtPath(err, fmt.Sprint(i))
		}
		out[i] = v
	}
	return out, nil
}

func (s SchemeTuple) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

func (s SchemeTuple) Validate(d *access.Deserializer) error {
	for i, f := range s.Schema {
		if err := access.SkipValue(d, f); err != nil {
			return errors.AtPath(err, fmt.Sprint(i))
		}
	}
	return nil
}

// SchemeRecord lays out named fields inline in declaration order. Encoding
// accepts map[string]any or *types.OrderedMapAny; a missing field is only
// allowed when its scheme is an option.
type SchemeRecord struct {
	Name       string
	FieldNames []string
	Schema     []Scheme
}

// SRecord panics on mismatched or duplicate names, or an unbounded field
// that is not last.
func SRecord(name string, names []string, schema ...Scheme) SchemeRecord {
	if names == nil {
		names = []string{}
	}
	if err := checkFields(names, schema); err != nil {
		panic(err)
	}
	return SchemeRecord{Name: name, FieldNames: names, Schema: schema}
}

func (s SchemeRecord) MaxStackSize() (int, bool) { return sumMax(s.Schema) }
func (s SchemeRecord) ExactSize() bool {
	_, ok := sumMax(s.Schema)
	return ok
}
func (s SchemeRecord) Heapless() bool         { return allHeapless(s.Schema) }
func (s SchemeRecord) NonRef() access.Formula { return s }
func (s SchemeRecord) String() string         { return describe(s.Name, s.Schema) }

func (s SchemeRecord) values(v any) ([]any, error) {
	var lookup func(string) (any, bool)
	var size int
	switch m := v.(type) {
	case map[string]any:
		lookup = func(k string) (any, bool) { e, ok := m[k]; return e, ok }
		size = len(m)
	case *types.OrderedMapAny:
		lookup = m.Get
		size = m.Len()
	default:
		return nil, mismatch(v, s)
	}
	out := make([]any, len(s.Schema))
	found := 0
	for i, name := range s.FieldNames {
		e, ok := lookup(name)
		if ok {
			found++
		} else if _, opt := s.Schema[i].(SchemeOption); !opt {
			return nil, errors.InvalidData(errors.PhaseEncode, []string{name}, "missing field")
		}
		out[i] = e
	}
	if found != size {
		return nil, errors.InvalidData(errors.PhaseEncode, nil,
			fmt.Sprintf("record %s: %d unknown fields", s.Name, size-found))
	}
	return out, nil
}

func (s SchemeRecord) StackSize(v any) int {
	vals, err := s.values(v)
	if err != nil {
		return 0
	}
	return slotsSize(s.Schema, vals)
}

func (s SchemeRecord) SizeHint(v any) (int, bool) {
	vals, err := s.values(v)
	if err != nil {
		return 0, false
	}
	return slotsHint(s.Schema, vals)
}

func (s SchemeRecord) Serialize(v any, ser *access.Serializer) error {
	vals, err := s.values(v)
	if err != nil {
		return err
	}
	for i, f := range s.Schema {
		if err := access.WriteValue[any](ser, f, vals[i]); err != nil {
			return errors.AtPath(err, s.FieldNames[i])
		}
	}
	return nil
}

func (s SchemeRecord) Deserialize(d *access.Deserializer) (any, error) {
	out := types.NewOrderedMapAny()
	for i, f := range s.Schema {
		v, err := access.ReadValue[any](d, f)
		if err != nil {
			return nil, errors.AtPath(err, s.FieldNames[i])
		}
		out.Set(s.FieldNames[i], v)
	}
	return out, nil
}

func (s SchemeRecord) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

func (s SchemeRecord) Validate(d *access.Deserializer) error {
	for i, f := range s.Schema {
		if err := access.SkipValue(d, f); err != nil {
			return errors.AtPath(err, s.FieldNames[i])
		}
	}
	return nil
}

// SchemeEnum is a u32 variant index followed by the variant's slot. Values
// are externally tagged: a single-entry map from variant name to payload,
// or the bare name for a unit variant.
type SchemeEnum struct {
	Name     string
	Variants []string
	Schema   []Scheme
}

// SEnum panics on an empty variant list or mismatched or duplicate names.
func SEnum(name string, variants []string, schema ...Scheme) SchemeEnum {
	if err := checkVariants(variants, schema); err != nil {
		panic(err)
	}
	return SchemeEnum{Name: name, Variants: variants, Schema: schema}
}

func checkVariants(variants []string, schema []Scheme) error {
	if len(variants) == 0 {
		return errors.InvalidScheme("enum without variants", nil)
	}
	if len(variants) != len(schema) {
		return errors.InvalidScheme(fmt.Sprintf("%d variant names for %d schemes", len(variants), len(schema)), nil)
	}
	seen := make(map[string]struct{}, len(variants))
	for _, n := range variants {
		if _, dup := seen[n]; dup {
			return errors.InvalidScheme("duplicate variant "+n, nil)
		}
		seen[n] = struct{}{}
	}
	return nil
}

func (s SchemeEnum) MaxStackSize() (int, bool) {
	m := 0
	for _, f := range s.Schema {
		n, ok := f.MaxStackSize()
		if !ok {
			return 0, false
		}
		m = max(m, n)
	}
	return types.DiscriminantSize + m, true
}

func (s SchemeEnum) ExactSize() bool {
	first, ok := s.Schema[0].MaxStackSize()
	if !ok {
		return false
	}
	for _, f := range s.Schema[1:] {
		if n, ok := f.MaxStackSize(); !ok || n != first {
			return false
		}
	}
	return true
}

func (s SchemeEnum) Heapless() bool         { return allHeapless(s.Schema) }
func (s SchemeEnum) NonRef() access.Formula { return s }
func (s SchemeEnum) String() string         { return describe("enum "+s.Name, s.Schema) }

func (s SchemeEnum) index(name string) (int, bool) {
	for i, n := range s.Variants {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// variant resolves a dynamic value to its variant index and payload.
func (s SchemeEnum) variant(v any) (int, any, error) {
	var name string
	var payload any
	switch m := v.(type) {
	case string:
		name = m
		i, ok := s.index(name)
		if ok {
			if _, unit := s.Schema[i].(SchemeUnit); unit {
				return i, nil, nil
			}
			return 0, nil, errors.InvalidData(errors.PhaseEncode, []string{name}, "variant carries a payload")
		}
	case map[string]any:
		if len(m) != 1 {
			return 0, nil, errors.InvalidData(errors.PhaseEncode, nil,
				fmt.Sprintf("enum %s: expected one variant, got %d", s.Name, len(m)))
		}
		for k, e := range m {
			name, payload = k, e
		}
	case *types.OrderedMapAny:
		if m.Len() != 1 {
			return 0, nil, errors.InvalidData(errors.PhaseEncode, nil,
				fmt.Sprintf("enum %s: expected one variant, got %d", s.Name, m.Len()))
		}
		name = m.Keys()[0]
		payload, _ = m.Get(name)
	default:
		return 0, nil, mismatch(v, s)
	}
	i, ok := s.index(name)
	if !ok {
		return 0, nil, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			Formula(s.Name).
			Value(v).
			Detail("unknown variant %q", name).
			Build()
	}
	return i, payload, nil
}

func (s SchemeEnum) StackSize(v any) int {
	i, p, err := s.variant(v)
	if err != nil {
		return types.DiscriminantSize
	}
	return types.DiscriminantSize + access.SlotSize[any](s.Schema[i], p)
}

func (s SchemeEnum) SizeHint(v any) (int, bool) {
	i, p, err := s.variant(v)
	if err != nil {
		return 0, false
	}
	n, ok := access.FieldSizeHint[any](s.Schema[i], p)
	return types.DiscriminantSize + n, ok
}

func (s SchemeEnum) Serialize(v any, ser *access.Serializer) error {
	i, p, err := s.variant(v)
	if err != nil {
		return err
	}
	var tag [types.DiscriminantSize]byte
	types.EncodeDiscriminant(tag[:], uint32(i))
	if err := ser.WriteBytes(tag[:]); err != nil {
		return err
	}
	return errors.AtPath(access.WriteValue[any](ser, s.Schema[i], p), s.Variants[i])
}

func (s SchemeEnum) read(d *access.Deserializer) (int, error) {
	b, err := d.Read(types.DiscriminantSize)
	if err != nil {
		return 0, err
	}
	disc := types.DecodeDiscriminant(b)
	if uint64(disc) >= uint64(len(s.Variants)) {
		return 0, errors.InvalidDiscriminant(errors.PhaseDecode, []string{s.Name}, disc, len(s.Variants))
	}
	return int(disc), nil
}

func (s SchemeEnum) Deserialize(d *access.Deserializer) (any, error) {
	i, err := s.read(d)
	if err != nil {
		return nil, err
	}
	p, err := access.ReadValue[any](d, s.Schema[i])
	if err != nil {
		return nil, errors.AtPath(err, s.Variants[i])
	}
	return types.NewOrderedMapAny(types.OPAny(s.Variants[i], p)), nil
}

func (s SchemeEnum) DeserializeInPlace(place *any, d *access.Deserializer) error {
	return decodeInto(s, place, d)
}

func (s SchemeEnum) Validate(d *access.Deserializer) error {
	i, err := s.read(d)
	if err != nil {
		return err
	}
	return errors.AtPath(access.SkipValue(d, s.Schema[i]), s.Variants[i])
}
