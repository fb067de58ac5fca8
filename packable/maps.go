package packable

import (
	"cmp"

	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/types"
	"github.com/vlovich/alkahest/utils"
)

// MapFormula stores a map as a reference to a slice of (key, value) pairs
// in ascending key order, so equal maps encode identically.
type MapFormula[K cmp.Ordered, V any] struct {
	pair  Tuple2Formula[K, V]
	pairs SliceFormula[T2[K, V]]
	width types.Width
}

// Map returns the formula for map[K]V with keys encoded by k and values by v.
func Map[K cmp.Ordered, V any](k access.Codec[K], v access.Codec[V]) MapFormula[K, V] {
	return MapWidth(k, v, types.WidthDefault)
}

// MapWidth is Map with an explicit reference width.
func MapWidth[K cmp.Ordered, V any](k access.Codec[K], v access.Codec[V], w types.Width) MapFormula[K, V] {
	pair := Tuple2(k, v)
	return MapFormula[K, V]{pair: pair, pairs: Slice[T2[K, V]](pair), width: w}
}

func (m MapFormula[K, V]) MaxStackSize() (int, bool) { return m.width.RefSize(), true }
func (MapFormula[K, V]) ExactSize() bool             { return true }
func (MapFormula[K, V]) Heapless() bool              { return false }
func (m MapFormula[K, V]) NonRef() access.Formula    { return m.pairs }
func (m MapFormula[K, V]) Width() types.Width        { return m.width }
func (m MapFormula[K, V]) StackSize(map[K]V) int     { return m.width.RefSize() }
func (m MapFormula[K, V]) String() string            { return "map(" + access.Describe(m.pair) + ")" }

func sortedPairs[K cmp.Ordered, V any](v map[K]V) []T2[K, V] {
	pairs := make([]T2[K, V], 0, len(v))
	for _, k := range utils.SortedKeys(v) {
		pairs = append(pairs, T2[K, V]{V0: k, V1: v[k]})
	}
	return pairs
}

func (m MapFormula[K, V]) SizeHint(v map[K]V) (int, bool) {
	total := m.width.RefSize()
	for k, e := range v {
		n, ok := access.FieldSizeHint[T2[K, V]](m.pair, T2[K, V]{V0: k, V1: e})
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func (m MapFormula[K, V]) Serialize(v map[K]V, s *access.Serializer) error {
	return access.WriteRef[[]T2[K, V]](s, m.width, m.pairs, sortedPairs(v))
}

func (m MapFormula[K, V]) Deserialize(d *access.Deserializer) (map[K]V, error) {
	var out map[K]V
	err := m.DeserializeInPlace(&out, d)
	return out, err
}

// DeserializeInPlace clears *place and refills it. Later duplicates of a
// key overwrite earlier ones.
func (m MapFormula[K, V]) DeserializeInPlace(place *map[K]V, d *access.Deserializer) error {
	sub, err := d.Deref(m.width)
	if err != nil {
		return err
	}
	it, err := access.IntoIter[T2[K, V]](&sub, m.pair)
	if err != nil {
		return err
	}
	if *place == nil {
		*place = make(map[K]V, it.Len())
	} else {
		clear(*place)
	}
	for p, err := range it.All() {
		if err != nil {
			return err
		}
		(*place)[p.V0] = p.V1
	}
	return nil
}

func (m MapFormula[K, V]) Validate(d *access.Deserializer) error {
	sub, err := d.Deref(m.width)
	if err != nil {
		return err
	}
	return m.pairs.Validate(&sub)
}
