package types

import (
	"bytes"
	"fmt"
	"iter"
	"reflect"

	gojson "github.com/goccy/go-json"
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Pair is one named field of a dynamic record
type Pair[V any] struct {
	Key   string
	Value V
}

func OP[V any](k string, v V) Pair[V] {
	return Pair[V]{Key: k, Value: v}
}

// Alias for Pair[any]
type PairAny = Pair[any]

// OPAny is a helper to construct a Pair[any] inline.
func OPAny(k string, v any) PairAny {
	return PairAny{Key: k, Value: v}
}

type node[V any] struct {
	key   string
	value V
	next  *node[V]
}

// OrderedMap keeps fields in declaration order. Dynamic records decode
// into it so that re-encoding and JSON output follow the wire order.
type OrderedMap[V any] struct {
	data map[string]*node[V]
	head *node[V]
	tail *node[V]
}

// NewOrderedMap creates a new OrderedMap, optionally initialized with pairs.
func NewOrderedMap[V any](pairs ...Pair[V]) *OrderedMap[V] {
	om := &OrderedMap[V]{
		data: make(map[string]*node[V], len(pairs)),
	}
	for _, p := range pairs {
		om.Set(p.Key, p.Value)
	}
	return om
}

// Alias for OrderedMap with any values
type OrderedMapAny = OrderedMap[any]

// NewOrderedMapAny creates an OrderedMap[any] initialized with pairs.
func NewOrderedMapAny(pairs ...PairAny) *OrderedMapAny {
	return NewOrderedMap(pairs...)
}

func (om *OrderedMap[V]) Len() int {
	return len(om.data)
}

// Set inserts or updates a key; new keys go last
func (om *OrderedMap[V]) Set(key string, value V) {
	if om.data == nil {
		om.data = make(map[string]*node[V])
	}
	if n, ok := om.data[key]; ok {
		n.value = value
		return
	}
	n := &node[V]{key: key, value: value}
	om.data[key] = n
	if om.tail == nil {
		om.head, om.tail = n, n
	} else {
		om.tail.next = n
		om.tail = n
	}
}

// Get retrieves a value
func (om *OrderedMap[V]) Get(key string) (V, bool) {
	n, ok := om.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	return n.value, true
}

// GetAs returns the value under key converted to U, or the zero U.
func GetAs[U any](om *OrderedMapAny, key string) U {
	v, ok := om.Get(key)
	if !ok {
		var zero U
		return zero
	}
	u, ok := v.(U)
	if !ok {
		var zero U
		return zero
	}
	return u
}

// Keys returns keys in insertion order
func (om *OrderedMap[V]) Keys() []string {
	keys := make([]string, 0, om.Len())
	for n := om.head; n != nil; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Values returns values in insertion order
func (om *OrderedMap[V]) Values() []V {
	values := make([]V, 0, om.Len())
	for n := om.head; n != nil; n = n.next {
		values = append(values, n.value)
	}
	return values
}

// ItemsIter returns an iterator over key/value pairs
func (om *OrderedMap[V]) ItemsIter() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for n := om.head; n != nil; n = n.next {
			if !yield(n.key, n.value) {
				return
			}
		}
	}
}

func (om *OrderedMap[V]) Equal(other *OrderedMap[V]) bool {
	if om.Len() != other.Len() {
		return false
	}
	n1, n2 := om.head, other.head
	for n1 != nil && n2 != nil {
		if n1.key != n2.key {
			return false
		}
		if !reflect.DeepEqual(n1.value, n2.value) {
			return false
		}
		n1, n2 = n1.next, n2.next
	}
	return true
}

// MarshalJSON encodes as JSON object in insertion order
func (om *OrderedMap[V]) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for n := om.head; n != nil; n = n.next {
		keyBytes, err := jsonAPI.Marshal(n.key)
		if err != nil {
			return nil, err
		}
		valBytes, err := jsonAPI.Marshal(n.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')
		buf = append(buf, valBytes...)
		if n.next != nil {
			buf = append(buf, ',')
		}
	}
	buf = append(buf, '}')
	return buf, nil
}

// UnmarshalJSON decodes JSON object preserving order
func (om *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	*om = *NewOrderedMap[V]()
	dec := gojson.NewDecoder(bytes.NewReader(data))

	t, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := t.(gojson.Delim); !ok || d != '{' {
		return fmt.Errorf("expected {")
	}
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := t.(string)
		if !ok {
			return fmt.Errorf("expected string key")
		}
		var val V
		if err := dec.Decode(&val); err != nil {
			return err
		}
		om.Set(key, val)
	}
	t, err = dec.Token()
	if err != nil {
		return err
	}
	if d, ok := t.(gojson.Delim); !ok || d != '}' {
		return fmt.Errorf("expected }")
	}
	return nil
}
