package scheme

import (
	"encoding/base64"
	"math"
	"reflect"

	"golang.org/x/exp/constraints"
)

// number matches json.Number from either JSON decoder.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case float64:
		if v >= math.MinInt64 && v < math.MaxInt64 && v == math.Trunc(v) {
			return int64(v), true
		}
	case float32:
		f := float64(v)
		if f >= math.MinInt64 && f < math.MaxInt64 && f == math.Trunc(f) {
			return int64(f), true
		}
	case number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toUint64(value any) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case float64:
		if v >= 0 && v < math.MaxUint64 && v == math.Trunc(v) {
			return uint64(v), true
		}
	case float32:
		f := float64(v)
		if f >= 0 && f < math.MaxUint64 && f == math.Trunc(f) {
			return uint64(f), true
		}
	case number:
		if u, ok := parseUint(v.String()); ok {
			return u, true
		}
	}
	if i, ok := toInt64(value); ok && i >= 0 {
		return uint64(i), true
	}
	return 0, false
}

func parseUint(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var u uint64
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return 0, false
		}
		d := uint64(c - '0')
		if u > (math.MaxUint64-d)/10 {
			return 0, false
		}
		u = u*10 + d
	}
	return u, true
}

// coerceInteger converts a numeric value to T when it fits exactly.
func coerceInteger[T constraints.Integer](value any) (T, bool) {
	var zero T
	if ^zero < zero {
		i, ok := toInt64(value)
		if !ok || int64(T(i)) != i {
			return 0, false
		}
		return T(i), true
	}
	u, ok := toUint64(value)
	if !ok || uint64(T(u)) != u {
		return 0, false
	}
	return T(u), true
}

func coerceFloat[T constraints.Float](value any) (T, bool) {
	switch v := value.(type) {
	case float64:
		return T(v), true
	case float32:
		return T(v), true
	case number:
		if f, err := v.Float64(); err == nil {
			return T(f), true
		}
	}
	if i, ok := toInt64(value); ok {
		return T(i), true
	}
	if u, ok := toUint64(value); ok {
		return T(u), true
	}
	return 0, false
}

// coerceBytes accepts raw bytes, base64 text as produced by JSON encoders,
// or a list of byte-sized numbers.
func coerceBytes(value any) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		return b, err == nil
	case []any:
		out := make([]byte, len(v))
		for i, e := range v {
			b, ok := coerceInteger[uint8](e)
			if !ok {
				return nil, false
			}
			out[i] = b
		}
		return out, true
	}
	return nil, false
}

// toSlice flattens any slice or array value into []any.
func toSlice(value any) ([]any, bool) {
	if v, ok := value.([]any); ok {
		return v, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
