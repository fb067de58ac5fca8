package scheme

import (
	"fmt"
	"sync"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
)

// SchemeJSON is the JSON form of a Scheme.
type SchemeJSON struct {
	Type       string       `json:"type"`
	Name       string       `json:"name,omitempty"`
	FieldNames []string     `json:"fieldNames,omitempty"`
	Schema     []SchemeJSON `json:"schema,omitempty"`
	Len        int          `json:"len,omitempty"`
	Nullable   bool         `json:"nullable,omitempty"`
	View       bool         `json:"view,omitempty"`

	// Extra carries metadata for custom builders
	Extra map[string]any `json:"extra,omitempty"`
}

var registry = struct {
	sync.RWMutex
	builders map[string]func(SchemeJSON) (Scheme, error)
}{builders: map[string]func(SchemeJSON) (Scheme, error){}}

var builtinTypes = map[string]struct{}{
	"bool": {}, "int8": {}, "int16": {}, "int32": {}, "int64": {},
	"uint8": {}, "uint16": {}, "uint32": {}, "uint64": {},
	"float32": {}, "float64": {}, "string": {}, "bytes": {}, "unit": {},
	"vec": {}, "array": {}, "tuple": {}, "record": {}, "option": {},
	"enum": {}, "map": {},
}

// RegisterSchemeType registers a custom Scheme builder for a given type name.
//
// Usage:
//
//	scheme.RegisterSchemeType("Point", func(js scheme.SchemeJSON) (scheme.Scheme, error) {
//	    return scheme.STuple(scheme.SFloat64, scheme.SFloat64), nil
//	})
//
// Type names are case-sensitive. It panics if the name is empty or already
// taken by a built-in or custom type.
func RegisterSchemeType(typeName string, builder func(SchemeJSON) (Scheme, error)) {
	if typeName == "" {
		panic("cannot register empty type name")
	}
	registry.Lock()
	defer registry.Unlock()
	_, builtin := builtinTypes[typeName]
	if _, exists := registry.builders[typeName]; exists || builtin {
		panic("scheme type already registered: " + typeName)
	}
	registry.builders[typeName] = builder
	access.Logger().Debug("scheme type registered", zap.String("type", typeName))
}

// UnregisterSchemeType removes a custom builder. Unknown names are ignored.
func UnregisterSchemeType(typeName string) {
	registry.Lock()
	defer registry.Unlock()
	delete(registry.builders, typeName)
}

func custom(typeName string) (func(SchemeJSON) (Scheme, error), bool) {
	registry.RLock()
	defer registry.RUnlock()
	b, ok := registry.builders[typeName]
	return b, ok
}

// ParseScheme decodes a JSON scheme definition and builds it.
func ParseScheme(data []byte) (Scheme, error) {
	var js SchemeJSON
	if err := gojson.Unmarshal(data, &js); err != nil {
		return nil, errors.InvalidScheme("malformed scheme JSON", err)
	}
	return BuildScheme(js)
}

// BuildScheme constructs a Scheme from its JSON definition.
//
// Built-in types:
//
//   - "bool", "int8".."int64", "uint8".."uint64", "float32", "float64"
//   - "string" (view: decode without copying), "bytes", "unit"
//   - "vec"    schema[0] is the element
//   - "array"  schema[0] is the element, len the count
//   - "tuple"  schema lists the elements
//   - "record" fieldNames and schema align
//   - "enum"   fieldNames are the variants; schema may be omitted for an
//     all-unit enum
//   - "option" schema[0] is the inner value
//   - "map"    schema[0] is the value; keys are strings
//
// Any type may set nullable, which wraps it in an option. Unknown types are
// looked up in the custom registry (see RegisterSchemeType).
func BuildScheme(js SchemeJSON) (Scheme, error) {
	s, err := buildScheme(js)
	if err != nil {
		return nil, err
	}
	if js.Nullable {
		return SOption(s), nil
	}
	return s, nil
}

func buildScheme(js SchemeJSON) (Scheme, error) {
	switch js.Type {
	case "bool":
		return SBool, nil
	case "int8":
		return SInt8, nil
	case "int16":
		return SInt16, nil
	case "int32":
		return SInt32, nil
	case "int64":
		return SInt64, nil
	case "uint8":
		return SUint8, nil
	case "uint16":
		return SUint16, nil
	case "uint32":
		return SUint32, nil
	case "uint64":
		return SUint64, nil
	case "float32":
		return SFloat32, nil
	case "float64":
		return SFloat64, nil
	case "string":
		if js.View {
			return SStringView, nil
		}
		return SString, nil
	case "bytes":
		return SBytes, nil
	case "unit":
		return SUnit, nil
	case "vec":
		elem, err := single(js)
		if err != nil {
			return nil, err
		}
		if err := checkElem(elem, false); err != nil {
			return nil, err
		}
		return SVec(elem), nil
	case "array":
		elem, err := single(js)
		if err != nil {
			return nil, err
		}
		if js.Len < 0 {
			return nil, errors.InvalidScheme("negative array length", nil)
		}
		if err := checkElem(elem, true); err != nil {
			return nil, err
		}
		return SArray(elem, js.Len), nil
	case "option":
		inner, err := single(js)
		if err != nil {
			return nil, err
		}
		return SOption(inner), nil
	case "map":
		value, err := single(js)
		if err != nil {
			return nil, err
		}
		if err := checkElem(value, true); err != nil {
			return nil, err
		}
		return SMap(value), nil
	case "tuple":
		schema, err := buildSchemes(js.Schema)
		if err != nil {
			return nil, err
		}
		if err := checkFields(nil, schema); err != nil {
			return nil, err
		}
		return SchemeTuple{Schema: schema}, nil
	case "record":
		schema, err := buildSchemes(js.Schema)
		if err != nil {
			return nil, err
		}
		names := js.FieldNames
		if names == nil {
			names = []string{}
		}
		if err := checkFields(names, schema); err != nil {
			return nil, err
		}
		return SchemeRecord{Name: js.Name, FieldNames: names, Schema: schema}, nil
	case "enum":
		schema, err := buildSchemes(js.Schema)
		if err != nil {
			return nil, err
		}
		if len(js.Schema) == 0 {
			schema = make([]Scheme, len(js.FieldNames))
			for i := range schema {
				schema[i] = SUnit
			}
		}
		if err := checkVariants(js.FieldNames, schema); err != nil {
			return nil, err
		}
		return SchemeEnum{Name: js.Name, Variants: js.FieldNames, Schema: schema}, nil
	default:
		if builder, ok := custom(js.Type); ok {
			return builder(js)
		}
		return nil, errors.InvalidScheme("unknown scheme type: "+js.Type, nil)
	}
}

func single(js SchemeJSON) (Scheme, error) {
	if len(js.Schema) != 1 {
		return nil, errors.InvalidScheme(fmt.Sprintf("%s needs exactly one schema, got %d", js.Type, len(js.Schema)), nil)
	}
	return BuildScheme(js.Schema[0])
}

// buildSchemes builds each definition in order, prefixing the failing
// index to the error detail.
func buildSchemes(list []SchemeJSON) ([]Scheme, error) {
	out := make([]Scheme, len(list))
	for i, sub := range list {
		s, err := BuildScheme(sub)
		if err != nil {
			return nil, errors.InvalidScheme(fmt.Sprintf("schema[%d]", i), err)
		}
		out[i] = s
	}
	return out, nil
}
