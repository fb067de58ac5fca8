package scheme

import (
	"bytes"

	gojson "github.com/goccy/go-json"
	jsoniter "github.com/json-iterator/go"

	"github.com/vlovich/alkahest/access"
	"github.com/vlovich/alkahest/errors"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeJSON packs a JSON document into the binary layout of s. Numbers
// keep their full precision, so 64-bit integers survive.
func EncodeJSON(s Scheme, data []byte) ([]byte, error) {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "malformed JSON input")
	}
	return access.Marshal[any](s, v)
}

// DecodeToJSON unpacks buf with s and renders the value as JSON. Records
// keep their field order; bytes render as base64.
func DecodeToJSON(s Scheme, buf []byte) ([]byte, error) {
	v, err := Unpack(s, buf)
	if err != nil {
		return nil, err
	}
	return jsonAPI.Marshal(v)
}

// Unpack decodes the root value of buf. An unbounded root that also uses
// the heap cannot be told apart from its heap, so it is rejected; decode
// such buffers with access.DeserializeWithStack.
func Unpack(s Scheme, buf []byte) (any, error) {
	if _, bounded := s.MaxStackSize(); bounded || s.Heapless() {
		return access.Deserialize[any](s, buf)
	}
	return nil, errors.InvalidData(errors.PhaseDecode, nil, "unbounded root needs its stack size: "+s.String())
}
