// Package json routes the proxy's JSON encoding through jsoniter while keeping the
// encoding/json call shapes.
package json

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	NewDecoder    = json.NewDecoder
	NewEncoder    = json.NewEncoder
)

type RawMessage = jsoniter.RawMessage

type Decoder = jsoniter.Decoder

type Encoder = jsoniter.Encoder

// Stringify returns the compact JSON text of v.
func Stringify(v any) (string, error) {
	return json.MarshalToString(v)
}

// Normalize round-trips v through JSON so structs, typed maps and slices come back as
// plain map[string]any / []any / float64 trees.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
