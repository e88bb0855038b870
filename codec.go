// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// JSONCodec is a JSON-based codec
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// BinaryCodec passes bytes through unchanged (for pre-encoded data)
type BinaryCodec struct{}

func (BinaryCodec) Encode(v interface{}) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	if b, ok := v.(*[]byte); ok {
		return *b, nil
	}
	return json.Marshal(v)
}

func (BinaryCodec) Decode(data []byte, v interface{}) error {
	if b, ok := v.(*[]byte); ok {
		*b = data
		return nil
	}
	return json.Unmarshal(data, v)
}

// Binary is a codec that passes bytes through unchanged
var Binary Codec = BinaryCodec{}

// encodeArgs encodes an argument list as a single array value.
func encodeArgs(c Codec, args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return c.Encode(args)
}

// decodeArgs decodes an encoded argument list into the given parameter
// types. Each element is decoded through a typed pointer so the codec
// produces values of exactly those types.
func decodeArgs(c Codec, data []byte, types []reflect.Type) ([]any, error) {
	ptrs := make([]any, len(types))
	for i, t := range types {
		ptrs[i] = reflect.New(t).Interface()
	}
	if len(data) > 0 {
		if err := c.Decode(data, &ptrs); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
	}
	if len(ptrs) != len(types) {
		return nil, fmt.Errorf("decode args: got %d arguments, want %d", len(ptrs), len(types))
	}
	args := make([]any, len(types))
	for i, p := range ptrs {
		// null leaves the slot empty
		if p == nil {
			args[i] = reflect.Zero(types[i]).Interface()
			continue
		}
		args[i] = reflect.ValueOf(p).Elem().Interface()
	}
	return args, nil
}

// decodeResult decodes an encoded result into a fresh value of t.
func decodeResult(c Codec, data []byte, t reflect.Type) (any, error) {
	if t == nil {
		return nil, nil
	}
	ptr := reflect.New(t)
	if len(data) > 0 {
		if err := c.Decode(data, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	return ptr.Elem().Interface(), nil
}
