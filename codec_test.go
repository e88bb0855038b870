// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

func TestDecodeArgsTyped(t *testing.T) {
	types := []reflect.Type{
		reflect.TypeFor[string](),
		reflect.TypeFor[int](),
		reflect.TypeFor[point](),
		reflect.TypeFor[[]int](),
	}
	data, err := encodeArgs(defaultCodec, []any{"alice", 3, point{1, 2}, []int{4}})
	require.NoError(t, err)

	args, err := decodeArgs(defaultCodec, data, types)
	require.NoError(t, err)
	require.Equal(t, []any{"alice", 3, point{1, 2}, []int{4}}, args)
}

func TestDecodeArgsNullAndCount(t *testing.T) {
	types := []reflect.Type{reflect.TypeFor[string](), reflect.TypeFor[int]()}

	args, err := decodeArgs(defaultCodec, []byte(`[null, 5]`), types)
	require.NoError(t, err)
	assert.Equal(t, []any{"", 5}, args)

	_, err = decodeArgs(defaultCodec, []byte(`["a"]`), types)
	require.Error(t, err)

	_, err = decodeArgs(defaultCodec, []byte(`["a", 1, 2]`), types)
	require.Error(t, err)

	_, err = decodeArgs(defaultCodec, []byte(`["a", "b"]`), types)
	require.Error(t, err)

	args, err = decodeArgs(defaultCodec, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, args)

	data, err := encodeArgs(defaultCodec, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestDecodeResult(t *testing.T) {
	v, err := decodeResult(defaultCodec, []byte(`[1,2]`), reflect.TypeFor[[]int]())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v)

	v, err = decodeResult(defaultCodec, nil, reflect.TypeFor[int]())
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = decodeResult(defaultCodec, []byte(`{"a":1}`), anyType)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)

	_, err = decodeResult(defaultCodec, []byte(`"x"`), reflect.TypeFor[int]())
	require.Error(t, err)
}

func TestBinaryCodecPassesBytes(t *testing.T) {
	raw := []byte{0xde, 0xad}
	data, err := Binary.Encode(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	v, err := decodeResult(Binary, raw, reflect.TypeFor[[]byte]())
	require.NoError(t, err)
	assert.Equal(t, raw, v)

	// anything else is JSON
	data, err = encodeArgs(Binary, []any{"a", 1})
	require.NoError(t, err)
	args, err := decodeArgs(Binary, data, []reflect.Type{reflect.TypeFor[string](), reflect.TypeFor[int]()})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 1}, args)
}
