// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupDispose(t *testing.T) {
	var released []int
	member := func(i int) Disposable {
		return DisposeFunc(func() error {
			released = append(released, i)
			return nil
		})
	}

	g := NewGroup(member(1), member(2))
	require.NoError(t, g.Add(member(3)))
	require.Equal(t, 3, g.Len())

	require.NoError(t, g.Dispose())
	require.Equal(t, []int{1, 2, 3}, released)
	require.Zero(t, g.Len())

	require.NoError(t, g.Dispose())
	require.Len(t, released, 3)

	// late members are released on the spot
	require.NoError(t, g.Add(member(4)))
	require.Equal(t, []int{1, 2, 3, 4}, released)
}

func TestGroupDisposeJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	g := NewGroup(
		DisposeFunc(func() error { return errA }),
		DisposeFunc(nil),
		DisposeFunc(func() error { return errB }),
	)

	err := g.Dispose()
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
	require.NoError(t, g.Dispose())
}
