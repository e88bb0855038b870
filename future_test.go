// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureSettlesOnce(t *testing.T) {
	f := newFuture[int]()
	require.Equal(t, StatePending, f.State())
	require.NoError(t, f.Err())

	require.True(t, f.trySetResult(7))
	require.False(t, f.trySetResult(8))
	require.False(t, f.trySetError(errors.New("late")))

	v, err := f.Result()
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.Equal(t, StateSucceeded, f.State())
}

func TestFutureFaultAndCancel(t *testing.T) {
	boom := errors.New("boom")
	faulted := FromError[string](boom)
	assert.Equal(t, StateFaulted, faulted.State())
	assert.Same(t, boom, faulted.Err())

	cancelled := FromError[string](context.Canceled)
	assert.Equal(t, StateCancelled, cancelled.State())
	assert.ErrorIs(t, cancelled.Err(), context.Canceled)

	// a deadline is a fault, not a cancellation
	expired := FromError[string](context.DeadlineExceeded)
	assert.Equal(t, StateFaulted, expired.State())
}

func TestFutureAwaitLeavesPending(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StatePending, f.State())

	f.trySetResult(3)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, v)
}

func TestFutureSettleUntyped(t *testing.T) {
	f := newFuture[[]int]()
	require.True(t, f.settle(nil, nil))
	v, err := f.Result()
	require.NoError(t, err)
	require.Nil(t, v)

	g := newFuture[int]()
	g.settle("seven", nil)
	_, err = g.Result()
	require.Error(t, err)
	require.Equal(t, StateFaulted, g.State())
}

func TestFutureZeroValueIsSettled(t *testing.T) {
	var task Task
	require.Equal(t, StateSucceeded, task.State())
	select {
	case <-task.Done():
	default:
		t.Fatal("zero value is not settled")
	}
	_, err := task.Result()
	require.NoError(t, err)

	f := new(Future[int])
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, v)
	require.NoError(t, f.Err())

	// it cannot be settled again
	require.False(t, f.settle(5, nil))
	require.Equal(t, 0, f.value)
}

func TestRun(t *testing.T) {
	ok := Run(func() (string, error) { return "done", nil })
	v, err := ok.Result()
	require.NoError(t, err)
	require.Equal(t, "done", v)

	panicked := Run(func() (string, error) { panic("kaboom") })
	_, err = panicked.Result()
	require.ErrorContains(t, err, "kaboom")
	require.Equal(t, StateFaulted, panicked.State())

	done := Completed()
	require.Equal(t, StateSucceeded, done.State())
	select {
	case <-done.Done():
	default:
		t.Fatal("completed task is not done")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "State(9)", State(9).String())
}
