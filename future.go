// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Future.
type State int32

const (
	StatePending State = iota
	StateSucceeded
	StateFaulted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFaulted:
		return "faulted"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Void is the value type of a Future with no result.
type Void struct{}

// Task is a Future that carries no value.
type Task = Future[Void]

// Future is the asynchronous outcome of an invocation. It settles exactly
// once: with a value, with a fault, or as cancelled. The zero value is a
// succeeded future holding the zero T, the same outcome a listener gets by
// returning nil.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	state atomic.Int32
	value T
	err   error
}

// futureBridge lets reflection-built code settle and await a Future
// without knowing T.
type futureBridge interface {
	reset()
	elemType() reflect.Type
	settle(v any, err error) bool
	awaitAny(ctx context.Context) (any, error)
}

var bridgeType = reflect.TypeFor[futureBridge]()

func newFuture[T any]() *Future[T] {
	f := &Future[T]{}
	f.reset()
	return f
}

func (f *Future[T]) reset() {
	f.done = make(chan struct{})
}

var settledDone = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// wait returns the channel closed on settlement. A future never given a
// done channel was not built by this package and counts as settled.
func (f *Future[T]) wait() <-chan struct{} {
	if f.done == nil {
		return settledDone
	}
	return f.done
}

func (f *Future[T]) elemType() reflect.Type {
	return reflect.TypeFor[T]()
}

// settle completes the future from an untyped outcome. A nil value yields
// the zero T.
func (f *Future[T]) settle(v any, err error) bool {
	if err != nil {
		return f.trySetError(err)
	}
	if v == nil {
		var zero T
		return f.trySetResult(zero)
	}
	tv, ok := v.(T)
	if !ok {
		return f.trySetError(fmt.Errorf("hub: result %T is not assignable to %v", v, f.elemType()))
	}
	return f.trySetResult(tv)
}

func (f *Future[T]) awaitAny(ctx context.Context) (any, error) {
	v, err := f.Await(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (f *Future[T]) trySetResult(v T) bool {
	return f.complete(StateSucceeded, v, nil)
}

// trySetError faults the future, or cancels it when err is a cancellation.
func (f *Future[T]) trySetError(err error) bool {
	var zero T
	if IsCancellation(err) {
		return f.complete(StateCancelled, zero, err)
	}
	return f.complete(StateFaulted, zero, err)
}

func (f *Future[T]) complete(s State, v T, err error) bool {
	if f.done == nil {
		return false
	}
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		f.state.Store(int32(s))
		close(f.done)
		settled = true
	})
	return settled
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.wait()
}

// State returns the current state.
func (f *Future[T]) State() State {
	if f.done == nil {
		return StateSucceeded
	}
	return State(f.state.Load())
}

// Err returns the fault or cancellation error of a settled future.
func (f *Future[T]) Err() error {
	select {
	case <-f.wait():
		return f.err
	default:
		return nil
	}
}

// Await blocks until the future settles or ctx is done. Leaving because of
// ctx does not affect the future.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.wait():
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the future settles.
func (f *Future[T]) Result() (T, error) {
	<-f.wait()
	return f.value, f.err
}

// Completed returns an already successful Task.
func Completed() *Task {
	return FromResult(Void{})
}

// FromResult returns a future already resolved with v.
func FromResult[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.trySetResult(v)
	return f
}

// FromError returns a future already faulted (or cancelled) with err.
func FromError[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.trySetError(err)
	return f
}

// Run executes fn in its own goroutine and exposes its outcome as a future.
func Run[T any](fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		defer func() {
			if x := recover(); x != nil {
				f.trySetError(fmt.Errorf("hub: panic: %v", x))
			}
		}()
		v, err := fn()
		if err != nil {
			f.trySetError(err)
			return
		}
		f.trySetResult(v)
	}()
	return f
}
