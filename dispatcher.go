// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Dispatcher turns method calls into invocations on an Invoker and bridges
// their outcome into futures. It never retries and never wraps errors.
type Dispatcher struct {
	invoker Invoker
	log     zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the dispatcher logger
func WithDispatcherLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher creates a dispatcher over inv.
func NewDispatcher(inv Invoker, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		invoker: inv,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke calls method without expecting a value.
func (d *Dispatcher) Invoke(ctx context.Context, method string, args ...any) *Task {
	t := newFuture[Void]()
	d.invokeInto(ctx, method, args, t)
	return t
}

// InvokeTyped calls method and resolves the result as resultType. A nil
// resultType means any.
func (d *Dispatcher) InvokeTyped(ctx context.Context, method string, resultType reflect.Type, args ...any) *Future[any] {
	if resultType == nil {
		resultType = anyType
	}
	f := newFuture[any]()
	d.invokeTypedInto(ctx, method, resultType, args, f)
	return f
}

// InvokeAs calls method on d and resolves the result as T.
func InvokeAs[T any](ctx context.Context, d *Dispatcher, method string, args ...any) *Future[T] {
	f := newFuture[T]()
	d.invokeTypedInto(ctx, method, reflect.TypeFor[T](), args, f)
	return f
}

func (d *Dispatcher) invokeInto(ctx context.Context, method string, args []any, f futureBridge) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.log.Debug().Str("method", method).Int("args", len(args)).Msg("invoke")
	go func() {
		defer d.recoverInto(method, f)
		err := d.invoker.Invoke(ctx, method, args)
		d.finish(method, f, nil, err)
	}()
}

func (d *Dispatcher) invokeTypedInto(ctx context.Context, method string, resultType reflect.Type, args []any, f futureBridge) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.log.Debug().Str("method", method).Stringer("result", resultType).Int("args", len(args)).Msg("invoke typed")
	go func() {
		defer d.recoverInto(method, f)
		v, err := d.invoker.InvokeTyped(ctx, method, resultType, args)
		d.finish(method, f, v, err)
	}()
}

func (d *Dispatcher) finish(method string, f futureBridge, v any, err error) {
	switch {
	case err == nil:
	case IsCancellation(err):
		d.log.Debug().Str("method", method).Err(err).Msg("invocation cancelled")
	default:
		d.log.Debug().Str("method", method).Err(err).Msg("invocation faulted")
	}
	f.settle(v, err)
}

// recoverInto faults f when the invoker panics.
func (d *Dispatcher) recoverInto(method string, f futureBridge) {
	if x := recover(); x != nil {
		d.log.Error().Str("method", method).Str("stack", string(debug.Stack())).Msgf("run time panic: %v", x)
		f.settle(nil, fmt.Errorf("hub: %s: panic: %v", method, x))
	}
}
