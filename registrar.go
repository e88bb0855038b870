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

// RegistrarOption configures callback registration.
type RegistrarOption func(*registrar)

type registrar struct {
	log zerolog.Logger
}

// WithRegistrarLogger sets the logger used for listener panics
func WithRegistrarLogger(l zerolog.Logger) RegistrarOption {
	return func(r *registrar) { r.log = l }
}

// RegisterCallbacks subscribes every method of the interface T on sub and
// routes inbound calls to listener. Disposing the returned group removes
// all of the subscriptions.
func RegisterCallbacks[T any](sub Subscriber, listener T, opts ...RegistrarOption) (*Group, error) {
	return Register(sub, listener, reflect.TypeFor[T](), opts...)
}

// Register is RegisterCallbacks for a contract known only at run time.
// contract must be an interface type implemented by listener.
func Register(sub Subscriber, listener any, contract reflect.Type, opts ...RegistrarOption) (*Group, error) {
	r := &registrar{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}

	if contract == nil || contract.Kind() != reflect.Interface {
		return nil, &UnsupportedSignatureError{Type: contract, Reason: "callback contract must be an interface"}
	}
	lv := reflect.ValueOf(listener)
	if !lv.IsValid() || !lv.Type().Implements(contract) {
		return nil, fmt.Errorf("hub: listener %T does not implement %v", listener, contract)
	}
	sigs, err := Resolve(contract)
	if err != nil {
		return nil, err
	}

	group := NewGroup()
	for _, sig := range sigs {
		method := lv.MethodByName(sig.GoName)
		s, err := sub.On(sig.Name, sig.Params, r.handler(sig, method))
		if err != nil {
			// release what was acquired so far
			_ = group.Dispose()
			return nil, fmt.Errorf("hub: subscribe %s: %w", sig.Name, err)
		}
		_ = group.Add(s)
		r.log.Debug().Str("method", sig.Name).Msg("callback registered")
	}
	return group, nil
}

func (r *registrar) handler(sig MethodSignature, method reflect.Value) Handler {
	return func(ctx context.Context, args []any) (result any, err error) {
		if len(args) != len(sig.Params) {
			return nil, fmt.Errorf("hub: %s expects %d arguments, got %d", sig.Name, len(sig.Params), len(args))
		}
		in := make([]reflect.Value, 0, len(args)+1)
		if sig.HasContext {
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		for i, a := range args {
			v, err := argValue(a, sig.Params[i])
			if err != nil {
				return nil, fmt.Errorf("hub: %s argument %d: %w", sig.Name, i, err)
			}
			in = append(in, v)
		}

		out, err := r.call(sig.Name, method, in)
		if err != nil {
			return nil, err
		}
		if out.IsNil() {
			return nil, nil
		}
		return out.Interface().(futureBridge).awaitAny(ctx)
	}
}

// call invokes the listener method, turning a panic into an error.
func (r *registrar) call(name string, method reflect.Value, in []reflect.Value) (out reflect.Value, err error) {
	defer func() {
		if x := recover(); x != nil {
			r.log.Error().Str("method", name).Str("stack", string(debug.Stack())).Msgf("run time panic: %v", x)
			err = fmt.Errorf("hub: %s: panic: %v", name, x)
		}
	}()
	return method.Call(in)[0], nil
}

func argValue(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		c := v.Convert(t)
		if !c.Convert(v.Type()).Equal(v) || isNegative(c) != isNegative(v) {
			return reflect.Value{}, fmt.Errorf("%v does not fit in %v", a, t)
		}
		return c, nil
	}
	return reflect.Value{}, fmt.Errorf("%T is not assignable to %v", a, t)
}

func isNegative(v reflect.Value) bool {
	switch {
	case v.CanInt():
		return v.Int() < 0
	case v.CanFloat():
		return v.Float() < 0
	}
	return false
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}
