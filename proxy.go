// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"fmt"
	"reflect"
)

// NewProxy returns a T whose func fields invoke the hub through d. T must
// be a struct whose exported fields are funcs returning *Task or
// *Future[R]:
//
//	type ChatHub struct {
//	    SendMessage   func(ctx context.Context, user, text string) *hubproxy.Task
//	    GetRandomInts func(ctx context.Context, count, min, max int) *hubproxy.Future[[]int]
//	}
func NewProxy[T any](d *Dispatcher) (*T, error) {
	p := new(T)
	if err := BindProxy(d, p); err != nil {
		return nil, err
	}
	return p, nil
}

// BindProxy fills the func fields of the struct target points to.
func BindProxy(d *Dispatcher, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return &UnsupportedSignatureError{Type: reflect.TypeOf(target), Reason: "proxy target must be a non-nil pointer to a struct"}
	}
	if d == nil {
		return fmt.Errorf("hub: nil dispatcher")
	}
	sv := v.Elem()
	sigs, err := Resolve(sv.Type())
	if err != nil {
		return err
	}
	for i := range sigs {
		sig := sigs[i]
		sv.FieldByIndex(sig.Index).Set(reflect.MakeFunc(sig.Func, proxyBody(d, sig)))
	}
	return nil
}

func proxyBody(d *Dispatcher, sig MethodSignature) func([]reflect.Value) []reflect.Value {
	futType := sig.Func.Out(0).Elem()
	return func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if sig.HasContext {
			if c, ok := in[0].Interface().(context.Context); ok && c != nil {
				ctx = c
			}
			in = in[1:]
		}
		args := make([]any, len(in))
		for i, a := range in {
			args[i] = a.Interface()
		}

		fv := reflect.New(futType)
		f := fv.Interface().(futureBridge)
		f.reset()
		if sig.Shape == ShapeNone {
			d.invokeInto(ctx, sig.Name, args, f)
		} else {
			d.invokeTypedInto(ctx, sig.Name, sig.Result, args, f)
		}
		return []reflect.Value{fv}
	}
}
