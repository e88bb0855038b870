// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/golang/groupcache/singleflight"
	lru "github.com/hashicorp/golang-lru"
)

// ResultShape classifies the declared return of a contract member.
type ResultShape int

const (
	ShapeNone    ResultShape = iota // *Task
	ShapeUntyped                    // *Future[any]
	ShapeTyped                      // *Future[T]
)

func (s ResultShape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeUntyped:
		return "untyped"
	case ShapeTyped:
		return "typed"
	default:
		return fmt.Sprintf("ResultShape(%d)", int(s))
	}
}

// MethodSignature describes one callable member of a contract.
type MethodSignature struct {
	// Name is the wire name of the member.
	Name string
	// GoName is the field or method name in the contract type.
	GoName string
	// Index is the struct field index path, or the interface method index
	// as a single element.
	Index []int
	// Params are the wire parameter types, without the optional context.
	Params []reflect.Type
	// HasContext is set when the first Go parameter is a context.Context.
	HasContext bool
	Shape      ResultShape
	// Result is T for ShapeTyped, any for ShapeUntyped and nil otherwise.
	Result reflect.Type
	// Func is the full Go function type of the member.
	Func reflect.Type
}

const signatureCacheSize = 256

var (
	contextType = reflect.TypeFor[context.Context]()
	anyType     = reflect.TypeFor[any]()
	voidType    = reflect.TypeFor[Void]()

	signatureCache *lru.Cache
	resolveGroup   singleflight.Group
)

func init() {
	var err error
	signatureCache, err = lru.New(signatureCacheSize)
	if err != nil {
		panic(err)
	}
}

// Resolve enumerates the members of a contract type. Struct contracts
// contribute their exported func fields in declaration order; interface
// contracts contribute their methods. Results are cached per type.
func Resolve(t reflect.Type) ([]MethodSignature, error) {
	if t == nil {
		return nil, &UnsupportedSignatureError{Reason: "nil type"}
	}
	if cached, ok := signatureCache.Get(t); ok {
		return cached.([]MethodSignature), nil
	}
	v, err := resolveGroup.Do(fmt.Sprintf("%v@%p", t, t), func() (interface{}, error) {
		sigs, err := resolveType(t)
		if err != nil {
			return nil, err
		}
		signatureCache.Add(t, sigs)
		return sigs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]MethodSignature), nil
}

func resolveType(t reflect.Type) ([]MethodSignature, error) {
	var (
		sigs []MethodSignature
		err  error
	)
	switch t.Kind() {
	case reflect.Struct:
		sigs, err = resolveStruct(t)
	case reflect.Interface:
		sigs, err = resolveInterface(t)
	default:
		return nil, &UnsupportedSignatureError{Type: t, Reason: "contract must be a struct or an interface"}
	}
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(sigs))
	for _, sig := range sigs {
		key := strings.ToLower(sig.Name)
		if other, ok := seen[key]; ok {
			return nil, &UnsupportedSignatureError{
				Type:   t,
				Member: sig.GoName,
				Reason: fmt.Sprintf("name %q is ambiguous with %s", sig.Name, other),
			}
		}
		seen[key] = sig.GoName
	}
	return sigs, nil
}

func resolveStruct(t reflect.Type) ([]MethodSignature, error) {
	var sigs []MethodSignature
	for _, field := range reflect.VisibleFields(t) {
		if field.Anonymous {
			if field.Type.Kind() == reflect.Pointer {
				return nil, &UnsupportedSignatureError{Type: t, Member: field.Name, Reason: "embedded pointers are not supported"}
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("hub")
		if tag == "-" {
			continue
		}
		if field.Type.Kind() != reflect.Func {
			return nil, &UnsupportedSignatureError{Type: t, Member: field.Name, Reason: "exported fields must be funcs"}
		}
		sig, err := classify(t, field.Name, field.Type)
		if err != nil {
			return nil, err
		}
		if tag != "" {
			sig.Name = tag
		}
		sig.Index = field.Index
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

func resolveInterface(t reflect.Type) ([]MethodSignature, error) {
	sigs := make([]MethodSignature, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() {
			return nil, &UnsupportedSignatureError{Type: t, Member: m.Name, Reason: "unexported methods cannot be dispatched"}
		}
		sig, err := classify(t, m.Name, m.Type)
		if err != nil {
			return nil, err
		}
		sig.Index = []int{i}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// classify inspects a func type without receiver.
func classify(owner reflect.Type, name string, fn reflect.Type) (MethodSignature, error) {
	fail := func(reason string) (MethodSignature, error) {
		return MethodSignature{}, &UnsupportedSignatureError{Type: owner, Member: name, Reason: reason}
	}
	if fn.IsVariadic() {
		return fail("variadic parameters are not supported")
	}
	switch fn.NumOut() {
	case 0:
		return fail("no result; return *Task for calls without a value")
	case 1:
	default:
		return fail(fmt.Sprintf("%d results; exactly one future is required", fn.NumOut()))
	}

	sig := MethodSignature{Name: name, GoName: name, Func: fn}
	for i := 0; i < fn.NumIn(); i++ {
		in := fn.In(i)
		if i == 0 && in == contextType {
			sig.HasContext = true
			continue
		}
		if in == contextType {
			return fail("context.Context must be the first parameter")
		}
		sig.Params = append(sig.Params, in)
	}

	out := fn.Out(0)
	if out.Kind() != reflect.Pointer || !out.Implements(bridgeType) {
		return fail(fmt.Sprintf("synchronous result %v; return *Task or *Future[T]", out))
	}
	elem := reflect.Zero(out).Interface().(futureBridge).elemType()
	switch elem {
	case voidType:
		sig.Shape = ShapeNone
	case anyType:
		sig.Shape = ShapeUntyped
		sig.Result = anyType
	default:
		sig.Shape = ShapeTyped
		sig.Result = elem
	}
	return sig, nil
}
