// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"reflect"
	"sync"
)

// recordedCall is one outbound invocation seen by recordingChannel.
type recordedCall struct {
	Method     string
	ResultType reflect.Type
	Args       []any
	Typed      bool
}

// recordingChannel is an in-memory Channel. Outbound calls are recorded
// and answered by respond; inbound calls are injected with deliver.
type recordingChannel struct {
	mu      sync.Mutex
	calls   []recordedCall
	respond func(ctx context.Context, call recordedCall) (any, error)

	subs   *subscriptions
	onSubs func(method string) error

	hooks lifecycleHooks
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{subs: newSubscriptions()}
}

func (r *recordingChannel) record(call recordedCall) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recordingChannel) Calls() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedCall(nil), r.calls...)
}

func (r *recordingChannel) answer(ctx context.Context, call recordedCall) (any, error) {
	r.record(call)
	if r.respond == nil {
		return nil, nil
	}
	return r.respond(ctx, call)
}

func (r *recordingChannel) Invoke(ctx context.Context, method string, args []any) error {
	_, err := r.answer(ctx, recordedCall{Method: method, Args: args})
	return err
}

func (r *recordingChannel) InvokeTyped(ctx context.Context, method string, resultType reflect.Type, args []any) (any, error) {
	return r.answer(ctx, recordedCall{Method: method, ResultType: resultType, Args: args, Typed: true})
}

func (r *recordingChannel) On(method string, paramTypes []reflect.Type, handler Handler) (Subscription, error) {
	if r.onSubs != nil {
		if err := r.onSubs(method); err != nil {
			return nil, err
		}
	}
	return r.subs.add(method, paramTypes, handler)
}

// deliver runs every handler subscribed to method with args and returns
// the first result.
func (r *recordingChannel) deliver(ctx context.Context, method string, args ...any) (any, error) {
	var (
		result any
		err    error
	)
	for i, sub := range r.subs.lookup(method) {
		v, herr := sub.handler(ctx, args)
		if herr != nil && err == nil {
			err = herr
		}
		if i == 0 {
			result = v
		}
	}
	return result, err
}

func (r *recordingChannel) Start(context.Context) error { return nil }
func (r *recordingChannel) Close() error { r.hooks.fireClosed(nil); return nil }

func (r *recordingChannel) OnClosed(fn func(err error)) { r.hooks.onClosed(fn) }
func (r *recordingChannel) OnReconnecting(fn func(err error)) { r.hooks.onReconnecting(fn) }
func (r *recordingChannel) OnReconnected(fn func(connectionID string)) { r.hooks.onReconnected(fn) }

var _ Channel = (*recordingChannel)(nil)
