// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"reflect"
	"time"

	"github.com/rs/zerolog"
)

// Invoker sends named invocations to the remote side.
type Invoker interface {
	// Invoke calls method and waits for its completion; there is no value.
	Invoke(ctx context.Context, method string, args []any) error

	// InvokeTyped calls method and decodes the result into resultType.
	InvokeTyped(ctx context.Context, method string, resultType reflect.Type, args []any) (any, error)
}

// Handler handles one inbound invocation. args are already decoded into
// the parameter types given at subscription time.
type Handler func(ctx context.Context, args []any) (any, error)

// Subscriber delivers named inbound invocations to handlers.
type Subscriber interface {
	On(method string, paramTypes []reflect.Type, handler Handler) (Subscription, error)
}

// Subscription is one handler registered on a Subscriber.
type Subscription interface {
	Disposable
}

// Channel is a duplex invocation channel with a connection lifecycle.
// All application code should use this interface.
type Channel interface {
	Invoker
	Subscriber

	// Start connects the channel
	Start(ctx context.Context) error

	// Close closes the channel; Closed handlers observe a nil error
	Close() error

	// OnClosed registers a handler for a closed connection
	OnClosed(func(err error))

	// OnReconnecting registers a handler for a lost connection that is being retried
	OnReconnecting(func(err error))

	// OnReconnected registers a handler for a successful reconnect
	OnReconnected(func(connectionID string))
}

// Codec encodes/decodes argument lists and results
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// DialOption configures channels
type DialOption func(*dialOptions)

type dialOptions struct {
	codec           Codec
	transport       string // "zap", "grpc", "json"
	logger          zerolog.Logger
	reconnect       bool
	reconnectDelays []time.Duration
	service         string
	requestOptions  []Option
}

func newDialOptions(opts []DialOption) *dialOptions {
	o := &dialOptions{
		codec:     defaultCodec,
		transport: DefaultTransport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) { o.codec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithLogger sets the channel logger
func WithLogger(l zerolog.Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// WithAutomaticReconnect enables reconnecting after a lost connection.
// Without delays the default schedule 0s, 2s, 10s, 30s is used.
func WithAutomaticReconnect(delays ...time.Duration) DialOption {
	return func(o *dialOptions) {
		o.reconnect = true
		if len(delays) == 0 {
			delays = defaultReconnectDelays
		}
		o.reconnectDelays = delays
	}
}

// WithService sets the service prefix used by request/response transports
// that address methods as "Service.Method".
func WithService(name string) DialOption {
	return func(o *dialOptions) { o.service = name }
}

// WithRequestOptions sets per-request HTTP options for the JSON transport
func WithRequestOptions(opts ...Option) DialOption {
	return func(o *dialOptions) { o.requestOptions = append(o.requestOptions, opts...) }
}

var defaultReconnectDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// ServerOption configures hub servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	codec     Codec
	transport string
	logger    zerolog.Logger
}

func newServerOptions(opts []ServerOption) *serverOptions {
	o := &serverOptions{
		codec:     defaultCodec,
		transport: DefaultTransport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithServerCodec sets a custom codec for the server
func WithServerCodec(c Codec) ServerOption {
	return func(o *serverOptions) { o.codec = c }
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithServerLogger sets the server logger
func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}
