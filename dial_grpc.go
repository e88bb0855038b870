//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

func init() {
	// Register gRPC transport when build tag is enabled
	encoding.RegisterCodec(grpcCodec{defaultCodec})
	registerTransport(TransportGRPC, dialGRPC, nil)
}

const grpcCodecName = "hubjson"

// grpcCodec carries hub argument lists and results as gRPC messages.
type grpcCodec struct {
	c Codec
}

func (g grpcCodec) Marshal(v any) ([]byte, error) { return g.c.Encode(v) }
func (g grpcCodec) Unmarshal(data []byte, v any) error { return g.c.Decode(data, v) }
func (grpcCodec) Name() string { return grpcCodecName }

// grpcChannel is an outbound-only Channel. Hub methods map to
// "/<service>/<method>".
type grpcChannel struct {
	addr string
	opts *dialOptions

	mu     sync.Mutex
	conn   *grpc.ClientConn
	closed bool

	hooks lifecycleHooks
}

func dialGRPC(addr string, o *dialOptions) (Channel, error) {
	if o.service == "" {
		return nil, fmt.Errorf("grpc transport: service name required")
	}
	return &grpcChannel{addr: addr, opts: o}, nil
}

func (c *grpcChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errChannelClosed
	}
	if c.conn != nil {
		return nil
	}
	conn, err := grpc.NewClient(c.addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(grpcCodecName)),
	)
	if err != nil {
		return fmt.Errorf("grpc dial: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *grpcChannel) current() (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *grpcChannel) fullMethod(method string) string {
	return "/" + c.opts.service + "/" + method
}

func (c *grpcChannel) Invoke(ctx context.Context, method string, args []any) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	var reply json.RawMessage
	return conn.Invoke(ctx, c.fullMethod(method), args, &reply)
}

func (c *grpcChannel) InvokeTyped(ctx context.Context, method string, resultType reflect.Type, args []any) (any, error) {
	conn, err := c.current()
	if err != nil {
		return nil, err
	}
	reply := reflect.New(resultType)
	if err := conn.Invoke(ctx, c.fullMethod(method), args, reply.Interface()); err != nil {
		return nil, err
	}
	return reply.Elem().Interface(), nil
}

func (c *grpcChannel) On(method string, _ []reflect.Type, _ Handler) (Subscription, error) {
	return nil, fmt.Errorf("%w: %s", ErrInboundUnsupported, method)
}

func (c *grpcChannel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn, c.closed = nil, true
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	c.hooks.fireClosed(nil)
	return err
}

func (c *grpcChannel) OnClosed(fn func(err error)) { c.hooks.onClosed(fn) }
func (c *grpcChannel) OnReconnecting(fn func(err error)) { c.hooks.onReconnecting(fn) }
func (c *grpcChannel) OnReconnected(fn func(connectionID string)) { c.hooks.onReconnected(fn) }
