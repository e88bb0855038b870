// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"
)

// Connection binds typed hub proxies and callback listeners to one
// Channel. Every proxy and registration derived from a Connection shares
// its channel.
type Connection struct {
	channel    Channel
	dispatcher *Dispatcher
	log        zerolog.Logger
}

// ConnectionOption configures a Connection.
type ConnectionOption func(*Connection)

// WithConnectionLogger sets the logger handed to the dispatcher and the
// callback registrar.
func WithConnectionLogger(l zerolog.Logger) ConnectionOption {
	return func(c *Connection) { c.log = l }
}

// NewConnection wraps ch. The channel is not started.
func NewConnection(ch Channel, opts ...ConnectionOption) *Connection {
	c := &Connection{
		channel: ch,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dispatcher = NewDispatcher(ch, WithDispatcherLogger(c.log))
	return c
}

// Dial creates a channel for addr and starts it.
func Dial(ctx context.Context, addr string, opts ...DialOption) (*Connection, error) {
	ch, err := NewChannel(addr, opts...)
	if err != nil {
		return nil, err
	}
	o := newDialOptions(opts)
	c := NewConnection(ch, WithConnectionLogger(o.logger))
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Channel returns the underlying channel.
func (c *Connection) Channel() Channel {
	return c.channel
}

// Dispatcher returns the dispatcher shared by the proxies of c.
func (c *Connection) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Start connects the underlying channel.
func (c *Connection) Start(ctx context.Context) error {
	return c.channel.Start(ctx)
}

// Close closes the underlying channel.
func (c *Connection) Close() error {
	return c.channel.Close()
}

// OnClosed is passed through to the channel.
func (c *Connection) OnClosed(fn func(err error)) {
	c.channel.OnClosed(fn)
}

// OnReconnecting is passed through to the channel.
func (c *Connection) OnReconnecting(fn func(err error)) {
	c.channel.OnReconnecting(fn)
}

// OnReconnected is passed through to the channel.
func (c *Connection) OnReconnected(fn func(connectionID string)) {
	c.channel.OnReconnected(fn)
}

// HubProxy returns a proxy for the hub contract T.
func HubProxy[T any](c *Connection) (*T, error) {
	return NewProxy[T](c.dispatcher)
}

// On is passed through to the channel, so a Connection can be handed to
// RegisterCallbacks directly.
func (c *Connection) On(method string, paramTypes []reflect.Type, handler Handler) (Subscription, error) {
	return c.channel.On(method, paramTypes, handler)
}

// ConnectionID returns the id the hub assigned to the current connection,
// or "" when the channel does not expose one.
func (c *Connection) ConnectionID() string {
	if ider, ok := c.channel.(interface{ ConnectionID() string }); ok {
		return ider.ConnectionID()
	}
	return ""
}
