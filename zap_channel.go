// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var errChannelClosed = errors.New("hub: channel closed")

type channelState int

const (
	stateDisconnected channelState = iota
	stateConnected
	stateReconnecting
)

// zapChannel implements Channel over a ZAP connection to a HubServer.
type zapChannel struct {
	addr string
	opts *dialOptions
	log  zerolog.Logger
	subs *subscriptions

	mu     sync.Mutex
	conn   *ZAPConn
	connID string
	state  channelState
	closed bool
	stop   chan struct{}

	hooks lifecycleHooks
}

func newZAPChannel(addr string, o *dialOptions) *zapChannel {
	return &zapChannel{
		addr: addr,
		opts: o,
		log:  o.logger.With().Str("transport", TransportZAP).Str("addr", addr).Logger(),
		subs: newSubscriptions(),
		stop: make(chan struct{}),
	}
}

func (c *zapChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errChannelClosed
	}
	if c.state != stateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, id, err := ZAPDial(ctx, c.addr, ZAPHandlerFunc(c.handleInbound))
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed || c.state != stateDisconnected {
		c.mu.Unlock()
		conn.Close()
		if c.closed {
			return errChannelClosed
		}
		return nil
	}
	c.conn, c.connID, c.state = conn, id, stateConnected
	c.mu.Unlock()

	c.log.Info().Str("connection", id).Msg("connected")
	go c.watch(conn)
	return nil
}

// watch waits for conn to drop and then reconnects or reports the channel
// as closed.
func (c *zapChannel) watch(conn *ZAPConn) {
	<-conn.Done()

	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	cause := ErrTransportLost
	if err := conn.Err(); err != nil {
		cause = fmt.Errorf("%w: %v", ErrTransportLost, err)
	}
	if !c.opts.reconnect {
		c.state = stateDisconnected
		c.mu.Unlock()
		conn.Close()
		c.log.Warn().Err(cause).Msg("connection lost")
		c.hooks.fireClosed(cause)
		return
	}
	c.state = stateReconnecting
	c.mu.Unlock()
	conn.Close()

	c.log.Warn().Err(cause).Msg("connection lost, reconnecting")
	c.hooks.fireReconnecting(cause)

	for attempt, delay := range c.opts.reconnectDelays {
		select {
		case <-c.stop:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		next, id, err := ZAPDial(ctx, c.addr, ZAPHandlerFunc(c.handleInbound))
		cancel()
		if err != nil {
			c.log.Debug().Int("attempt", attempt+1).Err(err).Msg("reconnect failed")
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			next.Close()
			return
		}
		c.conn, c.connID, c.state = next, id, stateConnected
		c.mu.Unlock()

		c.log.Info().Str("connection", id).Int("attempt", attempt+1).Msg("reconnected")
		c.hooks.fireReconnected(id)
		go c.watch(next)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = stateDisconnected
	c.mu.Unlock()
	c.log.Error().Err(cause).Msg("reconnect attempts exhausted")
	c.hooks.fireClosed(cause)
}

func (c *zapChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.stop)
	conn, state := c.conn, c.state
	c.conn, c.state = nil, stateDisconnected
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	if state != stateDisconnected {
		c.hooks.fireClosed(nil)
	}
	return err
}

func (c *zapChannel) current() (*ZAPConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *zapChannel) Invoke(ctx context.Context, method string, args []any) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	payload, err := encodeArgs(c.opts.codec, args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	_, err = conn.Call(ctx, method, payload)
	return err
}

func (c *zapChannel) InvokeTyped(ctx context.Context, method string, resultType reflect.Type, args []any) (any, error) {
	conn, err := c.current()
	if err != nil {
		return nil, err
	}
	payload, err := encodeArgs(c.opts.codec, args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	resp, err := conn.Call(ctx, method, payload)
	if err != nil {
		return nil, err
	}
	return decodeResult(c.opts.codec, resp, resultType)
}

func (c *zapChannel) On(method string, paramTypes []reflect.Type, handler Handler) (Subscription, error) {
	return c.subs.add(method, paramTypes, handler)
}

func (c *zapChannel) handleInbound(ctx context.Context, method string, payload []byte) ([]byte, error) {
	reply, err := c.subs.dispatch(ctx, c.opts.codec, method, payload)
	if err != nil {
		c.log.Warn().Str("method", method).Err(err).Msg("inbound call failed")
	}
	return reply, err
}

func (c *zapChannel) OnClosed(fn func(err error)) { c.hooks.onClosed(fn) }
func (c *zapChannel) OnReconnecting(fn func(err error)) { c.hooks.onReconnecting(fn) }
func (c *zapChannel) OnReconnected(fn func(connectionID string)) { c.hooks.onReconnected(fn) }

// ConnectionID returns the id the server assigned to the current
// connection, or "" when disconnected.
func (c *zapChannel) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.connID
}

// lifecycleHooks stores lifecycle handlers; they run synchronously in
// registration order.
type lifecycleHooks struct {
	mu           sync.Mutex
	closed       []func(error)
	reconnecting []func(error)
	reconnected  []func(string)
}

func (h *lifecycleHooks) onClosed(fn func(error)) {
	h.mu.Lock()
	h.closed = append(h.closed, fn)
	h.mu.Unlock()
}

func (h *lifecycleHooks) onReconnecting(fn func(error)) {
	h.mu.Lock()
	h.reconnecting = append(h.reconnecting, fn)
	h.mu.Unlock()
}

func (h *lifecycleHooks) onReconnected(fn func(string)) {
	h.mu.Lock()
	h.reconnected = append(h.reconnected, fn)
	h.mu.Unlock()
}

func (h *lifecycleHooks) fireClosed(err error) {
	h.mu.Lock()
	fns := append(([]func(error))(nil), h.closed...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (h *lifecycleHooks) fireReconnecting(err error) {
	h.mu.Lock()
	fns := append(([]func(error))(nil), h.reconnecting...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (h *lifecycleHooks) fireReconnected(id string) {
	h.mu.Lock()
	fns := append(([]func(string))(nil), h.reconnected...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}
