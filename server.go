// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type connectionIDKey struct{}

// ConnectionID returns the id of the connection an inbound hub call
// arrived on, or "".
func ConnectionID(ctx context.Context) string {
	id, _ := ctx.Value(connectionIDKey{}).(string)
	return id
}

// HubServer hosts hub methods over ZAP. Hub implementations are attached
// with Register or RegisterCallbacks; All and Client return Invokers for
// pushing calls to connected clients through ordinary proxies.
type HubServer struct {
	listener net.Listener
	codec    Codec
	log      zerolog.Logger
	subs     *subscriptions

	mu     sync.RWMutex
	conns  map[string]*ZAPConn
	closed atomic.Bool
}

func newHubServer(listener net.Listener, o *serverOptions) *HubServer {
	return &HubServer{
		listener: listener,
		codec:    o.codec,
		log:      o.logger.With().Str("transport", TransportZAP).Logger(),
		subs:     newSubscriptions(),
		conns:    make(map[string]*ZAPConn),
	}
}

// On subscribes handler to inbound calls named method.
func (s *HubServer) On(method string, paramTypes []reflect.Type, handler Handler) (Subscription, error) {
	return s.subs.add(method, paramTypes, handler)
}

// Serve accepts connections until the server is closed or ctx is done.
func (s *HubServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

func (s *HubServer) handleConn(conn net.Conn) {
	id := uuid.NewString()
	if err := serverHandshake(conn, id); err != nil {
		s.log.Warn().Str("remote", conn.RemoteAddr().String()).Err(err).Msg("handshake failed")
		conn.Close()
		return
	}

	zc := NewZAPConn(conn, ZAPHandlerFunc(func(ctx context.Context, method string, payload []byte) ([]byte, error) {
		ctx = context.WithValue(ctx, connectionIDKey{}, id)
		reply, err := s.subs.dispatch(ctx, s.codec, method, payload)
		if err != nil && !IsCancellation(err) {
			s.log.Warn().Str("connection", id).Str("method", method).Err(err).Msg("hub call failed")
		}
		return reply, err
	}))

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[id] = zc
	s.mu.Unlock()

	s.log.Info().Str("connection", id).Str("remote", conn.RemoteAddr().String()).Msg("client connected")
	zc.Start()
	<-zc.Done()

	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
	zc.Close()
	s.log.Info().Str("connection", id).Msg("client disconnected")
}

// Connections returns the ids of the connected clients.
func (s *HubServer) Connections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *HubServer) conn(id string) (*ZAPConn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zc, ok := s.conns[id]
	return zc, ok
}

// All returns an Invoker that notifies every connected client. It does
// not wait for the clients' handlers and cannot return values.
func (s *HubServer) All() Invoker {
	return broadcastInvoker{s}
}

// Client returns an Invoker addressing one connection. Calls wait for the
// client's handler and may return values.
func (s *HubServer) Client(id string) Invoker {
	return clientInvoker{s, id}
}

// Close closes the server and every client connection
func (s *HubServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	for _, zc := range s.conns {
		zc.Close()
	}
	s.mu.Unlock()
	return s.listener.Close()
}

// Addr returns the listener address
func (s *HubServer) Addr() string {
	return s.listener.Addr().String()
}

type broadcastInvoker struct {
	s *HubServer
}

func (b broadcastInvoker) Invoke(ctx context.Context, method string, args []any) error {
	payload, err := encodeArgs(b.s.codec, args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	b.s.mu.RLock()
	conns := make([]*ZAPConn, 0, len(b.s.conns))
	for _, zc := range b.s.conns {
		conns = append(conns, zc)
	}
	b.s.mu.RUnlock()

	var errs []error
	for _, zc := range conns {
		if err := zc.Notify(ctx, method, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b broadcastInvoker) InvokeTyped(ctx context.Context, method string, _ reflect.Type, _ []any) (any, error) {
	return nil, fmt.Errorf("hub: %s: broadcast calls cannot return results", method)
}

type clientInvoker struct {
	s  *HubServer
	id string
}

func (c clientInvoker) call(ctx context.Context, method string, args []any) ([]byte, error) {
	zc, ok := c.s.conn(c.id)
	if !ok {
		return nil, fmt.Errorf("hub: connection %s: %w", c.id, ErrNotConnected)
	}
	payload, err := encodeArgs(c.s.codec, args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	return zc.Call(ctx, method, payload)
}

func (c clientInvoker) Invoke(ctx context.Context, method string, args []any) error {
	_, err := c.call(ctx, method, args)
	return err
}

func (c clientInvoker) InvokeTyped(ctx context.Context, method string, resultType reflect.Type, args []any) (any, error) {
	resp, err := c.call(ctx, method, args)
	if err != nil {
		return nil, err
	}
	return decodeResult(c.s.codec, resp, resultType)
}
