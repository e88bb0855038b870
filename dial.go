// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"fmt"
	"net"
)

// NewChannel creates an unstarted channel for addr using the default
// transport (ZAP). Use WithTransport for transport selection.
func NewChannel(addr string, opts ...DialOption) (Channel, error) {
	o := newDialOptions(opts)
	e, ok := lookupTransport(o.transport)
	if !ok || e.dial == nil {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return e.dial(addr, o)
}

// Listen creates a hub server listener using the default transport (ZAP).
func Listen(addr string, opts ...ServerOption) (*HubServer, error) {
	o := newServerOptions(opts)
	e, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	if e.listen == nil {
		return nil, fmt.Errorf("transport %s cannot host hubs", o.transport)
	}
	return e.listen(addr, o)
}

// dialZAP creates a ZAP channel
func dialZAP(addr string, o *dialOptions) (Channel, error) {
	return newZAPChannel(addr, o), nil
}

// listenZAP creates a ZAP hub server
func listenZAP(addr string, o *serverOptions) (*HubServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newHubServer(listener, o), nil
}
