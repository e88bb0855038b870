// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hubproxy lets clients call hub methods through typed contracts
// and receive hub pushes on typed listeners, over any invocation channel.
//
// # Transport Selection
//
// ZAP is the default transport: a duplex framed TCP protocol that carries
// calls in both directions. Alternatives are outbound only:
//
//	hubproxy.WithTransport(hubproxy.TransportJSON)  // JSON-RPC 2.0 over HTTP
//	go build -tags grpc                            // Enable gRPC transport
//
// # Contracts
//
// A hub contract is a struct of func fields. Each field returns *Task when
// the hub method has no result, *Future[any] for an untyped result and
// *Future[T] for a typed one. A leading context.Context is the call
// context and is not sent:
//
//	type ChatHub struct {
//	    SendMessage   func(ctx context.Context, user, text string) *hubproxy.Task
//	    GetRandomInts func(ctx context.Context, count, min, max int) *hubproxy.Future[[]int]
//	}
//
// A callback contract is an interface with the same method shapes:
//
//	type ChatEvents interface {
//	    OnNewChatMessage(ctx context.Context, user, text string) *hubproxy.Task
//	}
//
// # Usage
//
// Client usage:
//
//	conn, err := hubproxy.Dial(ctx, "localhost:9000", hubproxy.WithAutomaticReconnect())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	listeners, err := hubproxy.RegisterCallbacks[ChatEvents](conn, &printer{})
//	defer listeners.Dispose()
//
//	hub, err := hubproxy.HubProxy[ChatHub](conn)
//	ints, err := hub.GetRandomInts(ctx, 10, 0, 10).Await(ctx)
//
// Server usage:
//
//	server, err := hubproxy.Listen(":9000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = hubproxy.RegisterCallbacks[ChatHubServer](server, &mainHub{})
//	clients, err := hubproxy.NewProxy[ChatClients](hubproxy.NewDispatcher(server.All()))
//	server.Serve(ctx)
//
// # Outcomes
//
// Every future settles exactly once. A remote fault leaves it Faulted with
// the channel's error; an abandoned call leaves it Cancelled. Callers
// that care about the difference check State or IsCancellation.
//
// # Architecture
//
// The package separates concerns:
//
//   - client.go: Channel, Invoker and Subscriber interfaces, options
//   - signature.go: contract resolution and result shapes
//   - future.go: Future and Task
//   - dispatcher.go: invocation dispatch and outcome bridging
//   - proxy.go: proxy construction
//   - registrar.go: callback registration
//   - disposable.go: aggregate disposal
//   - connection.go: Connection tying one channel to proxies and listeners
//   - transport.go, dial.go: transport registry, NewChannel, Dial, Listen
//   - zap.go, zap_channel.go, server.go: ZAP transport, client channel, hub server
//   - json.go: JSON-RPC transport
//   - dial_grpc.go: gRPC transport (requires -tags grpc)
package hubproxy
