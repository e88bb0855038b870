// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chat is a small chat hub used by the hubserver and hubchat
// commands.
package chat

import (
	"context"

	"github.com/luxfi/hubproxy"
)

// ChatHubModel is the client view of the chat methods of the hub.
type ChatHubModel struct {
	SendMessage func(ctx context.Context, userName, message string) *hubproxy.Task
}

// SecondHubModel is the client view of the utility methods of the hub.
type SecondHubModel struct {
	GetRandomInts func(ctx context.Context, count, min, max int) *hubproxy.Future[[]int]
}

// ChatHubEvents are the calls the hub pushes to its clients.
type ChatHubEvents interface {
	OnNewChatMessage(ctx context.Context, userName, message string) *hubproxy.Task
}

// ChatHub is implemented by the hub itself.
type ChatHub interface {
	SendMessage(ctx context.Context, userName, message string) *hubproxy.Task
	GetRandomInts(ctx context.Context, count, min, max int) *hubproxy.Future[[]int]
}

// ChatClients is the hub view of ChatHubEvents.
type ChatClients struct {
	OnNewChatMessage func(ctx context.Context, userName, message string) *hubproxy.Task
}
