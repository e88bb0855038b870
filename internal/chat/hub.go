// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chat

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog"

	"github.com/luxfi/hubproxy"
)

const maxRandomInts = 10000

// MainHub implements ChatHub. Chat messages are fanned out to every
// connected client.
type MainHub struct {
	all *ChatClients
	log zerolog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMainHub returns a hub that pushes through clients.
func NewMainHub(clients *ChatClients, log zerolog.Logger) *MainHub {
	return &MainHub{
		all: clients,
		log: log,
		rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Serve attaches a MainHub to server. The returned group detaches it.
func Serve(server *hubproxy.HubServer, log zerolog.Logger) (*MainHub, *hubproxy.Group, error) {
	clients, err := hubproxy.NewProxy[ChatClients](hubproxy.NewDispatcher(server.All(), hubproxy.WithDispatcherLogger(log)))
	if err != nil {
		return nil, nil, err
	}
	hub := NewMainHub(clients, log)
	group, err := hubproxy.RegisterCallbacks[ChatHub](server, hub, hubproxy.WithRegistrarLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return hub, group, nil
}

func (h *MainHub) SendMessage(ctx context.Context, userName, message string) *hubproxy.Task {
	h.log.Info().
		Str("connection", hubproxy.ConnectionID(ctx)).
		Str("user", userName).
		Msg("chat message")
	return h.all.OnNewChatMessage(ctx, userName, message)
}

// GetRandomInts returns count values in [min, max). min == max yields
// count copies of min.
func (h *MainHub) GetRandomInts(_ context.Context, count, min, max int) *hubproxy.Future[[]int] {
	switch {
	case count < 0 || count > maxRandomInts:
		return hubproxy.FromError[[]int](fmt.Errorf("count %d out of range [0, %d]", count, maxRandomInts))
	case min > max:
		return hubproxy.FromError[[]int](fmt.Errorf("min %d is greater than max %d", min, max))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, count)
	for i := range out {
		out[i] = min
		if max > min {
			out[i] += h.rnd.IntN(max - min)
		}
	}
	return hubproxy.FromResult(out)
}
