// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/hubproxy"
	"github.com/luxfi/hubproxy/internal/chat"
	"github.com/luxfi/hubproxy/internal/config"
)

type inbox chan [2]string

func (in inbox) OnNewChatMessage(_ context.Context, userName, message string) *hubproxy.Task {
	in <- [2]string{userName, message}
	return hubproxy.Completed()
}

func TestRunSendsMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, err := hubproxy.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()
	_, group, err := chat.Serve(server, zerolog.Nop())
	require.NoError(t, err)
	defer group.Dispose()
	go server.Serve(ctx)

	observer, err := hubproxy.Dial(ctx, server.Addr())
	require.NoError(t, err)
	defer observer.Close()
	in := make(inbox, 4)
	_, err = hubproxy.RegisterCallbacks[chat.ChatHubEvents](observer, in)
	require.NoError(t, err)

	cfg := config.DefaultClientConfig()
	cfg.Addr = server.Addr()
	cfg.Reconnect = false

	var out bytes.Buffer
	p := chat.NewPrinter(&out, true)
	err = run(ctx, cfg, zerolog.Nop(), p, strings.NewReader("alice\n\nhello\n"))
	require.NoError(t, err)

	select {
	case msg := <-in:
		require.Equal(t, [2]string{"alice", "hello"}, msg)
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
	require.Equal(t, 10, strings.Count(out.String(), "Random int: "))
	require.Contains(t, out.String(), "Input name:")
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Set("addr", "10.0.0.1:9000"))
	require.NoError(t, cmd.Flags().Set("user", "bob"))

	cfg, err := loadConfig(cmd, flags{addr: "10.0.0.1:9000", user: "bob"})
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1:9000", cfg.Addr)
	require.Equal(t, "bob", cfg.UserName)
	require.Equal(t, hubproxy.TransportZAP, cfg.Transport)

	require.NoError(t, cmd.Flags().Set("transport", "smoke"))
	_, err = loadConfig(cmd, flags{transport: "smoke", addr: "x:1"})
	require.Error(t, err)
}
