// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luxfi/hubproxy"
	"github.com/luxfi/hubproxy/internal/chat"
	"github.com/luxfi/hubproxy/internal/config"
	"github.com/luxfi/hubproxy/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	addr       string
	transport  string
	service    string
	user       string
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "hubchat",
		Short:         "Chat through a hub",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logging.SetLevel(logging.ConfigureRuntime("hubchat"), cfg.LogLevel)
			p := chat.NewPrinter(cmd.OutOrStdout(), f.noColor)
			return run(ctx, cfg, log, p, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to a TOML config file")
	cmd.Flags().StringVarP(&f.addr, "addr", "a", "", "hub address (default 127.0.0.1:9000)")
	cmd.Flags().StringVarP(&f.transport, "transport", "t", "", "transport: "+strings.Join(hubproxy.AvailableTransports(), ", "))
	cmd.Flags().StringVar(&f.service, "service", "", "service prefix for request/response transports")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "user name; asked for when empty")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "disable colored output")
	return cmd
}

func loadConfig(cmd *cobra.Command, f flags) (config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(f.configPath)
	if err != nil {
		return cfg, err
	}
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Addr = f.addr
	}
	if changed("transport") {
		cfg.Transport = f.transport
	}
	if changed("service") {
		cfg.Service = f.service
	}
	if changed("user") {
		cfg.UserName = f.user
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.ClientConfig, log zerolog.Logger, p *chat.Printer, in io.Reader) error {
	opts := append(cfg.DialOptions(), hubproxy.WithLogger(log))
	conn, err := hubproxy.Dial(ctx, cfg.Addr, opts...)
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Addr, err)
	}
	defer conn.Close()

	conn.OnReconnecting(func(err error) { p.Errorf("connection lost, reconnecting: %v", err) })
	conn.OnReconnected(func(id string) { p.Infof("reconnected as %s", id) })
	conn.OnClosed(func(err error) {
		if err != nil {
			p.Errorf("connection closed: %v", err)
		}
	})

	listeners, err := hubproxy.RegisterCallbacks[chat.ChatHubEvents](conn, p, hubproxy.WithRegistrarLogger(log))
	switch {
	case errors.Is(err, hubproxy.ErrInboundUnsupported):
		p.Errorf("transport %s does not deliver hub messages; sending only", cfg.Transport)
	case err != nil:
		return err
	default:
		defer listeners.Dispose()
	}

	chatHub, err := hubproxy.HubProxy[chat.ChatHubModel](conn)
	if err != nil {
		return err
	}
	second, err := hubproxy.HubProxy[chat.SecondHubModel](conn)
	if err != nil {
		return err
	}

	if id := conn.ConnectionID(); id != "" {
		p.Infof("connected as %s", id)
	}

	ints, err := await(ctx, cfg, second.GetRandomInts, 10, 0, 10)
	if err != nil {
		return fmt.Errorf("GetRandomInts: %w", err)
	}
	for _, n := range ints {
		p.Infof("Random int: %d", n)
	}

	lines := bufio.NewScanner(in)
	name := cfg.UserName
	if name == "" {
		p.Infof("Input name:")
		if !lines.Scan() {
			return lines.Err()
		}
		name = strings.TrimSpace(lines.Text())
	}

	for lines.Scan() {
		msg := strings.TrimSpace(lines.Text())
		if msg == "" {
			continue
		}
		callCtx, cancel := callContext(ctx, cfg)
		_, err := chatHub.SendMessage(callCtx, name, msg).Await(callCtx)
		cancel()
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			p.Errorf("send failed: %v", err)
		}
	}
	return lines.Err()
}

func callContext(ctx context.Context, cfg config.ClientConfig) (context.Context, context.CancelFunc) {
	if cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func await(ctx context.Context, cfg config.ClientConfig, fn func(context.Context, int, int, int) *hubproxy.Future[[]int], count, min, max int) ([]int, error) {
	callCtx, cancel := callContext(ctx, cfg)
	defer cancel()
	return fn(callCtx, count, min, max).Await(callCtx)
}
