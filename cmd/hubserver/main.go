// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

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

func newRootCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:           "hubserver",
		Short:         "Host the chat hub over ZAP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServerConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default :9000)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	return cmd
}

func run(ctx context.Context, cfg config.ServerConfig) error {
	log := logging.SetLevel(logging.ConfigureRuntime("hubserver"), cfg.LogLevel)

	server, err := hubproxy.Listen(cfg.Listen, hubproxy.WithServerLogger(log))
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	defer server.Close()

	_, group, err := chat.Serve(server, log)
	if err != nil {
		return err
	}
	defer group.Dispose()

	log.Info().Str("addr", server.Addr()).Str("protocol", hubproxy.ProtocolVersion).Msg("hub listening")
	if err := server.Serve(ctx); err != nil {
		return err
	}
	log.Info().Msg("hub stopped")
	return nil
}
