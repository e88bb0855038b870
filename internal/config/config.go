// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the TOML configuration of the hub commands.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/luxfi/hubproxy"
	"github.com/luxfi/hubproxy/internal/logging"
)

// ClientConfig configures hubchat.
type ClientConfig struct {
	Addr            string
	Transport       string
	Service         string
	UserName        string
	LogLevel        string
	Reconnect       bool
	ReconnectDelays []time.Duration
	CallTimeout     time.Duration
}

// ServerConfig configures hubserver.
type ServerConfig struct {
	Listen   string
	LogLevel string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:        "127.0.0.1:9000",
		Transport:   hubproxy.DefaultTransport,
		Reconnect:   true,
		CallTimeout: 30 * time.Second,
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Listen: ":9000",
	}
}

// hubchat config.toml key mapping.
type clientFile struct {
	Addr            string   `toml:"addr"`
	Transport       string   `toml:"transport"`
	Service         string   `toml:"service"`
	UserName        string   `toml:"user_name"`
	LogLevel        string   `toml:"log_level"`
	Reconnect       bool     `toml:"reconnect"`
	ReconnectDelays []string `toml:"reconnect_delays"`
	CallTimeout     string   `toml:"call_timeout"`
}

type serverFile struct {
	Listen   string `toml:"listen"`
	LogLevel string `toml:"log_level"`
}

// LoadClientConfig overlays the file at path on DefaultClientConfig. An
// empty path yields the defaults.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ClientConfig{}, fmt.Errorf("load client config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("service") {
		cfg.Service = strings.TrimSpace(raw.Service)
	}
	if meta.IsDefined("user_name") {
		cfg.UserName = strings.TrimSpace(raw.UserName)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("reconnect") {
		cfg.Reconnect = raw.Reconnect
	}
	if meta.IsDefined("reconnect_delays") {
		cfg.ReconnectDelays = cfg.ReconnectDelays[:0]
		for _, s := range raw.ReconnectDelays {
			d, err := time.ParseDuration(strings.TrimSpace(s))
			if err != nil {
				return ClientConfig{}, fmt.Errorf("load client config: reconnect_delays: %w", err)
			}
			cfg.ReconnectDelays = append(cfg.ReconnectDelays, d)
		}
	}
	if meta.IsDefined("call_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.CallTimeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("load client config: call_timeout: %w", err)
		}
		cfg.CallTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}
	return cfg, nil
}

func (c ClientConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if !hubproxy.HasTransport(c.Transport) {
		return fmt.Errorf("unsupported transport %q (available: %s)", c.Transport, strings.Join(hubproxy.AvailableTransports(), ", "))
	}
	if err := validateLevel(c.LogLevel); err != nil {
		return err
	}
	for _, d := range c.ReconnectDelays {
		if d < 0 {
			return fmt.Errorf("negative reconnect delay %v", d)
		}
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("negative call timeout %v", c.CallTimeout)
	}
	return nil
}

// DialOptions translates c into channel options.
func (c ClientConfig) DialOptions() []hubproxy.DialOption {
	opts := []hubproxy.DialOption{hubproxy.WithTransport(c.Transport)}
	if c.Service != "" {
		opts = append(opts, hubproxy.WithService(c.Service))
	}
	if c.Reconnect {
		opts = append(opts, hubproxy.WithAutomaticReconnect(c.ReconnectDelays...))
	}
	return opts
}

// LoadServerConfig overlays the file at path on DefaultServerConfig.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("load server config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ServerConfig{}, fmt.Errorf("load server config: unknown key %q", undecoded[0].String())
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, fmt.Errorf("load server config: %w", err)
	}
	return cfg, nil
}

func (c ServerConfig) Validate() error {
	if c.Listen == "" {
		return errors.New("listen is required")
	}
	if err := validateLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// validateLevel accepts an empty level, which keeps the level chosen by
// the HUBPROXY_LOG_LEVEL environment variable.
func validateLevel(raw string) error {
	if raw == "" {
		return nil
	}
	if _, ok := logging.ParseLevel(raw); !ok {
		return fmt.Errorf("unknown log level %q", raw)
	}
	return nil
}
