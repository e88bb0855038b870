// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/hubproxy"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadClientConfigDefaults(t *testing.T) {
	cfg, err := LoadClientConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultClientConfig(), cfg)
	require.Len(t, cfg.DialOptions(), 2)

	// an unset level leaves the environment in charge
	require.Empty(t, cfg.LogLevel)
	server, err := LoadServerConfig("")
	require.NoError(t, err)
	require.Empty(t, server.LogLevel)
}

func TestLoadClientConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
addr = " http://127.0.0.1:8080/rpc "
transport = "JSON"
service = "ChatHub"
user_name = "alice"
log_level = "debug"
reconnect = false
call_timeout = "5s"
`)
	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8080/rpc", cfg.Addr)
	require.Equal(t, hubproxy.TransportJSON, cfg.Transport)
	require.Equal(t, "ChatHub", cfg.Service)
	require.Equal(t, "alice", cfg.UserName)
	require.Equal(t, "debug", cfg.LogLevel)
	require.False(t, cfg.Reconnect)
	require.Equal(t, 5*time.Second, cfg.CallTimeout)
	require.Len(t, cfg.DialOptions(), 2)
}

func TestLoadClientConfigReconnectDelays(t *testing.T) {
	path := writeConfig(t, `reconnect_delays = ["0s", "500ms", "5s"]`)
	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.True(t, cfg.Reconnect)
	require.Equal(t, []time.Duration{0, 500 * time.Millisecond, 5 * time.Second}, cfg.ReconnectDelays)
}

func TestLoadClientConfigRejects(t *testing.T) {
	tests := map[string]string{
		"unknown transport": `transport = "smoke"`,
		"bad delay":         `reconnect_delays = ["soon"]`,
		"negative delay":    `reconnect_delays = ["-1s"]`,
		"bad level":         `log_level = "loud"`,
		"empty addr":        `addr = ""`,
		"unknown key":       `adress = "typo:1"`,
		"not toml":          `addr = `,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadClientConfig(writeConfig(t, content))
			require.Error(t, err)
		})
	}

	_, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoadServerConfig(t *testing.T) {
	cfg, err := LoadServerConfig("")
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Listen)

	cfg, err = LoadServerConfig(writeConfig(t, `
listen = "127.0.0.1:9100"
log_level = "warn"
`))
	require.NoError(t, err)
	require.Equal(t, ServerConfig{Listen: "127.0.0.1:9100", LogLevel: "warn"}, cfg)

	_, err = LoadServerConfig(writeConfig(t, `listen = ""`))
	require.Error(t, err)
}
