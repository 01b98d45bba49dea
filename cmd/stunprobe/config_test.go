package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/stunsocket/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	cfg, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server: 127.0.0.1:3478
transport: tcp
timeout: 750ms
count: 3
indication: true
log_level: debug
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3478", cfg.Server)
	assert.Equal(t, "tcp", cfg.Transport)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 3, cfg.Count)
	assert.True(t, cfg.Indication)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	host, port, kind, err := cfg.endpoint()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 3478, port)
	assert.Equal(t, transport.KindStream, kind)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"zero count", func(c *Config) { c.Count = 0 }},
		{"unknown transport", func(c *Config) { c.Transport = "sctp" }},
		{"missing port", func(c *Config) { c.Server = "stun.example.net" }},
		{"bad port", func(c *Config) { c.Server = "stun.example.net:abc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}

	assert.NoError(t, defaultConfig().validate())
}

func TestListenOptions(t *testing.T) {
	lo, err := listenOptions("")
	require.NoError(t, err)
	assert.Zero(t, lo)

	lo, err = listenOptions("127.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", lo.Address)
	assert.Equal(t, 5000, lo.Port)

	_, err = listenOptions("nonsense")
	assert.Error(t, err)
}
