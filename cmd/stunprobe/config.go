package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/opd-ai/stunsocket/transport"
	"gopkg.in/yaml.v3"
)

// Config holds the probe settings. Flags override values loaded from file.
type Config struct {
	Server     string        `yaml:"server"`
	Transport  string        `yaml:"transport"`
	Local      string        `yaml:"local"`
	Timeout    time.Duration `yaml:"timeout"`
	Count      int           `yaml:"count"`
	Indication bool          `yaml:"indication"`
	LogLevel   string        `yaml:"log_level"`
	LogFormat  string        `yaml:"log_format"`
}

// defaultConfig returns the built-in settings.
func defaultConfig() *Config {
	return &Config{
		Server:    "stun.l.google.com:19302",
		Transport: "udp",
		Timeout:   3 * time.Second,
		Count:     1,
		LogLevel:  "warn",
		LogFormat: "text",
	}
}

// loadConfig reads a YAML config file over the defaults. An empty path or a
// missing file yields the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// endpoint splits Server into host and port and resolves the transport kind.
func (c *Config) endpoint() (host string, port int, kind transport.Kind, err error) {
	kind, err = transport.ParseKind(c.Transport)
	if err != nil {
		return "", 0, 0, err
	}

	host, portStr, err := net.SplitHostPort(c.Server)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid server %q: %w", c.Server, err)
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid server port %q: %w", portStr, err)
	}
	return host, port, kind, nil
}

func (c *Config) validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", c.Count)
	}
	_, _, _, err := c.endpoint()
	return err
}
