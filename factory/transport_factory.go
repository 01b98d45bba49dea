package factory

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/opd-ai/stunsocket/transport"
	"github.com/sirupsen/logrus"
)

// Validation constants for configuration bounds checking.
const (
	// MinHighWaterMark is the smallest allowed stream high water mark in bytes.
	MinHighWaterMark = 1024
	// MaxHighWaterMark is the largest allowed stream high water mark (16 MiB).
	MaxHighWaterMark = 16 * 1024 * 1024
	// MinReadBufferSize is the smallest allowed stream read buffer.
	MinReadBufferSize = 512
	// MaxReadBufferSize is the largest allowed stream read buffer (1 MiB).
	MaxReadBufferSize = 1024 * 1024
	// MinConnectTimeout is the minimum allowed connect timeout in milliseconds.
	MinConnectTimeout = 100
	// MaxConnectTimeout is the maximum allowed connect timeout in milliseconds (10 minutes).
	MaxConnectTimeout = 600000
)

// Config holds the tunables applied to every transport the factory creates.
type Config struct {
	// HighWaterMark is the stream queue size above which Send waits for drain.
	HighWaterMark int
	// ReadBufferSize is the stream read buffer size.
	ReadBufferSize int
	// ConnectTimeout bounds bind/connect when the caller's context has no
	// deadline. Zero disables it.
	ConnectTimeout time.Duration
}

// TransportFactory creates bound or connected transports.
// It is safe for concurrent use.
type TransportFactory struct {
	mu     sync.RWMutex
	config *Config
}

// NewTransportFactory creates a factory with default configuration and
// environment overrides applied.
func NewTransportFactory() *TransportFactory {
	config := createDefaultConfig()
	applyEnvironmentOverrides(config)

	logrus.WithFields(logrus.Fields{
		"function":         "NewTransportFactory",
		"high_water_mark":  config.HighWaterMark,
		"read_buffer_size": config.ReadBufferSize,
		"connect_timeout":  config.ConnectTimeout.String(),
	}).Debug("Created transport factory with configuration")

	return &TransportFactory{config: config}
}

// NewTransportFactoryWithConfig creates a factory from an explicit
// configuration. Zero fields take defaults; out-of-range values are rejected.
func NewTransportFactoryWithConfig(c Config) (*TransportFactory, error) {
	config := createDefaultConfig()
	if c.HighWaterMark != 0 {
		if c.HighWaterMark < MinHighWaterMark || c.HighWaterMark > MaxHighWaterMark {
			return nil, fmt.Errorf("high water mark %d out of range [%d, %d]", c.HighWaterMark, MinHighWaterMark, MaxHighWaterMark)
		}
		config.HighWaterMark = c.HighWaterMark
	}
	if c.ReadBufferSize != 0 {
		if c.ReadBufferSize < MinReadBufferSize || c.ReadBufferSize > MaxReadBufferSize {
			return nil, fmt.Errorf("read buffer size %d out of range [%d, %d]", c.ReadBufferSize, MinReadBufferSize, MaxReadBufferSize)
		}
		config.ReadBufferSize = c.ReadBufferSize
	}
	if c.ConnectTimeout < 0 {
		return nil, fmt.Errorf("connect timeout %s is negative", c.ConnectTimeout)
	}
	config.ConnectTimeout = c.ConnectTimeout
	return &TransportFactory{config: config}, nil
}

// createDefaultConfig initializes the default configuration.
//
// Default Value Rationale:
//   - HighWaterMark: 16 KiB - matches common kernel socket buffer defaults
//   - ReadBufferSize: 64 KiB - one read can carry any STUN message
//   - ConnectTimeout: 5s - bounds bind/connect when the caller sets no deadline
func createDefaultConfig() *Config {
	return &Config{
		HighWaterMark:  transport.DefaultHighWaterMark,
		ReadBufferSize: 64 * 1024,
		ConnectTimeout: 5 * time.Second,
	}
}

// applyEnvironmentOverrides updates configuration from STUNSOCKET_* variables.
func applyEnvironmentOverrides(config *Config) {
	if v, ok := parseBoundedInt("STUNSOCKET_HIGH_WATER_MARK", MinHighWaterMark, MaxHighWaterMark, config.HighWaterMark); ok {
		config.HighWaterMark = v
	}
	if v, ok := parseBoundedInt("STUNSOCKET_READ_BUFFER_SIZE", MinReadBufferSize, MaxReadBufferSize, config.ReadBufferSize); ok {
		config.ReadBufferSize = v
	}
	if v, ok := parseBoundedInt("STUNSOCKET_CONNECT_TIMEOUT", MinConnectTimeout, MaxConnectTimeout, int(config.ConnectTimeout/time.Millisecond)); ok {
		config.ConnectTimeout = time.Duration(v) * time.Millisecond
	}
}

// parseBoundedInt reads an integer environment variable and validates it is
// within [lo, hi]. It logs a warning and reports false for invalid values.
func parseBoundedInt(envVar string, lo, hi, current int) (int, bool) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return 0, false
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseBoundedInt",
			"env_var":     envVar,
			"value":       raw,
			"error":       err.Error(),
			"using_value": current,
		}).Warn("Failed to parse environment variable, using default")
		return 0, false
	}
	if value < lo || value > hi {
		logrus.WithFields(logrus.Fields{
			"function":    "parseBoundedInt",
			"env_var":     envVar,
			"value":       value,
			"min":         lo,
			"max":         hi,
			"using_value": current,
		}).Warn("Environment variable out of bounds, using default")
		return 0, false
	}
	return value, true
}

// Config returns a copy of the current configuration.
func (f *TransportFactory) Config() Config {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return *f.config
}

// Connect creates a transport of the given kind for remote and makes it
// ready: datagram transports are bound to local, stream transports connect
// from local (empty = any). It returns the local address in use.
func (f *TransportFactory) Connect(ctx context.Context, kind transport.Kind, remote, local string, h transport.Handlers) (transport.Transport, net.Addr, error) {
	config := f.Config()

	if _, ok := ctx.Deadline(); !ok && config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	logrus.WithFields(logrus.Fields{
		"function": "TransportFactory.Connect",
		"kind":     kind.String(),
		"remote":   remote,
		"local":    local,
	}).Debug("Creating transport")

	switch kind {
	case transport.KindDatagram:
		tr, err := transport.NewUDPTransport(remote, h)
		if err != nil {
			return nil, nil, err
		}
		addr, err := tr.Bind(ctx, local)
		if err != nil {
			tr.Close(context.Background())
			return nil, nil, err
		}
		return tr, addr, nil

	case transport.KindStream:
		tr, err := transport.DialTCP(ctx, remote, local, h, &transport.StreamOptions{
			HighWaterMark:  config.HighWaterMark,
			ReadBufferSize: config.ReadBufferSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return tr, tr.LocalAddr(), nil

	default:
		return nil, nil, &transport.OpError{Op: "connect", Addr: remote, Err: transport.ErrUnknownKind}
	}
}
