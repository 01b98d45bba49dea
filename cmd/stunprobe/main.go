// Command stunprobe sends STUN Binding requests to a server and prints the
// reflexive transport address it reports.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/opd-ai/stunsocket"
	"github.com/opd-ai/stunsocket/packet"
	"github.com/pion/stun"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	flags   = defaultConfig()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stunprobe",
		Short:         "Discover the reflexive address seen by a STUN server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			applyFlags(cmd, cfg)
			if err := cfg.validate(); err != nil {
				return err
			}
			if err := configureLogging(cfg); err != nil {
				return err
			}
			return probe(cmd.Context(), cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	f.StringVarP(&flags.Server, "server", "s", flags.Server, "STUN server host:port")
	f.StringVarP(&flags.Transport, "transport", "t", flags.Transport, "transport: udp or tcp")
	f.StringVar(&flags.Local, "local", flags.Local, "local address host:port")
	f.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "per-request timeout")
	f.IntVarP(&flags.Count, "count", "n", flags.Count, "number of requests")
	f.BoolVar(&flags.Indication, "indication", flags.Indication, "send a Binding indication before the requests")
	f.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "log level")
	f.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "log format: text or json")
	return cmd
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	f := cmd.Flags()
	if f.Changed("server") {
		cfg.Server = flags.Server
	}
	if f.Changed("transport") {
		cfg.Transport = flags.Transport
	}
	if f.Changed("local") {
		cfg.Local = flags.Local
	}
	if f.Changed("timeout") {
		cfg.Timeout = flags.Timeout
	}
	if f.Changed("count") {
		cfg.Count = flags.Count
	}
	if f.Changed("indication") {
		cfg.Indication = flags.Indication
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = flags.LogFormat
	}
}

func configureLogging(cfg *Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

func probe(ctx context.Context, cmd *cobra.Command, cfg *Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	host, port, kind, err := cfg.endpoint()
	if err != nil {
		return err
	}

	opts := stunsocket.NewOptions()
	opts.Observer = stunsocket.ObserverFuncs{
		OnError: func(err error) {
			logrus.WithFields(logrus.Fields{
				"function": "probe",
				"error":    err.Error(),
			}).Warn("Socket error")
		},
	}

	sock, err := stunsocket.New(stunsocket.Endpoint{Host: host, Port: port, Kind: kind}, opts)
	if err != nil {
		return err
	}
	defer sock.Close()

	lo, err := listenOptions(cfg.Local)
	if err != nil {
		return err
	}

	listenCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	local, err := sock.Listen(listenCtx, lo)
	cancel()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "local  %s/%s\n", local, kind)

	software := stun.NewSoftware("stunprobe")

	if cfg.Indication {
		ind, err := packet.NewBindingIndication(software)
		if err != nil {
			return err
		}
		if err := sock.SendIndication(ctx, ind); err != nil {
			return err
		}
	}

	for i := 0; i < cfg.Count; i++ {
		req, id, err := packet.NewBindingRequest(software)
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		tx, err := sock.BeginRequest(reqCtx, req)
		if err != nil {
			cancel()
			return err
		}
		resp, err := tx.Wait(reqCtx)
		cancel()
		if err != nil {
			return err
		}

		mapped, err := stunsocket.MappedAddress(resp, kind)
		if err != nil {
			return fmt.Errorf("transaction 0x%08x: %w", id, err)
		}
		fmt.Fprintf(out, "mapped %s rtt=%s\n", mapped, tx.RTT())
	}

	stats := sock.Stats()
	logrus.WithFields(logrus.Fields{
		"function":     "probe",
		"requests":     stats.RequestsSent,
		"matched":      stats.ResponsesMatched,
		"unsolicited":  stats.UnsolicitedResponses,
		"indications":  stats.IndicationsSent,
		"raw_messages": stats.RawMessages,
	}).Info("Probe finished")
	return nil
}

func listenOptions(local string) (stunsocket.ListenOptions, error) {
	if local == "" {
		return stunsocket.ListenOptions{}, nil
	}
	host, portStr, err := net.SplitHostPort(local)
	if err != nil {
		return stunsocket.ListenOptions{}, fmt.Errorf("invalid local address %q: %w", local, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return stunsocket.ListenOptions{}, fmt.Errorf("invalid local port %q: %w", portStr, err)
	}
	return stunsocket.ListenOptions{Address: host, Port: port}, nil
}
