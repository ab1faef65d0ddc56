// Command tlstesttool drives or accepts one TLS handshake against a
// device under test, applying whatever fault-injection manipulations the
// configuration file names, and logs the protocol trace to STDOUT.
// Grounded on original_source/tlstesttool/src/TlsTestTool.cpp's main():
// parse configuration, build the logger, build the session, dial or
// listen, then drive the handshake. The STARTTLS preamble runs only in
// client mode, after the dial, when startTlsProtocol is configured;
// server mode does not run it.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BSI-Bund/TaSK/internal/config"
	"github.com/BSI-Bund/TaSK/internal/driver"
	"github.com/BSI-Bund/TaSK/internal/keylog"
	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/manipulation"
	"github.com/BSI-Bund/TaSK/internal/starttls"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
	"github.com/BSI-Bund/TaSK/internal/transport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	configFile, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration failed: %v\n", err)
		return 1
	}
	config.ApplyEnvOverlay(cfg)

	logger := logx.New(logx.Config{
		Level:    cfg.LogLevel,
		Rotation: logx.Rotation(cfg.LogRotation),
	})
	logger.SetTLSVersion(logx.Version{Major: cfg.TLSVersion.Major, Minor: cfg.TLSVersion.Minor})

	if cfg.LogFilterRegex != "" {
		filter, err := logx.NewRegexMatchFilter(cfg.LogFilterRegex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuring the log filter regular expression failed: %v\n", err)
			return 1
		}
		logger.AddFilter(filter)
	}

	logger.Log("Tool", "TLS Test Tool")
	driver.LogConfigSnapshot(logger, "config", configSnapshot(cfg))

	chain, err := cfg.BuildManipulationChain(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building the manipulation chain failed: %v\n", err)
		return 1
	}

	params := driver.Params{
		WaitBeforeClose: time.Duration(cfg.Timeouts.WaitBeforeClose) * time.Second,
		SessionLifetime: time.Duration(cfg.Timeouts.SessionLifetime) * time.Second,
		IsClient:        cfg.Mode == config.ModeClient,
	}

	ctx := context.Background()
	if cfg.Mode == config.ModeServer {
		return runServerMode(ctx, logger, chain, cfg, params)
	}
	return runClientMode(ctx, logger, chain, cfg, params)
}

func runClientMode(ctx context.Context, logger *logx.Logger, chain *manipulation.Chain, cfg *config.Config, params driver.Params) int {
	conn, err := transport.Dial(ctx, cfg.Host, strconv.Itoa(int(cfg.Port)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "TCP/IP connection to %s:%d failed: %v\n", cfg.Host, cfg.Port, err)
		return 1
	}
	logger.Log("Network", fmt.Sprintf("TCP/IP connection to %s:%d established.", conn.RemoteIPAddress(), conn.RemoteTCPPort()))

	if cfg.StartTLSProtocol != starttls.ProtocolNone {
		if err := starttls.Execute(ctx, conn, cfg.StartTLSProtocol, true, time.Duration(cfg.Timeouts.TCPReceiveS)*time.Second, logger); err != nil {
			fmt.Fprintf(os.Stderr, "STARTTLS preamble failed: %v\n", err)
			_ = conn.Close()
			return 1
		}
	}

	session, err := buildSession(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuring the TLS session failed: %v\n", err)
		_ = conn.Close()
		return 1
	}

	d := driver.New(logger, chain)
	if err := d.Run(ctx, session, conn, params); err != nil {
		fmt.Fprintf(os.Stderr, "running the TLS session failed: %v\n", err)
		return 1
	}
	return 0
}

func runServerMode(ctx context.Context, logger *logx.Logger, chain *manipulation.Chain, cfg *config.Config, params driver.Params) int {
	listener, err := transport.Listen(cfg.Port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listening on port %d failed: %v\n", cfg.Port, err)
		return 1
	}
	defer listener.Close()
	logger.Log("Network", fmt.Sprintf("Waiting for TCP/IP connection on port %d.", cfg.Port))

	listenTimeout := time.Duration(cfg.Timeouts.ListenS) * time.Second
	if listenTimeout <= 0 {
		listenTimeout = 24 * time.Hour
	}

	newSession := func() (tlssession.Session, error) { return buildSession(cfg) }

	if err := driver.RunServer(ctx, logger, chain, newSession, listener, cfg.HandshakeType, params, listenTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "running the TLS session failed: %v\n", err)
		return 1
	}
	return 0
}

// buildSession wires driver.BuildSession with the NSS key-log sink
// tlsSecretFile names, since that file destination is a CLI-level
// concern (an os.File handle), not something internal/driver should own.
func buildSession(cfg *config.Config) (tlssession.Session, error) {
	session, err := driver.BuildSession(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.SecretFile != "" {
		f, err := os.OpenFile(cfg.SecretFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening tlsSecretFile: %w", err)
		}
		if err := session.SetSecretOutput(keylog.New(f)); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// parseArgs enforces spec.md §6: exactly one recognised option,
// --configFile=PATH; any other token is an error.
func parseArgs(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: tlstesttool --configFile=PATH")
	}
	const prefix = "--configFile="
	if !strings.HasPrefix(args[0], prefix) {
		return "", fmt.Errorf("unrecognised option %q, want --configFile=PATH", args[0])
	}
	path := strings.TrimPrefix(args[0], prefix)
	if path == "" {
		return "", fmt.Errorf("--configFile requires a non-empty path")
	}
	return path, nil
}

// configSnapshot flattens the handful of Config fields worth surfacing
// in a startup log line, routed through driver.LogConfigSnapshot so PSK
// material is redacted before anything reaches the log sink.
func configSnapshot(cfg *config.Config) map[string]any {
	return map[string]any{
		"mode":    cfg.Mode.String(),
		"backend": cfg.Backend.String(),
		"host":    cfg.Host,
		"port":    cfg.Port,
		"psk":     string(cfg.PSK),
	}
}
